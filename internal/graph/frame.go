package graph

// Range is a closed numeric interval.
type Range struct {
	Min, Max float64
}

// Length returns Max - Min.
func (r Range) Length() float64 { return r.Max - r.Min }

// Portion maps v into [0,1] relative to the range. A degenerate range maps
// everything to the middle.
func (r Range) Portion(v float64) float64 {
	if r.Length() == 0 {
		return 0.5
	}
	return (v - r.Min) / r.Length()
}

// FromPortion is the inverse of Portion.
func (r Range) FromPortion(p float64) float64 {
	return r.Min + p*r.Length()
}

// Range2D is an axis-aligned box.
type Range2D struct {
	X, Y Range
}

// Transform maps world coordinates onto a display frame. Frame ranges may be
// inverted (Min > Max) to flip an axis, which is how screen space puts y=0 at
// the top.
type Transform struct {
	World Range2D
	Frame Range2D
}

// NewTransform returns the mapping from world to frame.
func NewTransform(world, frame Range2D) Transform {
	return Transform{World: world, Frame: frame}
}

// WorldToFrame converts a world point to frame coordinates.
func (t Transform) WorldToFrame(p Point) Point {
	return Point{
		X: t.Frame.X.FromPortion(t.World.X.Portion(p.X)),
		Y: t.Frame.Y.FromPortion(t.World.Y.Portion(p.Y)),
		Z: p.Z,
	}
}

// FrameToWorld converts a frame point back to world coordinates.
func (t Transform) FrameToWorld(p Point) Point {
	return Point{
		X: t.World.X.FromPortion(t.Frame.X.Portion(p.X)),
		Y: t.World.Y.FromPortion(t.Frame.Y.Portion(p.Y)),
		Z: p.Z,
	}
}
