// Package view is the ebiten window that shows a running session: graph,
// targets, agents and their claims, a HUD, the time line and an event feed.
// The viewer only reads arena.View copies handed to it by the session.
package view

import (
	"image/color"
	"math"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	ebtext "github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"github.com/Garsondee/graph-arena/internal/arena"
	"github.com/Garsondee/graph-arena/internal/graph"
	"github.com/Garsondee/graph-arena/internal/session"
)

// borderWidth is the pixel gap between the window edge and the playfield.
const borderWidth = 24

// timelineHeight is the strip under the playfield showing elapsed time.
const timelineHeight = 10

// Viewer implements ebiten.Game and session.Presenter.
type Viewer struct {
	width      int
	height     int
	fieldW     int // playfield width (feed panel takes the rest)
	fieldH     int
	offX, offY int

	face     ebtext.Face
	fieldBuf *ebiten.Image // playfield, blitted at the border offset

	mu   sync.Mutex
	view arena.View
	have bool

	events *session.EventLog
	feed   *Feed

	cam       camera
	showHUD   bool
	showPaths bool
	inspector inspector
	status    string // one-line notice, e.g. after a clipboard copy
}

// Option configures a Viewer.
type Option func(*Viewer)

// WithEvents shows the session's events in the feed panel and makes them
// available to the copied debug report.
func WithEvents(l *session.EventLog) Option {
	return func(v *Viewer) {
		v.events = l
		l.Subscribe(v.feed.Add)
	}
}

// WithSize sets the playfield size in pixels.
func WithSize(w, h int) Option {
	return func(v *Viewer) {
		v.fieldW, v.fieldH = w, h
	}
}

// New creates a viewer. Call ebiten.RunGame with it on the main goroutine.
func New(opts ...Option) *Viewer {
	v := &Viewer{
		fieldW:    1280,
		fieldH:    820,
		offX:      borderWidth,
		offY:      borderWidth,
		face:      ebtext.NewGoXFace(basicfont.Face7x13),
		feed:      NewFeed(),
		showHUD:   true,
		showPaths: true,
		cam:       camera{zoom: 1},
		inspector: inspector{selected: arena.NoNode},
	}
	for _, o := range opts {
		o(v)
	}
	v.width = borderWidth + v.fieldW + borderWidth + feedPanelWidth
	v.height = borderWidth + v.fieldH + timelineHeight + borderWidth
	v.cam.x, v.cam.y = float64(v.fieldW)/2, float64(v.fieldH)/2
	return v
}

// Present stores the latest view. It is called from the session's
// presentation goroutine and never blocks on drawing.
func (v *Viewer) Present(av arena.View) {
	v.mu.Lock()
	v.view = av
	v.have = true
	v.mu.Unlock()
}

func (v *Viewer) latest() (arena.View, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.view, v.have
}

// Size returns the window size the viewer lays out for.
func (v *Viewer) Size() (int, int) { return v.width, v.height }

// Update handles input. Escape or Q closes the window.
func (v *Viewer) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyQ) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyH) {
		v.showHUD = !v.showHUD
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		v.showPaths = !v.showPaths
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyI) {
		v.inspector.raw = !v.inspector.raw
	}

	// Camera pan: WASD or arrow keys.
	pan := 6.0 / v.cam.zoom
	if ebiten.IsKeyPressed(ebiten.KeyW) || ebiten.IsKeyPressed(ebiten.KeyArrowUp) {
		v.cam.y -= pan
	}
	if ebiten.IsKeyPressed(ebiten.KeyS) || ebiten.IsKeyPressed(ebiten.KeyArrowDown) {
		v.cam.y += pan
	}
	if ebiten.IsKeyPressed(ebiten.KeyA) || ebiten.IsKeyPressed(ebiten.KeyArrowLeft) {
		v.cam.x -= pan
	}
	if ebiten.IsKeyPressed(ebiten.KeyD) || ebiten.IsKeyPressed(ebiten.KeyArrowRight) {
		v.cam.x += pan
	}

	// Camera zoom: mouse wheel or =/- keys.
	if _, wy := ebiten.Wheel(); wy != 0 {
		v.cam.zoom *= math.Pow(1.12, wy)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) {
		v.cam.zoom *= 1.25
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) {
		v.cam.zoom /= 1.25
	}
	v.cam.clamp(float64(v.fieldW), float64(v.fieldH))

	av, ok := v.latest()
	if !ok {
		return nil
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		mx, my := ebiten.CursorPosition()
		v.inspector.selected = v.pick(av, mx, my)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyC) {
		v.copyReport(av)
	}
	return nil
}

func (v *Viewer) copyReport(av arena.View) {
	rep := debugReport(av, v.events, v.inspector.selected, reportTicks)
	if err := clipboard.WriteAll(rep); err != nil {
		v.status = "copy failed: " + err.Error()
		return
	}
	v.status = "report copied to clipboard"
}

// Draw renders the latest view.
func (v *Viewer) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 12, G: 14, B: 18, A: 255})

	av, ok := v.latest()
	if ok {
		if v.fieldBuf == nil {
			v.fieldBuf = ebiten.NewImage(v.fieldW, v.fieldH)
		}
		v.fieldBuf.Fill(color.RGBA{R: 20, G: 24, B: 30, A: 255})
		tf := v.transform(av)
		drawEdges(v.fieldBuf, av, tf)
		if v.showPaths {
			drawPaths(v.fieldBuf, av, tf)
		}
		drawClaims(v.fieldBuf, av, tf)
		drawTargets(v.fieldBuf, av, tf)
		drawAgents(v.fieldBuf, av, tf, v.inspector.selected)

		var blit ebiten.DrawImageOptions
		blit.GeoM.Translate(float64(v.offX), float64(v.offY))
		screen.DrawImage(v.fieldBuf, &blit)
	}

	v.drawFrame(screen)
	if ok {
		v.drawTimeline(screen, av)
		if v.showHUD {
			v.drawHUD(screen, av)
		}
		v.drawInspector(screen, av)
	}
	v.feed.Draw(screen, v.face, v.offX+v.fieldW+v.offX, v.height)
}

// Layout fixes the logical screen size.
func (v *Viewer) Layout(_, _ int) (int, int) {
	return v.width, v.height
}

// transform maps world coordinates to playfield pixels: graph bounds onto
// the playfield (y flipped), then the camera.
func (v *Viewer) transform(av arena.View) func(graph.Point) (float32, float32) {
	frame := graph.Range2D{
		X: graph.Range{Min: fieldPad, Max: float64(v.fieldW) - fieldPad},
		Y: graph.Range{Min: float64(v.fieldH) - fieldPad, Max: fieldPad},
	}
	tf := av.WorldToFrame(frame)
	return func(p graph.Point) (float32, float32) {
		f := tf.WorldToFrame(p)
		sx, sy := v.cam.toScreen(f.X, f.Y, float64(v.fieldW), float64(v.fieldH))
		return float32(sx), float32(sy)
	}
}

// fieldPad keeps nodes on the playfield edge fully visible.
const fieldPad = 20

// pick returns the id of the agent under the cursor, or arena.NoNode.
func (v *Viewer) pick(av arena.View, mx, my int) int {
	tf := v.transform(av)
	mx -= v.offX
	my -= v.offY
	const radius = 16.0
	best := radius * radius
	hit := arena.NoNode
	for _, a := range av.Agents {
		x, y := tf(a.Pos)
		dx, dy := float64(x)-float64(mx), float64(y)-float64(my)
		if d2 := dx*dx + dy*dy; d2 < best {
			best, hit = d2, a.ID
		}
	}
	return hit
}

// camera pans and zooms the playfield. x, y is the playfield point shown
// at the viewport centre.
type camera struct {
	x, y float64
	zoom float64
}

const zoomMin, zoomMax = 0.5, 4.0

// toScreen maps a playfield point to viewport pixels.
func (c camera) toScreen(px, py, vpW, vpH float64) (float64, float64) {
	return (px-c.x)*c.zoom + vpW/2, (py-c.y)*c.zoom + vpH/2
}

// clamp bounds zoom and keeps the viewport inside the playfield.
func (c *camera) clamp(w, h float64) {
	c.zoom = math.Max(zoomMin, math.Min(zoomMax, c.zoom))
	halfW, halfH := w/2/c.zoom, h/2/c.zoom
	c.x = math.Max(math.Min(c.x, w-halfW), math.Min(halfW, w/2))
	c.y = math.Max(math.Min(c.y, h-halfH), math.Min(halfH, h/2))
}
