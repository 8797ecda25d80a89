package view

import (
	"fmt"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	ebtext "github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/colornames"

	"github.com/Garsondee/graph-arena/internal/session"
)

const (
	feedPanelWidth = 360
	feedMaxEntries = 80
)

// Feed is a ring buffer of recent session events rendered on-screen. Add is
// called from session goroutines, Draw from the ebiten loop.
type Feed struct {
	mu      sync.Mutex
	entries []session.Event
	head    int
	count   int
}

// NewFeed creates a feed with a fixed capacity.
func NewFeed() *Feed {
	return &Feed{entries: make([]session.Event, feedMaxEntries)}
}

// Add appends an event, dropping the oldest when full.
func (f *Feed) Add(e session.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[f.head] = e
	f.head = (f.head + 1) % feedMaxEntries
	if f.count < feedMaxEntries {
		f.count++
	}
}

// Recent returns entries in chronological order (oldest first).
func (f *Feed) Recent() []session.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]session.Event, f.count)
	for i := 0; i < f.count; i++ {
		out[i] = f.entries[(f.head-f.count+i+feedMaxEntries)%feedMaxEntries]
	}
	return out
}

// categoryColor tints the marker beside each feed line.
func categoryColor(cat string) color.RGBA {
	switch cat {
	case session.CatPlan:
		return colornames.Deepskyblue
	case session.CatClaim:
		return colornames.Gold
	case session.CatEngine, session.CatTiming:
		return colornames.Tomato
	case session.CatPacing:
		return colornames.Violet
	}
	return colornames.Gray
}

// Draw renders the feed panel on the right side of the screen, newest at
// the bottom.
func (f *Feed) Draw(screen *ebiten.Image, face ebtext.Face, panelX, panelH int) {
	px, w, h := float32(panelX), float32(feedPanelWidth), float32(panelH)
	vector.FillRect(screen, px, 0, w, h, color.RGBA{R: 10, G: 12, B: 16, A: 248}, false)
	vector.StrokeLine(screen, px, 0, px, h, 1, panelBorder, false)
	vector.FillRect(screen, px, 0, w, 18, color.RGBA{R: 20, G: 26, B: 36, A: 255}, false)
	drawText(screen, face, "EVENTS", panelX+8, 3, colornames.Lightgray)

	entries := f.Recent()
	maxVisible := (panelH - 24) / lineHeight
	if len(entries) > maxVisible {
		entries = entries[len(entries)-maxVisible:]
	}
	const highlight = 3
	y := 22
	for i, e := range entries {
		recent := i >= len(entries)-highlight
		if recent {
			vector.FillRect(screen, px+2, float32(y), w-4, lineHeight, color.RGBA{R: 30, G: 38, B: 52, A: 160}, false)
		}
		vector.FillRect(screen, px+5, float32(y+4), 3, 7, categoryColor(e.Category), false)
		textCol := colornames.Darkgray
		if recent {
			textCol = colornames.White
		}
		drawText(screen, face, feedLine(e), panelX+12, y, textCol)
		y += lineHeight
	}
}

func feedLine(e session.Event) string {
	line := fmt.Sprintf("%4d %-3s %s %s", e.Tick, e.Agent, e.Key, e.Value)
	const maxChars = (feedPanelWidth - 16) / 7
	if len(line) > maxChars {
		line = line[:maxChars-1] + "~"
	}
	return line
}
