// Copyright © 2025 xpra-client contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: window/window.go
// Summary: Terminal-backed window manager. Renders server windows into
// tcell cells using half-block glyphs, two pixels per cell, and turns
// terminal input into pixel-space events.

package window

import (
	"sort"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/zorodc/xpra-client/keysym"
)

// Each cell holds a pixel above a pixel: '▀' drawn with the top pixel as
// the foreground color and the bottom pixel as the background.
const halfBlock = '▀'

// bytesPerPixel is the stride of the RGBX buffers windows are drawn with.
const bytesPerPixel = 4

// Geometry places a window in pixel space.
type Geometry struct {
	X, Y int
	W, H int
}

// Event is sent on the manager's event channel. Exactly one field is set.
type Event struct {
	Key    *KeyEvent
	Button *ButtonEvent
	Motion *MotionEvent
	Resize *ResizeEvent
}

// KeyEvent is a raw terminal key press, left to the caller to resolve
// into keysyms.
type KeyEvent struct {
	Ev *tcell.EventKey
}

// ButtonEvent is a press or release of an X11 button number at a pixel
// position inside the window identified by ID.
type ButtonEvent struct {
	ID      uint64
	Button  int
	Pressed bool
	X, Y    int
	Mods    tcell.ModMask
}

// MotionEvent is pointer movement over the window identified by ID.
type MotionEvent struct {
	ID   uint64
	X, Y int
	Mods tcell.ModMask
}

// ResizeEvent carries the new screen size in pixels.
type ResizeEvent struct {
	W, H int
}

type win struct {
	geom     Geometry
	title    string
	override bool
	stack    int
	pixels   []byte // RGBX rows, geom.W*bytesPerPixel apart
}

// Manager owns the terminal screen and the set of server windows mapped
// onto it. All methods are safe to call from the packet-handling
// goroutine while the event pump runs.
type Manager struct {
	screen tcell.Screen

	mu      sync.Mutex
	windows map[uint64]*win
	stamp   int
	buttons tcell.ButtonMask

	events chan Event
	quit   chan struct{}
}

// New initializes the terminal and starts the input pump. The caller must
// Close the manager to restore the terminal.
func New() (*Manager, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return initManager(screen)
}

func initManager(screen tcell.Screen) (*Manager, error) {
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.EnableMouse()
	screen.HideCursor()
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack))
	screen.Clear()

	m := &Manager{
		screen:  screen,
		windows: make(map[uint64]*win),
		events:  make(chan Event, 64),
		quit:    make(chan struct{}),
	}
	go m.pump()
	return m, nil
}

// Events returns the channel input and resize events arrive on. It is
// closed when the manager shuts down.
func (m *Manager) Events() <-chan Event { return m.events }

// Close stops the event pump and restores the terminal.
func (m *Manager) Close() {
	close(m.quit)
	m.screen.Fini()
}

// Size reports the screen size in pixels.
func (m *Manager) Size() (int, int) {
	w, h := m.screen.Size()
	return w, h * 2
}

// NewWindow registers a window and paints its frame. Windows start filled
// with black until the first draw arrives.
func (m *Manager) NewWindow(id uint64, g Geometry, title string, override bool) {
	g = clampGeometry(g)
	m.mu.Lock()
	m.stamp++
	m.windows[id] = &win{
		geom:     g,
		title:    title,
		override: override,
		stack:    m.stamp,
		pixels:   make([]byte, g.W*g.H*bytesPerPixel),
	}
	m.render()
	m.mu.Unlock()
}

// LostWindow drops a window and repaints what it covered.
func (m *Manager) LostWindow(id uint64) {
	m.mu.Lock()
	delete(m.windows, id)
	m.render()
	m.mu.Unlock()
}

// SetTitle renames a window's decoration.
func (m *Manager) SetTitle(id uint64, title string) {
	m.mu.Lock()
	if w, ok := m.windows[id]; ok {
		w.title = title
		m.render()
	}
	m.mu.Unlock()
}

// MoveResize repositions a window, preserving as much of its previous
// contents as still fits.
func (m *Manager) MoveResize(id uint64, g Geometry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[id]
	if !ok {
		return
	}
	g = clampGeometry(g)
	if g.W != w.geom.W || g.H != w.geom.H {
		fresh := make([]byte, g.W*g.H*bytesPerPixel)
		rows := min(g.H, w.geom.H)
		cols := min(g.W, w.geom.W) * bytesPerPixel
		for y := 0; y < rows; y++ {
			copy(fresh[y*g.W*bytesPerPixel:][:cols], w.pixels[y*w.geom.W*bytesPerPixel:])
		}
		w.pixels = fresh
	}
	w.geom = g
	m.render()
}

// Draw blits an RGBX region into the window's backing store and repaints.
// The region is given in window-relative pixels; stride is the byte
// distance between source rows. Regions falling outside the window are
// cropped.
func (m *Manager) Draw(id uint64, x, y, w, h, stride int, pixels []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dst, ok := m.windows[id]
	if !ok || x < 0 || x >= dst.geom.W {
		return
	}
	for row := 0; row < h; row++ {
		dy := y + row
		if dy < 0 || dy >= dst.geom.H {
			continue
		}
		src := pixels[row*stride:]
		cols := w
		if x+cols > dst.geom.W {
			cols = dst.geom.W - x
		}
		if cols <= 0 || len(src) < cols*bytesPerPixel {
			continue
		}
		copy(dst.pixels[(dy*dst.geom.W+x)*bytesPerPixel:][:cols*bytesPerPixel], src)
	}
	m.render()
}

// render repaints every cell from the composed window stack. Must hold mu.
func (m *Manager) render() {
	cols, rows := m.screen.Size()
	stack := m.stacked()

	for cy := 0; cy < rows; cy++ {
		for cx := 0; cx < cols; cx++ {
			top, tok := m.pixelAt(stack, cx, cy*2)
			bot, bok := m.pixelAt(stack, cx, cy*2+1)
			if !tok && !bok {
				m.screen.SetContent(cx, cy, ' ', nil, tcell.StyleDefault)
				continue
			}
			style := tcell.StyleDefault.Foreground(top).Background(bot)
			m.screen.SetContent(cx, cy, halfBlock, nil, style)
		}
	}
	for _, w := range stack {
		m.renderTitle(w)
	}
	m.screen.Show()
}

// renderTitle overlays the title on a window's first cell row. Windows
// placed by the server itself carry no decoration.
func (m *Manager) renderTitle(w *win) {
	if w.override || w.title == "" {
		return
	}
	cells := w.geom.W
	text := runewidth.Truncate(w.title, cells, "…")
	style := tcell.StyleDefault.
		Foreground(tcell.ColorBlack).
		Background(tcell.ColorSilver)
	cx := w.geom.X
	cy := w.geom.Y / 2
	for _, r := range text {
		m.screen.SetContent(cx, cy, r, nil, style)
		cx += runewidth.RuneWidth(r)
	}
}

// stacked returns windows bottom-to-top.
func (m *Manager) stacked() []*win {
	stack := make([]*win, 0, len(m.windows))
	for _, w := range m.windows {
		stack = append(stack, w)
	}
	sort.Slice(stack, func(i, j int) bool { return stack[i].stack < stack[j].stack })
	return stack
}

// pixelAt samples the top-most window covering a screen pixel.
func (m *Manager) pixelAt(stack []*win, px, py int) (tcell.Color, bool) {
	for i := len(stack) - 1; i >= 0; i-- {
		w := stack[i]
		x, y := px-w.geom.X, py-w.geom.Y
		if x < 0 || y < 0 || x >= w.geom.W || y >= w.geom.H {
			continue
		}
		off := (y*w.geom.W + x) * bytesPerPixel
		return tcell.NewRGBColor(
			int32(w.pixels[off]),
			int32(w.pixels[off+1]),
			int32(w.pixels[off+2])), true
	}
	return tcell.ColorBlack, false
}

// hit finds the top-most window under a screen pixel and converts to
// window-relative coordinates.
func (m *Manager) hit(px, py int) (uint64, int, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		bestID    uint64
		bestStamp = -1
		rx, ry    int
	)
	for id, w := range m.windows {
		x, y := px-w.geom.X, py-w.geom.Y
		if x < 0 || y < 0 || x >= w.geom.W || y >= w.geom.H {
			continue
		}
		if w.stack > bestStamp {
			bestID, bestStamp, rx, ry = id, w.stack, x, y
		}
	}
	return bestID, rx, ry, bestStamp >= 0
}

// pump translates terminal events until Close.
func (m *Manager) pump() {
	defer close(m.events)
	for {
		ev := m.screen.PollEvent()
		if ev == nil {
			return
		}
		var out Event
		switch ev := ev.(type) {
		case *tcell.EventResize:
			m.mu.Lock()
			m.render()
			m.mu.Unlock()
			w, h := ev.Size()
			out.Resize = &ResizeEvent{W: w, H: h * 2}
		case *tcell.EventKey:
			out.Key = &KeyEvent{Ev: ev}
		case *tcell.EventMouse:
			out = m.mouseEvent(ev)
		default:
			continue
		}
		if out.Key == nil && out.Button == nil && out.Motion == nil && out.Resize == nil {
			continue
		}
		select {
		case m.events <- out:
		case <-m.quit:
			return
		}
	}
}

// mouseEvent diffs the button mask against the previous event to find
// presses and releases, and reports motion otherwise.
func (m *Manager) mouseEvent(ev *tcell.EventMouse) Event {
	cx, cy := ev.Position()
	px, py := cx, cy*2
	id, wx, wy, ok := m.hit(px, py)
	if !ok {
		return Event{}
	}

	m.mu.Lock()
	prev := m.buttons
	m.buttons = ev.Buttons() &^ (tcell.WheelUp | tcell.WheelDown)
	m.mu.Unlock()

	changed := prev ^ ev.Buttons()
	for _, b := range []tcell.ButtonMask{
		tcell.Button1, tcell.Button2, tcell.Button3,
		tcell.WheelUp, tcell.WheelDown,
	} {
		if changed&b == 0 {
			continue
		}
		return Event{Button: &ButtonEvent{
			ID:      id,
			Button:  keysym.Button(b),
			Pressed: ev.Buttons()&b != 0,
			X:       wx,
			Y:       wy,
			Mods:    ev.Modifiers(),
		}}
	}
	return Event{Motion: &MotionEvent{ID: id, X: wx, Y: wy, Mods: ev.Modifiers()}}
}

func clampGeometry(g Geometry) Geometry {
	if g.W < 1 {
		g.W = 1
	}
	if g.H < 1 {
		g.H = 1
	}
	if g.X < 0 {
		g.X = 0
	}
	if g.Y < 0 {
		g.Y = 0
	}
	return g
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
