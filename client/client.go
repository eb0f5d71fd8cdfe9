// Copyright © 2025 xpra-client contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: client/client.go
// Summary: The client session: packet loop, message handlers, and the
// draw-payload pipeline between the wire and the window manager.

// Package client drives one connection to an xpra server. It owns the
// read loop, routes incoming packets through the dispatch table, and
// translates local input events into protocol messages. Malformed or
// unhandled packets are logged and dropped; only transport failures end
// the session.
package client

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/zorodc/xpra-client/bencode"
	"github.com/zorodc/xpra-client/keysym"
	"github.com/zorodc/xpra-client/protocol"
	"github.com/zorodc/xpra-client/store"
	"github.com/zorodc/xpra-client/window"
)

// WindowManager is what the client needs from a display backend.
// window.Manager satisfies it; tests substitute their own.
type WindowManager interface {
	NewWindow(id uint64, g window.Geometry, title string, override bool)
	LostWindow(id uint64)
	MoveResize(id uint64, g window.Geometry)
	SetTitle(id uint64, title string)
	Draw(id uint64, x, y, w, h, stride int, pixels []byte)
}

// winState is the client-side record of a server window.
type winState struct {
	geom     window.Geometry
	title    string
	override bool
	parent   uint64 // transient-for: nonzero marks a dialog of another window
}

// Client is one session against an xpra server.
type Client struct {
	conn       io.ReadWriter
	framer     *protocol.Framer
	disp       *protocol.Dispatcher
	wm         WindowManager
	geo        *store.Store // optional
	compressor string

	// wmu serializes writes; handlers and input events share the wire.
	wmu sync.Mutex

	// Set before each dispatch; a draw packet's pixel data may ride in
	// the auxiliary chunk rather than the payload.
	chunk []byte

	// scratch is the decompression buffer, reused across draws.
	scratch []byte

	mu       sync.Mutex
	windows  map[uint64]*winState
	focused  uint64
	lastPing time.Time
}

// Options configures a session before the hello exchange.
type Options struct {
	// MaxPayload caps incoming packets. Zero keeps the framer default.
	MaxPayload int

	// Compression is the scheme requested for pixel data: "lz4" (the
	// default), "zlib", or "none".
	Compression string

	// Geometry is an optional placement store. Windows whose titles have
	// saved placements are configured back to them when they appear.
	Geometry *store.Store
}

// New wires a session over an established connection. The window manager
// must outlive the client.
func New(conn io.ReadWriter, wm WindowManager, opts Options) *Client {
	c := &Client{
		conn:       conn,
		framer:     protocol.NewFramer(),
		wm:         wm,
		geo:        opts.Geometry,
		compressor: opts.Compression,
		windows:    make(map[uint64]*winState),
		lastPing:   time.Now(),
	}
	if c.compressor == "" {
		c.compressor = "lz4"
	}
	if opts.MaxPayload > 0 {
		c.framer.SetMaxPayload(opts.MaxPayload)
	}

	c.disp = protocol.NewDispatcher(func(name []byte, args bencode.List) {
		log.Printf("client: ignoring unsupported packet type %q", name)
	})
	for name, fn := range map[string]protocol.HandlerFunc{
		"hello":                 c.onHello,
		"ping":                  c.onPing,
		"ping_echo":             func(bencode.List) {},
		"draw":                  c.onDraw,
		"new-window":            c.onNewWindow,
		"new-override-redirect": c.onNewOverrideRedirect,
		"lost-window":           c.onLostWindow,
		"window-move-resize":    c.onMoveResize,
		"window-metadata":       c.onWindowMetadata,
		"startup-complete":      func(bencode.List) { log.Print("client: server startup complete") },
		"disconnect":            c.onDisconnect,
	} {
		if err := c.disp.Register(name, fn); err != nil {
			// Registration happens before the first dispatch; this is a
			// programming error, not a runtime condition.
			panic(err)
		}
	}
	return c
}

// Hello sends the capability packet. Call once, before Run.
func (c *Client) Hello() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return protocol.Hello(c.conn, keysym.Keymap(), c.compressor)
}

// Run reads and dispatches packets until the connection ends. A clean
// EOF returns nil.
func (c *Client) Run() error {
	for {
		pkt, err := c.framer.ReadPacket(c.conn)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("client: read packet: %w", err)
		}
		c.chunk = pkt.Chunk
		if !c.disp.Dispatch(pkt.Payload) {
			log.Printf("client: packet ignored (%d byte payload)", len(pkt.Payload))
		}
		c.chunk = nil
	}
}

func (c *Client) onHello(args bencode.List) {
	log.Print("client: server accepted hello")
}

func (c *Client) onDisconnect(args bencode.List) {
	if msg, err := args.Bytes(); err == nil {
		log.Printf("client: server disconnecting: %s", msg)
	} else {
		log.Print("client: server disconnecting")
	}
}

func (c *Client) onPing(args bencode.List) {
	serverTime, err := args.Int()
	if err != nil {
		log.Printf("client: malformed ping: %v", err)
		return
	}
	c.mu.Lock()
	c.lastPing = time.Now()
	c.mu.Unlock()
	c.wmu.Lock()
	err = protocol.PingEcho(c.conn, serverTime)
	c.wmu.Unlock()
	if err != nil {
		log.Printf("client: ping echo: %v", err)
	}
}

// windowArgs reads the common prefix of window packets: id then geometry.
// The returned cursor sits on the first argument past the geometry.
func windowArgs(args bencode.List) (uint64, window.Geometry, bencode.List, error) {
	id, err := args.Natural()
	if err != nil {
		return 0, window.Geometry{}, bencode.List{}, err
	}
	var (
		g    window.Geometry
		next = args
	)
	for _, field := range []*int{&g.X, &g.Y, &g.W, &g.H} {
		if next, err = next.Next(); err != nil {
			return 0, window.Geometry{}, bencode.List{}, err
		}
		v, err := next.Int()
		if err != nil {
			return 0, window.Geometry{}, bencode.List{}, err
		}
		*field = int(v)
	}
	next, err = next.Next()
	return id, g, next, err
}

func (c *Client) onNewWindow(args bencode.List)           { c.newWindow(args, false) }
func (c *Client) onNewOverrideRedirect(args bencode.List) { c.newWindow(args, true) }

func (c *Client) newWindow(args bencode.List, override bool) {
	id, g, rest, err := windowArgs(args)
	if err != nil {
		log.Printf("client: malformed new-window: %v", err)
		return
	}
	var m metadata
	if meta, err := rest.Dict(); err == nil {
		m = parseMetadata(meta)
	}
	// Some servers mark override-redirect in the config dict rather than
	// using the dedicated packet type.
	override = override || m.override

	// A window the user has placed before goes back where they left it,
	// snapped to the server's resize quanta. Dialogs appear wherever the
	// server put them.
	if !override && m.parent == 0 && c.geo != nil && m.title != "" {
		if saved, ok, err := c.geo.Load(m.title); err == nil && ok {
			g = window.Geometry{
				X: saved.X, Y: saved.Y,
				W: snap(saved.W, m.incW), H: snap(saved.H, m.incH),
			}
		}
	}

	c.mu.Lock()
	c.windows[id] = &winState{geom: g, title: m.title, override: override, parent: m.parent}
	c.mu.Unlock()
	c.wm.NewWindow(id, g, m.title, override)

	pg := protocol.Geometry{ID: id, X: g.X, Y: g.Y, W: g.W, H: g.H}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if !override {
		if err := protocol.ConfigureWindow(c.conn, pg); err != nil {
			log.Printf("client: configure-window: %v", err)
			return
		}
	}
	if err := protocol.MapWindow(c.conn, pg); err != nil {
		log.Printf("client: map-window: %v", err)
	}
}

// metadata is what the client acts on from a window's config dict.
type metadata struct {
	title      string
	parent     uint64
	override   bool
	incW, incH int // size-constraints resize increments
}

func parseMetadata(meta bencode.Dict) metadata {
	m := metadata{incW: 1, incH: 1}
	if entry, err := meta.Lookup("title"); err == nil {
		if title, err := entry.Bytes(); err == nil {
			m.title = string(title)
		}
	}
	if entry, err := meta.Lookup("transient-for"); err == nil {
		if parent, err := entry.Natural(); err == nil {
			m.parent = parent
		}
	}
	if entry, err := meta.Lookup("override-redirect"); err == nil {
		if v, err := entry.Int(); err == nil && v != 0 {
			m.override = true
		}
	}
	if entry, err := meta.Lookup("size-constraints"); err == nil {
		if w, h, ok := increments(entry); ok {
			m.incW, m.incH = w, h
		}
	}
	return m
}

// increments reads the two-element resize-quanta list out of a
// size-constraints dict. For terminal programs this is the character
// cell size.
func increments(entry bencode.Dict) (int, int, bool) {
	sc, err := entry.Dict()
	if err != nil {
		return 0, 0, false
	}
	inc, err := sc.Lookup("increment")
	if err != nil {
		return 0, 0, false
	}
	lst, err := inc.List()
	if err != nil {
		return 0, 0, false
	}
	w, err := lst.Natural()
	if err != nil {
		return 0, 0, false
	}
	rest, err := lst.Next()
	if err != nil {
		return 0, 0, false
	}
	h, err := rest.Natural()
	if err != nil {
		return 0, 0, false
	}
	return int(w), int(h), true
}

// snap rounds v down to a multiple of inc.
func snap(v, inc int) int {
	if inc > 1 {
		v -= v % inc
	}
	return v
}

func (c *Client) onLostWindow(args bencode.List) {
	id, err := args.Natural()
	if err != nil {
		log.Printf("client: malformed lost-window: %v", err)
		return
	}
	c.mu.Lock()
	if w, ok := c.windows[id]; ok && c.geo != nil && !w.override && w.parent == 0 {
		if err := c.geo.Save(w.title, store.Geometry(w.geom)); err != nil {
			log.Printf("client: %v", err)
		}
	}
	delete(c.windows, id)
	if c.focused == id {
		c.focused = 0
	}
	c.mu.Unlock()
	c.wm.LostWindow(id)
}

func (c *Client) onMoveResize(args bencode.List) {
	id, g, _, err := windowArgs(args)
	if err != nil {
		log.Printf("client: malformed window-move-resize: %v", err)
		return
	}
	c.mu.Lock()
	if w, ok := c.windows[id]; ok {
		w.geom = g
	}
	c.mu.Unlock()
	c.wm.MoveResize(id, g)
}

func (c *Client) onWindowMetadata(args bencode.List) {
	id, err := args.Natural()
	if err != nil {
		return
	}
	rest, err := args.Next()
	if err != nil {
		return
	}
	meta, err := rest.Dict()
	if err != nil {
		return
	}
	title := parseMetadata(meta).title
	if title == "" {
		return
	}
	c.mu.Lock()
	if w, ok := c.windows[id]; ok {
		w.title = title
	}
	c.mu.Unlock()
	c.wm.SetTitle(id, title)
}

// LastPing reports when the server last pinged. Connection watchdogs use
// it to detect a dead peer behind a socket that never errors.
func (c *Client) LastPing() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPing
}

// FocusWindow tells the server which window now has the keyboard.
func (c *Client) FocusWindow(id uint64) error {
	c.mu.Lock()
	c.focused = id
	c.mu.Unlock()
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return protocol.Focus(c.conn, id)
}

// position converts window-relative pixels to screen coordinates.
func (c *Client) position(id uint64, x, y int) (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w, ok := c.windows[id]; ok {
		return w.geom.X + x, w.geom.Y + y
	}
	return x, y
}

// PointerMove reports cursor motion over a window, in window-relative
// pixels.
func (c *Client) PointerMove(id uint64, x, y int) error {
	sx, sy := c.position(id, x, y)
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return protocol.PointerPosition(c.conn, id, sx, sy)
}

// Button reports a press or release of an X11 button number. Scroll
// buttons arrive as presses only; the matching release is synthesized.
func (c *Client) Button(id uint64, button int, pressed bool, x, y int) error {
	if button == 0 {
		return nil
	}
	sx, sy := c.position(id, x, y)
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := protocol.ButtonAction(c.conn, id, button, pressed, sx, sy); err != nil {
		return err
	}
	if pressed && (button == keysym.ButtonScrollUp || button == keysym.ButtonScrollDown) {
		return protocol.ButtonAction(c.conn, id, button, false, sx, sy)
	}
	return nil
}

// Key resolves a terminal key event and sends a press/release pair to the
// focused window. Terminals deliver no key releases, so the release
// follows immediately.
func (c *Client) Key(ev *tcell.EventKey) error {
	sym, ok := keysym.Lookup(ev)
	if !ok {
		return nil
	}
	mods := keysym.Modifiers(ev.Modifiers())
	c.mu.Lock()
	id := c.focused
	c.mu.Unlock()
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := protocol.KeyAction(c.conn, id, sym.Name, true, mods, uint32(sym.Value), sym.Code); err != nil {
		return err
	}
	return protocol.KeyAction(c.conn, id, sym.Name, false, mods, uint32(sym.Value), sym.Code)
}
