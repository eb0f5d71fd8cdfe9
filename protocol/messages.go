// Copyright © 2025 xpra-client contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/messages.go
// Summary: Serialization of every message this client sends, plus the
// capability set advertised in the hello packet.

package protocol

import (
	"io"

	"github.com/zorodc/xpra-client/bencode"
)

// Geometry describes a window rectangle as the server tracks it.
type Geometry struct {
	ID   uint64
	X, Y int
	W, H int
}

func (g Geometry) args() []bencode.Val {
	return []bencode.Val{
		bencode.Int(int64(g.ID)),
		bencode.Int(int64(g.X)),
		bencode.Int(int64(g.Y)),
		bencode.Int(int64(g.W)),
		bencode.Int(int64(g.H)),
	}
}

// WriteMessage frames name and args as the standard envelope and writes the
// resulting packet.
func WriteMessage(w io.Writer, name string, args ...bencode.Val) error {
	elems := make([]bencode.Val, 0, len(args)+1)
	elems = append(elems, bencode.Str(name))
	elems = append(elems, args...)
	return WritePacket(w, bencode.Encode(bencode.ListOf(elems...)))
}

func rgbFormats() bencode.Val {
	// RGBX first: the render path reads pixels in R,G,B order.
	return bencode.ListOf(
		bencode.Str("RGBX"),
		bencode.Str("RGBA"),
		bencode.Str("RGB"),
	)
}

// Hello advertises the client's capabilities. keymap is the pre-encoded
// integer-keyed dict mapping client keycodes to keysym lists; it goes out
// verbatim because the bencode decoder on our side has no integer-key
// support and never needs it. compressor picks the scheme requested for
// pixel data: "lz4", "zlib", or "none".
func Hello(w io.Writer, keymap []byte, compressor string) error {
	// lz4=false keeps ordinary control messages uncompressed; the
	// encoding.rgb_* flags only steer pixel data.
	caps := bencode.DictOf(
		bencode.A("version", bencode.Str("1")),
		bencode.A("bencode", bencode.Bool(true)),
		bencode.A("encodings", bencode.ListOf(bencode.Str("rgb"), bencode.Str("rgb32"))),
		bencode.A("compressors", bencode.ListOf(bencode.Str("lz4"), bencode.Str("zlib"))),
		bencode.A("compression_level", bencode.Int(0)),
		bencode.A("lz4", bencode.Bool(false)),
		bencode.A("encoding.rgb_lz4", bencode.Bool(compressor == "lz4")),
		bencode.A("encoding.rgb_zlib", bencode.Bool(compressor == "zlib")),
		bencode.A("xkbmap_x11_keycodes", bencode.Raw(keymap)),
	)
	return WriteMessage(w, "hello", caps)
}

// PingEcho answers a ping. The latency and load-average parameters are
// required by the server but not inspected, so they go out as zeros.
func PingEcho(w io.Writer, serverTime int64) error {
	return WriteMessage(w, "ping_echo",
		bencode.Int(serverTime),
		bencode.Int(0), bencode.Int(0), bencode.Int(0), bencode.Int(0))
}

// ConfigureWindow reports a window's geometry along with the pixel formats
// accepted for it.
func ConfigureWindow(w io.Writer, g Geometry) error {
	enc := bencode.DictOf(
		bencode.A("encoding.transparency", bencode.Bool(true)),
		bencode.A("encodings.rgb_formats", rgbFormats()),
	)
	return WriteMessage(w, "configure-window", append(g.args(), enc)...)
}

// MapWindow tells the server a window is on screen.
func MapWindow(w io.Writer, g Geometry) error {
	return WriteMessage(w, "map-window", g.args()...)
}

// BufferRefresh asks the server to resend a window's full contents, used to
// recover after a failed draw. The middle argument is unused and the
// quality is -1 since this client only accepts RGB.
func BufferRefresh(w io.Writer, id uint64) error {
	return WriteMessage(w, "buffer-refresh",
		bencode.Int(int64(id)), bencode.Int(0), bencode.Int(-1))
}

// DamageSequence acknowledges a draw. An empty message means success; a
// non-empty one carries the decode failure upward so the server can resend.
// The server stops honoring configure-window if these stop arriving.
func DamageSequence(w io.Writer, id uint64, seq uint64, width, height int, message string) error {
	return WriteMessage(w, "damage-sequence",
		bencode.Int(int64(seq)),
		bencode.Int(int64(id)),
		bencode.Int(int64(width)),
		bencode.Int(int64(height)),
		bencode.Int(0), // timestamp, unused
		bencode.Str(message))
}

// Focus reports the focused window; id zero means focus was lost. The
// keyboard-state list is sent empty.
func Focus(w io.Writer, id uint64) error {
	return WriteMessage(w, "focus", bencode.Int(int64(id)), bencode.ListOf())
}

// PointerPosition reports cursor motion over a window.
func PointerPosition(w io.Writer, id uint64, x, y int) error {
	return WriteMessage(w, "pointer-position",
		bencode.Int(int64(id)),
		bencode.ListOf(bencode.Int(int64(x)), bencode.Int(int64(y))),
		bencode.ListOf(), bencode.ListOf())
}

// ButtonAction reports a button press or release at a position.
func ButtonAction(w io.Writer, id uint64, button int, down bool, x, y int) error {
	return WriteMessage(w, "button-action",
		bencode.Int(int64(id)),
		bencode.Int(int64(button)),
		bencode.Bool(down),
		bencode.ListOf(bencode.Int(int64(x)), bencode.Int(int64(y))),
		bencode.ListOf())
}

// KeyAction reports a key press or release. The keysym name is sent twice
// (string form and again as the legacy "str" parameter); keycode is the
// client keycode the hello keymap maps to this keysym. The trailing zero is
// the keyboard group.
func KeyAction(w io.Writer, id uint64, name string, down bool, modifiers []string, sym uint32, keycode int) error {
	mods := make([]bencode.Val, len(modifiers))
	for i, m := range modifiers {
		mods[i] = bencode.Str(m)
	}
	return WriteMessage(w, "key-action",
		bencode.Int(int64(id)),
		bencode.Str(name),
		bencode.Bool(down),
		bencode.ListOf(mods...),
		bencode.Int(int64(sym)),
		bencode.Str(name),
		bencode.Int(int64(keycode)),
		bencode.Int(0))
}
