// Copyright © 2025 xpra-client contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: keysym/keysym.go
// Summary: Mapping from tcell input events to X11 keysyms, plus the
// keymap blob announced to the server at hello time.

// Package keysym translates terminal input into the X11 vocabulary the
// xpra server speaks. The server matches key-action packets against the
// keymap a client announces, so both sides of that exchange live here:
// the lookup tables and the pre-encoded keymap dictionary.
package keysym

import (
	"strconv"

	"github.com/gdamore/tcell/v2"

	"github.com/zorodc/xpra-client/bencode"
)

// Sym is one X11 keysym: its name, its numeric value, and the client
// keycode it is announced under in the keymap.
type Sym struct {
	Name  string
	Value uint64
	Code  int
}

// X11 keycodes below 8 are reserved; announced codes start past them.
const firstCode = 8

// X11 scroll events arrive as button presses.
const (
	ButtonScrollUp   = 4
	ButtonScrollDown = 5
)

// The keysym table. Values follow the X11 keysymdef list; a few of them
// (Caps_Lock through Control_R) match what the reference clients send
// rather than the published constants. Keypad syms are used for the digit
// row, as the Python client does.
var table = []Sym{
	{Name: "Escape", Value: 0x001b},
	{Name: "Tab", Value: 0x0009},
	{Name: "Caps_Lock", Value: 0x0207},
	{Name: "Shift_L", Value: 0x0704},
	{Name: "Shift_R", Value: 0x0705},
	{Name: "Control_L", Value: 0x0706},
	{Name: "Control_R", Value: 0x0707},
	{Name: "Meta_L", Value: 0xffe7},
	{Name: "Meta_R", Value: 0xffe8},
	{Name: "Alt_L", Value: 0xffe9},
	{Name: "Alt_R", Value: 0xffea},
	{Name: "Menu_R", Value: 0xff67},
	{Name: "Return", Value: 0xff0d},
	{Name: "BackSpace", Value: 0xff08},
	{Name: "space", Value: 0x0020},
	{Name: "Scroll_Lock", Value: 0xff14},
	{Name: "Pause", Value: 0xff13},
	{Name: "Insert", Value: 0xff63},
	{Name: "Home", Value: 0xff50},
	{Name: "End", Value: 0xff57},
	{Name: "Prior", Value: 0xff55},
	{Name: "Next", Value: 0xff56},
	{Name: "Delete", Value: 0xff9f},
	{Name: "Num_Lock", Value: 0xff7f},
	{Name: "Left", Value: 0xff51},
	{Name: "Up", Value: 0xff52},
	{Name: "Right", Value: 0xff53},
	{Name: "Down", Value: 0xff54},

	{Name: "0", Value: 0xffb0},
	{Name: "1", Value: 0xffb1},
	{Name: "2", Value: 0xffb2},
	{Name: "3", Value: 0xffb3},
	{Name: "4", Value: 0xffb4},
	{Name: "5", Value: 0xffb5},
	{Name: "6", Value: 0xffb6},
	{Name: "7", Value: 0xffb7},
	{Name: "8", Value: 0xffb8},
	{Name: "9", Value: 0xffb9},

	{Name: "F1", Value: 0xffbe},
	{Name: "F2", Value: 0xffbf},
	{Name: "F3", Value: 0xffc0},
	{Name: "F4", Value: 0xffc1},
	{Name: "F5", Value: 0xffc2},
	{Name: "F6", Value: 0xffc3},
	{Name: "F7", Value: 0xffc4},
	{Name: "F8", Value: 0xffc5},
	{Name: "F9", Value: 0xffc6},
	{Name: "F10", Value: 0xffc7},
	{Name: "F11", Value: 0xffc8},
	{Name: "F12", Value: 0xffc9},
	{Name: "F13", Value: 0xffca},
	{Name: "F14", Value: 0xffcb},
	{Name: "F15", Value: 0xffcc},
	{Name: "F16", Value: 0xffcd},
	{Name: "F17", Value: 0xffce},
	{Name: "F18", Value: 0xffcf},
	{Name: "F19", Value: 0xffd0},
	{Name: "F20", Value: 0xffd1},

	{Name: "a", Value: 0x0061},
	{Name: "b", Value: 0x0062},
	{Name: "c", Value: 0x0063},
	{Name: "d", Value: 0x0064},
	{Name: "e", Value: 0x0065},
	{Name: "f", Value: 0x0066},
	{Name: "g", Value: 0x0067},
	{Name: "h", Value: 0x0068},
	{Name: "i", Value: 0x0069},
	{Name: "j", Value: 0x006a},
	{Name: "k", Value: 0x006b},
	{Name: "l", Value: 0x006c},
	{Name: "m", Value: 0x006d},
	{Name: "n", Value: 0x006e},
	{Name: "o", Value: 0x006f},
	{Name: "p", Value: 0x0070},
	{Name: "q", Value: 0x0071},
	{Name: "r", Value: 0x0072},
	{Name: "s", Value: 0x0073},
	{Name: "t", Value: 0x0074},
	{Name: "u", Value: 0x0075},
	{Name: "v", Value: 0x0076},
	{Name: "w", Value: 0x0077},
	{Name: "x", Value: 0x0078},
	{Name: "y", Value: 0x0079},
	{Name: "z", Value: 0x007a},
}

var byKey = map[tcell.Key]string{
	tcell.KeyEscape:     "Escape",
	tcell.KeyTab:        "Tab",
	tcell.KeyEnter:      "Return",
	tcell.KeyBackspace:  "BackSpace",
	tcell.KeyBackspace2: "BackSpace",
	tcell.KeyInsert:     "Insert",
	tcell.KeyHome:       "Home",
	tcell.KeyEnd:        "End",
	tcell.KeyPgUp:       "Prior",
	tcell.KeyPgDn:       "Next",
	tcell.KeyDelete:     "Delete",
	tcell.KeyLeft:       "Left",
	tcell.KeyUp:         "Up",
	tcell.KeyRight:      "Right",
	tcell.KeyDown:       "Down",
	tcell.KeyPause:      "Pause",
}

var byName map[string]Sym

func init() {
	byName = make(map[string]Sym, len(table))
	for i := range table {
		table[i].Code = firstCode + i
		byName[table[i].Name] = table[i]
	}
	for f := 0; f < 20; f++ {
		byKey[tcell.KeyF1+tcell.Key(f)] = "F" + strconv.Itoa(f+1)
	}
}

// Lookup resolves a key event to a keysym. Runes outside the table fall
// back to their Latin-1 keysym value with keycode zero, which the server
// resolves by sym rather than by keycode.
func Lookup(ev *tcell.EventKey) (Sym, bool) {
	if ev.Key() == tcell.KeyRune {
		r := ev.Rune()
		if r == ' ' {
			return byName["space"], true
		}
		if s, ok := byName[string(r)]; ok {
			return s, true
		}
		if r >= 0x20 && r < 0x100 {
			return Sym{Name: string(r), Value: uint64(r)}, true
		}
		return Sym{}, false
	}
	if name, ok := byKey[ev.Key()]; ok {
		return byName[name], true
	}
	// Terminals fold Ctrl+letter into a control code; the letter comes
	// back out here, and the control state rides in the modifier mask.
	// Codes shared with named keys (Tab, Return, BackSpace) stay named.
	if k := ev.Key(); k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ {
		return byName[string(rune('a'+int(k-tcell.KeyCtrlA)))], true
	}
	return Sym{}, false
}

// Button maps a tcell mouse button to its X11 number. Zero means the
// button has no X11 counterpart.
func Button(b tcell.ButtonMask) int {
	switch b {
	case tcell.Button1:
		return 1
	case tcell.Button3: // tcell swaps middle and right relative to X11
		return 2
	case tcell.Button2:
		return 3
	case tcell.WheelUp:
		return ButtonScrollUp
	case tcell.WheelDown:
		return ButtonScrollDown
	}
	return 0
}

// Modifiers converts an event's modifier mask into the names key-action
// and pointer packets carry. Alt and Meta both report as mod1.
func Modifiers(m tcell.ModMask) []string {
	mods := []string{}
	if m&tcell.ModShift != 0 {
		mods = append(mods, "shift")
	}
	if m&tcell.ModCtrl != 0 {
		mods = append(mods, "control")
	}
	if m&(tcell.ModAlt|tcell.ModMeta) != 0 {
		mods = append(mods, "mod1")
	}
	return mods
}

var keymap []byte

// Keymap returns the bencoded keycode-to-keysym dictionary sent with the
// hello packet. Its keys are integers, which the generic encoder does not
// produce, so the blob is assembled by hand and cached.
func Keymap() []byte {
	if keymap != nil {
		return keymap
	}
	blob := []byte{'d'}
	for _, s := range table {
		blob = bencode.Append(blob, bencode.Int(int64(s.Code)))
		blob = bencode.Append(blob, bencode.Str(s.Name))
	}
	keymap = append(blob, 'e')
	return keymap
}
