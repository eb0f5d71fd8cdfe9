// Copyright © 2025 xpra-client contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/dispatch.go
// Summary: Message-name dispatch table with a startup-only registration
// phase and a crash-proof decode boundary.

package protocol

import (
	"errors"
	"log"

	"github.com/zorodc/xpra-client/bencode"
)

// HandlerFunc consumes the positional arguments of one message.
type HandlerFunc func(args bencode.List)

// DefaultFunc is invoked for message names with no registered handler.
type DefaultFunc func(name []byte, args bencode.List)

// ErrRegistrySealed reports a registration attempt after dispatching has
// begun. Handlers are bound once at startup; the table never mutates while
// packets flow.
var ErrRegistrySealed = errors.New("protocol: handler registry sealed after dispatch begins")

// Dispatcher maps message names to handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	fallback DefaultFunc
	sealed   bool
}

// NewDispatcher returns an empty table. A nil fallback logs and drops
// unsupported packets.
func NewDispatcher(fallback DefaultFunc) *Dispatcher {
	if fallback == nil {
		fallback = func(name []byte, _ bencode.List) {
			log.Printf("protocol: unsupported packet type %q", name)
		}
	}
	return &Dispatcher{handlers: make(map[string]HandlerFunc), fallback: fallback}
}

// Register binds a message name to a handler.
func (d *Dispatcher) Register(name string, fn HandlerFunc) error {
	if d.sealed {
		return ErrRegistrySealed
	}
	d.handlers[name] = fn
	return nil
}

// Dispatch decodes raw as the message envelope — a bencode list whose first
// element is the message name, the rest its arguments — and invokes the
// bound handler, or the default handler for an unknown name. This is the
// boundary where remote bytes meet local code: any decode failure or
// handler panic degrades to "packet ignored" and a false return, never a
// crash or a torn-down connection.
func (d *Dispatcher) Dispatch(raw []byte) (ok bool) {
	d.sealed = true
	if len(raw) == 0 {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("protocol: packet handler panic: %v", r)
			ok = false
		}
	}()

	v := bencode.At(raw)
	lst, err := v.List()
	if err != nil {
		return false
	}
	name, err := lst.Bytes()
	if err != nil {
		return false
	}
	args, err := lst.Next()
	if err != nil {
		return false
	}

	if fn, found := d.handlers[string(name)]; found {
		fn(args)
	} else {
		d.fallback(name, args)
	}
	return true
}
