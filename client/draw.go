// Copyright © 2025 xpra-client contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: client/draw.go
// Summary: The draw packet handler: argument parsing, payload
// decompression, pixel expansion, and the damage acknowledgment.

package client

import (
	"fmt"
	"log"

	"github.com/zorodc/xpra-client/bencode"
	"github.com/zorodc/xpra-client/protocol"
	"github.com/zorodc/xpra-client/rgb"
)

// draw is a parsed draw packet. blob points into the packet buffer and is
// only valid for the duration of the handler.
type draw struct {
	id     uint64
	x, y   int
	w, h   int
	coding []byte
	blob   []byte
	seq    uint64
	stride int
	scheme rgb.Compression
}

// onDraw runs the full pixel pipeline. Whatever happens, a damage-sequence
// acknowledgment goes back: an empty message on success, the failure text
// otherwise, with a buffer-refresh request so the server repaints what was
// lost.
func (c *Client) onDraw(args bencode.List) {
	d, err := c.parseDraw(args)
	if err != nil {
		log.Printf("client: malformed draw: %v", err)
		return
	}

	msg := ""
	if err := c.paint(&d); err != nil {
		msg = err.Error()
		log.Printf("client: draw %d: %s", d.id, msg)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := protocol.DamageSequence(c.conn, d.id, d.seq, d.w, d.h, msg); err != nil {
		log.Printf("client: damage-sequence: %v", err)
		return
	}
	if msg != "" {
		if err := protocol.BufferRefresh(c.conn, d.id); err != nil {
			log.Printf("client: buffer-refresh: %v", err)
		}
	}
}

// parseDraw walks the argument list: id, x, y, w, h, coding, data,
// sequence, stride, and an optional coding-options dict. Large pixel
// payloads arrive in the packet's auxiliary chunk instead of the data
// argument.
func (c *Client) parseDraw(args bencode.List) (draw, error) {
	var d draw

	id, err := args.Natural()
	if err != nil {
		return d, err
	}
	d.id = id

	next := args
	for _, field := range []*int{&d.x, &d.y} {
		if next, err = next.Next(); err != nil {
			return d, err
		}
		v, err := next.Int()
		if err != nil {
			return d, err
		}
		*field = int(v)
	}
	for _, field := range []*int{&d.w, &d.h} {
		if next, err = next.Next(); err != nil {
			return d, err
		}
		v, err := next.Natural()
		if err != nil {
			return d, err
		}
		*field = int(v)
	}

	if next, err = next.Next(); err != nil {
		return d, err
	}
	if d.coding, err = next.Bytes(); err != nil {
		return d, err
	}

	if next, err = next.Next(); err != nil {
		return d, err
	}
	if d.blob, err = next.Bytes(); err != nil {
		return d, err
	}
	// An in-band blob takes precedence; the chunk only stands in when the
	// data argument is empty.
	if len(d.blob) == 0 {
		d.blob = c.chunk
	}

	if next, err = next.Next(); err != nil {
		return d, err
	}
	if d.seq, err = next.Natural(); err != nil {
		return d, err
	}

	if next, err = next.Next(); err != nil {
		return d, err
	}
	stride, err := next.Natural()
	if err != nil {
		return d, err
	}
	d.stride = int(stride)

	d.scheme, err = codingOptions(next)
	return d, err
}

// codingOptions determines the compression scheme from the trailing
// options dict. Servers predating the dict send nothing; those packets
// are assumed LZ4, the default for rgb encodings.
func codingOptions(cur bencode.List) (rgb.Compression, error) {
	next, err := cur.Next()
	if err == bencode.ErrReachedEnd {
		log.Print("client: draw without coding options, assuming lz4")
		return rgb.CompressionLZ4, nil
	}
	if err != nil {
		return 0, err
	}
	opts, err := next.Dict()
	if err != nil {
		return 0, err
	}

	if flag, err := opts.Lookup("lz4"); err == nil && flag.Is(bencode.Bool(true)) {
		return rgb.CompressionLZ4, nil
	}
	level, err := opts.LookupDefault("zlib", []byte("i0e"))
	if err != nil {
		return 0, err
	}
	if n, err := level.Int(); err == nil && n > 0 {
		return rgb.CompressionZlib, nil
	}
	return rgb.CompressionNone, nil
}

// paint decompresses the blob and hands the pixels to the window manager.
func (c *Client) paint(d *draw) error {
	expected := rgb.ExpectedSize(d.stride, d.h)

	switch string(d.coding) {
	case "rgb24", "rgb32", "rgb":
	default:
		return fmt.Errorf("unsupported draw encoding %q", d.coding)
	}
	// Packed 3-byte pixels are recognized by their stride, not trusted
	// from the coding label alone.
	rgb24 := d.stride == d.w*3 || string(d.coding) == "rgb24"

	pixels, err := rgb.Decompress(c.scratch, d.blob, expected, d.scheme)
	if err != nil {
		return err
	}
	if d.scheme != rgb.CompressionNone {
		c.scratch = pixels
	}

	stride := d.stride
	if rgb24 {
		if d.stride%3 != 0 {
			return fmt.Errorf("rgb24 stride %d is not a multiple of 3", d.stride)
		}
		n := d.stride / 3 * d.h
		if d.scheme == rgb.CompressionNone {
			// Expansion would otherwise scribble past the blob into the
			// rest of the packet buffer.
			pixels = append(c.scratch[:0], pixels...)
		}
		pixels = rgb.ExpandRGB24(pixels, n)
		c.scratch = pixels
		stride = d.stride / 3 * 4
	}

	c.wm.Draw(d.id, d.x, d.y, d.w, d.h, stride, pixels)
	return nil
}
