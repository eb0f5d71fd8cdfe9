// Copyright © 2025 xpra-client contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/protocol.go
// Summary: Fixed 8-byte packet header and the framing state machine that
// reassembles headers and chunked payloads into whole packets.

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	magic      = 'P'
	headerSize = 8
)

// DefaultMaxPayload bounds the untrusted 32-bit length field of incoming
// headers. A peer declaring more than this is treated as a broken
// connection rather than an allocation request.
const DefaultMaxPayload = 64 << 20

// Header is the fixed portion of every frame: magic byte, flags,
// compression hint, chunk index, and a big-endian payload length. This
// client sends all three middle bytes as zero.
type Header struct {
	Flags       uint8
	Compression uint8
	ChunkIndex  uint8
	Length      uint32
}

var (
	ErrInvalidMagic   = errors.New("protocol: invalid magic")
	ErrPayloadTooLong = errors.New("protocol: declared payload exceeds limit")
	ErrShortPayload   = errors.New("protocol: payload shorter than declared length")
)

func putHeader(buf []byte, hdr Header) {
	buf[0] = magic
	buf[1] = hdr.Flags
	buf[2] = hdr.Compression
	buf[3] = hdr.ChunkIndex
	binary.BigEndian.PutUint32(buf[4:8], hdr.Length)
}

func parseHeader(buf []byte) (Header, error) {
	if buf[0] != magic {
		return Header{}, ErrInvalidMagic
	}
	return Header{
		Flags:       buf[1],
		Compression: buf[2],
		ChunkIndex:  buf[3],
		Length:      binary.BigEndian.Uint32(buf[4:8]),
	}, nil
}

// Packet is one dispatchable unit: the main payload plus, for draw packets,
// the out-of-band pixel chunk that preceded it on the wire.
type Packet struct {
	Header  Header
	Payload []byte
	Chunk   []byte // nil when no chunked frame preceded the main packet
}

// Framer reassembles frames from a stream. It owns a receive buffer that is
// reused across packets: the slices in a returned Packet alias that buffer
// and are valid only until the next ReadPacket call.
type Framer struct {
	maxPayload int
	buf        []byte
}

// NewFramer returns a framer with the default payload limit.
func NewFramer() *Framer { return &Framer{maxPayload: DefaultMaxPayload} }

// SetMaxPayload adjusts the incoming payload limit.
func (f *Framer) SetMaxPayload(n int) { f.maxPayload = n }

// ReadPacket reads frames until a main packet (chunk index zero) completes.
// A frame with a non-zero chunk index is not a message of its own: its
// bytes are retained in place and handed back as Packet.Chunk alongside the
// main packet that follows. Partial reads simply continue; errors are
// connection-level and leave the framer unusable for this stream.
func (f *Framer) ReadPacket(r io.Reader) (Packet, error) {
	f.buf = f.buf[:0]
	var chunkOff, chunkLen int
	hasChunk := false

	for {
		hb := f.grow(headerSize)
		if _, err := io.ReadFull(r, hb); err != nil {
			return Packet{}, err
		}
		hdr, err := parseHeader(hb)
		if err != nil {
			return Packet{}, err
		}
		if int64(hdr.Length) > int64(f.maxPayload) {
			return Packet{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLong, hdr.Length)
		}

		pb := f.grow(int(hdr.Length))
		if _, err := io.ReadFull(r, pb); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return Packet{}, ErrShortPayload
			}
			return Packet{}, err
		}

		if hdr.ChunkIndex != 0 {
			// Auxiliary payload preceding a main packet. Keep it where it
			// sits and resume waiting for the next header.
			chunkOff = len(f.buf) - int(hdr.Length)
			chunkLen = int(hdr.Length)
			hasChunk = true
			continue
		}

		pkt := Packet{
			Header:  hdr,
			Payload: f.buf[len(f.buf)-int(hdr.Length):],
		}
		if hasChunk {
			pkt.Chunk = f.buf[chunkOff : chunkOff+chunkLen]
		}
		return pkt, nil
	}
}

// grow extends the receive buffer by n bytes and returns the new region.
// May move the buffer; earlier regions are addressed by offset for that
// reason.
func (f *Framer) grow(n int) []byte {
	old := len(f.buf)
	if cap(f.buf) < old+n {
		nb := make([]byte, old+n, 2*(old+n))
		copy(nb, f.buf)
		f.buf = nb
	} else {
		f.buf = f.buf[:old+n]
	}
	return f.buf[old:]
}

// WritePacket frames payload with a main-packet header and writes it out in
// a single call. The caller retains ownership of the payload bytes.
func WritePacket(w io.Writer, payload []byte) error {
	buf := make([]byte, headerSize, headerSize+len(payload))
	putHeader(buf, Header{Length: uint32(len(payload))})
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}
