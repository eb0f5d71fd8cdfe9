// Copyright © 2025 xpra-client contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/protocol_test.go
// Summary: Exercises header serialization and the frame reassembly machine.

package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func frame(chunkIdx byte, payload []byte) []byte {
	buf := make([]byte, headerSize, headerSize+len(payload))
	putHeader(buf, Header{ChunkIndex: chunkIdx, Length: uint32(len(payload))})
	return append(buf, payload...)
}

func TestHeaderGoldenBytes(t *testing.T) {
	buf := make([]byte, headerSize)
	putHeader(buf, Header{Length: 1234})
	want := []byte{'P', 0, 0, 0, 0x00, 0x00, 0x04, 0xD2}
	if !bytes.Equal(buf, want) {
		t.Fatalf("header = %x, want %x", buf, want)
	}
}

func TestWritePacketPrependsHeader(t *testing.T) {
	var out bytes.Buffer
	payload := []byte("li4e4:teste")
	if err := WritePacket(&out, payload); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	got := out.Bytes()
	if len(got) != headerSize+len(payload) {
		t.Fatalf("wrote %d bytes, want %d", len(got), headerSize+len(payload))
	}
	if got[0] != magic {
		t.Fatalf("magic = %q", got[0])
	}
	if !bytes.Equal(got[headerSize:], payload) {
		t.Fatalf("payload = %q", got[headerSize:])
	}
}

func TestReadPacketSingleFrame(t *testing.T) {
	payload := []byte("l4:pingi7ee")
	r := bytes.NewReader(frame(0, payload))

	pkt, err := NewFramer().ReadPacket(r)
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if !bytes.Equal(pkt.Payload, payload) {
		t.Fatalf("payload = %q, want %q", pkt.Payload, payload)
	}
	if pkt.Chunk != nil {
		t.Fatalf("unexpected chunk: %q", pkt.Chunk)
	}
}

func TestReadPacketChunkedReassembly(t *testing.T) {
	pixels := bytes.Repeat([]byte{0xAB}, 64)
	main := []byte("l4:drawi1ee")

	var wire bytes.Buffer
	wire.Write(frame(1, pixels))
	wire.Write(frame(0, main))

	pkt, err := NewFramer().ReadPacket(&wire)
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if !bytes.Equal(pkt.Payload, main) {
		t.Fatalf("payload = %q, want %q", pkt.Payload, main)
	}
	if !bytes.Equal(pkt.Chunk, pixels) {
		t.Fatalf("chunk mismatch: %d bytes", len(pkt.Chunk))
	}
}

func TestReadPacketChunkDiscardedAfterMain(t *testing.T) {
	var wire bytes.Buffer
	wire.Write(frame(1, []byte("stale-pixels")))
	wire.Write(frame(0, []byte("l5:firste")))
	wire.Write(frame(0, []byte("l6:seconde")))

	f := NewFramer()
	if _, err := f.ReadPacket(&wire); err != nil {
		t.Fatalf("first ReadPacket: %v", err)
	}
	pkt, err := f.ReadPacket(&wire)
	if err != nil {
		t.Fatalf("second ReadPacket: %v", err)
	}
	if pkt.Chunk != nil {
		t.Fatal("chunk must not survive past the packet it precedes")
	}
	if !bytes.Equal(pkt.Payload, []byte("l6:seconde")) {
		t.Fatalf("payload = %q", pkt.Payload)
	}
}

func TestReadPacketInvalidMagic(t *testing.T) {
	raw := frame(0, []byte("x"))
	raw[0] = 'Q'
	if _, err := NewFramer().ReadPacket(bytes.NewReader(raw)); !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestReadPacketShortPayload(t *testing.T) {
	raw := frame(0, []byte("truncated payload"))
	raw = raw[:len(raw)-5]
	if _, err := NewFramer().ReadPacket(bytes.NewReader(raw)); !errors.Is(err, ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
}

func TestReadPacketPayloadLimit(t *testing.T) {
	raw := frame(0, bytes.Repeat([]byte{0}, 32))
	f := NewFramer()
	f.SetMaxPayload(16)
	if _, err := f.ReadPacket(bytes.NewReader(raw)); !errors.Is(err, ErrPayloadTooLong) {
		t.Fatalf("expected ErrPayloadTooLong, got %v", err)
	}
}
