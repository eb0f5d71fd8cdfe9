// Copyright © 2025 xpra-client contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: rgb/rgb_test.go
// Summary: Tests for draw-payload decompression and pixel expansion.

package rgb

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"math"
	"testing"

	"github.com/pierrec/lz4/v4"
)

func lz4Blob(t *testing.T, raw []byte) []byte {
	t.Helper()
	comp := make([]byte, lz4.CompressBlockBound(len(raw)))
	n, err := lz4.CompressBlock(raw, comp, nil)
	if err != nil {
		t.Fatalf("CompressBlock: %v", err)
	}
	blob := make([]byte, 4+n)
	binary.LittleEndian.PutUint32(blob, uint32(len(raw)))
	copy(blob[4:], comp[:n])
	return blob
}

func zlibBlob(t *testing.T, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	return buf.Bytes()
}

func pattern(n int) []byte {
	raw := make([]byte, n)
	for i := range raw {
		raw[i] = byte(i * 7)
	}
	return raw
}

func TestExpectedSize(t *testing.T) {
	cases := []struct {
		stride, h, want int
	}{
		{0, 0, 0},
		{100, 0, 0},
		{0, 100, 0},
		{320 * 4, 200, 320 * 4 * 200},
		{3, 1, 3},
		// A hostile stride clamps to MaxInt32/h instead of overflowing.
		{math.MaxInt32, 2, (math.MaxInt32 / 2) * 2},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32 / math.MaxInt32 * math.MaxInt32},
	}
	for _, c := range cases {
		if got := ExpectedSize(c.stride, c.h); got != c.want {
			t.Errorf("ExpectedSize(%d, %d) = %d, want %d", c.stride, c.h, got, c.want)
		}
		if got := ExpectedSize(c.stride, c.h); got < 0 {
			t.Errorf("ExpectedSize(%d, %d) went negative: %d", c.stride, c.h, got)
		}
	}
}

func TestDecompressLZ4(t *testing.T) {
	raw := pattern(320 * 4 * 8)
	blob := lz4Blob(t, raw)

	out, err := Decompress(nil, blob, len(raw), CompressionLZ4)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, raw) {
		t.Fatal("lz4 round trip mismatch")
	}
}

func TestDecompressLZ4IgnoresSizeHeader(t *testing.T) {
	raw := pattern(1024)
	blob := lz4Blob(t, raw)
	// A lying size header must not change the outcome; only the
	// geometry-derived expectation counts.
	binary.LittleEndian.PutUint32(blob, 7)

	out, err := Decompress(nil, blob, len(raw), CompressionLZ4)
	if err != nil {
		t.Fatalf("Decompress with lying header: %v", err)
	}
	if !bytes.Equal(out, raw) {
		t.Fatal("lz4 round trip mismatch")
	}
}

func TestDecompressLZ4WrongSize(t *testing.T) {
	raw := pattern(1024)
	blob := lz4Blob(t, raw)

	if _, err := Decompress(nil, blob, len(raw)+16, CompressionLZ4); err == nil {
		t.Fatal("expected error for short lz4 output")
	} else if !bytes.Contains([]byte(err.Error()), []byte("expected 1040")) {
		t.Fatalf("error does not name the expected size: %v", err)
	}
}

func TestDecompressLZ4Truncated(t *testing.T) {
	if _, err := Decompress(nil, []byte{1, 2}, 16, CompressionLZ4); err == nil {
		t.Fatal("expected error for blob shorter than the size header")
	}
}

func TestDecompressNegativeExpected(t *testing.T) {
	blob := lz4Blob(t, pattern(36))
	// A hostile stride makes the geometry product negative; that must come
	// back as an error, never a panic.
	if _, err := Decompress(nil, blob, ExpectedSize(-12, 3), CompressionLZ4); err == nil {
		t.Fatal("expected error for a negative expected size")
	}
}

func TestDecompressZlib(t *testing.T) {
	raw := pattern(640 * 3)
	out, err := Decompress(nil, zlibBlob(t, raw), len(raw), CompressionZlib)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, raw) {
		t.Fatal("zlib round trip mismatch")
	}
}

func TestDecompressZlibWrongSize(t *testing.T) {
	raw := pattern(640)
	blob := zlibBlob(t, raw)

	if _, err := Decompress(nil, blob, len(raw)+1, CompressionZlib); err == nil {
		t.Fatal("expected error when the stream runs short")
	}
	if _, err := Decompress(nil, blob, len(raw)-1, CompressionZlib); err == nil {
		t.Fatal("expected error when the stream has trailing data")
	}
}

func TestDecompressZlibGarbage(t *testing.T) {
	if _, err := Decompress(nil, []byte("not a zlib stream"), 8, CompressionZlib); err == nil {
		t.Fatal("expected error for a rejected stream")
	}
}

func TestDecompressNone(t *testing.T) {
	raw := pattern(64)
	out, err := Decompress(nil, raw, len(raw), CompressionNone)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if &out[0] != &raw[0] {
		t.Fatal("uncompressed path should hand back the source slice")
	}
	if _, err := Decompress(nil, raw, len(raw)+1, CompressionNone); err == nil {
		t.Fatal("expected error for a length mismatch")
	}
}

func TestDecompressReusesScratch(t *testing.T) {
	raw := pattern(256)
	scratch := make([]byte, 0, 4096)
	out, err := Decompress(scratch, lz4Blob(t, raw), len(raw), CompressionLZ4)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if &out[0] != &scratch[:1][0] {
		t.Fatal("scratch with sufficient capacity was not reused")
	}
}

func TestExpandRGB24(t *testing.T) {
	// Two pixels packed as RGB triples, with spare capacity so the
	// expansion happens in place.
	buf := make([]byte, 6, 8)
	copy(buf, []byte{1, 2, 3, 4, 5, 6})

	out := ExpandRGB24(buf, 2)
	want := []byte{1, 2, 3, 0xFF, 4, 5, 6, 0xFF}
	if !bytes.Equal(out, want) {
		t.Fatalf("got % x, want % x", out, want)
	}
	if &out[0] != &buf[0] {
		t.Fatal("expansion with sufficient capacity was not in place")
	}
}

func TestExpandRGB24Grows(t *testing.T) {
	buf := []byte{9, 8, 7}
	out := ExpandRGB24(buf, 1)
	want := []byte{9, 8, 7, 0xFF}
	if !bytes.Equal(out, want) {
		t.Fatalf("got % x, want % x", out, want)
	}
}

func TestExpandRGB24Wide(t *testing.T) {
	const n = 320
	buf := make([]byte, n*3, n*4)
	for i := 0; i < n; i++ {
		buf[i*3] = byte(i)
		buf[i*3+1] = byte(i >> 4)
		buf[i*3+2] = byte(i >> 2)
	}
	out := ExpandRGB24(buf, n)
	for i := 0; i < n; i++ {
		px := out[i*4 : i*4+4]
		if px[0] != byte(i) || px[1] != byte(i>>4) || px[2] != byte(i>>2) || px[3] != 0xFF {
			t.Fatalf("pixel %d corrupted: % x", i, px)
		}
	}
}

func TestExpandRGB24Empty(t *testing.T) {
	if out := ExpandRGB24(nil, 0); len(out) != 0 {
		t.Fatalf("expected empty result, got %d bytes", len(out))
	}
}
