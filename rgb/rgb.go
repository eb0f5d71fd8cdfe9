// Copyright © 2025 xpra-client contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: rgb/rgb.go
// Summary: Draw-payload decompression (raw / LZ4 / zlib) and 24→32-bit
// pixel expansion.

// Package rgb turns the pixel blob of a draw packet into a plain 32-bit
// pixel buffer. Failures here are reported, not fatal: callers capture the
// error text into the draw acknowledgment so the server can resend a full
// buffer, and window contents stay untouched.
package rgb

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"math"

	"github.com/pierrec/lz4/v4"
)

// Compression names the scheme a draw payload was sent with.
type Compression int

const (
	// CompressionLZ4 is the server's default for RGB data.
	CompressionLZ4 Compression = iota
	CompressionZlib
	// CompressionNone marks an uncompressed blob.
	CompressionNone
)

// lz4SizeHeader is a 4-byte little-endian uncompressed-size field at the
// start of every LZ4 blob on the wire. The expected size is derived from
// the draw geometry instead, so the field is skipped and never trusted.
const lz4SizeHeader = 4

// ExpectedSize bounds the decompressed size of a draw payload from its
// geometry. The stride is clamped against MaxInt32/h before multiplying so
// a hostile stride and height cannot overflow the product.
func ExpectedSize(stride, h int) int {
	if h <= 0 {
		return 0
	}
	limit := math.MaxInt32 / h
	if stride > limit {
		stride = limit
	}
	return stride * h
}

// Decompress expands src into a buffer of exactly expected bytes using the
// given scheme. dst is a caller-owned scratch slice reused across calls;
// the returned slice shares its storage when capacity suffices. For
// CompressionNone with a correctly sized blob, src is returned as-is.
func Decompress(dst, src []byte, expected int, scheme Compression) ([]byte, error) {
	if expected < 0 {
		return nil, fmt.Errorf("rgb: negative expected size %d", expected)
	}
	switch scheme {
	case CompressionLZ4:
		if len(src) < lz4SizeHeader {
			return nil, fmt.Errorf("rgb: lz4 blob smaller than its size header: %d bytes", len(src))
		}
		dst = sized(dst, expected)
		n, err := lz4.UncompressBlock(src[lz4SizeHeader:], dst)
		if err != nil || n != expected {
			return nil, fmt.Errorf("rgb: lz4 decompressed an improper quantity of data, expected %d got %d", expected, n)
		}
		return dst, nil

	case CompressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("rgb: zlib stream rejected: %v", err)
		}
		defer zr.Close()
		dst = sized(dst, expected)
		n, err := io.ReadFull(zr, dst)
		if err != nil || !drained(zr) {
			return nil, fmt.Errorf("rgb: zlib decompressed an improper quantity of data, expected %d got %d", expected, n)
		}
		return dst, nil

	case CompressionNone:
		if len(src) != expected {
			return nil, fmt.Errorf("rgb: uncompressed data with improper length, expected %d got %d", expected, len(src))
		}
		return src, nil
	}
	return nil, fmt.Errorf("rgb: unknown compression scheme %d", scheme)
}

// drained reports whether the inflate stream has no bytes past the
// expected size. flate may return the final byte together with io.EOF, so
// a read yielding any data means the stream ran long.
func drained(r io.Reader) bool {
	var one [1]byte
	n, err := r.Read(one[:])
	return n == 0 && err == io.EOF
}

// sized returns dst resized to exactly n bytes, reallocating only when the
// capacity falls short.
func sized(dst []byte, n int) []byte {
	if cap(dst) < n {
		return make([]byte, n)
	}
	return dst[:n]
}

// ExpandRGB24 grows a packed 3-byte-per-pixel buffer of n pixels into
// 4-byte pixels, in place when capacity allows. The fill runs from the last
// pixel toward the first: with source and destination sharing storage at
// different strides, every source pixel must be consumed before the wider
// destination pixel overwrites it. The pad byte is set to 0xFF and ignored
// by consumers.
func ExpandRGB24(buf []byte, n int) []byte {
	if n == 0 {
		return buf[:0]
	}
	if cap(buf) < n*4 {
		grown := make([]byte, n*4)
		copy(grown, buf[:n*3])
		buf = grown
	} else {
		buf = buf[:n*4]
	}
	for i := n - 1; i >= 0; i-- {
		r, g, b := buf[i*3], buf[i*3+1], buf[i*3+2]
		buf[i*4+0] = r
		buf[i*4+1] = g
		buf[i*4+2] = b
		buf[i*4+3] = 0xFF
	}
	return buf
}
