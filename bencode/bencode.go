// Copyright © 2025 xpra-client contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: bencode/bencode.go
// Summary: Shared definitions for the bencode decoder and encoder.
// Notes: Dicts with integer keys (a common extension) are not decoded, but
// can be emitted through Raw values.

// Package bencode implements a lazy, non-copying codec for the bencode
// serialization format as used on the xpra wire.
//
// Bencode has four kinds: byte strings, signed integers, lists, and
// dictionaries. The decoder is a family of cursor types over a caller-owned
// byte slice; extracting a value never builds an intermediate tree and never
// copies string payloads. Recursion happens only when skipping past nested
// collections.
package bencode

import "errors"

// Kind classifies the byte at a cursor position. The four concrete value
// kinds are joined by two sentinels: KindEnd for the end of the input and
// KindCollectionEnd for the 'e' terminating a list or dict.
type Kind int

const (
	KindInvalid Kind = iota
	KindEnd
	KindCollectionEnd
	KindString
	KindInteger
	KindList
	KindDict
)

func (k Kind) String() string {
	switch k {
	case KindEnd:
		return "end-of-input"
	case KindCollectionEnd:
		return "end-of-collection"
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	}
	return "invalid"
}

var (
	// ErrInvalidBuffer reports a malformed buffer: a tag byte that is not a
	// recognized bencode type, or a declared length that runs past the end.
	ErrInvalidBuffer = errors.New("bencode: malformed buffer")

	// ErrUnexpectedType reports a valid value of a different type than the
	// one requested.
	ErrUnexpectedType = errors.New("bencode: value has a different type than requested")

	// ErrReachedEnd reports an advance past the last value in a collection.
	ErrReachedEnd = errors.New("bencode: advanced past the end of a collection")

	// ErrNotNatural reports a negative integer where a natural number was
	// requested.
	ErrNotNatural = errors.New("bencode: expected a non-negative integer")
)
