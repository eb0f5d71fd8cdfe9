// Copyright © 2025 xpra-client contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: bencode/encode.go
// Summary: Tagged encoder values and direct-to-buffer serialization.

package bencode

import (
	"sort"
	"strconv"
)

type valKind uint8

const (
	valInt valKind = iota
	valStr
	valList
	valDict
	valRaw
)

// Val is a single encodable value. It references string payloads rather
// than copying them, so a Val must be serialized before the bytes it was
// built from go away.
type Val struct {
	kind      valKind
	num       int64
	str       []byte
	list      []Val
	dict      []Assoc
	unordered bool
}

// Assoc is one key/value association of a dict.
type Assoc struct {
	Key string
	Val Val
}

// A builds an association.
func A(key string, v Val) Assoc { return Assoc{Key: key, Val: v} }

// Int builds an integer value, serialized as i<decimal>e.
func Int(v int64) Val { return Val{kind: valInt, num: v} }

// Bool builds an integer 0 or 1, the boolean convention on the xpra wire.
func Bool(v bool) Val {
	if v {
		return Int(1)
	}
	return Int(0)
}

// Str builds a string value.
func Str(s string) Val { return Val{kind: valStr, str: []byte(s)} }

// Bytes builds a string value referencing b without copying.
func Bytes(b []byte) Val { return Val{kind: valStr, str: b} }

// Raw builds a value whose bytes are written verbatim, with no bencode
// framing. Used to embed a pre-encoded sub-blob.
func Raw(b []byte) Val { return Val{kind: valRaw, str: b} }

// ListOf builds a list value from its elements.
func ListOf(elems ...Val) Val { return Val{kind: valList, list: elems} }

// DictOf builds a dict value. Entries serialize ordered by key, which keeps
// the encoding canonical and makes Is comparisons reliable.
func DictOf(entries ...Assoc) Val { return Val{kind: valDict, dict: entries} }

// UnorderedDictOf builds a dict that serializes in insertion order, for the
// places where the wire convention fixes the order instead of the key sort.
func UnorderedDictOf(entries ...Assoc) Val {
	return Val{kind: valDict, dict: entries, unordered: true}
}

// Encode serializes v into a fresh buffer.
func Encode(v Val) []byte { return Append(nil, v) }

// Append serializes v onto dst and returns the extended slice.
func Append(dst []byte, v Val) []byte {
	switch v.kind {
	case valInt:
		dst = append(dst, 'i')
		dst = strconv.AppendInt(dst, v.num, 10)
		return append(dst, 'e')
	case valStr:
		dst = strconv.AppendInt(dst, int64(len(v.str)), 10)
		dst = append(dst, ':')
		return append(dst, v.str...)
	case valList:
		dst = append(dst, 'l')
		for i := range v.list {
			dst = Append(dst, v.list[i])
		}
		return append(dst, 'e')
	case valDict:
		entries := v.dict
		if !v.unordered && !sort.SliceIsSorted(entries, func(i, j int) bool {
			return entries[i].Key < entries[j].Key
		}) {
			entries = append([]Assoc(nil), v.dict...)
			sort.SliceStable(entries, func(i, j int) bool {
				return entries[i].Key < entries[j].Key
			})
		}
		dst = append(dst, 'd')
		for i := range entries {
			dst = Append(dst, Str(entries[i].Key))
			dst = Append(dst, entries[i].Val)
		}
		return append(dst, 'e')
	case valRaw:
		return append(dst, v.str...)
	}
	return dst
}
