// Copyright © 2025 xpra-client contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: bencode/decode_test.go
// Summary: Exercises the decoder cursors against well-formed and hostile input.

package bencode

import (
	"bytes"
	"errors"
	"testing"
)

func TestKindClassification(t *testing.T) {
	cases := []struct {
		input []byte
		want  Kind
	}{
		{[]byte("i42e"), KindInteger},
		{[]byte("3:abc"), KindString},
		{[]byte("0:"), KindString},
		{[]byte("le"), KindList},
		{[]byte("de"), KindDict},
		{[]byte("e"), KindCollectionEnd},
		{[]byte(""), KindEnd},
		{[]byte("x"), KindInvalid},
	}
	for _, tc := range cases {
		v := At(tc.input)
		if got := v.Kind(); got != tc.want {
			t.Errorf("Kind(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestStringExtraction(t *testing.T) {
	v := At([]byte("5:hello"))
	got, err := v.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("Bytes = %q, want %q", got, "hello")
	}
}

func TestEmptyStringIsValid(t *testing.T) {
	v := At([]byte("0:"))
	got, err := v.Bytes()
	if err != nil {
		t.Fatalf("Bytes on \"0:\": %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected zero-length view, got %q", got)
	}
}

func TestStringLengthPastEnd(t *testing.T) {
	v := At([]byte("9:abc"))
	if _, err := v.Bytes(); !errors.Is(err, ErrInvalidBuffer) {
		t.Fatalf("expected ErrInvalidBuffer, got %v", err)
	}
}

func TestIntegerExtraction(t *testing.T) {
	cases := []struct {
		input string
		want  int64
	}{
		{"i0e", 0},
		{"i42e", 42},
		{"i-17e", -17},
		{"i1234567890e", 1234567890},
	}
	for _, tc := range cases {
		v := At([]byte(tc.input))
		got, err := v.Int()
		if err != nil {
			t.Errorf("Int(%q): %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Int(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestNaturalRejectsNegative(t *testing.T) {
	v := At([]byte("i-5e"))
	if _, err := v.Natural(); !errors.Is(err, ErrNotNatural) {
		t.Fatalf("expected ErrNotNatural, got %v", err)
	}
}

func TestUnexpectedType(t *testing.T) {
	v := At([]byte("i42e"))
	if _, err := v.Bytes(); !errors.Is(err, ErrUnexpectedType) {
		t.Fatalf("Bytes on integer: expected ErrUnexpectedType, got %v", err)
	}
	v = At([]byte("3:abc"))
	if _, err := v.Int(); !errors.Is(err, ErrUnexpectedType) {
		t.Fatalf("Int on string: expected ErrUnexpectedType, got %v", err)
	}
}

func TestUnrecognizedTag(t *testing.T) {
	v := At([]byte("x42e"))
	if _, err := v.Int(); !errors.Is(err, ErrInvalidBuffer) {
		t.Fatalf("expected ErrInvalidBuffer, got %v", err)
	}
}

func TestListIteration(t *testing.T) {
	v := At([]byte("li1e2:abi3ee"))
	lst, err := v.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	first, err := lst.Int()
	if err != nil || first != 1 {
		t.Fatalf("first = %d, %v", first, err)
	}

	lst, err = lst.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	s, err := lst.Bytes()
	if err != nil || !bytes.Equal(s, []byte("ab")) {
		t.Fatalf("second = %q, %v", s, err)
	}

	lst, err = lst.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	third, err := lst.Int()
	if err != nil || third != 3 {
		t.Fatalf("third = %d, %v", third, err)
	}

	lst, err = lst.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if lst.Kind() != KindCollectionEnd {
		t.Fatalf("expected end of collection, got %v", lst.Kind())
	}
}

func TestNextAtCollectionEnd(t *testing.T) {
	v := At([]byte("le"))
	lst, err := v.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := lst.Next(); !errors.Is(err, ErrReachedEnd) {
		t.Fatalf("expected ErrReachedEnd, got %v", err)
	}
}

func TestNextAtEndOfInput(t *testing.T) {
	// Truncated list: the terminator never arrives.
	v := At([]byte("li1e"))
	lst, err := v.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	lst, err = lst.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := lst.Next(); !errors.Is(err, ErrInvalidBuffer) {
		t.Fatalf("expected ErrInvalidBuffer, got %v", err)
	}
}

func TestNextNSkipsAhead(t *testing.T) {
	v := At([]byte("li0ei1ei2ei3ee"))
	lst, err := v.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	// NextN(0) is one step, NextN(2) is three.
	two, err := lst.NextN(1)
	if err != nil {
		t.Fatalf("NextN: %v", err)
	}
	got, err := two.Int()
	if err != nil || got != 2 {
		t.Fatalf("NextN(1) = %d, %v; want 2", got, err)
	}
}

func TestNestedMeasure(t *testing.T) {
	// Skipping a container element must hop over its entire body.
	v := At([]byte("ld3:keyli1ei2eee5:aftere"))
	lst, err := v.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	lst, err = lst.Next()
	if err != nil {
		t.Fatalf("Next over nested dict: %v", err)
	}
	s, err := lst.Bytes()
	if err != nil || !bytes.Equal(s, []byte("after")) {
		t.Fatalf("element after dict = %q, %v", s, err)
	}
}

func TestDictKeyValue(t *testing.T) {
	v := At([]byte("d3:key5:valuee"))
	d, err := v.Dict()
	if err != nil {
		t.Fatalf("Dict: %v", err)
	}
	k, err := d.Key()
	if err != nil || !bytes.Equal(k, []byte("key")) {
		t.Fatalf("Key = %q, %v", k, err)
	}
	val, err := d.Bytes()
	if err != nil || !bytes.Equal(val, []byte("value")) {
		t.Fatalf("value = %q, %v", val, err)
	}
}

func TestDictLookup(t *testing.T) {
	// Keys deliberately unsorted; lookup must not assume ordering.
	v := At([]byte("d1:bi2e1:ai1e1:ai9ee"))
	d, err := v.Dict()
	if err != nil {
		t.Fatalf("Dict: %v", err)
	}

	e, err := d.Lookup("a")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	// First match wins when a key repeats.
	got, err := e.Int()
	if err != nil || got != 1 {
		t.Fatalf("Lookup(a) = %d, %v; want 1", got, err)
	}
}

func TestDictLookupMissing(t *testing.T) {
	v := At([]byte("d3:key5:valuee"))
	d, err := v.Dict()
	if err != nil {
		t.Fatalf("Dict: %v", err)
	}
	e, err := d.Lookup("absent")
	if err != nil {
		t.Fatalf("Lookup must not fail on a missing key: %v", err)
	}
	if e.Kind() != KindCollectionEnd {
		t.Fatalf("missing key: Kind = %v, want end-of-collection", e.Kind())
	}
}

func TestDictLookupDefault(t *testing.T) {
	v := At([]byte("d3:key5:valuee"))
	d, err := v.Dict()
	if err != nil {
		t.Fatalf("Dict: %v", err)
	}
	e, err := d.LookupDefault("absent", Encode(Int(7)))
	if err != nil {
		t.Fatalf("LookupDefault: %v", err)
	}
	got, err := e.Int()
	if err != nil || got != 7 {
		t.Fatalf("default = %d, %v; want 7", got, err)
	}
}

func TestIsComparesEncodedBytes(t *testing.T) {
	v := At([]byte("d3:lz4i1ee"))
	d, err := v.Dict()
	if err != nil {
		t.Fatalf("Dict: %v", err)
	}
	e, err := d.Lookup("lz4")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !e.Is(Bool(true)) {
		t.Fatal("Is(Bool(true)) = false, want true")
	}
	if e.Is(Bool(false)) {
		t.Fatal("Is(Bool(false)) = true, want false")
	}
	if e.Is(Int(11)) {
		t.Fatal("Is(Int(11)) = true; a value must not match a longer encoding sharing a prefix")
	}
}
