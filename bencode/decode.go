// Copyright © 2025 xpra-client contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: bencode/decode.go
// Summary: Lazy position-based decoder; cursors classify and extract values
// in place without building a parse tree.

package bencode

import "bytes"

// Value is a decoder cursor: a position into a caller-owned buffer plus a
// cached encoded length. The length stays zero until the value has been
// measured. Cursors only ever move forward and must not outlive the buffer
// they point into.
type Value struct {
	buf []byte
	pos int
	n   int // encoded length of the value at pos; 0 = unmeasured
}

// At returns a cursor positioned at the start of buf.
func At(buf []byte) Value { return Value{buf: buf} }

func (v *Value) rem() int { return len(v.buf) - v.pos }

// Kind classifies the value at the cursor from its leading byte.
func (v *Value) Kind() Kind {
	if v.pos >= len(v.buf) {
		return KindEnd
	}
	switch c := v.buf[v.pos]; {
	case c == 'e':
		return KindCollectionEnd
	case c == 'i':
		return KindInteger
	case c == 'l':
		return KindList
	case c == 'd':
		return KindDict
	case c >= '0' && c <= '9':
		return KindString
	}
	return KindInvalid
}

// check enforces the accessor contract: a valid tag of the wrong type is
// ErrUnexpectedType, an unrecognized tag is ErrInvalidBuffer.
func (v *Value) check(want Kind) error {
	switch k := v.Kind(); {
	case k == want:
		return nil
	case k == KindInvalid:
		return ErrInvalidBuffer
	}
	return ErrUnexpectedType
}

// skipString parses the decimal length prefix of a string at buf[i] and
// returns the start of the payload and its length. The prefix must fit the
// remaining buffer exactly; "0:" is a valid zero-length string.
func skipString(buf []byte, i int) (data, n int, err error) {
	start := i
	for ; i < len(buf) && buf[i] >= '0' && buf[i] <= '9'; i++ {
		n = n*10 + int(buf[i]-'0')
		if n > len(buf) {
			return 0, 0, ErrInvalidBuffer
		}
	}
	if i == start || i >= len(buf) || buf[i] != ':' {
		return 0, 0, ErrInvalidBuffer
	}
	data = i + 1
	if n > len(buf)-data {
		return 0, 0, ErrInvalidBuffer
	}
	return data, n, nil
}

// skipInt returns the index just past the 'e' of an integer at buf[i].
func skipInt(buf []byte, i int) (int, error) {
	j := i + 1
	if j < len(buf) && buf[j] == '-' {
		j++
	}
	start := j
	for ; j < len(buf) && buf[j] >= '0' && buf[j] <= '9'; j++ {
	}
	if j == start || j >= len(buf) || buf[j] != 'e' {
		return 0, ErrInvalidBuffer
	}
	return j + 1, nil
}

// measure computes and caches the encoded length of the value at the
// cursor. Collections are measured by an iterative skip that tracks only
// nesting depth; nothing is decoded or copied along the way.
func (v *Value) measure() (int, error) {
	if v.n != 0 {
		return v.n, nil
	}
	i := v.pos
	depth := 0
	for {
		if i >= len(v.buf) {
			return 0, ErrInvalidBuffer
		}
		switch c := v.buf[i]; {
		case c == 'l' || c == 'd':
			depth++
			i++
		case c == 'e':
			if depth == 0 {
				return 0, ErrInvalidBuffer
			}
			depth--
			i++
		case c == 'i':
			j, err := skipInt(v.buf, i)
			if err != nil {
				return 0, err
			}
			i = j
		case c >= '0' && c <= '9':
			data, n, err := skipString(v.buf, i)
			if err != nil {
				return 0, err
			}
			i = data + n
		default:
			return 0, ErrInvalidBuffer
		}
		if depth == 0 {
			break
		}
	}
	v.n = i - v.pos
	return v.n, nil
}

// Bytes extracts a string value as a view into the underlying buffer.
func (v *Value) Bytes() ([]byte, error) {
	if err := v.check(KindString); err != nil {
		return nil, err
	}
	data, n, err := skipString(v.buf, v.pos)
	if err != nil {
		return nil, err
	}
	v.n = data + n - v.pos
	return v.buf[data : data+n], nil
}

// Int extracts a signed integer value.
func (v *Value) Int() (int64, error) {
	if err := v.check(KindInteger); err != nil {
		return 0, err
	}
	i := v.pos + 1
	neg := false
	if i < len(v.buf) && v.buf[i] == '-' {
		neg = true
		i++
	}
	start := i
	var x int64
	for ; i < len(v.buf) && v.buf[i] >= '0' && v.buf[i] <= '9'; i++ {
		x = x*10 + int64(v.buf[i]-'0')
	}
	if i == start || i >= len(v.buf) || v.buf[i] != 'e' {
		return 0, ErrInvalidBuffer
	}
	v.n = i + 1 - v.pos
	if neg {
		x = -x
	}
	return x, nil
}

// Natural extracts an integer that must not be negative.
func (v *Value) Natural() (uint64, error) {
	x, err := v.Int()
	if err != nil {
		return 0, err
	}
	if x < 0 {
		return 0, ErrNotNatural
	}
	return uint64(x), nil
}

// List opens a list value and returns a cursor at its first element.
func (v *Value) List() (List, error) {
	if err := v.check(KindList); err != nil {
		return List{}, err
	}
	return List{Value{buf: v.buf, pos: v.pos + 1}}, nil
}

// Dict opens a dict value and returns a cursor at its first entry.
func (v *Value) Dict() (Dict, error) {
	if err := v.check(KindDict); err != nil {
		return Dict{}, err
	}
	return dictAt(v.buf, v.pos+1)
}

// Is reports whether the cursor sits on the encoding of x. Bencode is a
// bijection, so comparing raw bytes decides equality without decoding the
// current value at all.
func (v *Value) Is(x Val) bool {
	enc := Encode(x)
	if v.rem() < len(enc) {
		return false
	}
	return bytes.Equal(v.buf[v.pos:v.pos+len(enc)], enc)
}

// List is a cursor over list elements. The Value accessors operate on the
// element at the head; Next moves the head one element further until the
// end-of-collection tag is reached.
type List struct {
	Value
}

// Next returns a cursor positioned just past the current element. At the
// end of the collection it fails with ErrReachedEnd; past the end of the
// input it fails with ErrInvalidBuffer.
func (l *List) Next() (List, error) {
	switch l.Kind() {
	case KindCollectionEnd:
		return List{}, ErrReachedEnd
	case KindEnd, KindInvalid:
		return List{}, ErrInvalidBuffer
	}
	n, err := l.measure()
	if err != nil {
		return List{}, err
	}
	return List{Value{buf: l.buf, pos: l.pos + n}}, nil
}

// NextN skips n additional elements: NextN(0) is Next, NextN(1) lands on
// the element after that.
func (l *List) NextN(n int) (List, error) {
	cur := *l
	for i := 0; i <= n; i++ {
		var err error
		if cur, err = cur.Next(); err != nil {
			return List{}, err
		}
	}
	return cur, nil
}

// Dict is a cursor over dict entries. The embedded Value is positioned at
// the current entry's value; the just-parsed key rides along.
type Dict struct {
	Value
	key Value
}

func dictAt(buf []byte, pos int) (Dict, error) {
	key := Value{buf: buf, pos: pos}
	switch key.Kind() {
	case KindCollectionEnd, KindEnd:
		// Cursor at the terminator; Kind() reports it through the value.
		return Dict{Value: key, key: key}, nil
	}
	n, err := key.measure()
	if err != nil {
		return Dict{}, err
	}
	return Dict{Value: Value{buf: buf, pos: pos + n}, key: key}, nil
}

// Key returns the current entry's key.
func (d *Dict) Key() ([]byte, error) {
	k := d.key
	return k.Bytes()
}

// Next advances to the following entry.
func (d *Dict) Next() (Dict, error) {
	switch d.Kind() {
	case KindCollectionEnd:
		return Dict{}, ErrReachedEnd
	case KindEnd, KindInvalid:
		return Dict{}, ErrInvalidBuffer
	}
	n, err := d.measure()
	if err != nil {
		return Dict{}, err
	}
	return dictAt(d.buf, d.pos+n)
}

// Lookup scans entries from the cursor onward and returns the first whose
// key equals name. Input dicts need not be sorted. A missing key yields a
// cursor at the end of the dict, never an error, so the caller can supply
// a default.
func (d *Dict) Lookup(name string) (Dict, error) {
	cur := *d
	for cur.Kind() != KindCollectionEnd {
		k, err := cur.Key()
		if err != nil {
			return Dict{}, err
		}
		if string(k) == name {
			return cur, nil
		}
		if cur, err = cur.Next(); err != nil {
			return Dict{}, err
		}
	}
	return cur, nil
}

// LookupDefault is Lookup with a fallback: when name is absent the returned
// cursor points at def, which must hold a single pre-encoded bencode value.
func (d *Dict) LookupDefault(name string, def []byte) (Dict, error) {
	e, err := d.Lookup(name)
	if err != nil {
		return Dict{}, err
	}
	if e.Kind() == KindCollectionEnd {
		return Dict{Value: At(def)}, nil
	}
	return e, nil
}
