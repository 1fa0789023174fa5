// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"
)

// Kind identifies which member of the value union a Value holds. The
// set is closed: every Kind has exactly one encode branch and one
// decode branch, and a switch over Kind with no default is exhaustive.
type Kind int

const (
	KindNull Kind = iota
	KindUndefined
	KindBool
	KindNumber
	KindString
	KindDate
	KindBinary
	KindTypedView
	KindBlob
	KindList
	KindMap
)

// String returns the kind name for logs and test failure messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindUndefined:
		return "undefined"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindBinary:
		return "binary"
	case KindTypedView:
		return "typed-view"
	case KindBlob:
		return "blob"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ViewKind tags a typed view over a binary buffer with its element
// type. The wire names follow the hosting convention the flat medium
// uses, so payloads written by the original hosting context decode to
// the same view kind here.
type ViewKind string

const (
	ViewInt8         ViewKind = "Int8Array"
	ViewUint8        ViewKind = "Uint8Array"
	ViewUint8Clamped ViewKind = "Uint8ClampedArray"
	ViewInt16        ViewKind = "Int16Array"
	ViewUint16       ViewKind = "Uint16Array"
	ViewInt32        ViewKind = "Int32Array"
	ViewUint32       ViewKind = "Uint32Array"
	ViewFloat32      ViewKind = "Float32Array"
	ViewFloat64      ViewKind = "Float64Array"
	ViewBigInt64     ViewKind = "BigInt64Array"
	ViewBigUint64    ViewKind = "BigUint64Array"
)

// viewElementSizes maps each known view kind to its element width in
// bytes. A kind absent from this map is unknown and decodes as a raw
// binary buffer.
var viewElementSizes = map[ViewKind]int{
	ViewInt8:         1,
	ViewUint8:        1,
	ViewUint8Clamped: 1,
	ViewInt16:        2,
	ViewUint16:       2,
	ViewInt32:        4,
	ViewUint32:       4,
	ViewFloat32:      4,
	ViewFloat64:      8,
	ViewBigInt64:     8,
	ViewBigUint64:    8,
}

// Known reports whether the view kind is one this codec can
// reconstruct.
func (k ViewKind) Known() bool {
	_, ok := viewElementSizes[k]
	return ok
}

// Value is one structured value: a member of the closed union over
// null, undefined, primitives, dates, binary buffers, typed views,
// blobs, and recursive containers. The zero Value is Null.
//
// Values are immutable by convention: constructors copy nothing, so
// callers must not mutate byte slices, lists, or maps after handing
// them to a constructor.
type Value struct {
	kind     Kind
	boolean  bool
	number   float64
	str      string
	date     time.Time
	raw      []byte
	viewKind ViewKind
	blob     *blobContent
	list     []Value
	entries  map[string]Value
}

// blobContent holds a blob's bytes, or the reader they will be pulled
// from on first use. Shared by pointer so that a materialized read is
// visible through every copy of the owning Value.
type blobContent struct {
	data   []byte
	source io.Reader
	read   bool
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Undefined returns the undefined value. Undefined is distinct from
// Null on the wire and round-trips as such.
func Undefined() Value { return Value{kind: KindUndefined} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, number: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Date returns a date value. Wire precision is milliseconds; the
// sub-millisecond part of t is dropped at encode time, so construct
// dates from millisecond timestamps when round-trip equality matters.
func Date(t time.Time) Value { return Value{kind: KindDate, date: t} }

// DateFromMillis returns a date value from a Unix epoch-millisecond
// timestamp.
func DateFromMillis(ms int64) Value {
	return Value{kind: KindDate, date: time.UnixMilli(ms).UTC()}
}

// Binary returns a raw binary buffer value.
func Binary(data []byte) Value { return Value{kind: KindBinary, raw: data} }

// TypedView returns a typed view over the given buffer. The kind need
// not be a known one; unknown kinds still encode, and decode on the
// far side degrades them to a raw buffer.
func TypedView(kind ViewKind, data []byte) Value {
	return Value{kind: KindTypedView, viewKind: kind, raw: data}
}

// Blob returns a binary large object value with in-memory content.
func Blob(data []byte) Value {
	return Value{kind: KindBlob, blob: &blobContent{data: data, read: true}}
}

// BlobFromReader returns a blob whose content is pulled from r the
// first time it is needed (by Encode or by the store). The read is the
// asynchronous part of the encode contract: it happens under the
// caller's context, not at construction.
func BlobFromReader(r io.Reader) Value {
	return Value{kind: KindBlob, blob: &blobContent{source: r}}
}

// List returns an ordered sequence value.
func List(elements ...Value) Value { return Value{kind: KindList, list: elements} }

// Map returns a keyed mapping value.
func Map(entries map[string]Value) Value { return Value{kind: KindMap, entries: entries} }

// Kind returns which union member this value holds.
func (v Value) Kind() Kind { return v.kind }

// BoolValue returns the boolean payload. Valid only for KindBool.
func (v Value) BoolValue() bool { return v.boolean }

// NumberValue returns the numeric payload. Valid only for KindNumber.
func (v Value) NumberValue() float64 { return v.number }

// StringValue returns the string payload. Valid only for KindString.
func (v Value) StringValue() string { return v.str }

// DateValue returns the date payload. Valid only for KindDate.
func (v Value) DateValue() time.Time { return v.date }

// Bytes returns the raw buffer payload of a Binary or TypedView value.
func (v Value) Bytes() []byte { return v.raw }

// View returns the view kind and buffer of a TypedView value.
func (v Value) View() (ViewKind, []byte) { return v.viewKind, v.raw }

// ListValue returns the elements of a List value.
func (v Value) ListValue() []Value { return v.list }

// MapValue returns the entries of a Map value.
func (v Value) MapValue() map[string]Value { return v.entries }

// BlobBytes returns a blob's content, pulling it from the backing
// reader on first call. Valid only for KindBlob.
func (v Value) BlobBytes(ctx context.Context) ([]byte, error) {
	if v.kind != KindBlob {
		return nil, fmt.Errorf("codec: BlobBytes on %s value", v.kind)
	}
	if v.blob.read {
		return v.blob.data, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("codec: reading blob: %w", err)
	}
	data, err := io.ReadAll(v.blob.source)
	if err != nil {
		return nil, fmt.Errorf("codec: reading blob: %w", err)
	}
	v.blob.data = data
	v.blob.read = true
	return data, nil
}

// Equal reports deep value equality. Dates compare at millisecond
// precision (the wire precision). Blobs compare by materialized
// content; a blob whose reader has not been pulled yet compares equal
// to nothing except itself.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull, KindUndefined:
		return true
	case KindBool:
		return v.boolean == other.boolean
	case KindNumber:
		return v.number == other.number
	case KindString:
		return v.str == other.str
	case KindDate:
		return v.date.UnixMilli() == other.date.UnixMilli()
	case KindBinary:
		return bytes.Equal(v.raw, other.raw)
	case KindTypedView:
		return v.viewKind == other.viewKind && bytes.Equal(v.raw, other.raw)
	case KindBlob:
		if v.blob == other.blob {
			return true
		}
		if !v.blob.read || !other.blob.read {
			return false
		}
		return bytes.Equal(v.blob.data, other.blob.data)
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.entries) != len(other.entries) {
			return false
		}
		for key, value := range v.entries {
			otherValue, ok := other.entries[key]
			if !ok || !value.Equal(otherValue) {
				return false
			}
		}
		return true
	}
	return false
}

// FromJSON converts a decoded encoding/json value (nil, bool, float64,
// string, []any, map[string]any) into a Value. Unrecognized Go types
// stringify. Used by the seed tooling, which reads plain JSON entries
// and needs them in union form before encoding.
func FromJSON(v any) Value {
	switch typed := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(typed)
	case float64:
		return Number(typed)
	case string:
		return String(typed)
	case []any:
		elements := make([]Value, len(typed))
		for i, element := range typed {
			elements[i] = FromJSON(element)
		}
		return List(elements...)
	case map[string]any:
		entries := make(map[string]Value, len(typed))
		for key, value := range typed {
			entries[key] = FromJSON(value)
		}
		return Map(entries)
	}
	return String(fmt.Sprintf("%v", v))
}
