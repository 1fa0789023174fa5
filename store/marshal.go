// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/statebridge-dev/statebridge/codec"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. The same value always
// produces identical bytes, which keeps upserts of unchanged entries
// byte-stable.
var encMode cbor.EncMode

// decMode accepts standard CBOR and ignores unknown fields, so rows
// written by a newer statebridge still load.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("store: CBOR decoder initialization failed: " + err.Error())
	}
}

// wireValue is the CBOR wire form of a codec.Value. One field per
// union member; Kind selects which is meaningful. A container carries
// its children as nested wireValues, preserving the full structure in
// binary form — this store is the binary-capable side of the system,
// so no string-tagging round trip is involved.
type wireValue struct {
	Kind      int                  `cbor:"k"`
	Bool      bool                 `cbor:"b,omitempty"`
	Number    float64              `cbor:"n,omitempty"`
	String    string               `cbor:"s,omitempty"`
	DateMilli int64                `cbor:"d,omitempty"`
	Raw       []byte               `cbor:"r,omitempty"`
	ViewKind  string               `cbor:"v,omitempty"`
	List      []wireValue          `cbor:"l,omitempty"`
	Map       map[string]wireValue `cbor:"m,omitempty"`
}

// marshalValue serializes a value to deterministic CBOR. Blob content
// is materialized under ctx, mirroring the codec's encode contract.
func marshalValue(ctx context.Context, v codec.Value) ([]byte, error) {
	wire, err := toWire(ctx, v)
	if err != nil {
		return nil, err
	}
	data, err := encMode.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("store: marshaling value: %w", err)
	}
	return data, nil
}

// unmarshalValue deserializes a stored CBOR blob back into a value.
func unmarshalValue(data []byte) (codec.Value, error) {
	var wire wireValue
	if err := decMode.Unmarshal(data, &wire); err != nil {
		return codec.Value{}, fmt.Errorf("store: unmarshaling value: %w", err)
	}
	return fromWire(wire)
}

func toWire(ctx context.Context, v codec.Value) (wireValue, error) {
	wire := wireValue{Kind: int(v.Kind())}
	switch v.Kind() {
	case codec.KindNull, codec.KindUndefined:
	case codec.KindBool:
		wire.Bool = v.BoolValue()
	case codec.KindNumber:
		wire.Number = v.NumberValue()
	case codec.KindString:
		wire.String = v.StringValue()
	case codec.KindDate:
		wire.DateMilli = v.DateValue().UnixMilli()
	case codec.KindBinary:
		wire.Raw = v.Bytes()
	case codec.KindTypedView:
		kind, data := v.View()
		wire.ViewKind = string(kind)
		wire.Raw = data
	case codec.KindBlob:
		data, err := v.BlobBytes(ctx)
		if err != nil {
			return wireValue{}, err
		}
		wire.Raw = data
	case codec.KindList:
		elements := v.ListValue()
		wire.List = make([]wireValue, len(elements))
		for i, element := range elements {
			child, err := toWire(ctx, element)
			if err != nil {
				return wireValue{}, err
			}
			wire.List[i] = child
		}
	case codec.KindMap:
		entries := v.MapValue()
		wire.Map = make(map[string]wireValue, len(entries))
		for key, value := range entries {
			child, err := toWire(ctx, value)
			if err != nil {
				return wireValue{}, err
			}
			wire.Map[key] = child
		}
	}
	return wire, nil
}

func fromWire(wire wireValue) (codec.Value, error) {
	switch codec.Kind(wire.Kind) {
	case codec.KindNull:
		return codec.Null(), nil
	case codec.KindUndefined:
		return codec.Undefined(), nil
	case codec.KindBool:
		return codec.Bool(wire.Bool), nil
	case codec.KindNumber:
		return codec.Number(wire.Number), nil
	case codec.KindString:
		return codec.String(wire.String), nil
	case codec.KindDate:
		return codec.DateFromMillis(wire.DateMilli), nil
	case codec.KindBinary:
		return codec.Binary(wire.Raw), nil
	case codec.KindTypedView:
		return codec.TypedView(codec.ViewKind(wire.ViewKind), wire.Raw), nil
	case codec.KindBlob:
		return codec.Blob(wire.Raw), nil
	case codec.KindList:
		elements := make([]codec.Value, len(wire.List))
		for i, child := range wire.List {
			element, err := fromWire(child)
			if err != nil {
				return codec.Value{}, err
			}
			elements[i] = element
		}
		return codec.List(elements...), nil
	case codec.KindMap:
		entries := make(map[string]codec.Value, len(wire.Map))
		for key, child := range wire.Map {
			value, err := fromWire(child)
			if err != nil {
				return codec.Value{}, err
			}
			entries[key] = value
		}
		return codec.Map(entries), nil
	}
	return codec.Value{}, fmt.Errorf("store: unknown value kind %d", wire.Kind)
}
