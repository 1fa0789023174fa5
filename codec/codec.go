// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Tag prefixes of the flat string representation. Every encoded
// payload starts with exactly one of these; anything else is treated
// as an already-flat string and passes through decode unchanged.
const (
	tagNull      = "JS:__NULL__"
	tagUndefined = "JS:__UNDEFINED__"
	tagPrimitive = "JS:"
	tagDate      = "DATE:"
	tagBinary    = "AB:"
	tagTypedView = "TA:"
	tagBlob      = "BL:"
	tagContainer = "OBJ:"
)

// ErrPayloadTooLarge is returned by Encode when the encoded form
// exceeds the encoder's MaxEncodedBytes. Callers treat it as a
// per-entry skip, never as a batch abort.
var ErrPayloadTooLarge = errors.New("codec: encoded payload exceeds size limit")

// Encoder encodes values into the tagged string representation the
// flat medium can hold. The zero Encoder is valid and applies no size
// limit.
type Encoder struct {
	// MaxEncodedBytes rejects any encoded payload longer than this
	// many bytes with ErrPayloadTooLarge. Zero means unlimited. The
	// limit applies to the complete top-level payload, not to the
	// recursively encoded leaves inside a container.
	MaxEncodedBytes int
}

// Encode converts a value into its tagged string form. It is the
// asynchronous half of the codec contract: blob content may be pulled
// from a reader under ctx. Every member of the value union encodes;
// the only errors are blob read failures, a cancelled context, and
// the size guard.
func (e *Encoder) Encode(ctx context.Context, v Value) (string, error) {
	encoded, err := encodeValue(ctx, v)
	if err != nil {
		return "", err
	}
	if e.MaxEncodedBytes > 0 && len(encoded) > e.MaxEncodedBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(encoded), e.MaxEncodedBytes)
	}
	return encoded, nil
}

// encodeValue has one branch per Kind. Containers recurse: each
// element is encoded independently and the container of encoded
// strings is JSON-serialized under the OBJ: tag.
func encodeValue(ctx context.Context, v Value) (string, error) {
	switch v.Kind() {
	case KindNull:
		return tagNull, nil
	case KindUndefined:
		return tagUndefined, nil
	case KindBool, KindNumber, KindString:
		return encodePrimitive(v)
	case KindDate:
		return tagDate + strconv.FormatInt(v.DateValue().UnixMilli(), 10), nil
	case KindBinary:
		return tagBinary + base64.StdEncoding.EncodeToString(v.Bytes()), nil
	case KindTypedView:
		kind, data := v.View()
		return tagTypedView + string(kind) + ":" + base64.StdEncoding.EncodeToString(data), nil
	case KindBlob:
		data, err := v.BlobBytes(ctx)
		if err != nil {
			return "", err
		}
		return tagBlob + base64.StdEncoding.EncodeToString(data), nil
	case KindList:
		elements := v.ListValue()
		encoded := make([]string, len(elements))
		for i, element := range elements {
			leaf, err := encodeValue(ctx, element)
			if err != nil {
				return "", err
			}
			encoded[i] = leaf
		}
		return encodeContainer(encoded)
	case KindMap:
		entries := v.MapValue()
		encoded := make(map[string]string, len(entries))
		for key, value := range entries {
			leaf, err := encodeValue(ctx, value)
			if err != nil {
				return "", err
			}
			encoded[key] = leaf
		}
		return encodeContainer(encoded)
	}
	return "", fmt.Errorf("codec: cannot encode %s value", v.Kind())
}

func encodePrimitive(v Value) (string, error) {
	var primitive any
	switch v.Kind() {
	case KindBool:
		primitive = v.BoolValue()
	case KindNumber:
		primitive = v.NumberValue()
	case KindString:
		primitive = v.StringValue()
	}
	data, err := json.Marshal(primitive)
	if err != nil {
		return "", fmt.Errorf("codec: marshaling primitive: %w", err)
	}
	return tagPrimitive + string(data), nil
}

func encodeContainer(container any) (string, error) {
	data, err := json.Marshal(container)
	if err != nil {
		return "", fmt.Errorf("codec: marshaling container: %w", err)
	}
	return tagContainer + string(data), nil
}

// Decode converts a tagged string back into a value. Decode is total:
// a malformed or unrecognized payload is returned unchanged as a
// string value rather than failing, so a payload written by a newer
// peer with tags this version does not know survives a round trip
// through the store instead of being lost.
func Decode(encoded string) Value {
	switch {
	case encoded == tagNull:
		return Null()
	case encoded == tagUndefined:
		return Undefined()
	case strings.HasPrefix(encoded, tagDate):
		return decodeDate(encoded)
	case strings.HasPrefix(encoded, tagBinary):
		data, err := base64.StdEncoding.DecodeString(encoded[len(tagBinary):])
		if err != nil {
			return String(encoded)
		}
		return Binary(data)
	case strings.HasPrefix(encoded, tagTypedView):
		return decodeTypedView(encoded)
	case strings.HasPrefix(encoded, tagBlob):
		data, err := base64.StdEncoding.DecodeString(encoded[len(tagBlob):])
		if err != nil {
			return String(encoded)
		}
		return Blob(data)
	case strings.HasPrefix(encoded, tagContainer):
		return decodeContainer(encoded)
	case strings.HasPrefix(encoded, tagPrimitive):
		return decodePrimitive(encoded)
	}
	// Unknown tag, or no tag at all: lossy-but-safe passthrough.
	return String(encoded)
}

func decodeDate(encoded string) Value {
	millis, err := strconv.ParseInt(encoded[len(tagDate):], 10, 64)
	if err != nil {
		return String(encoded)
	}
	return DateFromMillis(millis)
}

// decodeTypedView reconstructs a typed view when the view kind is
// known and the buffer length is a whole number of elements;
// otherwise the bytes come back as a raw binary buffer so no data is
// lost.
func decodeTypedView(encoded string) Value {
	body := encoded[len(tagTypedView):]
	kindName, payload, found := strings.Cut(body, ":")
	if !found {
		return String(encoded)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return String(encoded)
	}
	kind := ViewKind(kindName)
	elementSize, known := viewElementSizes[kind]
	if !known || len(data)%elementSize != 0 {
		return Binary(data)
	}
	return TypedView(kind, data)
}

func decodePrimitive(encoded string) Value {
	var primitive any
	if err := json.Unmarshal([]byte(encoded[len(tagPrimitive):]), &primitive); err != nil {
		return String(encoded)
	}
	switch typed := primitive.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(typed)
	case float64:
		return Number(typed)
	case string:
		return String(typed)
	}
	// A container under the JS: tag is not part of the grammar.
	return String(encoded)
}

// decodeContainer unwraps the JSON container of encoded leaves and
// decodes each leaf recursively.
func decodeContainer(encoded string) Value {
	var container any
	if err := json.Unmarshal([]byte(encoded[len(tagContainer):]), &container); err != nil {
		return String(encoded)
	}
	value, ok := decodeContainerTree(container)
	if !ok {
		return String(encoded)
	}
	return value
}

// decodeContainerTree converts the unmarshaled container into a
// value. Leaves are tagged strings; nested raw JSON containers are
// tolerated and walked recursively even though the encoder always
// flattens nesting into string leaves.
func decodeContainerTree(node any) (Value, bool) {
	switch typed := node.(type) {
	case string:
		return Decode(typed), true
	case []any:
		elements := make([]Value, len(typed))
		for i, element := range typed {
			value, ok := decodeContainerTree(element)
			if !ok {
				return Value{}, false
			}
			elements[i] = value
		}
		return List(elements...), true
	case map[string]any:
		entries := make(map[string]Value, len(typed))
		for key, child := range typed {
			value, ok := decodeContainerTree(child)
			if !ok {
				return Value{}, false
			}
			entries[key] = value
		}
		return Map(entries), true
	}
	return Value{}, false
}
