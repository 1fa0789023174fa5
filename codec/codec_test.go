// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package codec_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/statebridge-dev/statebridge/codec"
)

func encode(t *testing.T, v codec.Value) string {
	t.Helper()
	var encoder codec.Encoder
	encoded, err := encoder.Encode(context.Background(), v)
	if err != nil {
		t.Fatalf("Encode(%s): %v", v.Kind(), err)
	}
	return encoded
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value codec.Value
	}{
		{"null", codec.Null()},
		{"undefined", codec.Undefined()},
		{"bool true", codec.Bool(true)},
		{"bool false", codec.Bool(false)},
		{"number integer", codec.Number(42)},
		{"number fraction", codec.Number(-3.25)},
		{"number zero", codec.Number(0)},
		{"string", codec.String("hello world")},
		{"string empty", codec.String("")},
		{"string with colons", codec.String("a:b:c")},
		{"date", codec.DateFromMillis(1000)},
		{"date now-ish", codec.Date(time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))},
		{"binary", codec.Binary([]byte{0x00, 0x01, 0xFE, 0xFF})},
		{"binary empty", codec.Binary(nil)},
		{"typed view uint8", codec.TypedView(codec.ViewUint8, []byte{1, 2, 3})},
		{"typed view float64", codec.TypedView(codec.ViewFloat64, make([]byte, 16))},
		{"blob", codec.Blob([]byte("blob content"))},
		{"list", codec.List(codec.Number(1), codec.String("two"), codec.Null())},
		{"list empty", codec.List()},
		{"map", codec.Map(map[string]codec.Value{
			"a": codec.Number(1),
			"b": codec.String("x"),
		})},
		{"nested mixed container", codec.Map(map[string]codec.Value{
			"buffer": codec.Binary([]byte{9, 8, 7}),
			"when":   codec.DateFromMillis(1700000000000),
			"inner": codec.List(
				codec.Map(map[string]codec.Value{"deep": codec.Bool(true)}),
				codec.Undefined(),
				codec.TypedView(codec.ViewInt16, []byte{0, 1, 0, 2}),
			),
		})},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			encoded := encode(t, test.value)
			decoded := codec.Decode(encoded)
			if !decoded.Equal(test.value) {
				t.Errorf("decode(encode(v)) = %s, want equal to original %s\nencoded: %s",
					decoded.Kind(), test.value.Kind(), encoded)
			}
		})
	}
}

func TestEncodedForms(t *testing.T) {
	tests := []struct {
		name  string
		value codec.Value
		want  string
	}{
		{"null", codec.Null(), "JS:__NULL__"},
		{"undefined", codec.Undefined(), "JS:__UNDEFINED__"},
		{"number", codec.Number(1), "JS:1"},
		{"string", codec.String("hi"), `JS:"hi"`},
		{"bool", codec.Bool(true), "JS:true"},
		{"date", codec.DateFromMillis(1000), "DATE:1000"},
		{"binary", codec.Binary([]byte{1, 2}), "AB:" + base64.StdEncoding.EncodeToString([]byte{1, 2})},
		{"typed view", codec.TypedView(codec.ViewUint8, []byte{7}), "TA:Uint8Array:" + base64.StdEncoding.EncodeToString([]byte{7})},
		{"blob", codec.Blob([]byte{3}), "BL:" + base64.StdEncoding.EncodeToString([]byte{3})},
		{"list", codec.List(codec.Number(1)), `OBJ:["JS:1"]`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := encode(t, test.value); got != test.want {
				t.Errorf("encode = %q, want %q", got, test.want)
			}
		})
	}
}

func TestDecodePassthrough(t *testing.T) {
	// Unknown tags and malformed payloads must come back unchanged
	// as strings, never fail.
	inputs := []string{
		"ZZ:whatever",
		"plain untagged text",
		"",
		"AB:!!!not-base64!!!",
		"DATE:not-digits",
		"DATE:",
		"TA:missingpayload",
		"BL:***",
		"OBJ:{broken json",
		"OBJ:42",
		"JS:{not a primitive",
	}

	for _, input := range inputs {
		decoded := codec.Decode(input)
		if decoded.Kind() != codec.KindString || decoded.StringValue() != input {
			t.Errorf("Decode(%q) = %s %q, want passthrough string", input, decoded.Kind(), decoded.StringValue())
		}
	}
}

func TestDecodeUnknownViewKindDegradesToBinary(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})
	decoded := codec.Decode("TA:Float128Array:" + payload)
	if decoded.Kind() != codec.KindBinary {
		t.Fatalf("Decode unknown view kind = %s, want binary", decoded.Kind())
	}
	if !bytes.Equal(decoded.Bytes(), []byte{1, 2, 3, 4}) {
		t.Errorf("Decode unknown view kind lost bytes: %v", decoded.Bytes())
	}
}

func TestDecodeMisalignedViewDegradesToBinary(t *testing.T) {
	// Three bytes cannot be a whole number of 4-byte elements.
	payload := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	decoded := codec.Decode("TA:Int32Array:" + payload)
	if decoded.Kind() != codec.KindBinary {
		t.Fatalf("Decode misaligned view = %s, want binary", decoded.Kind())
	}
}

func TestSizeGuard(t *testing.T) {
	encoder := codec.Encoder{MaxEncodedBytes: 16}

	if _, err := encoder.Encode(context.Background(), codec.String("ok")); err != nil {
		t.Fatalf("small payload rejected: %v", err)
	}

	_, err := encoder.Encode(context.Background(), codec.Binary(make([]byte, 64)))
	if !errors.Is(err, codec.ErrPayloadTooLarge) {
		t.Fatalf("oversized payload error = %v, want ErrPayloadTooLarge", err)
	}
}

func TestBlobFromReader(t *testing.T) {
	blob := codec.BlobFromReader(strings.NewReader("streamed"))
	encoded := encode(t, blob)

	decoded := codec.Decode(encoded)
	if !decoded.Equal(codec.Blob([]byte("streamed"))) {
		t.Errorf("blob from reader round trip failed: %q", encoded)
	}
}

func TestBlobFromReaderCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var encoder codec.Encoder
	_, err := encoder.Encode(ctx, codec.BlobFromReader(strings.NewReader("x")))
	if err == nil {
		t.Fatal("Encode with cancelled context succeeded")
	}
}

func TestDateSubMillisecondTruncation(t *testing.T) {
	precise := time.Date(2026, 1, 2, 3, 4, 5, 678901234, time.UTC)
	decoded := codec.Decode(encode(t, codec.Date(precise)))
	if got := decoded.DateValue().UnixMilli(); got != precise.UnixMilli() {
		t.Errorf("date millis = %d, want %d", got, precise.UnixMilli())
	}
}

func TestFromJSON(t *testing.T) {
	value := codec.FromJSON(map[string]any{
		"n":    float64(3),
		"s":    "text",
		"b":    true,
		"nil":  nil,
		"list": []any{float64(1), "two"},
	})
	want := codec.Map(map[string]codec.Value{
		"n":    codec.Number(3),
		"s":    codec.String("text"),
		"b":    codec.Bool(true),
		"nil":  codec.Null(),
		"list": codec.List(codec.Number(1), codec.String("two")),
	})
	if !value.Equal(want) {
		t.Error("FromJSON mismatch")
	}
}
