// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec bridges the structured value model of the entry store
// and the string-only model of the flat store.
//
// A [Value] is a member of a closed tagged union: null, undefined,
// booleans, numbers, strings, dates, raw binary buffers, typed views
// over binary buffers, binary large objects, and recursive ordered
// sequences and keyed mappings of values. [Encoder.Encode] turns a
// Value into a prefixed string — base64 for binary data, JSON for
// primitives and containers — and [Decode] turns it back.
//
// The grammar:
//
//	JS:__NULL__            null
//	JS:__UNDEFINED__       undefined
//	JS:<json>              bool, number, or string primitive
//	DATE:<epoch-millis>    date
//	AB:<base64>            raw binary buffer
//	TA:<kind>:<base64>     typed view; kind names the element type
//	BL:<base64>            binary large object
//	OBJ:<json>             container whose leaves are tagged strings
//
// Containers encode structurally: each element is encoded on its own
// and the container of encoded strings is JSON-serialized under OBJ:,
// so nesting of any depth flattens into string leaves.
//
// Decode is total. A payload with an unknown tag — or a plain string
// that was never encoded — comes back unchanged as a string value.
// This passthrough keeps the codec forward compatible: data written
// with tags a newer peer invented survives a round trip instead of
// failing the batch that carries it.
//
// Encode is context-bound because blob content may be pulled from a
// reader at encode time. An [Encoder] with MaxEncodedBytes set
// rejects oversized payloads with [ErrPayloadTooLarge]; the sync
// engine treats that as a per-entry skip.
package codec
