// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge speaks the envelope protocol with a hosting context
// over an asynchronous message channel.
//
// Every message is a JSON Envelope with a type and, for
// request/response pairs, a messageId. The bridge correlates its own
// outbound requests with inbound responses on (type, messageId);
// responses that arrive after the request timed out are dropped.
// Inbound envelopes with no pending request are host-initiated: the
// host can pull the full flat state, overwrite it wholesale, or ask
// for a snapshot, and the bridge answers each against the flat store
// and the application callbacks.
//
// The channel is pluggable: a websocket for a real host, an in-memory
// pipe for tests. With no channel at all the bridge is inert and the
// process runs standalone on local state.
package bridge
