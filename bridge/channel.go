// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"sync"
)

// Channel is an asynchronous, unauthenticated message medium to the
// hosting context. Delivery is best-effort and unordered relative to
// the peer's own sends; correlation happens one level up, in the
// bridge's envelope protocol.
type Channel interface {
	// Send transmits one message. It returns once the message is
	// handed to the medium, not once the peer receives it.
	Send(ctx context.Context, message []byte) error

	// Receive returns the inbound message stream. The stream may or
	// may not close on shutdown depending on the medium; consumers
	// select on their own cancellation as well.
	Receive() <-chan []byte

	// Close shuts the medium down. Pending Sends fail; Receive's
	// stream closes.
	Close() error
}

// Pipe returns two connected in-memory channel ends: what one end
// sends, the other receives. Used by tests and by harnesses that host
// both sides in one process.
func Pipe() (Channel, Channel) {
	aToB := make(chan []byte, 16)
	bToA := make(chan []byte, 16)
	done := make(chan struct{})
	var once sync.Once
	closeDone := func() { once.Do(func() { close(done) }) }

	a := &pipeEnd{out: aToB, in: bToA, done: done, close: closeDone}
	b := &pipeEnd{out: bToA, in: aToB, done: done, close: closeDone}
	return a, b
}

type pipeEnd struct {
	out   chan []byte
	in    chan []byte
	done  chan struct{}
	close func()
}

func (p *pipeEnd) Send(ctx context.Context, message []byte) error {
	select {
	case p.out <- message:
		return nil
	case <-p.done:
		return fmt.Errorf("bridge: pipe closed")
	case <-ctx.Done():
		return fmt.Errorf("bridge: pipe send: %w", ctx.Err())
	}
}

func (p *pipeEnd) Receive() <-chan []byte { return p.in }

func (p *pipeEnd) Close() error {
	p.close()
	return nil
}
