// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketChannel is a Channel over a websocket connection to the
// hosting context. Writes are serialized with a mutex because
// gorilla/websocket permits only one concurrent writer.
type WebSocketChannel struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	inbound chan []byte
	done    chan struct{}
	writeMu sync.Mutex
	once    sync.Once
}

// DialWebSocket connects to the hosting context at url
// (ws:// or wss://) and starts the read pump.
func DialWebSocket(ctx context.Context, url string, logger *slog.Logger) (*WebSocketChannel, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("bridge: dialing %s: %w", url, err)
	}

	c := &WebSocketChannel{
		conn:    conn,
		logger:  logger,
		inbound: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
	go c.readPump()
	return c, nil
}

func (c *WebSocketChannel) readPump() {
	defer close(c.inbound)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				// Expected: Close tore the connection down.
			default:
				c.logger.Error("websocket read failed", "error", err)
			}
			return
		}
		select {
		case c.inbound <- message:
		case <-c.done:
			return
		}
	}
}

func (c *WebSocketChannel) Send(ctx context.Context, message []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("bridge: websocket send: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		return fmt.Errorf("bridge: websocket send: %w", err)
	}
	return nil
}

func (c *WebSocketChannel) Receive() <-chan []byte { return c.inbound }

func (c *WebSocketChannel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}
