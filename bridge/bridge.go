// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/statebridge-dev/statebridge/flatstore"
	"github.com/statebridge-dev/statebridge/lib/clock"
)

// ErrPullTimeout reports that the hosting context did not answer an
// initial-state request within the configured window. Startup treats
// it as "host has nothing for us" and proceeds with local state.
var ErrPullTimeout = errors.New("bridge: initial save data request timed out")

// Syncer is the slice of the reconciliation engine the bridge drives:
// re-importing flat state after a host overwrite, and re-evaluating
// the outbound payload on the remote-push ticker.
type Syncer interface {
	ImportFromFlat(ctx context.Context) (int, error)
	NotifyRemote(ctx context.Context)
}

// Config holds the parameters for creating a Bridge.
type Config struct {
	// Channel carries messages to and from the hosting context. Nil
	// puts the bridge in standalone mode: every operation becomes a
	// no-op and the rest of the process runs purely locally.
	Channel Channel

	// Flat is the string-only store the host reads and overwrites.
	// Required.
	Flat flatstore.Store

	// InitialPullTimeout bounds PullInitialSaveData's wait for the
	// host's response. Defaults to 5 seconds.
	InitialPullTimeout time.Duration

	// RemoteInterval is the period of the remote-push ticker, which
	// asks the Syncer to re-evaluate the outbound payload. Zero
	// disables the ticker; pushes then happen only when the engine's
	// own export cycle triggers them.
	RemoteInterval time.Duration

	// ReadyDelay postpones the readiness announcement after Start,
	// giving the host's listener time to attach. Zero announces
	// immediately.
	ReadyDelay time.Duration

	// Snapshot renders the current application state for a
	// host-initiated snapshot request. Nil makes the bridge answer
	// such requests with a failure response.
	Snapshot func(ctx context.Context) (string, error)

	// Reload is invoked after a host-initiated full overwrite has
	// been applied and imported, so the application can re-read its
	// state. Optional.
	Reload func(ctx context.Context)

	// Clock supplies timers for timeouts and the remote-push ticker.
	// Defaults to the real clock.
	Clock clock.Clock

	// Logger receives structured log output. Defaults to a discard
	// logger.
	Logger *slog.Logger
}

// pendingKey correlates a response to its in-flight request. Both the
// type and the id must match; a response of the wrong type with a
// known id is dropped rather than delivered.
type pendingKey struct {
	messageType string
	messageID   string
}

// Bridge speaks the envelope protocol with a hosting context: it
// correlates its own requests with responses by messageId, answers
// host-initiated requests against the flat store, and announces
// readiness after attach. With a nil channel it is inert.
type Bridge struct {
	channel     Channel
	flat        flatstore.Store
	pullTimeout time.Duration
	remoteEvery time.Duration
	readyDelay  time.Duration
	snapshot    func(ctx context.Context) (string, error)
	reload      func(ctx context.Context)
	clock       clock.Clock
	logger      *slog.Logger

	mu      sync.Mutex
	pending map[pendingKey]chan Envelope
	syncer  Syncer

	cancel     context.CancelFunc
	done       chan struct{}
	readyTimer *clock.Timer
}

// New validates the configuration and creates a Bridge. Start must be
// called before the bridge exchanges any messages.
func New(cfg Config) (*Bridge, error) {
	if cfg.Flat == nil {
		return nil, fmt.Errorf("bridge: Flat is required")
	}
	pullTimeout := cfg.InitialPullTimeout
	if pullTimeout <= 0 {
		pullTimeout = 5 * time.Second
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Bridge{
		channel:     cfg.Channel,
		flat:        cfg.Flat,
		pullTimeout: pullTimeout,
		remoteEvery: cfg.RemoteInterval,
		readyDelay:  cfg.ReadyDelay,
		snapshot:    cfg.Snapshot,
		reload:      cfg.Reload,
		clock:       clk,
		logger:      logger,
		pending:     make(map[pendingKey]chan Envelope),
	}, nil
}

// Standalone reports whether the bridge has no channel to a hosting
// context.
func (b *Bridge) Standalone() bool { return b.channel == nil }

// SetSyncer attaches the reconciliation engine. The engine and the
// bridge reference each other, so one side is wired after
// construction.
func (b *Bridge) SetSyncer(s Syncer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.syncer = s
}

func (b *Bridge) currentSyncer() Syncer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.syncer
}

// Start launches the dispatch loop, schedules the readiness
// announcement, and starts the remote-push ticker if one is
// configured. In standalone mode it does nothing.
func (b *Bridge) Start(ctx context.Context) {
	if b.Standalone() {
		b.logger.Info("no host channel, running standalone")
		return
	}

	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		b.dispatchLoop(ctx)
	}()

	b.readyTimer = b.clock.AfterFunc(b.readyDelay, func() {
		if err := b.send(ctx, Envelope{Type: TypeReady, Success: true}); err != nil {
			b.logger.Error("readiness announcement failed", "error", err)
		}
	})

	if b.remoteEvery > 0 {
		go b.remotePushLoop(ctx)
	}

	b.logger.Info("bridge started",
		"remote_interval", b.remoteEvery,
		"ready_delay", b.readyDelay,
	)
}

// Stop tears the bridge down: the dispatch loop exits, the channel is
// closed, and any in-flight requests fail with their context error.
func (b *Bridge) Stop() {
	if b.Standalone() {
		return
	}
	if b.readyTimer != nil {
		b.readyTimer.Stop()
	}
	if b.cancel != nil {
		b.cancel()
	}
	if b.channel != nil {
		b.channel.Close()
	}
	if b.done != nil {
		<-b.done
	}
}

// PullInitialSaveData asks the hosting context for its current flat
// state and, when it answers in time, overwrites the flat store with
// the delivered entries and re-imports them through the Syncer. A
// host that stays silent past the timeout is treated as having no
// state: the call returns (0, nil) and local state stands. In
// standalone mode it returns immediately.
func (b *Bridge) PullInitialSaveData(ctx context.Context) (int, error) {
	if b.Standalone() {
		return 0, nil
	}

	response, err := b.request(ctx, TypeGetInitialSaveData, TypeInitialSaveDataResponse, nil)
	if errors.Is(err, ErrPullTimeout) {
		b.logger.Warn("initial save data request timed out, proceeding with local state")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(response.Data) == 0 {
		b.logger.Info("host reports no initial save data")
		return 0, nil
	}

	return b.applyHostState(ctx, response.Data)
}

// SaveDataChanged pushes the full flat payload to the hosting
// context. It is the engine's Notifier: the engine has already
// deduplicated, so every call here goes to the wire. In standalone
// mode it is a no-op.
func (b *Bridge) SaveDataChanged(ctx context.Context, data map[string]string) error {
	if b.Standalone() {
		return nil
	}
	return b.send(ctx, Envelope{Type: TypeSaveDataChanged, Data: data})
}

// request sends an envelope with a fresh messageId and blocks until
// the matching response arrives, the timeout passes, or the context
// is cancelled. Responses arriving after the timeout are dropped.
func (b *Bridge) request(ctx context.Context, requestType, responseType string, data map[string]string) (Envelope, error) {
	messageID := uuid.NewString()
	key := pendingKey{messageType: responseType, messageID: messageID}
	responses := make(chan Envelope, 1)

	b.mu.Lock()
	b.pending[key] = responses
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, key)
		b.mu.Unlock()
	}()

	envelope := Envelope{Type: requestType, MessageID: messageID, Data: data}
	if err := b.send(ctx, envelope); err != nil {
		return Envelope{}, err
	}

	select {
	case response := <-responses:
		return response, nil
	case <-b.clock.After(b.pullTimeout):
		return Envelope{}, ErrPullTimeout
	case <-ctx.Done():
		return Envelope{}, fmt.Errorf("bridge: awaiting %s: %w", responseType, ctx.Err())
	}
}

func (b *Bridge) send(ctx context.Context, envelope Envelope) error {
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("bridge: encoding %s: %w", envelope.Type, err)
	}
	if err := b.channel.Send(ctx, encoded); err != nil {
		return fmt.Errorf("bridge: sending %s: %w", envelope.Type, err)
	}
	return nil
}

// dispatchLoop routes every inbound envelope: responses to their
// waiting request, host-initiated requests to their handler.
func (b *Bridge) dispatchLoop(ctx context.Context) {
	for {
		select {
		case raw, ok := <-b.channel.Receive():
			if !ok {
				b.logger.Info("host channel closed")
				return
			}
			var envelope Envelope
			if err := json.Unmarshal(raw, &envelope); err != nil {
				b.logger.Error("undecodable message from host", "error", err)
				continue
			}
			b.dispatch(ctx, envelope)
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bridge) dispatch(ctx context.Context, envelope Envelope) {
	if envelope.MessageID != "" {
		key := pendingKey{messageType: envelope.Type, messageID: envelope.MessageID}
		b.mu.Lock()
		responses, waiting := b.pending[key]
		b.mu.Unlock()
		if waiting {
			select {
			case responses <- envelope:
			default:
				// Duplicate response; first one won.
			}
			return
		}
	}

	switch envelope.Type {
	case TypeGetAllLocalStorageData:
		b.handleGetAll(ctx, envelope)
	case TypeSetAllLocalStorageData:
		b.handleSetAll(ctx, envelope)
	case TypeRequestSnapshot:
		b.handleSnapshot(ctx, envelope)
	default:
		b.logger.Debug("ignoring message from host",
			"type", envelope.Type,
			"message_id", envelope.MessageID,
		)
	}
}

// handleGetAll answers a host-initiated pull with the full flat
// state, verbatim.
func (b *Bridge) handleGetAll(ctx context.Context, request Envelope) {
	response := Envelope{
		Type:      TypeSaveDataResponse,
		MessageID: request.MessageID,
	}
	data, err := b.flat.All()
	if err != nil {
		b.logger.Error("flat store enumeration for host failed", "error", err)
		response.Error = err.Error()
	} else {
		response.Success = true
		response.Data = data
	}
	if err := b.send(ctx, response); err != nil {
		b.logger.Error("save data response failed", "error", err)
	}
}

// handleSetAll applies a host-initiated full overwrite: the flat
// store is cleared, the delivered entries written verbatim, and the
// structured store rebuilt from them before the acknowledgement goes
// out.
func (b *Bridge) handleSetAll(ctx context.Context, request Envelope) {
	response := Envelope{
		Type:      TypeLoadDataResponse,
		MessageID: request.MessageID,
	}

	imported, err := b.applyHostState(ctx, request.Data)
	if err != nil {
		b.logger.Error("host overwrite failed", "error", err)
		response.Error = err.Error()
	} else {
		response.Success = true
		b.logger.Info("host overwrite applied",
			"entries", len(request.Data),
			"imported", imported,
		)
	}

	if err := b.send(ctx, response); err != nil {
		b.logger.Error("load data response failed", "error", err)
	}

	if response.Success && b.reload != nil {
		b.reload(ctx)
	}
}

// handleSnapshot answers a host-initiated snapshot request with the
// rendering produced by the configured Snapshot callback.
func (b *Bridge) handleSnapshot(ctx context.Context, request Envelope) {
	response := Envelope{
		Type:      TypeSnapshotResponse,
		MessageID: request.MessageID,
	}
	if b.snapshot == nil {
		response.Error = "snapshot not supported"
	} else if image, err := b.snapshot(ctx); err != nil {
		b.logger.Error("snapshot failed", "error", err)
		response.Error = err.Error()
	} else {
		response.Success = true
		response.Image = image
	}
	if err := b.send(ctx, response); err != nil {
		b.logger.Error("snapshot response failed", "error", err)
	}
}

// applyHostState replaces the flat store's contents with the host's
// entries, written verbatim, and re-imports the structured store from
// them. It returns the number of entries the import wrote.
func (b *Bridge) applyHostState(ctx context.Context, data map[string]string) (int, error) {
	if err := b.flat.Clear(); err != nil {
		return 0, fmt.Errorf("bridge: clearing flat store: %w", err)
	}
	for key, value := range data {
		if err := b.flat.Set(key, value); err != nil {
			return 0, fmt.Errorf("bridge: writing %q: %w", key, err)
		}
	}

	syncer := b.currentSyncer()
	if syncer == nil {
		return 0, nil
	}
	imported, err := syncer.ImportFromFlat(ctx)
	if err != nil {
		return imported, fmt.Errorf("bridge: importing host state: %w", err)
	}
	return imported, nil
}

// remotePushLoop periodically asks the Syncer to re-evaluate the
// outbound payload, so changes made outside an export cycle still
// reach the host.
func (b *Bridge) remotePushLoop(ctx context.Context) {
	ticker := b.clock.NewTicker(b.remoteEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if syncer := b.currentSyncer(); syncer != nil {
				syncer.NotifyRemote(ctx)
			}
		case <-ctx.Done():
			return
		}
	}
}
