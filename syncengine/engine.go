// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/statebridge-dev/statebridge/codec"
	"github.com/statebridge-dev/statebridge/flatstore"
	"github.com/statebridge-dev/statebridge/lib/clock"
	"github.com/statebridge-dev/statebridge/store"
)

// TimestampSuffix marks a flat-store key as companion metadata: the
// entry `<namespace><key>::ts` carries the timestamp of the data
// entry `<namespace><key>`. Companion keys are never data and are
// excluded from enumeration, import, and the remote payload.
const TimestampSuffix = "::ts"

// Notifier receives the remote-change notification when the exported
// flat payload differs from the last one actually delivered. The
// bridge implements it; standalone runs leave it nil.
type Notifier interface {
	SaveDataChanged(ctx context.Context, data map[string]string) error
}

// Config holds the parameters for creating an Engine.
type Config struct {
	// Store is the structured entry store. Required.
	Store *store.Store

	// Flat is the string-only store shared with the hosting context.
	// Required.
	Flat flatstore.Store

	// Notifier receives deduplicated remote-change notifications.
	// Nil disables remote notification entirely.
	Notifier Notifier

	// Namespace prefixes every flat-store key the engine derives
	// from a store entry. Defaults to "save:".
	Namespace string

	// StoreInterval is the period of the export cycle. Defaults to
	// 10 seconds.
	StoreInterval time.Duration

	// MaxEncodedBytes caps the encoded size of a single entry; an
	// entry over the cap is skipped, not exported. Zero means no cap.
	MaxEncodedBytes int

	// Clock drives the periodic cycle. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives cycle and per-entry skip messages. Nil
	// disables logging.
	Logger *slog.Logger
}

// Engine reconciles the entry store and the flat store in both
// directions and decides when the remote peer needs to hear about it.
//
// The engine never originates keys: every flat entry it writes is
// derived from a store entry and vice versa. It holds no store-wide
// lock — overlapping cycles are tolerated because every underlying
// write is an idempotent per-key upsert, giving last-write-wins at
// per-key granularity.
type Engine struct {
	store         *store.Store
	flat          flatstore.Store
	notifier      Notifier
	namespace     string
	storeInterval time.Duration
	encoder       codec.Encoder
	clock         clock.Clock
	logger        *slog.Logger

	// mu guards the notification dedup state. The export ticker and
	// the bridge's remote-push ticker both end up in notifyIfChanged
	// and may overlap.
	mu         sync.Mutex
	lastDigest [32]byte
	notified   bool
}

// New validates cfg and creates an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("syncengine: Store is required")
	}
	if cfg.Flat == nil {
		return nil, fmt.Errorf("syncengine: Flat is required")
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "save:"
	}
	interval := cfg.StoreInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		store:         cfg.Store,
		flat:          cfg.Flat,
		notifier:      cfg.Notifier,
		namespace:     namespace,
		storeInterval: interval,
		encoder:       codec.Encoder{MaxEncodedBytes: cfg.MaxEncodedBytes},
		clock:         clk,
		logger:        logger,
	}, nil
}

// ExportToFlat reads every store entry, encodes it, and writes it to
// the flat store under the namespaced key, with a companion timestamp
// entry for every key the store supplied a timestamp for. Per-entry
// encode failures and size-guard rejections are counted and skipped;
// they never abort the batch. Returns the number of entries written.
//
// When anything was written, the full flat payload (companion entries
// excluded) is hashed and compared against the digest of the last
// payload actually sent; the remote notification fires only on a
// difference. All flat writes complete before that evaluation.
func (e *Engine) ExportToFlat(ctx context.Context) (int, error) {
	values, timestamps, err := e.store.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("syncengine: export: %w", err)
	}

	written := 0
	skipped := 0
	for key, value := range values {
		encoded, err := e.encoder.Encode(ctx, value)
		if err != nil {
			skipped++
			if errors.Is(err, codec.ErrPayloadTooLarge) {
				e.logger.Warn("entry exceeds size limit, skipping", "key", key, "error", err)
			} else {
				e.logger.Error("encoding entry failed, skipping", "key", key, "error", err)
			}
			continue
		}
		if err := e.flat.Set(e.namespace+key, encoded); err != nil {
			skipped++
			e.logger.Error("writing flat entry failed, skipping", "key", key, "error", err)
			continue
		}
		written++

		timestamp, ok := timestamps[key]
		if !ok {
			continue
		}
		companionKey := e.namespace + key + TimestampSuffix
		if err := e.flat.Set(companionKey, strconv.FormatInt(timestamp, 10)); err != nil {
			e.logger.Error("writing companion timestamp failed", "key", key, "error", err)
		}
	}

	e.logger.Debug("export cycle complete", "written", written, "skipped", skipped)

	if written > 0 {
		e.notifyIfChanged(ctx)
	}
	return written, nil
}

// ImportFromFlat enumerates the namespaced flat entries (companion
// metadata excluded), decodes each, and upserts it into the store.
// Per-entry failures are logged and skipped; the batch continues.
// Returns the number of entries imported.
func (e *Engine) ImportFromFlat(ctx context.Context) (int, error) {
	all, err := e.flat.All()
	if err != nil {
		return 0, fmt.Errorf("syncengine: import: %w", err)
	}

	imported := 0
	for key, encoded := range all {
		if !strings.HasPrefix(key, e.namespace) || strings.HasSuffix(key, TimestampSuffix) {
			continue
		}
		baseKey := strings.TrimPrefix(key, e.namespace)
		value := codec.Decode(encoded)
		if _, err := e.store.Put(ctx, baseKey, value); err != nil {
			e.logger.Error("importing entry failed, skipping", "key", baseKey, "error", err)
			continue
		}
		imported++
	}

	e.logger.Debug("import cycle complete", "imported", imported)
	e.reconcileTimestamps(ctx, all)
	return imported, nil
}

// reconcileTimestamps compares companion timestamp entries against
// the store's timestamp index. Observability only: a mismatch is
// logged, never acted on.
func (e *Engine) reconcileTimestamps(ctx context.Context, flat map[string]string) {
	_, timestamps, err := e.store.GetAll(ctx)
	if err != nil || timestamps == nil {
		return
	}
	for key, raw := range flat {
		if !strings.HasPrefix(key, e.namespace) || !strings.HasSuffix(key, TimestampSuffix) {
			continue
		}
		baseKey := strings.TrimSuffix(strings.TrimPrefix(key, e.namespace), TimestampSuffix)
		companion, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			e.logger.Warn("unparseable companion timestamp", "key", baseKey, "value", raw)
			continue
		}
		if indexed, ok := timestamps[baseKey]; ok && indexed != companion {
			e.logger.Warn("timestamp mismatch between index and companion entry",
				"key", baseKey,
				"indexed", indexed,
				"companion", companion,
			)
		}
	}
}

// NotifyRemote re-evaluates the current flat payload against the
// last-sent digest and pushes it when it differs. The bridge's
// remote-push ticker calls this; ExportToFlat reaches the same path
// after a non-empty cycle.
func (e *Engine) NotifyRemote(ctx context.Context) {
	e.notifyIfChanged(ctx)
}

// notifyIfChanged is the content-addressed dedup guard: the payload
// digest is compared against the digest of the last payload actually
// delivered, and the notifier fires only on a difference. A failed
// send leaves the recorded digest untouched so the next cycle
// retries.
func (e *Engine) notifyIfChanged(ctx context.Context) {
	if e.notifier == nil {
		return
	}
	payload, err := e.remotePayload()
	if err != nil {
		e.logger.Error("building remote payload failed", "error", err)
		return
	}
	digest := digestPayload(payload)

	e.mu.Lock()
	unchanged := e.notified && digest == e.lastDigest
	e.mu.Unlock()
	if unchanged {
		return
	}

	if err := e.notifier.SaveDataChanged(ctx, payload); err != nil {
		e.logger.Error("remote change notification failed", "error", err)
		return
	}

	e.mu.Lock()
	e.lastDigest = digest
	e.notified = true
	e.mu.Unlock()
	e.logger.Debug("remote change notification sent", "entries", len(payload))
}

// remotePayload snapshots the flat store minus companion metadata.
func (e *Engine) remotePayload() (map[string]string, error) {
	all, err := e.flat.All()
	if err != nil {
		return nil, err
	}
	payload := make(map[string]string, len(all))
	for key, value := range all {
		if strings.HasSuffix(key, TimestampSuffix) {
			continue
		}
		payload[key] = value
	}
	return payload, nil
}

// digestPayload hashes a payload with BLAKE3 over a canonical
// length-prefixed, key-sorted serialization, so map iteration order
// cannot produce spurious "changes".
func digestPayload(payload map[string]string) [32]byte {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	hasher := blake3.New()
	var length [4]byte
	for _, key := range keys {
		binary.LittleEndian.PutUint32(length[:], uint32(len(key)))
		hasher.Write(length[:])
		hasher.Write([]byte(key))
		value := payload[key]
		binary.LittleEndian.PutUint32(length[:], uint32(len(value)))
		hasher.Write(length[:])
		hasher.Write([]byte(value))
	}

	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// Run drives the periodic reconciliation. On startup it runs one
// import-then-export pass to absorb any drift that accumulated while
// the engine was down, then re-runs the export at the configured
// interval until ctx is cancelled. A failed cycle is logged and does
// not cancel the timer.
func (e *Engine) Run(ctx context.Context) error {
	if _, err := e.ImportFromFlat(ctx); err != nil {
		e.logger.Error("startup import failed", "error", err)
	}
	if _, err := e.ExportToFlat(ctx); err != nil {
		e.logger.Error("startup export failed", "error", err)
	}

	ticker := e.clock.NewTicker(e.storeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := e.ExportToFlat(ctx); err != nil {
				e.logger.Error("export cycle failed", "error", err)
			}
		}
	}
}
