package usecases

import (
	"context"
	"log/slog"
	"sync"

	"arbiflow/internal/application/ports"
	"arbiflow/internal/domain/models"
)

// MirrorWriter forwards tick snapshots to the external mirror without ever
// blocking the ingestion goroutine: the callback enqueues and returns, a
// dedicated worker does the network write. A full queue drops ticks; the
// mirror only ever needs the latest value anyway.
type MirrorWriter struct {
	mirror ports.TickMirror
	logger *slog.Logger
	ch     chan models.TickSnapshot
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewMirrorWriter creates a mirror writer with the given queue depth
func NewMirrorWriter(mirror ports.TickMirror, queueSize int, logger *slog.Logger) *MirrorWriter {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &MirrorWriter{
		mirror: mirror,
		logger: logger,
		ch:     make(chan models.TickSnapshot, queueSize),
	}
}

// Start launches the writer worker
func (w *MirrorWriter) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case tick := <-w.ch:
				if err := w.mirror.SetLatestTick(runCtx, tick); err != nil {
					w.logger.Warn("Mirror write failed", "exchange", tick.Exchange, "symbol", tick.Symbol, "error", err)
				}
			}
		}
	}()
}

// Stop stops the writer worker
func (w *MirrorWriter) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// Callback returns the ticker callback to register with the manager
func (w *MirrorWriter) Callback() ports.TickerCallback {
	return func(tick models.TickSnapshot) {
		select {
		case w.ch <- tick:
		default:
			// Queue full: the next tick for this key supersedes this one.
		}
	}
}

// JournalWriter forwards order updates to the order journal off the
// ingestion goroutine, same hand-off discipline as MirrorWriter.
type JournalWriter struct {
	journal ports.OrderJournal
	logger  *slog.Logger
	ch      chan models.OrderRecord
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewJournalWriter creates a journal writer with the given queue depth
func NewJournalWriter(journal ports.OrderJournal, queueSize int, logger *slog.Logger) *JournalWriter {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &JournalWriter{
		journal: journal,
		logger:  logger,
		ch:      make(chan models.OrderRecord, queueSize),
	}
}

// Start launches the writer worker
func (w *JournalWriter) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case order := <-w.ch:
				if err := w.journal.AppendOrderUpdate(runCtx, order); err != nil {
					w.logger.Error("Journal write failed", "exchange", order.Exchange, "order_id", order.OrderID, "error", err)
				}
			}
		}
	}()
}

// Stop stops the writer worker
func (w *JournalWriter) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// Callback returns the order callback to register with the manager
func (w *JournalWriter) Callback() ports.OrderCallback {
	return func(order models.OrderRecord) {
		select {
		case w.ch <- order:
		default:
			w.logger.Warn("Journal queue full, order update dropped", "exchange", order.Exchange, "order_id", order.OrderID)
		}
	}
}
