// Package sync implements the reconciliation pass between the local
// record store and the remote authority.
package sync

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/aegis/internal/store"
	"github.com/mesh-intelligence/aegis/pkg/types"
)

// Engine runs sync passes. A pass is non-reentrant: triggers arriving
// while one is in flight coalesce into at most one queued rerun, never
// a parallel pass.
type Engine struct {
	store     *store.Store
	authority types.Authority
	log       *logrus.Logger

	timeout    time.Duration
	batchLimit int // reports per authority request; 0 = whole set

	runMu   stdsync.Mutex // held for the duration of a pass
	stateMu stdsync.Mutex // guards running and queued
	running bool
	queued  bool

	statusMu stdsync.Mutex
	status   types.SyncOutcome
}

// Config holds the options for NewEngine.
type Config struct {
	Store      *store.Store
	Authority  types.Authority
	Logger     *logrus.Logger
	Timeout    time.Duration // per-attempt bound; 0 uses the default
	BatchLimit int           // see types.Config.SyncBatchLimit
}

// NewEngine creates a sync engine.
func NewEngine(cfg Config) *Engine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = types.DefaultSyncTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
	}
	return &Engine{
		store:      cfg.Store,
		authority:  cfg.Authority,
		log:        log,
		timeout:    timeout,
		batchLimit: cfg.BatchLimit,
	}
}

// Status returns the outcome of the most recent pass, or an empty
// outcome if none has run.
func (e *Engine) Status() types.SyncOutcome {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	return e.status
}

func (e *Engine) setStatus(o types.SyncOutcome) {
	e.statusMu.Lock()
	e.status = o
	e.statusMu.Unlock()
}

// Sync runs one reconciliation pass:
//
//  1. Without an active session the pass is Skipped.
//  2. Unsynchronized reports are read oldest first.
//  3. An empty selection is UpToDate.
//  4. The selection is transmitted to the authority as atomic batches.
//  5. On acceptance every transmitted id is marked synced. If the
//     process dies between acceptance and the mark, the next pass
//     re-transmits; the authority accepts duplicate ids without
//     creating duplicates, so the retry is safe.
//  6. Any transport failure yields Failed with no local change.
//
// Concurrent calls serialize; see Trigger for coalescing.
func (e *Engine) Sync(ctx context.Context) (types.SyncOutcome, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	outcome, err := e.pass(ctx)
	e.setStatus(outcome)
	return outcome, err
}

// Trigger requests a pass without waiting for it. A trigger during an
// in-flight pass queues exactly one rerun after the current pass
// completes; further triggers meanwhile are absorbed.
func (e *Engine) Trigger() {
	e.stateMu.Lock()
	if e.running {
		e.queued = true
		e.stateMu.Unlock()
		return
	}
	e.running = true
	e.stateMu.Unlock()

	go func() {
		for {
			if _, err := e.Sync(context.Background()); err != nil {
				e.log.WithError(err).Warn("sync pass failed")
			}

			e.stateMu.Lock()
			if !e.queued {
				e.running = false
				e.stateMu.Unlock()
				return
			}
			e.queued = false
			e.stateMu.Unlock()
		}
	}()
}

// pass executes the algorithm body. The caller holds runMu.
func (e *Engine) pass(ctx context.Context) (types.SyncOutcome, error) {
	has, err := e.store.HasSession()
	if err != nil {
		return types.SyncFailed, err
	}
	if !has {
		e.log.Debug("sync skipped: no active session")
		return types.SyncSkipped, nil
	}

	pending, err := e.store.PendingReports()
	if err != nil {
		return types.SyncFailed, err
	}
	if len(pending) == 0 {
		return types.SyncUpToDate, nil
	}

	log := e.log.WithFields(logrus.Fields{"component": "sync", "pending": len(pending)})
	log.Info("starting sync pass")

	for _, batch := range e.batches(pending) {
		if err := e.submit(ctx, batch); err != nil {
			log.WithError(err).Warn("batch rejected; pending set untouched")
			return types.SyncFailed, err
		}

		ids := make([]int64, len(batch))
		for i, r := range batch {
			ids[i] = r.ID
		}
		if _, err := e.store.MarkSynced(ids); err != nil {
			// The authority accepted the batch but the local mark
			// failed; the next pass re-transmits the same ids.
			log.WithError(err).Error("mark synced failed after acceptance")
			return types.SyncFailed, err
		}
	}

	log.Info("sync pass complete")
	return types.SyncSynced, nil
}

// submit transmits one batch within the per-attempt timeout.
func (e *Engine) submit(ctx context.Context, batch []types.IncidentReport) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.authority.Submit(ctx, batch)
}

// batches splits the selection preserving creation order. With no
// limit the whole set goes in one request.
func (e *Engine) batches(reports []types.IncidentReport) [][]types.IncidentReport {
	if e.batchLimit <= 0 || len(reports) <= e.batchLimit {
		return [][]types.IncidentReport{reports}
	}
	var out [][]types.IncidentReport
	for start := 0; start < len(reports); start += e.batchLimit {
		end := start + e.batchLimit
		if end > len(reports) {
			end = len(reports)
		}
		out = append(out, reports[start:end])
	}
	return out
}
