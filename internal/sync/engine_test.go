// Tests for the reconciliation pass: outcomes, idempotent retry,
// batching, and trigger coalescing.
package sync

import (
	"context"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/aegis/internal/store"
	"github.com/mesh-intelligence/aegis/pkg/logger"
	"github.com/mesh-intelligence/aegis/pkg/types"
)

// fakeAuthority records submitted batches and fails on demand. When
// gate is non-nil, Submit blocks until the gate closes.
type fakeAuthority struct {
	mu      stdsync.Mutex
	batches [][]types.IncidentReport
	failAt  int // 1-based batch index to fail on; 0 never fails
	gate    chan struct{}
}

func (f *fakeAuthority) Submit(ctx context.Context, reports []types.IncidentReport) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, reports)
	if f.failAt > 0 && len(f.batches) == f.failAt {
		return &types.NetworkError{Op: "submit batch", Err: context.DeadlineExceeded}
	}
	return nil
}

func (f *fakeAuthority) submitted() [][]types.IncidentReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]types.IncidentReport, len(f.batches))
	copy(out, f.batches)
	return out
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New()
	require.NoError(t, s.Open(types.Config{DataDir: t.TempDir()}.WithDefaults()))
	t.Cleanup(func() { s.Close() })
	return s
}

func login(t *testing.T, s *store.Store) {
	t.Helper()
	require.NoError(t, s.PutSession(types.Session{ResponderName: "field-1", LoginTimestamp: time.Now().UnixMilli()}))
}

func addPending(t *testing.T, s *store.Store, n int) []int64 {
	t.Helper()
	ids := make([]int64, n)
	for i := range ids {
		id, err := s.CreateReport(types.ReportInput{
			IncidentType: types.IncidentFlood,
			Severity:     1,
			Latitude:     6.70,
			Longitude:    80.38,
		})
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

func newEngine(s *store.Store, a types.Authority, batchLimit int) *Engine {
	return NewEngine(Config{
		Store:      s,
		Authority:  a,
		Logger:     logger.Discard(),
		Timeout:    time.Second,
		BatchLimit: batchLimit,
	})
}

func TestSync_SkippedWithoutSession(t *testing.T) {
	s := newTestStore(t)
	addPending(t, s, 1)
	auth := &fakeAuthority{}
	e := newEngine(s, auth, 0)

	outcome, err := e.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.SyncSkipped, outcome)

	// No network call, no state change.
	assert.Empty(t, auth.submitted())
	n, err := s.PendingCount()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSync_UpToDateWhenNothingPending(t *testing.T) {
	s := newTestStore(t)
	login(t, s)
	auth := &fakeAuthority{}
	e := newEngine(s, auth, 0)

	outcome, err := e.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.SyncUpToDate, outcome)
	assert.Empty(t, auth.submitted())
}

func TestSync_MarksAcceptedReports(t *testing.T) {
	s := newTestStore(t)
	login(t, s)
	ids := addPending(t, s, 3)
	auth := &fakeAuthority{}
	e := newEngine(s, auth, 0)

	outcome, err := e.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.SyncSynced, outcome)

	// Whole set in one batch, creation order preserved.
	batches := auth.submitted()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 3)
	for i, r := range batches[0] {
		assert.Equal(t, ids[i], r.ID)
	}

	n, err := s.PendingCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSync_FailureLeavesPendingUntouched(t *testing.T) {
	s := newTestStore(t)
	login(t, s)
	addPending(t, s, 2)
	auth := &fakeAuthority{failAt: 1}
	e := newEngine(s, auth, 0)

	outcome, err := e.Sync(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsNetwork(err))
	assert.Equal(t, types.SyncFailed, outcome)

	n, err := s.PendingCount()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n, "failed pass must not change local state")

	// Retry on the next trigger succeeds.
	auth.failAt = 0
	outcome, err = e.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.SyncSynced, outcome)
}

func TestSync_DoubleSyncIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	login(t, s)
	addPending(t, s, 2)
	auth := &fakeAuthority{}
	e := newEngine(s, auth, 0)

	first, err := e.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.SyncSynced, first)

	second, err := e.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.SyncUpToDate, second)

	// Same final synced set as a single pass.
	reports, err := s.ListReports(store.Filter{})
	require.NoError(t, err)
	for _, r := range reports {
		assert.True(t, r.Synced)
	}
	require.Len(t, auth.submitted(), 1, "nothing re-transmitted")
}

func TestSync_BatchLimitPreservesOrder(t *testing.T) {
	s := newTestStore(t)
	login(t, s)
	ids := addPending(t, s, 5)
	auth := &fakeAuthority{}
	e := newEngine(s, auth, 2)

	outcome, err := e.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.SyncSynced, outcome)

	batches := auth.submitted()
	require.Len(t, batches, 3)
	var got []int64
	for _, b := range batches {
		assert.LessOrEqual(t, len(b), 2)
		for _, r := range b {
			got = append(got, r.ID)
		}
	}
	assert.Equal(t, ids, got)
}

func TestSync_ChunkFailureKeepsLaterChunksPending(t *testing.T) {
	s := newTestStore(t)
	login(t, s)
	addPending(t, s, 4)
	auth := &fakeAuthority{failAt: 2}
	e := newEngine(s, auth, 2)

	outcome, err := e.Sync(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.SyncFailed, outcome)

	// First accepted chunk is marked; the rejected one stays pending.
	n, err := s.PendingCount()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestTrigger_CoalescesConcurrentTriggers(t *testing.T) {
	s := newTestStore(t)
	login(t, s)
	addPending(t, s, 1)

	gate := make(chan struct{})
	auth := &fakeAuthority{gate: gate}
	e := newEngine(s, auth, 0)

	e.Trigger()
	// While the first pass is blocked in Submit, further triggers must
	// coalesce into at most one queued rerun.
	e.Trigger()
	e.Trigger()
	e.Trigger()
	close(gate)

	require.Eventually(t, func() bool {
		e.stateMu.Lock()
		defer e.stateMu.Unlock()
		return !e.running
	}, 5*time.Second, 10*time.Millisecond)

	// One blocked pass plus at most one rerun; the rerun finds
	// nothing pending and makes no network call.
	assert.LessOrEqual(t, len(auth.submitted()), 2)
	assert.Equal(t, types.SyncUpToDate, e.Status())

	n, err := s.PendingCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}
