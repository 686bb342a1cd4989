// Shared helpers for integration tests.
package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/aegis/internal/store"
	"github.com/mesh-intelligence/aegis/pkg/types"
)

// newStore opens a record store over a fresh temp directory and
// returns both, closing the store on cleanup.
func newStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	s := store.New()
	require.NoError(t, s.Open(types.Config{DataDir: dir}.WithDefaults()))
	t.Cleanup(func() { s.Close() })
	return s, dir
}

// reopenStore simulates a process restart over an existing data
// directory.
func reopenStore(t *testing.T, dir string) *store.Store {
	t.Helper()
	s := store.New()
	require.NoError(t, s.Open(types.Config{DataDir: dir}.WithDefaults()))
	t.Cleanup(func() { s.Close() })
	return s
}

// loginAs creates the singleton session.
func loginAs(t *testing.T, s *store.Store, name string) {
	t.Helper()
	require.NoError(t, s.PutSession(types.Session{
		ResponderName:  name,
		LoginTimestamp: time.Now().UnixMilli(),
	}))
}
