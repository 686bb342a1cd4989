// Package store implements the durable local record store over SQLite.
// The database file is the source of truth: every report survives
// process restarts, and a create either fully succeeds and is visible
// or fails and is invisible.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/aegis/pkg/types"
)

// DBFileName is the SQLite database file inside Config.DataDir.
const DBFileName = "aegis.db"

// Observer receives a fresh default-ordered query result after each
// store mutation. Observers run outside the store lock and must not
// be relied on for ordering between concurrent mutations.
type Observer func(reports []types.IncidentReport)

// Store is the durable record store. All mutations are single atomic
// transactions serialized under the store lock; reads issued after a
// committed write observe that write.
type Store struct {
	mu     sync.RWMutex
	open   bool
	config types.Config
	db     *sql.DB

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObsID int
}

// New creates an unopened Store; call Open with a Config to initialize.
func New() *Store {
	return &Store{observers: make(map[int]Observer)}
}

// Open initializes the store with the given configuration. Creates
// DataDir if missing and applies the schema. An existing database is
// preserved. Returns ErrAlreadyOpen if already open.
func (s *Store) Open(config types.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return types.ErrAlreadyOpen
	}

	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return &types.StorageError{Op: "create data directory", Err: err}
	}

	db, err := sql.Open("sqlite", filepath.Join(config.DataDir, DBFileName))
	if err != nil {
		return &types.StorageError{Op: "open database", Err: err}
	}

	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return &types.StorageError{Op: "apply schema", Err: err}
		}
	}

	s.db = db
	s.config = config
	s.open = true
	return nil
}

// Close releases the database connection. After Close, all operations
// return ErrStoreClosed. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return &types.StorageError{Op: "close database", Err: err}
		}
		s.db = nil
	}
	s.open = false
	return nil
}

// Subscribe registers an observer for live query results. The returned
// function unsubscribes it. Observers are invoked synchronously after
// each mutation commits, outside the store lock.
func (s *Store) Subscribe(obs Observer) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = obs

	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

// notifyObservers runs the default query and fans the result out to
// all registered observers. Errors during the refresh query are
// swallowed; the next mutation retries.
func (s *Store) notifyObservers() {
	s.obsMu.Lock()
	if len(s.observers) == 0 {
		s.obsMu.Unlock()
		return
	}
	targets := make([]Observer, 0, len(s.observers))
	for _, obs := range s.observers {
		targets = append(targets, obs)
	}
	s.obsMu.Unlock()

	reports, err := s.ListReports(Filter{})
	if err != nil {
		return
	}
	for _, obs := range targets {
		obs(reports)
	}
}
