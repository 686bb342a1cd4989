package store

import (
	"database/sql"
	"errors"

	"github.com/mesh-intelligence/aegis/pkg/types"
)

// PutSession upserts the singleton session row, replacing any existing
// session. Returns ErrEmptyResponder if the name is blank.
func (s *Store) PutSession(session types.Session) error {
	if session.ResponderName == "" {
		return types.ErrEmptyResponder
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return types.ErrStoreClosed
	}

	_, err := s.db.Exec(
		`INSERT INTO session (id, responder_name, login_timestamp) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET responder_name = excluded.responder_name,
		                               login_timestamp = excluded.login_timestamp`,
		types.SessionKey, session.ResponderName, session.LoginTimestamp,
	)
	if err != nil {
		return &types.StorageError{Op: "put session", Err: err}
	}
	return nil
}

// GetSession returns the current session, or ErrNoSession if the
// device is unauthenticated.
func (s *Store) GetSession() (types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.open {
		return types.Session{}, types.ErrStoreClosed
	}

	var session types.Session
	err := s.db.QueryRow(
		"SELECT responder_name, login_timestamp FROM session WHERE id = ?",
		types.SessionKey,
	).Scan(&session.ResponderName, &session.LoginTimestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Session{}, types.ErrNoSession
	}
	if err != nil {
		return types.Session{}, &types.StorageError{Op: "get session", Err: err}
	}
	return session, nil
}

// ClearSession deletes the session row. Idempotent: clearing an absent
// session succeeds.
func (s *Store) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return types.ErrStoreClosed
	}

	if _, err := s.db.Exec("DELETE FROM session WHERE id = ?", types.SessionKey); err != nil {
		return &types.StorageError{Op: "clear session", Err: err}
	}
	return nil
}

// HasSession reports whether a session row exists.
func (s *Store) HasSession() (bool, error) {
	_, err := s.GetSession()
	if errors.Is(err, types.ErrNoSession) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
