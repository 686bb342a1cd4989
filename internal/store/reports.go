package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/aegis/pkg/types"
)

// Order selects the sort key for ListReports.
type Order int

const (
	// OrderNewestFirst sorts by timestamp descending (the default).
	OrderNewestFirst Order = iota
	// OrderOldestFirst sorts by creation order, oldest first.
	OrderOldestFirst
)

// Filter narrows a ListReports query. The zero value matches all
// reports in default order.
type Filter struct {
	IncidentType string // empty matches all categories
	Synced       *bool  // nil matches both synced and pending
	Order        Order
}

// CreateReport validates the input, assigns the next id, the creation
// timestamp, and the derived severity label, and persists the report
// atomically with synced=false. Returns the assigned id.
// Registered observers are notified after the commit.
func (s *Store) CreateReport(input types.ReportInput) (int64, error) {
	if err := input.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return 0, types.ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		s.mu.Unlock()
		return 0, &types.StorageError{Op: "create report", Err: err}
	}

	res, err := tx.Exec(
		`INSERT INTO reports (incident_type, severity, severity_label, latitude, longitude, timestamp, photo, synced)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		input.IncidentType,
		input.Severity,
		types.SeverityLabel(input.Severity),
		input.Latitude,
		input.Longitude,
		time.Now().UnixMilli(),
		nullableText(input.Photo),
	)
	if err != nil {
		tx.Rollback()
		s.mu.Unlock()
		return 0, &types.StorageError{Op: "create report", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		s.mu.Unlock()
		return 0, &types.StorageError{Op: "create report", Err: err}
	}

	if err := tx.Commit(); err != nil {
		s.mu.Unlock()
		return 0, &types.StorageError{Op: "create report", Err: err}
	}
	s.mu.Unlock()

	s.notifyObservers()
	return id, nil
}

// ListReports returns a snapshot of reports matching the filter.
// Writers are not blocked while the snapshot is read.
func (s *Store) ListReports(f Filter) ([]types.IncidentReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.open {
		return nil, types.ErrStoreClosed
	}

	query := "SELECT id, incident_type, severity, severity_label, latitude, longitude, timestamp, photo, synced FROM reports"
	var conds []string
	var args []any

	if f.IncidentType != "" {
		conds = append(conds, "incident_type = ?")
		args = append(args, f.IncidentType)
	}
	if f.Synced != nil {
		conds = append(conds, "synced = ?")
		args = append(args, boolToInt(*f.Synced))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	switch f.Order {
	case OrderOldestFirst:
		query += " ORDER BY id ASC"
	default:
		query += " ORDER BY timestamp DESC, id DESC"
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &types.StorageError{Op: "list reports", Err: err}
	}
	defer rows.Close()

	return scanReports(rows)
}

// PendingReports returns all unsynchronized reports in creation order,
// oldest first. This is the selection the sync engine transmits.
func (s *Store) PendingReports() ([]types.IncidentReport, error) {
	pending := false
	return s.ListReports(Filter{Synced: &pending, Order: OrderOldestFirst})
}

// PendingCount returns the number of unsynchronized reports.
func (s *Store) PendingCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.open {
		return 0, types.ErrStoreClosed
	}

	var n int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM reports WHERE synced = 0").Scan(&n)
	if err != nil {
		return 0, &types.StorageError{Op: "count pending", Err: err}
	}
	return n, nil
}

// MarkSynced sets synced=true for exactly the given ids in one atomic
// transaction and returns the number of rows updated. Idempotent:
// already-synced or unknown ids are skipped without error. The flag is
// one-way; no operation resets it to false.
func (s *Store) MarkSynced(ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return 0, types.ErrStoreClosed
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	tx, err := s.db.Begin()
	if err != nil {
		s.mu.Unlock()
		return 0, &types.StorageError{Op: "mark synced", Err: err}
	}

	res, err := tx.Exec(
		fmt.Sprintf("UPDATE reports SET synced = 1 WHERE synced = 0 AND id IN (%s)", placeholders),
		args...,
	)
	if err != nil {
		tx.Rollback()
		s.mu.Unlock()
		return 0, &types.StorageError{Op: "mark synced", Err: err}
	}

	updated, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		s.mu.Unlock()
		return 0, &types.StorageError{Op: "mark synced", Err: err}
	}

	if err := tx.Commit(); err != nil {
		s.mu.Unlock()
		return 0, &types.StorageError{Op: "mark synced", Err: err}
	}
	s.mu.Unlock()

	s.notifyObservers()
	return updated, nil
}

// scanReports hydrates rows into IncidentReport values.
func scanReports(rows *sql.Rows) ([]types.IncidentReport, error) {
	reports := []types.IncidentReport{}
	for rows.Next() {
		var r types.IncidentReport
		var photo sql.NullString
		var synced int
		if err := rows.Scan(&r.ID, &r.IncidentType, &r.Severity, &r.SeverityLabel,
			&r.Latitude, &r.Longitude, &r.Timestamp, &photo, &synced); err != nil {
			return nil, &types.StorageError{Op: "scan report", Err: err}
		}
		r.Photo = photo.String
		r.Synced = synced != 0
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StorageError{Op: "scan reports", Err: err}
	}
	return reports, nil
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
