package store

// Schema DDL. AUTOINCREMENT keeps report ids strictly increasing and
// never reused, even across deletion.
const (
	createReports = `CREATE TABLE IF NOT EXISTS reports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    incident_type TEXT NOT NULL,
    severity INTEGER NOT NULL,
    severity_label TEXT NOT NULL,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    timestamp INTEGER NOT NULL,
    photo TEXT,
    synced INTEGER NOT NULL DEFAULT 0
);`

	createSession = `CREATE TABLE IF NOT EXISTS session (
    id TEXT PRIMARY KEY CHECK (id = 'current'),
    responder_name TEXT NOT NULL,
    login_timestamp INTEGER NOT NULL
);`
)

// Index DDL for the pending-set and default-order queries.
const (
	idxReportsSynced    = `CREATE INDEX IF NOT EXISTS idx_reports_synced ON reports(synced);`
	idxReportsTimestamp = `CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON reports(timestamp);`
)

// schemaDDL lists all CREATE statements in execution order.
var schemaDDL = []string{
	createReports,
	createSession,
	idxReportsSynced,
	idxReportsTimestamp,
}
