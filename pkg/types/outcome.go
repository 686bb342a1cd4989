package types

// SyncOutcome is the result of one reconciliation pass.
type SyncOutcome string

const (
	// SyncSkipped: no active session; nothing was read or transmitted.
	SyncSkipped SyncOutcome = "skipped"

	// SyncUpToDate: the pending set was empty.
	SyncUpToDate SyncOutcome = "up_to_date"

	// SyncSynced: the whole pending set was accepted and marked.
	SyncSynced SyncOutcome = "synced"

	// SyncFailed: transmission failed; no local state changed and the
	// pending set will be retried on the next trigger.
	SyncFailed SyncOutcome = "failed"
)
