package logging

import "time"

// #region decisions
// Trigger values.
const (
	TriggerAuto   = "auto"   // caller noticed a possible task change
	TriggerManual = "manual" // user asked for a fresh take
)

// Decision values, one per controller round.
const (
	DecisionEmpty    = "empty"    // no tasks, nothing to do
	DecisionSkip     = "skip"     // cached fingerprint matched
	DecisionCoalesce = "coalesce" // bucket already in flight, folded into its follow-up
	DecisionCommit   = "commit"   // generated and stored
	DecisionFail     = "fail"     // generation or store write failed, cache untouched
)
// #endregion decisions

// #region journal-entry
// JournalEntry is a single row in the refresh_log table.
type JournalEntry struct {
	ID          string
	Bucket      string
	Fingerprint string
	Trigger     string
	Decision    string
	Reason      string
	Attempts    int
	CreatedAt   time.Time
}
// #endregion journal-entry
