package domain

import "time"

// Outcome values recorded per child ticket.
const (
	OutcomeArchived      = "archived"
	OutcomeArchiveFailed = "archive_failed"
	OutcomeCheckFailed   = "check_failed"
	OutcomePairingFailed = "pairing_failed"
	OutcomeSkipped       = "skipped"
)

type TicketOutcome struct {
	RunID       string
	ParentKey   string
	TicketKey   string
	Outcome     string
	Detail      string
	ArchivePath string
	RecordedAt  time.Time
}

// RunSummary counts what one run did.
type RunSummary struct {
	RunID    string
	RunDate  string
	Parents  int
	Children int
	Passed   int
	Failed   int
	Archived int
	Marked   int
	Errors   []string
	Aborted  bool
}
