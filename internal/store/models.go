// Package store defines the persistence interface and shared models for
// handoffs, completions, UAT results, and requirement links.
package store

import "time"

// Handoff is a stored cross-agent work-unit document. Identity and content
// fields are written once at ingestion; only the whitelisted fields in
// HandoffPatch ever change afterwards.
type Handoff struct {
	ID              string
	Project         string
	Task            string
	Title           *string
	Direction       string
	Status          string
	Content         string
	ContentHash     string
	Summary         *string
	Source          string
	FromEntity      *string
	ToEntity        *string
	Version         *string
	Priority        *string
	Type            *string
	GitCommit       *string
	GitVerified     bool
	GCSPath         *string
	GCSSynced       bool
	GCSURL          *string
	GCSSyncedAt     *time.Time
	ComplianceScore int
	UATStatus       *string
	UATPassed       *int
	UATFailed       *int
	UATDate         *time.Time
	ReadAt          *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HandoffPatch is the whitelist of mutable handoff fields. Nil means leave
// unchanged. Everything outside this struct is immutable after insert.
type HandoffPatch struct {
	Status      *string
	GitCommit   *string
	GitVerified *bool
	GCSSynced   *bool
	GCSURL      *string
	GCSSyncedAt *time.Time
	UATStatus   *string
	UATPassed   *int
	UATFailed   *int
	UATDate     *time.Time
	ReadAt      *time.Time
	CompletedAt *time.Time
}

// Completion is one completion response recorded against a handoff. A handoff
// may be completed or retried multiple times; rows are immutable once written.
type Completion struct {
	ID            string
	HandoffID     string
	Status        string // complete, partial, blocked
	CommitHash    *string
	CompletionURL *string
	Notes         *string
	CompletedAt   time.Time
}

// UATResult is an acceptance-test outcome tied to a handoff. Immutable once
// written. Project and Version are filled on joined reads.
type UATResult struct {
	ID            string
	HandoffID     string
	Project       string
	Version       string
	Status        string // passed, failed, pending
	TotalTests    int
	Passed        int
	Failed        int
	NotesCount    int
	ResultsText   *string
	TestedBy      string
	TestedAt      time.Time
	ChecklistPath *string
}

// RequirementLink is a many-to-many association between a roadmap requirement
// and a handoff.
type RequirementLink struct {
	RequirementID string
	HandoffID     string
	Relationship  string // implements, fixes, tests, enhances
	DiscoveredVia string // manual, parsed
	CreatedAt     time.Time
}

// HandoffFilter selects and orders handoffs for listing.
type HandoffFilter struct {
	Project   string
	Statuses  []string // OR semantics
	Direction string
	GCSSync   string // "", "synced", "pending"
	Search    string // case-insensitive substring over content, title, task
	Sort      string // whitelisted; invalid values fall back to created_at
	Order     string // asc or desc (default desc)
	Page      int    // 1-based
	Limit     int
}

// ComplianceSummary aggregates compliance/sync state over a filtered listing.
type ComplianceSummary struct {
	Overall     int
	Synced      int
	PendingSync int
}

// HandoffPage is one page of a filtered listing.
type HandoffPage struct {
	Items      []Handoff
	Total      int
	Page       int
	Pages      int
	HasMore    bool
	Compliance ComplianceSummary
}

// ProjectStats is per-project counts in Stats.
type ProjectStats struct {
	Total   int
	Pending int
	Done    int
}

// Stats aggregates handoff counts for the dashboard.
type Stats struct {
	Total       int
	ByProject   map[string]ProjectStats
	ByDirection map[string]int
	ThisWeek    int
	Synced      int
	PendingSync int
}

// UATFilter selects UAT results for listing.
type UATFilter struct {
	Project string
	Status  string
	Limit   int
	Offset  int
}
