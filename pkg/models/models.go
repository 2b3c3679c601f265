// Package models provides shared types for the MetaPM HTTP API and external
// tools. These types mirror the API JSON and are stable for use by pkg/client
// and other consumers.
package models

import "time"

// Handoff is a single cross-agent work-unit document.
type Handoff struct {
	ID              string     `json:"id"`
	Project         string     `json:"project"`
	Task            string     `json:"task"`
	Title           *string    `json:"title,omitempty"`
	Direction       string     `json:"direction"`
	Status          string     `json:"status"`
	Summary         *string    `json:"summary,omitempty"`
	Content         string     `json:"content,omitempty"` // only in full responses
	Source          string     `json:"source,omitempty"`
	FromEntity      *string    `json:"from_entity,omitempty"`
	ToEntity        *string    `json:"to_entity,omitempty"`
	Version         *string    `json:"version,omitempty"`
	Priority        *string    `json:"priority,omitempty"`
	Type            *string    `json:"type,omitempty"`
	GitCommit       *string    `json:"git_commit,omitempty"`
	GitVerified     bool       `json:"git_verified"`
	GCSPath         *string    `json:"gcs_path,omitempty"`
	GCSSynced       bool       `json:"gcs_synced"`
	GCSURL          *string    `json:"gcs_url,omitempty"`
	GCSSyncedAt     *time.Time `json:"gcs_synced_at,omitempty"`
	ComplianceScore int        `json:"compliance_score"`
	UATStatus       *string    `json:"uat_status,omitempty"`
	UATPassed       *int       `json:"uat_passed,omitempty"`
	UATFailed       *int       `json:"uat_failed,omitempty"`
	UATDate         *time.Time `json:"uat_date,omitempty"`
	ReadAt          *time.Time `json:"read_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Emoji           string     `json:"emoji,omitempty"`
}

// HandoffCreate is the request body for POST /handoffs.
type HandoffCreate struct {
	Project   string `json:"project"`
	Task      string `json:"task"`
	Direction string `json:"direction"`
	Content   string `json:"content"`
	GitCommit string `json:"git_commit,omitempty"`
}

// HandoffCreated is the response for POST /handoffs.
type HandoffCreated struct {
	ID        string `json:"id"`
	Project   string `json:"project,omitempty"`
	Task      string `json:"task,omitempty"`
	Direction string `json:"direction,omitempty"`
	Duplicate bool   `json:"duplicate"`
}

// ComplianceSummary aggregates compliance/sync state over a filtered listing.
type ComplianceSummary struct {
	Overall     int `json:"overall"`
	Synced      int `json:"synced"`
	PendingSync int `json:"pending_sync"`
}

// HandoffList is the response for GET /handoffs.
type HandoffList struct {
	Items             []Handoff         `json:"items"`
	Total             int               `json:"total"`
	Page              int               `json:"page"`
	Pages             int               `json:"pages"`
	HasMore           bool              `json:"has_more"`
	ComplianceSummary ComplianceSummary `json:"compliance_summary"`
}

// ProjectStats is per-project counts in the stats response.
type ProjectStats struct {
	Total   int    `json:"total"`
	Pending int    `json:"pending"`
	Done    int    `json:"done"`
	Emoji   string `json:"emoji"`
}

// SyncStatus is the GCS sync totals in the stats response.
type SyncStatus struct {
	Synced  int `json:"synced"`
	Pending int `json:"pending"`
}

// Stats is the response for GET /handoffs/stats.
type Stats struct {
	Total         int                     `json:"total"`
	ByProject     map[string]ProjectStats `json:"by_project"`
	ByDirection   map[string]int          `json:"by_direction"`
	ThisWeek      int                     `json:"this_week"`
	GCSSyncStatus SyncStatus              `json:"gcs_sync_status"`
}

// SyncSummary reports one run of the bucket sync job.
type SyncSummary struct {
	Scanned         int      `json:"scanned"`
	Imported        int      `json:"imported"`
	Skipped         int      `json:"skipped"`
	Errors          []string `json:"errors"`
	ProjectsScanned []string `json:"projects_scanned"`
}

// Completion is one completion response recorded against a handoff.
type Completion struct {
	ID            string    `json:"id"`
	HandoffID     string    `json:"handoff_id"`
	Status        string    `json:"status"`
	CommitHash    *string   `json:"commit_hash,omitempty"`
	CompletionURL *string   `json:"completion_handoff_url,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

// CompletionCreate is the request body for POST /handoffs/{id}/complete.
type CompletionCreate struct {
	Status        string `json:"status"`
	CommitHash    string `json:"commit_hash,omitempty"`
	CompletionURL string `json:"completion_handoff_url,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// UATCase is one structured test case in a UAT submission.
type UATCase struct {
	Name   string `json:"name"`
	Status string `json:"status"` // passed, failed, blocked
	Notes  string `json:"notes,omitempty"`
}

// UATSubmit is the request body for POST /handoffs/{id}/uat.
type UATSubmit struct {
	Status        string    `json:"status"`
	TotalTests    int       `json:"total_tests"`
	Passed        int       `json:"passed"`
	Failed        int       `json:"failed"`
	Blocked       int       `json:"blocked,omitempty"`
	NotesCount    int       `json:"notes_count,omitempty"`
	ResultsText   string    `json:"results_text,omitempty"`
	Cases         []UATCase `json:"cases,omitempty"`
	TestedBy      string    `json:"tested_by,omitempty"`
	ChecklistPath string    `json:"checklist_path,omitempty"`
}

// UATDirectSubmit is the request body for POST /uat/submit (checklist flow:
// finds or creates a handoff for project/version, then records the result).
type UATDirectSubmit struct {
	Project       string    `json:"project"`
	Version       string    `json:"version"`
	Feature       string    `json:"feature,omitempty"`
	Status        string    `json:"status"`
	TotalTests    int       `json:"total_tests"`
	Passed        int       `json:"passed"`
	Failed        int       `json:"failed"`
	Blocked       int       `json:"blocked,omitempty"`
	Skipped       int       `json:"skipped,omitempty"`
	NotesCount    int       `json:"notes_count,omitempty"`
	ResultsText   string    `json:"results_text,omitempty"`
	Cases         []UATCase `json:"cases,omitempty"`
	TestedBy      string    `json:"tested_by,omitempty"`
	ChecklistPath string    `json:"checklist_path,omitempty"`
}

// UATResult is a recorded acceptance-test outcome.
type UATResult struct {
	ID            string    `json:"id"`
	HandoffID     string    `json:"handoff_id"`
	Project       string    `json:"project,omitempty"`
	Version       string    `json:"version,omitempty"`
	Status        string    `json:"status"`
	TotalTests    int       `json:"total_tests"`
	Passed        int       `json:"passed"`
	Failed        int       `json:"failed"`
	NotesCount    int       `json:"notes_count"`
	ResultsText   *string   `json:"results_text,omitempty"`
	TestedBy      string    `json:"tested_by"`
	TestedAt      time.Time `json:"tested_at"`
	ChecklistPath *string   `json:"checklist_path,omitempty"`
}

// UATHistory is the response for GET /handoffs/{id}/uat.
type UATHistory struct {
	HandoffID    string      `json:"handoff_id"`
	Attempts     []UATResult `json:"uat_attempts"`
	LatestStatus *string     `json:"latest_status"`
}

// UATList is the response for GET /uat/list.
type UATList struct {
	Results []UATResult `json:"results"`
	Total   int         `json:"total"`
}

// RequirementLink associates a roadmap requirement with a handoff.
type RequirementLink struct {
	RequirementID string    `json:"requirement_id"`
	HandoffID     string    `json:"handoff_id"`
	Relationship  string    `json:"relationship"`
	DiscoveredVia string    `json:"discovered_via"`
	CreatedAt     time.Time `json:"created_at"`
}

// RequirementLinkCreate is the request body for POST /requirements/{id}/handoffs.
type RequirementLinkCreate struct {
	HandoffID     string `json:"handoff_id"`
	Relationship  string `json:"relationship"`
	DiscoveredVia string `json:"discovered_via,omitempty"`
}
