// Package lifecycle validates handoff status transitions and the
// completion/UAT records that drive them. Transitions are always
// caller-driven; nothing here advances state on its own.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreyprator/metapm/internal/store"
	"github.com/coreyprator/metapm/pkg/models"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions is the canonical state machine. Same-status updates are no-ops
// and always allowed.
var transitions = map[string][]string{
	models.StatusPending:    {models.StatusRead, models.StatusProcessed, models.StatusArchived, models.StatusPendingUAT},
	models.StatusRead:       {models.StatusProcessed, models.StatusArchived, models.StatusPendingUAT, models.StatusDone},
	models.StatusProcessed:  {models.StatusArchived, models.StatusPendingUAT, models.StatusDone},
	models.StatusPendingUAT: {models.StatusDone, models.StatusNeedsFixes, models.StatusArchived},
	models.StatusNeedsFixes: {models.StatusPendingUAT, models.StatusProcessed, models.StatusDone, models.StatusArchived},
	models.StatusDone:       {models.StatusArchived},
	models.StatusArchived:   {models.StatusPending},
}

// ValidateTransition reports whether a handoff may move from one status to
// another. Unknown statuses on either side are rejected.
func ValidateTransition(from, to string) error {
	if !models.ValidStatus(from) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, from)
	}
	if !models.ValidStatus(to) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if from == to {
		return nil
	}
	for _, t := range transitions[from] {
		if t == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// StampTimestamps records read/completion times on a status change.
// read_at is set once on the move to read; completed_at once on the move to
// processed or done.
func StampTimestamps(h *store.Handoff, p *store.HandoffPatch, now time.Time) {
	if p.Status == nil {
		return
	}
	switch *p.Status {
	case models.StatusRead:
		if h.ReadAt == nil && p.ReadAt == nil {
			p.ReadAt = &now
		}
	case models.StatusProcessed, models.StatusDone:
		if h.CompletedAt == nil && p.CompletedAt == nil {
			p.CompletedAt = &now
		}
	}
}

// ValidateUAT checks a UAT submission before anything is written: a positive
// test count, outcome counts that fit inside it, and either a free-text result
// or structured cases.
func ValidateUAT(s models.UATSubmit) error {
	if s.TotalTests <= 0 {
		return errors.New("total_tests must be positive")
	}
	if s.Passed < 0 || s.Failed < 0 || s.Blocked < 0 {
		return errors.New("test counts must not be negative")
	}
	if s.Passed+s.Failed+s.Blocked > s.TotalTests {
		return fmt.Errorf("passed+failed+blocked (%d) exceeds total_tests (%d)",
			s.Passed+s.Failed+s.Blocked, s.TotalTests)
	}
	if strings.TrimSpace(s.ResultsText) == "" && len(s.Cases) == 0 {
		return errors.New("results_text or cases required")
	}
	switch s.Status {
	case models.UATPassed, models.UATFailed, models.UATPending:
	default:
		return fmt.Errorf("invalid uat status %q", s.Status)
	}
	return nil
}

// RenderCases renders structured test cases into the free-text results form
// used when results_text is absent.
func RenderCases(cases []models.UATCase) string {
	var b strings.Builder
	for i, c := range cases {
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, strings.ToUpper(c.Status), c.Name)
		if c.Notes != "" {
			b.WriteString(" - ")
			b.WriteString(c.Notes)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// UATOutcomeStatus maps a recorded UAT result onto the handoff status the
// original call sites apply: a pass closes the handoff, anything else sends
// it back for fixes.
func UATOutcomeStatus(uatStatus string) string {
	if uatStatus == models.UATPassed {
		return models.StatusDone
	}
	return models.StatusNeedsFixes
}

// ValidateCompletion checks a completion submission. Completions are
// immutable once recorded.
func ValidateCompletion(c models.CompletionCreate) error {
	switch c.Status {
	case models.CompletionComplete, models.CompletionPartial, models.CompletionBlocked:
		return nil
	default:
		return fmt.Errorf("invalid completion status %q", c.Status)
	}
}

// CompletionOutcomeStatus maps a completion status onto the handoff status:
// a full completion marks the handoff processed, partial and blocked leave
// it pending.
func CompletionOutcomeStatus(completionStatus string) string {
	if completionStatus == models.CompletionComplete {
		return models.StatusProcessed
	}
	return models.StatusPending
}
