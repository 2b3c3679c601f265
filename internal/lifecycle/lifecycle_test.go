package lifecycle

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/coreyprator/metapm/internal/store"
	"github.com/coreyprator/metapm/pkg/models"
)

func TestValidateTransition(t *testing.T) {
	t.Parallel()
	cases := []struct {
		from, to string
		ok       bool
	}{
		{models.StatusPending, models.StatusRead, true},
		{models.StatusRead, models.StatusProcessed, true},
		{models.StatusPendingUAT, models.StatusDone, true},
		{models.StatusPendingUAT, models.StatusNeedsFixes, true},
		{models.StatusNeedsFixes, models.StatusPendingUAT, true},
		{models.StatusDone, models.StatusArchived, true},
		{models.StatusArchived, models.StatusPending, true},
		{models.StatusPending, models.StatusPending, true}, // no-op
		{models.StatusDone, models.StatusPending, false},
		{models.StatusDone, models.StatusRead, false},
		{"bogus", models.StatusRead, false},
		{models.StatusPending, "bogus", false},
	}
	for _, c := range cases {
		err := ValidateTransition(c.from, c.to)
		if c.ok && err != nil {
			t.Errorf("ValidateTransition(%s, %s): unexpected error %v", c.from, c.to, err)
		}
		if !c.ok {
			if err == nil {
				t.Errorf("ValidateTransition(%s, %s): expected error", c.from, c.to)
			} else if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("ValidateTransition(%s, %s): error %v not ErrInvalidTransition", c.from, c.to, err)
			}
		}
	}
}

func TestStampTimestamps(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()

	read := models.StatusRead
	h := &store.Handoff{Status: models.StatusPending}
	p := store.HandoffPatch{Status: &read}
	StampTimestamps(h, &p, now)
	if p.ReadAt == nil || !p.ReadAt.Equal(now) {
		t.Fatalf("expected read_at stamped, got %+v", p.ReadAt)
	}

	// Already-read handoffs keep their original read_at.
	earlier := now.Add(-time.Hour)
	h2 := &store.Handoff{Status: models.StatusRead, ReadAt: &earlier}
	p2 := store.HandoffPatch{Status: &read}
	StampTimestamps(h2, &p2, now)
	if p2.ReadAt != nil {
		t.Fatalf("expected read_at untouched, got %v", p2.ReadAt)
	}

	done := models.StatusDone
	p3 := store.HandoffPatch{Status: &done}
	StampTimestamps(h2, &p3, now)
	if p3.CompletedAt == nil {
		t.Fatal("expected completed_at stamped on done")
	}

	p4 := store.HandoffPatch{}
	StampTimestamps(h2, &p4, now)
	if p4.ReadAt != nil || p4.CompletedAt != nil {
		t.Fatal("patch without status change should not be stamped")
	}
}

func TestValidateUAT(t *testing.T) {
	t.Parallel()
	valid := models.UATSubmit{
		Status: models.UATPassed, TotalTests: 10, Passed: 10, ResultsText: "all good",
	}
	if err := ValidateUAT(valid); err != nil {
		t.Fatalf("valid submission rejected: %v", err)
	}

	cases := []struct {
		name string
		s    models.UATSubmit
	}{
		{"zero total", models.UATSubmit{Status: models.UATPassed, TotalTests: 0, ResultsText: "x"}},
		{"counts exceed total", models.UATSubmit{Status: models.UATFailed, TotalTests: 5, Passed: 3, Failed: 3, ResultsText: "x"}},
		{"negative count", models.UATSubmit{Status: models.UATFailed, TotalTests: 5, Passed: -1, ResultsText: "x"}},
		{"no results", models.UATSubmit{Status: models.UATPassed, TotalTests: 5, Passed: 5}},
		{"bad status", models.UATSubmit{Status: "maybe", TotalTests: 5, Passed: 5, ResultsText: "x"}},
	}
	for _, c := range cases {
		if err := ValidateUAT(c.s); err == nil {
			t.Errorf("%s: expected error", c.name)
		}
	}

	// Structured cases satisfy the results requirement without text.
	withCases := models.UATSubmit{
		Status: models.UATFailed, TotalTests: 2, Passed: 1, Failed: 1,
		Cases: []models.UATCase{{Name: "login", Status: "passed"}, {Name: "export", Status: "failed"}},
	}
	if err := ValidateUAT(withCases); err != nil {
		t.Fatalf("cases-only submission rejected: %v", err)
	}
}

func TestRenderCases(t *testing.T) {
	t.Parallel()
	out := RenderCases([]models.UATCase{
		{Name: "login", Status: "passed"},
		{Name: "export", Status: "failed", Notes: "timeout after 30s"},
	})
	if !strings.Contains(out, "1. [PASSED] login") {
		t.Fatalf("missing first case: %q", out)
	}
	if !strings.Contains(out, "2. [FAILED] export - timeout after 30s") {
		t.Fatalf("missing second case with notes: %q", out)
	}
}

func TestOutcomeCoupling(t *testing.T) {
	t.Parallel()
	if got := UATOutcomeStatus(models.UATPassed); got != models.StatusDone {
		t.Fatalf("passed: got %q", got)
	}
	if got := UATOutcomeStatus(models.UATFailed); got != models.StatusNeedsFixes {
		t.Fatalf("failed: got %q", got)
	}
	if got := UATOutcomeStatus(models.UATPending); got != models.StatusNeedsFixes {
		t.Fatalf("pending: got %q", got)
	}
	if got := CompletionOutcomeStatus(models.CompletionComplete); got != models.StatusProcessed {
		t.Fatalf("complete: got %q", got)
	}
	if got := CompletionOutcomeStatus(models.CompletionPartial); got != models.StatusPending {
		t.Fatalf("partial: got %q", got)
	}
}

func TestValidateCompletion(t *testing.T) {
	t.Parallel()
	if err := ValidateCompletion(models.CompletionCreate{Status: models.CompletionComplete}); err != nil {
		t.Fatalf("complete rejected: %v", err)
	}
	if err := ValidateCompletion(models.CompletionCreate{Status: "finished"}); err == nil {
		t.Fatal("expected error for unknown completion status")
	}
}
