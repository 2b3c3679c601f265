package handoff

import (
	"strings"
	"testing"

	"github.com/coreyprator/metapm/pkg/models"
)

const fullDoc = `> **From**: Claude Code (Command Center)
> **To**: Claude.ai (Architect)
> **Project**: 🔵 HarmonyLab
> **Task**: v2.1.0 chord engine
> **Version**: v2.1.0
> **Priority**: high
> **Type**: feature

# Chord Engine Handoff

The chord engine rewrite is ready for review.
Voicing tables regenerated and the inversion bug is fixed.
`

func TestParseMetadata_fullHeader(t *testing.T) {
	t.Parallel()
	m := ParseMetadata(fullDoc)
	if m.Project != "HarmonyLab" {
		t.Errorf("project = %q (emoji should be stripped)", m.Project)
	}
	if m.Task != "v2.1.0 chord engine" {
		t.Errorf("task = %q", m.Task)
	}
	if m.Version != "v2.1.0" {
		t.Errorf("version = %q", m.Version)
	}
	if m.Priority != "high" || m.Type != "feature" {
		t.Errorf("priority=%q type=%q", m.Priority, m.Type)
	}
	if m.Title != "Chord Engine Handoff" {
		t.Errorf("title = %q", m.Title)
	}
	if m.FromEntity != "Claude Code (Command Center)" || m.ToEntity != "Claude.ai (Architect)" {
		t.Errorf("entities: from=%q to=%q", m.FromEntity, m.ToEntity)
	}
	if m.Direction != models.DirectionCCToAI {
		t.Errorf("direction = %q", m.Direction)
	}
}

func TestParseMetadata_projectDecoration(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw  string
		want string
	}{
		{"🔵 HarmonyLab", "HarmonyLab"},
		{"Étymython", "Étymython"},
		{"🟢 Étymython", "Étymython"},
		{"-- ArtForge", "ArtForge"},
	}
	for _, tc := range cases {
		m := ParseMetadata("> **Project**: " + tc.raw + "\n")
		if m.Project != tc.want {
			t.Errorf("project %q parsed as %q, want %q", tc.raw, m.Project, tc.want)
		}
	}
}

func TestParseMetadata_firstOccurrenceWins(t *testing.T) {
	t.Parallel()
	doc := "> **Project**: First\n\nbody\n\n> **Project**: Second\n"
	m := ParseMetadata(doc)
	if m.Project != "First" {
		t.Errorf("project = %q, want First", m.Project)
	}
}

func TestParseMetadata_versionFallbackFromBody(t *testing.T) {
	t.Parallel()
	doc := "> **Project**: ArtForge\n> **Task**: brush engine\n\n# Title\n\nShipping v3.0.1 today.\n"
	m := ParseMetadata(doc)
	if m.Version != "v3.0.1" {
		t.Errorf("version fallback = %q", m.Version)
	}
}

func TestParseMetadata_emptyDoc(t *testing.T) {
	t.Parallel()
	m := ParseMetadata("")
	if m.Project != "" || m.Task != "" || m.Title != "" || m.Direction != "" {
		t.Errorf("empty doc should parse to zero metadata: %+v", m)
	}
}

func TestInferDirection(t *testing.T) {
	t.Parallel()
	cases := []struct {
		from string
		want string
	}{
		{"Claude Code (Command Center)", models.DirectionCCToAI},
		{"command center", models.DirectionCCToAI},
		{"Claude.ai (Architect)", models.DirectionAIToCC},
		{"The Architect", models.DirectionAIToCC},
		{"somebody else", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := InferDirection(tc.from); got != tc.want {
			t.Errorf("InferDirection(%q) = %q, want %q", tc.from, got, tc.want)
		}
	}
}

func TestContentHash_deterministic(t *testing.T) {
	t.Parallel()
	h1 := ContentHash("handoff body")
	h2 := ContentHash("handoff body")
	if h1 != h2 {
		t.Error("identical content must hash identically")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h1))
	}
	if ContentHash("handoff body ") == h1 {
		t.Error("different content must hash differently")
	}
}

func TestSummarize_skipsHeaderAndHeadings(t *testing.T) {
	t.Parallel()
	s := Summarize(fullDoc, 0)
	if strings.Contains(s, "Chord Engine Handoff") {
		t.Errorf("summary should skip the H1: %q", s)
	}
	if strings.Contains(s, "**From**") {
		t.Errorf("summary should skip the blockquote header: %q", s)
	}
	if !strings.HasPrefix(s, "The chord engine rewrite") {
		t.Errorf("summary = %q", s)
	}
}

func TestSummarize_truncatesAtWord(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("alpha beta gamma ", 50)
	s := Summarize(long, 50)
	if len(s) > 54 {
		t.Errorf("summary too long: %d chars", len(s))
	}
	if !strings.HasSuffix(s, "...") {
		t.Errorf("truncated summary should end with ellipsis: %q", s)
	}
	if strings.HasSuffix(strings.TrimSuffix(s, "..."), "gamm") {
		t.Errorf("summary cut mid-word: %q", s)
	}
}

func TestSummarize_shortBodyUntouched(t *testing.T) {
	t.Parallel()
	s := Summarize("# T\n\nshort body\n", 0)
	if s != "short body" {
		t.Errorf("summary = %q", s)
	}
}
