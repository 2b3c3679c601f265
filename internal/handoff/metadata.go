// Package handoff parses semi-structured handoff markdown: the blockquote
// metadata header (**Key**: value lines), the H1 title, and the content
// fingerprint used for deduplication.
package handoff

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/coreyprator/metapm/pkg/models"
)

// Metadata is the best-effort structured view of a handoff header. Fields the
// document does not carry are left empty; parsing never fails.
type Metadata struct {
	FromEntity string
	ToEntity   string
	Project    string
	Task       string
	Version    string
	Priority   string
	Type       string
	Title      string
	Direction  string // empty when from_entity is absent or unrecognized
}

var (
	fromRe     = regexp.MustCompile(`(?i)\*\*From\*\*:\s*(.+)`)
	toRe       = regexp.MustCompile(`(?i)\*\*To\*\*:\s*(.+)`)
	projectRe  = regexp.MustCompile(`(?i)\*\*Project\*\*:\s*(.+)`)
	taskRe     = regexp.MustCompile(`(?i)\*\*Task\*\*:\s*(.+)`)
	versionRe  = regexp.MustCompile(`(?i)\*\*Version\*\*:\s*(.+)`)
	priorityRe = regexp.MustCompile(`(?i)\*\*Priority\*\*:\s*(.+)`)
	typeRe     = regexp.MustCompile(`(?i)\*\*Type\*\*:\s*(.+)`)

	titleRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)

	// Fallback when no **Version** line exists.
	semverRe = regexp.MustCompile(`v\d+\.\d+\.\d+`)
)

// ParseMetadata extracts handoff metadata from raw markdown. First occurrence
// of each field wins; missing fields stay empty.
func ParseMetadata(content string) Metadata {
	m := Metadata{
		FromEntity: firstMatch(fromRe, content),
		ToEntity:   firstMatch(toRe, content),
		Project:    firstMatch(projectRe, content),
		Task:       firstMatch(taskRe, content),
		Version:    firstMatch(versionRe, content),
		Priority:   firstMatch(priorityRe, content),
		Type:       firstMatch(typeRe, content),
		Title:      firstMatch(titleRe, content),
	}

	// "🔵 HarmonyLab" -> "HarmonyLab". Trim runes, not \W: project names like
	// Étymython start with a non-ASCII letter that must survive.
	m.Project = strings.TrimLeftFunc(m.Project, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	if m.Version == "" {
		m.Version = semverRe.FindString(content)
	}

	m.Direction = InferDirection(m.FromEntity)
	return m
}

// InferDirection maps the From entity to a handoff direction. Unrecognized or
// empty entities return "" and the caller supplies a default.
func InferDirection(fromEntity string) string {
	if fromEntity == "" {
		return ""
	}
	from := strings.ToLower(fromEntity)
	switch {
	case strings.Contains(from, "claude code") || strings.Contains(from, "command center"):
		return models.DirectionCCToAI
	case strings.Contains(from, "claude.ai") || strings.Contains(from, "architect"):
		return models.DirectionAIToCC
	}
	return ""
}

func firstMatch(re *regexp.Regexp, content string) string {
	if m := re.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
