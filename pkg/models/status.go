package models

// Handoff direction: which agent originated the document.
const (
	DirectionCCToAI = "cc_to_ai" // Claude Code (Command Center) -> Claude.ai
	DirectionAIToCC = "ai_to_cc" // Claude.ai (Architect) -> Claude Code
)

// Handoff lifecycle statuses. pending/read/processed/archived is the base
// flow; pending_uat and needs_fixes are entered around UAT submissions,
// done is terminal after a passed UAT.
const (
	StatusPending    = "pending"
	StatusRead       = "read"
	StatusProcessed  = "processed"
	StatusArchived   = "archived"
	StatusPendingUAT = "pending_uat"
	StatusNeedsFixes = "needs_fixes"
	StatusDone       = "done"
)

// HandoffStatuses lists every valid handoff status.
var HandoffStatuses = []string{
	StatusPending, StatusRead, StatusProcessed, StatusArchived,
	StatusPendingUAT, StatusNeedsFixes, StatusDone,
}

// UAT result statuses.
const (
	UATPassed  = "passed"
	UATFailed  = "failed"
	UATPending = "pending"
)

// Completion statuses.
const (
	CompletionComplete = "complete"
	CompletionPartial  = "partial"
	CompletionBlocked  = "blocked"
)

// Requirement link relationships.
const (
	RelImplements = "implements"
	RelFixes      = "fixes"
	RelTests      = "tests"
	RelEnhances   = "enhances"
)

// How a requirement link was discovered.
const (
	DiscoveredManual = "manual"
	DiscoveredParsed = "parsed"
)

// Ingestion sources.
const (
	SourceAPI          = "api"
	SourceGCS          = "gcs"
	SourceUATChecklist = "uat_checklist"
)

// DefaultComplianceScore is assigned to every new handoff; the sync job may
// lower it later.
const DefaultComplianceScore = 100

// DefaultHandoffListLimit caps page sizes on the list endpoints.
const DefaultHandoffListLimit = 100

// ValidStatus reports whether s is a known handoff status.
func ValidStatus(s string) bool {
	for _, v := range HandoffStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ValidDirection reports whether d is a known handoff direction.
func ValidDirection(d string) bool {
	return d == DirectionCCToAI || d == DirectionAIToCC
}

// ProjectEmoji maps known project names to their dashboard icon.
var ProjectEmoji = map[string]string{
	"ArtForge":            "🟠",
	"artforge":            "🟠",
	"HarmonyLab":          "🔵",
	"harmonylab":          "🔵",
	"Super-Flashcards":    "🟡",
	"super-flashcards":    "🟡",
	"MetaPM":              "🔴",
	"metapm":              "🔴",
	"Etymython":           "🟣",
	"etymython":           "🟣",
	"project-methodology": "🟢",
	"Security":            "🔒",
}

// DefaultEmoji is used for projects without a mapped icon.
const DefaultEmoji = "📦"

// EmojiFor returns the dashboard icon for a project.
func EmojiFor(project string) string {
	if e, ok := ProjectEmoji[project]; ok {
		return e
	}
	return DefaultEmoji
}
