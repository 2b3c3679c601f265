package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateContent is returned by CreateHandoff when a handoff with the
// same content hash already exists. Callers treat this as idempotent success,
// not a failure: re-fetch by hash and return the existing identity.
var ErrDuplicateContent = errors.New("duplicate handoff content")

// Store is the persistence interface for handoffs, completions, UAT results,
// and requirement links.
// Implementations: *sqliteStore (SQLite, default) and *postgres.Store.
type Store interface {
	// Handoffs
	CreateHandoff(ctx context.Context, h *Handoff) (string, error)
	GetHandoff(ctx context.Context, id string) (*Handoff, error)
	GetHandoffByContentHash(ctx context.Context, hash string) (*Handoff, error)
	GetHandoffByGCSPath(ctx context.Context, path string) (*Handoff, error)
	FindHandoffByProjectVersion(ctx context.Context, project, version string) (*Handoff, error)
	UpdateHandoff(ctx context.Context, id string, p HandoffPatch) (*Handoff, error)
	UpdateHandoffContent(ctx context.Context, id, content string) error
	ListHandoffs(ctx context.Context, f HandoffFilter) (*HandoffPage, error)
	ListHandoffsByProject(ctx context.Context, project string) ([]Handoff, error)
	HandoffStats(ctx context.Context) (*Stats, error)

	// Completions
	CreateCompletion(ctx context.Context, c *Completion) (string, error)
	ListCompletions(ctx context.Context, handoffID string) ([]Completion, error)

	// UAT results
	CreateUATResult(ctx context.Context, u *UATResult) (string, error)
	GetUATResult(ctx context.Context, id string) (*UATResult, error)
	ListUATForHandoff(ctx context.Context, handoffID string) ([]UATResult, error)
	LatestUAT(ctx context.Context, project, version string) (*UATResult, error)
	ListUATResults(ctx context.Context, f UATFilter) ([]UATResult, int, error)

	// Requirement links
	LinkRequirement(ctx context.Context, l *RequirementLink) error
	ListLinksForHandoff(ctx context.Context, handoffID string) ([]RequirementLink, error)
	ListHandoffsForRequirement(ctx context.Context, requirementID string) ([]Handoff, error)

	Close() error
}
