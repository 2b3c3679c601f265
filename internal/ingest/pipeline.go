// Package ingest turns raw handoff markdown into stored rows: hashing,
// dedup, metadata parsing, and the bucket sync job that feeds the second
// ingestion path.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreyprator/metapm/internal/handoff"
	"github.com/coreyprator/metapm/internal/otel"
	"github.com/coreyprator/metapm/internal/store"
	"github.com/coreyprator/metapm/pkg/models"
)

// Request carries raw content plus caller hints. Parsed document metadata
// wins over hints; hints fill whatever the document does not carry.
type Request struct {
	Project   string
	Task      string
	Direction string
	GitCommit string
	Content   string
	Source    string // api (default) or gcs
	GCSPath   string
	GCSURL    string
}

// Result identifies the stored handoff. Duplicate means the content already
// existed and ID refers to the prior row.
type Result struct {
	ID        string
	Duplicate bool
}

// Ingest stores one handoff document. Duplicate content (by SHA-256) is
// reported as success with Duplicate set, never as an error; two concurrent
// submissions of the same content resolve the same way via the unique index.
func Ingest(ctx context.Context, st store.Store, req Request) (Result, error) {
	if req.Content == "" {
		return Result{}, errors.New("content required")
	}
	start := time.Now()
	defer func() { otel.RecordIngest(ctx, req.Source, time.Since(start)) }()

	hash := handoff.ContentHash(req.Content)
	if prior, err := st.GetHandoffByContentHash(ctx, hash); err == nil {
		return Result{ID: prior.ID, Duplicate: true}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return Result{}, fmt.Errorf("dedup lookup: %w", err)
	}

	meta := handoff.ParseMetadata(req.Content)

	project := meta.Project
	if project == "" {
		project = req.Project
	}
	task := meta.Task
	if task == "" {
		task = req.Task
	}
	if project == "" || task == "" {
		return Result{}, errors.New("project and task required (neither supplied nor parseable)")
	}
	direction := meta.Direction
	if direction == "" {
		direction = req.Direction
	}
	if direction == "" {
		direction = models.DirectionCCToAI
	}

	summary := handoff.Summarize(req.Content, handoff.DefaultSummaryLength)

	h := &store.Handoff{
		Project:     project,
		Task:        task,
		Direction:   direction,
		Content:     req.Content,
		ContentHash: hash,
		Source:      req.Source,
	}
	if summary != "" {
		h.Summary = &summary
	}
	setIf(&h.Title, meta.Title)
	setIf(&h.FromEntity, meta.FromEntity)
	setIf(&h.ToEntity, meta.ToEntity)
	setIf(&h.Version, meta.Version)
	setIf(&h.Priority, meta.Priority)
	setIf(&h.Type, meta.Type)
	setIf(&h.GitCommit, req.GitCommit)
	if req.Source == models.SourceGCS {
		h.GCSSynced = true
		now := time.Now().UTC()
		h.GCSSyncedAt = &now
		setIf(&h.GCSPath, req.GCSPath)
		setIf(&h.GCSURL, req.GCSURL)
	}

	id, err := st.CreateHandoff(ctx, h)
	if errors.Is(err, store.ErrDuplicateContent) {
		// Lost the insert race; the winner's row is the canonical one.
		prior, lookupErr := st.GetHandoffByContentHash(ctx, hash)
		if lookupErr != nil {
			return Result{}, fmt.Errorf("duplicate race lookup: %w", lookupErr)
		}
		return Result{ID: prior.ID, Duplicate: true}, nil
	}
	if err != nil {
		return Result{}, err
	}
	return Result{ID: id}, nil
}

func setIf(dst **string, v string) {
	if v != "" {
		*dst = &v
	}
}
