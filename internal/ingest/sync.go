package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coreyprator/metapm/internal/otel"
	"github.com/coreyprator/metapm/internal/store"
	"github.com/coreyprator/metapm/pkg/models"
)

// ObjectStore lists and reads objects under a bucket. The GCS implementation
// lives in gcs.go; tests use an in-memory fake.
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Read(ctx context.Context, name string) ([]byte, error)
}

// Syncer imports handoff documents from each project's outbox prefix in the
// bucket. One Run scans every configured project; a failed object never
// aborts the batch.
type Syncer struct {
	Store      store.Store
	Bucket     ObjectStore
	BucketName string
	Projects   []string
	Logger     *slog.Logger
}

func (s *Syncer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Run scans every configured project's outbox and imports new .md documents.
func (s *Syncer) Run(ctx context.Context) models.SyncSummary {
	sum := models.SyncSummary{Errors: []string{}, ProjectsScanned: []string{}}
	for _, project := range s.Projects {
		if ctx.Err() != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", project, ctx.Err()))
			break
		}
		s.syncProject(ctx, project, &sum)
		sum.ProjectsScanned = append(sum.ProjectsScanned, project)
	}
	otel.RecordSyncRun(ctx, int64(sum.Imported), int64(sum.Skipped), int64(len(sum.Errors)))
	s.logger().Info("bucket sync finished",
		"scanned", sum.Scanned, "imported", sum.Imported,
		"skipped", sum.Skipped, "errors", len(sum.Errors))
	return sum
}

func (s *Syncer) syncProject(ctx context.Context, project string, sum *models.SyncSummary) {
	prefix := project + "/outbox/"
	names, err := s.Bucket.List(ctx, prefix)
	if err != nil {
		sum.Errors = append(sum.Errors, fmt.Sprintf("%s: list: %v", project, err))
		return
	}
	for _, name := range names {
		if !strings.HasSuffix(name, ".md") {
			continue
		}
		sum.Scanned++
		if err := s.syncObject(ctx, project, name, sum); err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", name, err))
		}
	}
}

func (s *Syncer) syncObject(ctx context.Context, project, name string, sum *models.SyncSummary) error {
	// Cheap pre-filter: objects already imported under this path are skipped
	// without a download.
	if _, err := s.Store.GetHandoffByGCSPath(ctx, name); err == nil {
		sum.Skipped++
		return nil
	}

	body, err := s.Bucket.Read(ctx, name)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	res, err := Ingest(ctx, s.Store, Request{
		Project: project,
		Task:    taskFromObjectName(name),
		Content: string(body),
		Source:  models.SourceGCS,
		GCSPath: name,
		GCSURL:  "gs://" + s.BucketName + "/" + name,
	})
	if err != nil {
		return err
	}
	if res.Duplicate {
		sum.Skipped++
		return nil
	}
	sum.Imported++
	s.logger().Info("imported handoff from bucket", "project", project, "object", name, "id", res.ID)
	return nil
}

// taskFromObjectName derives a fallback task from the object filename, used
// when the document itself carries no **Task** line.
func taskFromObjectName(name string) string {
	base := name
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, ".md")
}

// RunPeriodic runs the sync on a fixed interval until the context is
// cancelled. The first run happens after one interval, not immediately.
func (s *Syncer) RunPeriodic(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Run(ctx)
		}
	}
}
