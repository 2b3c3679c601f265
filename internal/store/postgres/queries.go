package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/coreyprator/metapm/internal/store"
	"github.com/coreyprator/metapm/pkg/models"
)

const handoffCols = `id, project, task, title, direction, status, content, content_hash, summary, source, ` +
	`from_entity, to_entity, version, priority, type, git_commit, git_verified, gcs_path, gcs_synced, gcs_url, ` +
	`gcs_synced_at, compliance_score, uat_status, uat_passed, uat_failed, uat_date, read_at, completed_at, ` +
	`created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHandoff(r rowScanner) (*store.Handoff, error) {
	var h store.Handoff
	var gcsSyncedAt, uatDate, readAt, completedAt *int64
	var createdAt, updatedAt int64
	err := r.Scan(
		&h.ID, &h.Project, &h.Task, &h.Title, &h.Direction, &h.Status, &h.Content, &h.ContentHash, &h.Summary, &h.Source,
		&h.FromEntity, &h.ToEntity, &h.Version, &h.Priority, &h.Type, &h.GitCommit, &h.GitVerified, &h.GCSPath,
		&h.GCSSynced, &h.GCSURL, &gcsSyncedAt, &h.ComplianceScore, &h.UATStatus, &h.UATPassed, &h.UATFailed,
		&uatDate, &readAt, &completedAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	h.GCSSyncedAt = unixPtr(gcsSyncedAt)
	h.UATDate = unixPtr(uatDate)
	h.ReadAt = unixPtr(readAt)
	h.CompletedAt = unixPtr(completedAt)
	h.CreatedAt = time.Unix(createdAt, 0).UTC()
	h.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &h, nil
}

func unixPtr(p *int64) *time.Time {
	if p == nil {
		return nil
	}
	t := time.Unix(*p, 0).UTC()
	return &t
}

func unixOrNil(p *time.Time) *int64 {
	if p == nil {
		return nil
	}
	v := p.Unix()
	return &v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) CreateHandoff(ctx context.Context, h *store.Handoff) (string, error) {
	if h.Project == "" || h.Task == "" {
		return "", errors.New("project and task required")
	}
	if h.Content == "" {
		return "", errors.New("content required")
	}
	if !models.ValidDirection(h.Direction) {
		return "", fmt.Errorf("invalid direction %q", h.Direction)
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.Status == "" {
		h.Status = models.StatusPending
	}
	if h.Source == "" {
		h.Source = models.SourceAPI
	}
	if h.ComplianceScore == 0 {
		h.ComplianceScore = models.DefaultComplianceScore
	}
	now := time.Now().UTC()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	h.UpdatedAt = now

	_, err := s.Pool.Exec(ctx, `
INSERT INTO handoffs (`+handoffCols+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
        $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)`,
		h.ID, h.Project, h.Task, h.Title, h.Direction, h.Status, h.Content, h.ContentHash,
		h.Summary, h.Source, h.FromEntity, h.ToEntity, h.Version, h.Priority, h.Type,
		h.GitCommit, h.GitVerified, h.GCSPath, h.GCSSynced, h.GCSURL, unixOrNil(h.GCSSyncedAt),
		h.ComplianceScore, h.UATStatus, h.UATPassed, h.UATFailed, unixOrNil(h.UATDate),
		unixOrNil(h.ReadAt), unixOrNil(h.CompletedAt), h.CreatedAt.Unix(), h.UpdatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return "", store.ErrDuplicateContent
		}
		return "", err
	}
	return h.ID, nil
}

func (s *Store) GetHandoff(ctx context.Context, id string) (*store.Handoff, error) {
	return scanHandoff(s.Pool.QueryRow(ctx, `SELECT `+handoffCols+` FROM handoffs WHERE id = $1`, id))
}

func (s *Store) GetHandoffByContentHash(ctx context.Context, hash string) (*store.Handoff, error) {
	return scanHandoff(s.Pool.QueryRow(ctx, `SELECT `+handoffCols+` FROM handoffs WHERE content_hash = $1`, hash))
}

func (s *Store) GetHandoffByGCSPath(ctx context.Context, path string) (*store.Handoff, error) {
	return scanHandoff(s.Pool.QueryRow(ctx, `SELECT `+handoffCols+` FROM handoffs WHERE gcs_path = $1`, path))
}

func (s *Store) FindHandoffByProjectVersion(ctx context.Context, project, version string) (*store.Handoff, error) {
	return scanHandoff(s.Pool.QueryRow(ctx, `
SELECT `+handoffCols+` FROM handoffs
WHERE project = $1 AND task LIKE $2
ORDER BY created_at DESC LIMIT 1`, project, "%"+version+"%"))
}

func (s *Store) UpdateHandoff(ctx context.Context, id string, p store.HandoffPatch) (*store.Handoff, error) {
	var set []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.Status != nil {
		if !models.ValidStatus(*p.Status) {
			return nil, fmt.Errorf("invalid status %q", *p.Status)
		}
		add("status", *p.Status)
	}
	if p.GitCommit != nil {
		add("git_commit", *p.GitCommit)
	}
	if p.GitVerified != nil {
		add("git_verified", *p.GitVerified)
	}
	if p.GCSSynced != nil {
		add("gcs_synced", *p.GCSSynced)
	}
	if p.GCSURL != nil {
		add("gcs_url", *p.GCSURL)
	}
	if p.GCSSyncedAt != nil {
		add("gcs_synced_at", p.GCSSyncedAt.Unix())
	}
	if p.UATStatus != nil {
		add("uat_status", *p.UATStatus)
	}
	if p.UATPassed != nil {
		add("uat_passed", *p.UATPassed)
	}
	if p.UATFailed != nil {
		add("uat_failed", *p.UATFailed)
	}
	if p.UATDate != nil {
		add("uat_date", p.UATDate.Unix())
	}
	if p.ReadAt != nil {
		add("read_at", p.ReadAt.Unix())
	}
	if p.CompletedAt != nil {
		add("completed_at", p.CompletedAt.Unix())
	}
	if len(set) == 0 {
		return s.GetHandoff(ctx, id)
	}
	add("updated_at", time.Now().UTC().Unix())
	args = append(args, id)

	tag, err := s.Pool.Exec(ctx,
		fmt.Sprintf(`UPDATE handoffs SET %s WHERE id = $%d`, strings.Join(set, ", "), len(args)), args...)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetHandoff(ctx, id)
}

func (s *Store) UpdateHandoffContent(ctx context.Context, id, content string) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE handoffs SET content = $1, updated_at = $2 WHERE id = $3`,
		content, time.Now().UTC().Unix(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

var handoffSortCols = map[string]bool{
	"created_at": true, "updated_at": true, "project": true,
	"task": true, "status": true, "direction": true,
}

func buildHandoffWhere(f store.HandoffFilter) (string, []any) {
	var conds []string
	var args []any
	next := func() int { return len(args) }
	if f.Project != "" {
		args = append(args, f.Project)
		conds = append(conds, fmt.Sprintf("project = $%d", next()))
	}
	if len(f.Statuses) > 0 {
		ph := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			args = append(args, strings.TrimSpace(st))
			ph[i] = fmt.Sprintf("$%d", next())
		}
		conds = append(conds, "status IN ("+strings.Join(ph, ", ")+")")
	}
	if f.Direction != "" {
		args = append(args, f.Direction)
		conds = append(conds, fmt.Sprintf("direction = $%d", next()))
	}
	switch f.GCSSync {
	case "synced":
		conds = append(conds, "gcs_synced")
	case "pending":
		conds = append(conds, "NOT gcs_synced")
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := next()
		conds = append(conds, fmt.Sprintf("(content ILIKE $%d OR title ILIKE $%d OR task ILIKE $%d)", n, n, n))
	}
	if len(conds) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conds, " AND "), args
}

func (s *Store) ListHandoffs(ctx context.Context, f store.HandoffFilter) (*store.HandoffPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > models.DefaultHandoffListLimit {
		f.Limit = models.DefaultHandoffListLimit
	}
	sortCol := f.Sort
	if !handoffSortCols[sortCol] {
		sortCol = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(f.Order, "asc") {
		order = "ASC"
	}

	where, args := buildHandoffWhere(f)

	var total int
	if err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM handoffs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	offset := (f.Page - 1) * f.Limit
	q := fmt.Sprintf(`SELECT %s FROM handoffs WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		handoffCols, where, sortCol, order, len(args)+1, len(args)+2)
	rows, err := s.Pool.Query(ctx, q, append(args, f.Limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []store.Handoff
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var avg *float64
	var synced, pending *int64
	if err := s.Pool.QueryRow(ctx, `
SELECT AVG(compliance_score::float),
       SUM(CASE WHEN gcs_synced THEN 1 ELSE 0 END),
       SUM(CASE WHEN gcs_synced THEN 0 ELSE 1 END)
FROM handoffs WHERE `+where, args...).Scan(&avg, &synced, &pending); err != nil {
		return nil, err
	}
	overall := models.DefaultComplianceScore
	if avg != nil {
		overall = int(*avg)
	}
	cs := store.ComplianceSummary{Overall: overall}
	if synced != nil {
		cs.Synced = int(*synced)
	}
	if pending != nil {
		cs.PendingSync = int(*pending)
	}

	return &store.HandoffPage{
		Items:      items,
		Total:      total,
		Page:       f.Page,
		Pages:      (total + f.Limit - 1) / f.Limit,
		HasMore:    offset+f.Limit < total,
		Compliance: cs,
	}, nil
}

func (s *Store) ListHandoffsByProject(ctx context.Context, project string) ([]store.Handoff, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT `+handoffCols+` FROM handoffs WHERE project = $1 ORDER BY created_at DESC`, project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.Handoff
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

func (s *Store) HandoffStats(ctx context.Context) (*store.Stats, error) {
	st := &store.Stats{
		ByProject:   map[string]store.ProjectStats{},
		ByDirection: map[string]int{},
	}

	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM handoffs`).Scan(&st.Total); err != nil {
		return nil, err
	}

	rows, err := s.Pool.Query(ctx, `
SELECT project,
       COUNT(*),
       SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END),
       SUM(CASE WHEN status IN ('processed', 'archived', 'done') THEN 1 ELSE 0 END)
FROM handoffs GROUP BY project`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var project string
		var ps store.ProjectStats
		if err := rows.Scan(&project, &ps.Total, &ps.Pending, &ps.Done); err != nil {
			rows.Close()
			return nil, err
		}
		st.ByProject[project] = ps
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.Pool.Query(ctx, `SELECT direction, COUNT(*) FROM handoffs GROUP BY direction`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var dir string
		var n int
		if err := rows.Scan(&dir, &n); err != nil {
			rows.Close()
			return nil, err
		}
		st.ByDirection[dir] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	weekAgo := time.Now().UTC().AddDate(0, 0, -7).Unix()
	if err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM handoffs WHERE created_at >= $1`, weekAgo).Scan(&st.ThisWeek); err != nil {
		return nil, err
	}

	var synced, pending *int64
	if err := s.Pool.QueryRow(ctx, `
SELECT SUM(CASE WHEN gcs_synced THEN 1 ELSE 0 END),
       SUM(CASE WHEN gcs_synced THEN 0 ELSE 1 END)
FROM handoffs`).Scan(&synced, &pending); err != nil {
		return nil, err
	}
	if synced != nil {
		st.Synced = int(*synced)
	}
	if pending != nil {
		st.PendingSync = int(*pending)
	}
	return st, nil
}

func (s *Store) CreateCompletion(ctx context.Context, c *store.Completion) (string, error) {
	if c.HandoffID == "" {
		return "", errors.New("handoff_id required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CompletedAt.IsZero() {
		c.CompletedAt = time.Now().UTC()
	}
	_, err := s.Pool.Exec(ctx, `
INSERT INTO handoff_completions (id, handoff_id, status, commit_hash, completion_handoff_url, notes, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.HandoffID, c.Status, c.CommitHash, c.CompletionURL, c.Notes, c.CompletedAt.Unix())
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

func (s *Store) ListCompletions(ctx context.Context, handoffID string) ([]store.Completion, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT id, handoff_id, status, commit_hash, completion_handoff_url, notes, completed_at
FROM handoff_completions WHERE handoff_id = $1 ORDER BY completed_at DESC`, handoffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.Completion
	for rows.Next() {
		var c store.Completion
		var completedAt int64
		if err := rows.Scan(&c.ID, &c.HandoffID, &c.Status, &c.CommitHash, &c.CompletionURL, &c.Notes, &completedAt); err != nil {
			return nil, err
		}
		c.CompletedAt = time.Unix(completedAt, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

const uatCols = `u.id, u.handoff_id, u.status, u.total_tests, u.passed, u.failed, u.notes_count, ` +
	`u.results_text, u.tested_by, u.tested_at, u.checklist_path`

func scanUAT(r rowScanner, withProject bool) (*store.UATResult, error) {
	var u store.UATResult
	var testedAt int64
	dest := []any{
		&u.ID, &u.HandoffID, &u.Status, &u.TotalTests, &u.Passed, &u.Failed, &u.NotesCount,
		&u.ResultsText, &u.TestedBy, &testedAt, &u.ChecklistPath,
	}
	var project, version *string
	if withProject {
		dest = append(dest, &project, &version)
	}
	if err := r.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	u.TestedAt = time.Unix(0, testedAt).UTC()
	if project != nil {
		u.Project = *project
	}
	if version != nil {
		u.Version = *version
	}
	return &u, nil
}

func (s *Store) CreateUATResult(ctx context.Context, u *store.UATResult) (string, error) {
	if u.HandoffID == "" {
		return "", errors.New("handoff_id required")
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.TestedBy == "" {
		u.TestedBy = "Corey"
	}
	if u.TestedAt.IsZero() {
		u.TestedAt = time.Now().UTC()
	}
	_, err := s.Pool.Exec(ctx, `
INSERT INTO uat_results (id, handoff_id, status, total_tests, passed, failed, notes_count, results_text, tested_by, tested_at, checklist_path)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.HandoffID, u.Status, u.TotalTests, u.Passed, u.Failed, u.NotesCount,
		u.ResultsText, u.TestedBy, u.TestedAt.UnixNano(), u.ChecklistPath)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func (s *Store) GetUATResult(ctx context.Context, id string) (*store.UATResult, error) {
	return scanUAT(s.Pool.QueryRow(ctx, `
SELECT `+uatCols+`, h.project, h.version
FROM uat_results u JOIN handoffs h ON u.handoff_id = h.id
WHERE u.id = $1`, id), true)
}

func (s *Store) ListUATForHandoff(ctx context.Context, handoffID string) ([]store.UATResult, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT `+uatCols+` FROM uat_results u WHERE u.handoff_id = $1
ORDER BY u.tested_at DESC, u.id DESC`, handoffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.UATResult
	for rows.Next() {
		u, err := scanUAT(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *Store) LatestUAT(ctx context.Context, project, version string) (*store.UATResult, error) {
	q := `
SELECT ` + uatCols + `, h.project, h.version
FROM uat_results u JOIN handoffs h ON u.handoff_id = h.id
WHERE h.project = $1`
	args := []any{project}
	if version != "" {
		q += ` AND h.version = $2`
		args = append(args, version)
	}
	q += ` ORDER BY u.tested_at DESC, u.id DESC LIMIT 1`
	return scanUAT(s.Pool.QueryRow(ctx, q, args...), true)
}

func (s *Store) ListUATResults(ctx context.Context, f store.UATFilter) ([]store.UATResult, int, error) {
	if f.Limit <= 0 {
		f.Limit = 10
	}
	if f.Limit > models.DefaultHandoffListLimit {
		f.Limit = models.DefaultHandoffListLimit
	}
	var conds []string
	var args []any
	if f.Project != "" {
		args = append(args, f.Project)
		conds = append(conds, fmt.Sprintf("h.project = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("u.status = $%d", len(args)))
	}
	where := "TRUE"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}

	var total int
	if err := s.Pool.QueryRow(ctx, `
SELECT COUNT(*) FROM uat_results u JOIN handoffs h ON u.handoff_id = h.id WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`
SELECT %s, h.project, h.version
FROM uat_results u JOIN handoffs h ON u.handoff_id = h.id
WHERE %s
ORDER BY u.tested_at DESC, u.id DESC
LIMIT $%d OFFSET $%d`, uatCols, where, len(args)+1, len(args)+2)
	rows, err := s.Pool.Query(ctx, q, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []store.UATResult
	for rows.Next() {
		u, err := scanUAT(rows, true)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *u)
	}
	return out, total, rows.Err()
}

func (s *Store) LinkRequirement(ctx context.Context, l *store.RequirementLink) error {
	if l.RequirementID == "" || l.HandoffID == "" {
		return errors.New("requirement_id and handoff_id required")
	}
	if l.DiscoveredVia == "" {
		l.DiscoveredVia = models.DiscoveredManual
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := s.Pool.Exec(ctx, `
INSERT INTO requirement_handoffs (requirement_id, handoff_id, relationship, discovered_via, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (requirement_id, handoff_id, relationship) DO NOTHING`,
		l.RequirementID, l.HandoffID, l.Relationship, l.DiscoveredVia, l.CreatedAt.Unix())
	return err
}

func (s *Store) ListLinksForHandoff(ctx context.Context, handoffID string) ([]store.RequirementLink, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT requirement_id, handoff_id, relationship, discovered_via, created_at
FROM requirement_handoffs WHERE handoff_id = $1`, handoffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.RequirementLink
	for rows.Next() {
		var l store.RequirementLink
		var createdAt int64
		if err := rows.Scan(&l.RequirementID, &l.HandoffID, &l.Relationship, &l.DiscoveredVia, &createdAt); err != nil {
			return nil, err
		}
		l.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) ListHandoffsForRequirement(ctx context.Context, requirementID string) ([]store.Handoff, error) {
	cols := "h." + strings.ReplaceAll(handoffCols, ", ", ", h.")
	rows, err := s.Pool.Query(ctx, `
SELECT `+cols+`
FROM handoffs h JOIN requirement_handoffs rh ON h.id = rh.handoff_id
WHERE rh.requirement_id = $1
ORDER BY h.created_at DESC`, requirementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.Handoff
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}
