package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coreyprator/metapm/pkg/models"
)

const handoffCols = `id, project, task, title, direction, status, content, content_hash, summary, source, ` +
	`from_entity, to_entity, version, priority, type, git_commit, git_verified, gcs_path, gcs_synced, gcs_url, ` +
	`gcs_synced_at, compliance_score, uat_status, uat_passed, uat_failed, uat_date, read_at, completed_at, ` +
	`created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHandoff(r rowScanner) (*Handoff, error) {
	var h Handoff
	var title, summary, fromEntity, toEntity, version, priority, typ sql.NullString
	var gitCommit, gcsPath, gcsURL, uatStatus sql.NullString
	var gitVerified, gcsSynced int
	var gcsSyncedAt, uatDate, readAt, completedAt, uatPassed, uatFailed sql.NullInt64
	var createdAt, updatedAt int64
	err := r.Scan(
		&h.ID, &h.Project, &h.Task, &title, &h.Direction, &h.Status, &h.Content, &h.ContentHash, &summary, &h.Source,
		&fromEntity, &toEntity, &version, &priority, &typ, &gitCommit, &gitVerified, &gcsPath, &gcsSynced, &gcsURL,
		&gcsSyncedAt, &h.ComplianceScore, &uatStatus, &uatPassed, &uatFailed, &uatDate, &readAt, &completedAt,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	h.Title = nullStr(title)
	h.Summary = nullStr(summary)
	h.FromEntity = nullStr(fromEntity)
	h.ToEntity = nullStr(toEntity)
	h.Version = nullStr(version)
	h.Priority = nullStr(priority)
	h.Type = nullStr(typ)
	h.GitCommit = nullStr(gitCommit)
	h.GitVerified = gitVerified != 0
	h.GCSPath = nullStr(gcsPath)
	h.GCSSynced = gcsSynced != 0
	h.GCSURL = nullStr(gcsURL)
	h.GCSSyncedAt = nullTime(gcsSyncedAt)
	h.UATStatus = nullStr(uatStatus)
	h.UATPassed = nullInt(uatPassed)
	h.UATFailed = nullInt(uatFailed)
	h.UATDate = nullTime(uatDate)
	h.ReadAt = nullTime(readAt)
	h.CompletedAt = nullTime(completedAt)
	h.CreatedAt = time.Unix(createdAt, 0).UTC()
	h.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &h, nil
}

func nullStr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func nullTime(ni sql.NullInt64) *time.Time {
	if !ni.Valid {
		return nil
	}
	t := time.Unix(ni.Int64, 0).UTC()
	return &t
}

func strOrNil(p *string) any {
	if p == nil || *p == "" {
		return nil
	}
	return *p
}

func unixOrNil(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.Unix()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *sqliteStore) CreateHandoff(ctx context.Context, h *Handoff) (string, error) {
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

	_, err := s.DB.ExecContext(ctx, `
INSERT INTO handoffs (`+handoffCols+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.Project, h.Task, strOrNil(h.Title), h.Direction, h.Status, h.Content, h.ContentHash,
		strOrNil(h.Summary), h.Source, strOrNil(h.FromEntity), strOrNil(h.ToEntity), strOrNil(h.Version),
		strOrNil(h.Priority), strOrNil(h.Type), strOrNil(h.GitCommit), boolInt(h.GitVerified),
		strOrNil(h.GCSPath), boolInt(h.GCSSynced), strOrNil(h.GCSURL), unixOrNil(h.GCSSyncedAt),
		h.ComplianceScore, strOrNil(h.UATStatus), intOrNil(h.UATPassed), intOrNil(h.UATFailed),
		unixOrNil(h.UATDate), unixOrNil(h.ReadAt), unixOrNil(h.CompletedAt),
		h.CreatedAt.Unix(), h.UpdatedAt.Unix())
	if err != nil {
		if strings.Contains(err.Error(), "handoffs.content_hash") {
			return "", ErrDuplicateContent
		}
		return "", err
	}
	return h.ID, nil
}

func intOrNil(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func (s *sqliteStore) GetHandoff(ctx context.Context, id string) (*Handoff, error) {
	return scanHandoff(s.DB.QueryRowContext(ctx, `SELECT `+handoffCols+` FROM handoffs WHERE id = ?`, id))
}

func (s *sqliteStore) GetHandoffByContentHash(ctx context.Context, hash string) (*Handoff, error) {
	return scanHandoff(s.stmtGetByHash.QueryRowContext(ctx, hash))
}

func (s *sqliteStore) GetHandoffByGCSPath(ctx context.Context, path string) (*Handoff, error) {
	return scanHandoff(s.stmtGetByGCSPath.QueryRowContext(ctx, path))
}

func (s *sqliteStore) FindHandoffByProjectVersion(ctx context.Context, project, version string) (*Handoff, error) {
	return scanHandoff(s.DB.QueryRowContext(ctx, `
SELECT `+handoffCols+` FROM handoffs
WHERE project = ? AND task LIKE ?
ORDER BY created_at DESC LIMIT 1`, project, "%"+version+"%"))
}

func (s *sqliteStore) UpdateHandoff(ctx context.Context, id string, p HandoffPatch) (*Handoff, error) {
	var set []string
	var args []any
	add := func(col string, v any) {
		set = append(set, col+" = ?")
		args = append(args, v)
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
		add("git_verified", boolInt(*p.GitVerified))
	}
	if p.GCSSynced != nil {
		add("gcs_synced", boolInt(*p.GCSSynced))
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

	res, err := s.DB.ExecContext(ctx, `UPDATE handoffs SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetHandoff(ctx, id)
}

func (s *sqliteStore) UpdateHandoffContent(ctx context.Context, id, content string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE handoffs SET content = ?, updated_at = ? WHERE id = ?`,
		content, time.Now().UTC().Unix(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// handoffSortCols is the sort whitelist; anything else falls back to created_at.
var handoffSortCols = map[string]bool{
	"created_at": true, "updated_at": true, "project": true,
	"task": true, "status": true, "direction": true,
}

func buildHandoffWhere(f HandoffFilter) (string, []any) {
	var conds []string
	var args []any
	if f.Project != "" {
		conds = append(conds, "project = ?")
		args = append(args, f.Project)
	}
	if len(f.Statuses) > 0 {
		conds = append(conds, "status IN (?"+strings.Repeat(", ?", len(f.Statuses)-1)+")")
		for _, st := range f.Statuses {
			args = append(args, strings.TrimSpace(st))
		}
	}
	if f.Direction != "" {
		conds = append(conds, "direction = ?")
		args = append(args, f.Direction)
	}
	switch f.GCSSync {
	case "synced":
		conds = append(conds, "gcs_synced = 1")
	case "pending":
		conds = append(conds, "gcs_synced = 0")
	}
	if f.Search != "" {
		conds = append(conds, "(content LIKE ? OR title LIKE ? OR task LIKE ?)")
		term := "%" + f.Search + "%"
		args = append(args, term, term, term)
	}
	if len(conds) == 0 {
		return "1=1", nil
	}
	return strings.Join(conds, " AND "), args
}

func (s *sqliteStore) ListHandoffs(ctx context.Context, f HandoffFilter) (*HandoffPage, error) {
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
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM handoffs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	offset := (f.Page - 1) * f.Limit
	rows, err := s.DB.QueryContext(ctx, `
SELECT `+handoffCols+` FROM handoffs
WHERE `+where+`
ORDER BY `+sortCol+` `+order+`
LIMIT ? OFFSET ?`, append(args, f.Limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Handoff
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

	var avg sql.NullFloat64
	var synced, pending sql.NullInt64
	if err := s.DB.QueryRowContext(ctx, `
SELECT AVG(CAST(compliance_score AS REAL)),
       SUM(CASE WHEN gcs_synced = 1 THEN 1 ELSE 0 END),
       SUM(CASE WHEN gcs_synced = 0 THEN 1 ELSE 0 END)
FROM handoffs WHERE `+where, args...).Scan(&avg, &synced, &pending); err != nil {
		return nil, err
	}
	overall := models.DefaultComplianceScore
	if avg.Valid {
		overall = int(avg.Float64)
	}

	return &HandoffPage{
		Items:   items,
		Total:   total,
		Page:    f.Page,
		Pages:   (total + f.Limit - 1) / f.Limit,
		HasMore: offset+f.Limit < total,
		Compliance: ComplianceSummary{
			Overall:     overall,
			Synced:      int(synced.Int64),
			PendingSync: int(pending.Int64),
		},
	}, nil
}

func (s *sqliteStore) ListHandoffsByProject(ctx context.Context, project string) ([]Handoff, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT `+handoffCols+` FROM handoffs WHERE project = ? ORDER BY created_at DESC`, project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Handoff
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

func (s *sqliteStore) HandoffStats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		ByProject:   map[string]ProjectStats{},
		ByDirection: map[string]int{},
	}

	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM handoffs`).Scan(&st.Total); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `
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
		var ps ProjectStats
		if err := rows.Scan(&project, &ps.Total, &ps.Pending, &ps.Done); err != nil {
			_ = rows.Close()
			return nil, err
		}
		st.ByProject[project] = ps
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	rows, err = s.DB.QueryContext(ctx, `SELECT direction, COUNT(*) FROM handoffs GROUP BY direction`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var dir string
		var n int
		if err := rows.Scan(&dir, &n); err != nil {
			_ = rows.Close()
			return nil, err
		}
		st.ByDirection[dir] = n
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	weekAgo := time.Now().UTC().AddDate(0, 0, -7).Unix()
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM handoffs WHERE created_at >= ?`, weekAgo).Scan(&st.ThisWeek); err != nil {
		return nil, err
	}

	var synced, pending sql.NullInt64
	if err := s.DB.QueryRowContext(ctx, `
SELECT SUM(CASE WHEN gcs_synced = 1 THEN 1 ELSE 0 END),
       SUM(CASE WHEN gcs_synced = 0 THEN 1 ELSE 0 END)
FROM handoffs`).Scan(&synced, &pending); err != nil {
		return nil, err
	}
	st.Synced = int(synced.Int64)
	st.PendingSync = int(pending.Int64)
	return st, nil
}

func (s *sqliteStore) CreateCompletion(ctx context.Context, c *Completion) (string, error) {
	if c.HandoffID == "" {
		return "", errors.New("handoff_id required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CompletedAt.IsZero() {
		c.CompletedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO handoff_completions (id, handoff_id, status, commit_hash, completion_handoff_url, notes, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.HandoffID, c.Status, strOrNil(c.CommitHash), strOrNil(c.CompletionURL),
		strOrNil(c.Notes), c.CompletedAt.Unix())
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

func (s *sqliteStore) ListCompletions(ctx context.Context, handoffID string) ([]Completion, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, handoff_id, status, commit_hash, completion_handoff_url, notes, completed_at
FROM handoff_completions WHERE handoff_id = ? ORDER BY completed_at DESC`, handoffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Completion
	for rows.Next() {
		var c Completion
		var commit, url, notes sql.NullString
		var completedAt int64
		if err := rows.Scan(&c.ID, &c.HandoffID, &c.Status, &commit, &url, &notes, &completedAt); err != nil {
			return nil, err
		}
		c.CommitHash = nullStr(commit)
		c.CompletionURL = nullStr(url)
		c.Notes = nullStr(notes)
		c.CompletedAt = time.Unix(completedAt, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

const uatCols = `u.id, u.handoff_id, u.status, u.total_tests, u.passed, u.failed, u.notes_count, ` +
	`u.results_text, u.tested_by, u.tested_at, u.checklist_path`

func scanUAT(r rowScanner, withProject bool) (*UATResult, error) {
	var u UATResult
	var resultsText, checklistPath sql.NullString
	var testedAt int64
	dest := []any{
		&u.ID, &u.HandoffID, &u.Status, &u.TotalTests, &u.Passed, &u.Failed, &u.NotesCount,
		&resultsText, &u.TestedBy, &testedAt, &checklistPath,
	}
	var project, version sql.NullString
	if withProject {
		dest = append(dest, &project, &version)
	}
	if err := r.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.ResultsText = nullStr(resultsText)
	u.ChecklistPath = nullStr(checklistPath)
	u.TestedAt = time.Unix(0, testedAt).UTC()
	u.Project = project.String
	u.Version = version.String
	return &u, nil
}

func (s *sqliteStore) CreateUATResult(ctx context.Context, u *UATResult) (string, error) {
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
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO uat_results (id, handoff_id, status, total_tests, passed, failed, notes_count, results_text, tested_by, tested_at, checklist_path)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.HandoffID, u.Status, u.TotalTests, u.Passed, u.Failed, u.NotesCount,
		strOrNil(u.ResultsText), u.TestedBy, u.TestedAt.UnixNano(), strOrNil(u.ChecklistPath))
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func (s *sqliteStore) GetUATResult(ctx context.Context, id string) (*UATResult, error) {
	return scanUAT(s.DB.QueryRowContext(ctx, `
SELECT `+uatCols+`, h.project, h.version
FROM uat_results u JOIN handoffs h ON u.handoff_id = h.id
WHERE u.id = ?`, id), true)
}

func (s *sqliteStore) ListUATForHandoff(ctx context.Context, handoffID string) ([]UATResult, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT `+uatCols+` FROM uat_results u WHERE u.handoff_id = ?
ORDER BY u.tested_at DESC, u.rowid DESC`, handoffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UATResult
	for rows.Next() {
		u, err := scanUAT(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *sqliteStore) LatestUAT(ctx context.Context, project, version string) (*UATResult, error) {
	q := `
SELECT ` + uatCols + `, h.project, h.version
FROM uat_results u JOIN handoffs h ON u.handoff_id = h.id
WHERE h.project = ?`
	args := []any{project}
	if version != "" {
		q += ` AND h.version = ?`
		args = append(args, version)
	}
	q += ` ORDER BY u.tested_at DESC, u.rowid DESC LIMIT 1`
	return scanUAT(s.DB.QueryRowContext(ctx, q, args...), true)
}

func (s *sqliteStore) ListUATResults(ctx context.Context, f UATFilter) ([]UATResult, int, error) {
	if f.Limit <= 0 {
		f.Limit = 10
	}
	if f.Limit > models.DefaultHandoffListLimit {
		f.Limit = models.DefaultHandoffListLimit
	}
	var conds []string
	var args []any
	if f.Project != "" {
		conds = append(conds, "h.project = ?")
		args = append(args, f.Project)
	}
	if f.Status != "" {
		conds = append(conds, "u.status = ?")
		args = append(args, f.Status)
	}
	where := "1=1"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}

	var total int
	if err := s.DB.QueryRowContext(ctx, `
SELECT COUNT(*) FROM uat_results u JOIN handoffs h ON u.handoff_id = h.id WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.DB.QueryContext(ctx, `
SELECT `+uatCols+`, h.project, h.version
FROM uat_results u JOIN handoffs h ON u.handoff_id = h.id
WHERE `+where+`
ORDER BY u.tested_at DESC, u.rowid DESC
LIMIT ? OFFSET ?`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []UATResult
	for rows.Next() {
		u, err := scanUAT(rows, true)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *u)
	}
	return out, total, rows.Err()
}

func (s *sqliteStore) LinkRequirement(ctx context.Context, l *RequirementLink) error {
	if l.RequirementID == "" || l.HandoffID == "" {
		return errors.New("requirement_id and handoff_id required")
	}
	if l.DiscoveredVia == "" {
		l.DiscoveredVia = models.DiscoveredManual
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT OR IGNORE INTO requirement_handoffs (requirement_id, handoff_id, relationship, discovered_via, created_at)
VALUES (?, ?, ?, ?, ?)`,
		l.RequirementID, l.HandoffID, l.Relationship, l.DiscoveredVia, l.CreatedAt.Unix())
	return err
}

func (s *sqliteStore) ListLinksForHandoff(ctx context.Context, handoffID string) ([]RequirementLink, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT requirement_id, handoff_id, relationship, discovered_via, created_at
FROM requirement_handoffs WHERE handoff_id = ?`, handoffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RequirementLink
	for rows.Next() {
		var l RequirementLink
		var createdAt int64
		if err := rows.Scan(&l.RequirementID, &l.HandoffID, &l.Relationship, &l.DiscoveredVia, &createdAt); err != nil {
			return nil, err
		}
		l.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *sqliteStore) ListHandoffsForRequirement(ctx context.Context, requirementID string) ([]Handoff, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT `+qualify(handoffCols, "h")+`
FROM handoffs h JOIN requirement_handoffs rh ON h.id = rh.handoff_id
WHERE rh.requirement_id = ?
ORDER BY h.created_at DESC`, requirementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Handoff
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// qualify prefixes each column in a comma-separated list with a table alias.
func qualify(cols, alias string) string {
	parts := strings.Split(cols, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
