package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/coreyprator/metapm/internal/ingest"
	"github.com/coreyprator/metapm/internal/lifecycle"
	"github.com/coreyprator/metapm/internal/otel"
	"github.com/coreyprator/metapm/internal/store"
	"github.com/coreyprator/metapm/internal/store/postgres"
	"github.com/coreyprator/metapm/pkg/models"
)

// defaultMaxRequestBodyBytes is the default limit for request body size (1 MiB) to prevent OOM.
const defaultMaxRequestBodyBytes = 1 << 20

// limitBody wraps r.Body with http.MaxBytesReader so handlers cannot read more than maxBytes.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}

// bodyLimitMiddleware limits request body size for POST, PUT, PATCH to prevent OOM.
func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			limitBody(w, r, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware sets CORS headers for dev mode (dashboard dev server on a different origin).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServerOptions configures the HTTP server (home dir, listen addr, API key, DB, bucket, metrics).
type ServerOptions struct {
	Home           string
	Addr           string
	Dev            bool
	APIKey         string       // if set, mutating requests require X-API-Key or Bearer token
	DBDriver       string       // "sqlite" (default) or "postgres"
	DBURL          string       // for postgres: connection string (or set DATABASE_URL env)
	MetricsHandler http.Handler // if set, used for /metrics (e.g. OTel Prometheus handler)
	UseOtelHTTP    bool         // if true, wrap handler with otelhttp for request metrics

	// Bucket sync; when Bucket is nil, POST /handoffs/sync returns 503.
	Bucket     ingest.ObjectStore
	BucketName string
	Projects   []string
}

// App holds the HTTP server, SSE hub, store, and optional bucket syncer.
type App struct {
	Server *http.Server
	Hub    *SSEHub
	Store  store.Store
	Syncer *ingest.Syncer
	Home   string
}

// NewServer builds an HTTP server from options; kept for convenience (prefer NewApp).
func NewServer(opts ServerOptions) *http.Server {
	app, err := NewApp(opts)
	if err != nil {
		panic(err)
	}
	return app.Server
}

// NewApp creates the HTTP app (server, hub, store, syncer) and registers all routes.
func NewApp(opts ServerOptions) (*App, error) {
	hub := NewSSEHub()
	mux := http.NewServeMux()

	var st store.Store
	var err error
	if opts.DBDriver == "postgres" {
		st, err = postgres.Open(opts.DBURL)
	} else {
		st, err = store.Open(opts.Home)
	}
	if err != nil {
		return nil, err
	}

	var syncer *ingest.Syncer
	if opts.Bucket != nil {
		syncer = &ingest.Syncer{
			Store:      st,
			Bucket:     opts.Bucket,
			BucketName: opts.BucketName,
			Projects:   opts.Projects,
		}
	}

	app := &App{Hub: hub, Store: st, Syncer: syncer, Home: opts.Home}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})

	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	} else {
		mux.HandleFunc("/metrics", app.handlePlainMetrics)
	}

	mux.HandleFunc("/stream", hub.Handler())

	mux.HandleFunc("/handoffs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			app.handleListHandoffs(w, r)
		case http.MethodPost:
			app.handleCreateHandoff(w, r)
		default:
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/handoffs/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/handoffs/")
		parts := strings.Split(rest, "/")
		if len(parts) < 1 || parts[0] == "" {
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}

		switch parts[0] {
		case "stats":
			app.requireMethod(w, r, http.MethodGet, app.handleStats)
			return
		case "sync":
			app.requireMethod(w, r, http.MethodPost, app.handleSync)
			return
		case "export":
			if len(parts) >= 2 && parts[1] == "log" {
				app.requireMethod(w, r, http.MethodGet, app.handleExportLog)
				return
			}
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}

		id := parts[0]
		if len(parts) == 1 {
			switch r.Method {
			case http.MethodGet:
				app.handleGetHandoff(w, r, id)
			case http.MethodPatch:
				app.handlePatchHandoff(w, r, id)
			default:
				writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			}
			return
		}

		switch parts[1] {
		case "content":
			app.requireMethodID(w, r, http.MethodGet, id, app.handleGetContent)
		case "complete":
			app.requireMethodID(w, r, http.MethodPost, id, app.handleComplete)
		case "completions":
			app.requireMethodID(w, r, http.MethodGet, id, app.handleListCompletions)
		case "uat":
			switch r.Method {
			case http.MethodPost:
				app.handleSubmitUAT(w, r, id)
			case http.MethodGet:
				app.handleUATHistory(w, r, id)
			default:
				writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			}
		default:
			writeJSONError(w, http.StatusNotFound, "not found")
		}
	})

	mux.HandleFunc("/uat/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/uat/")
		parts := strings.Split(rest, "/")
		if len(parts) < 1 || parts[0] == "" {
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}
		switch parts[0] {
		case "submit":
			app.requireMethod(w, r, http.MethodPost, app.handleDirectUAT)
		case "latest":
			app.requireMethod(w, r, http.MethodGet, app.handleLatestUAT)
		case "list":
			app.requireMethod(w, r, http.MethodGet, app.handleListUAT)
		default:
			app.requireMethodID(w, r, http.MethodGet, parts[0], app.handleGetUAT)
		}
	})

	mux.HandleFunc("/requirements/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/requirements/")
		parts := strings.Split(rest, "/")
		if len(parts) < 2 || parts[0] == "" || parts[1] != "handoffs" {
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}
		switch r.Method {
		case http.MethodGet:
			app.handleRequirementHandoffs(w, r, parts[0])
		case http.MethodPost:
			app.handleLinkRequirement(w, r, parts[0])
		default:
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(defaultMaxRequestBodyBytes, handler)
	if opts.Dev {
		handler = corsMiddleware(handler)
	}
	if opts.APIKey != "" {
		handler = apiKeyMiddleware(opts.APIKey, handler)
	}
	handler = requestLogMiddleware(handler)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "metapm")
	}
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv.RegisterOnShutdown(func() {
		_ = st.Close()
	})
	app.Server = srv
	return app, nil
}

func (a *App) requireMethod(w http.ResponseWriter, r *http.Request, method string, h func(http.ResponseWriter, *http.Request)) {
	if r.Method != method {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h(w, r)
}

func (a *App) requireMethodID(w http.ResponseWriter, r *http.Request, method, id string, h func(http.ResponseWriter, *http.Request, string)) {
	if r.Method != method {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h(w, r, id)
}

// --- Handoffs ---

func (a *App) handleCreateHandoff(w http.ResponseWriter, r *http.Request) {
	var body models.HandoffCreate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Content == "" {
		writeJSONError(w, http.StatusBadRequest, "content required")
		return
	}
	res, err := ingest.Ingest(r.Context(), a.Store, ingest.Request{
		Project:   body.Project,
		Task:      body.Task,
		Direction: body.Direction,
		GitCommit: body.GitCommit,
		Content:   body.Content,
		Source:    models.SourceAPI,
	})
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := a.Store.GetHandoff(r.Context(), res.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	otel.RecordHandoffOp(r.Context(), "create", created.Project, created.Status)
	if !res.Duplicate {
		a.Hub.PublishEvent(EventHandoffCreated, map[string]any{"id": res.ID, "project": created.Project})
	}
	writeJSON(w, models.HandoffCreated{
		ID:        res.ID,
		Project:   created.Project,
		Task:      created.Task,
		Direction: created.Direction,
		Duplicate: res.Duplicate,
	})
}

func (a *App) handleListHandoffs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.HandoffFilter{
		Project:   q.Get("project"),
		Direction: q.Get("direction"),
		GCSSync:   q.Get("gcs_sync"),
		Search:    q.Get("search"),
		Sort:      q.Get("sort"),
		Order:     q.Get("order"),
		Page:      intQuery(q.Get("page"), 1),
		Limit:     intQuery(q.Get("limit"), 20),
	}
	if s := q.Get("status"); s != "" {
		f.Statuses = strings.Split(s, ",")
	}
	page, err := a.Store.ListHandoffs(r.Context(), f)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	items := make([]models.Handoff, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, toModel(&page.Items[i], false))
	}
	writeJSON(w, models.HandoffList{
		Items:   items,
		Total:   page.Total,
		Page:    page.Page,
		Pages:   page.Pages,
		HasMore: page.HasMore,
		ComplianceSummary: models.ComplianceSummary{
			Overall:     page.Compliance.Overall,
			Synced:      page.Compliance.Synced,
			PendingSync: page.Compliance.PendingSync,
		},
	})
}

func (a *App) handleGetHandoff(w http.ResponseWriter, r *http.Request, id string) {
	h, err := a.Store.GetHandoff(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, toModel(h, true))
}

func (a *App) handleGetContent(w http.ResponseWriter, r *http.Request, id string) {
	h, err := a.Store.GetHandoff(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(h.Content))
}

// patchRequest is the whitelist of mutable fields. Unknown JSON fields are
// silently ignored.
type patchRequest struct {
	Status      *string    `json:"status"`
	GitCommit   *string    `json:"git_commit"`
	GitVerified *bool      `json:"git_verified"`
	GCSSynced   *bool      `json:"gcs_synced"`
	GCSURL      *string    `json:"gcs_url"`
	GCSSyncedAt *time.Time `json:"gcs_synced_at"`
	ReadAt      *time.Time `json:"read_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (a *App) handlePatchHandoff(w http.ResponseWriter, r *http.Request, id string) {
	var body patchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	cur, err := a.Store.GetHandoff(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	p := store.HandoffPatch{
		Status:      body.Status,
		GitCommit:   body.GitCommit,
		GitVerified: body.GitVerified,
		GCSSynced:   body.GCSSynced,
		GCSURL:      body.GCSURL,
		GCSSyncedAt: body.GCSSyncedAt,
		ReadAt:      body.ReadAt,
		CompletedAt: body.CompletedAt,
	}
	if p.Status != nil {
		if err := lifecycle.ValidateTransition(cur.Status, *p.Status); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		lifecycle.StampTimestamps(cur, &p, time.Now().UTC())
	}
	h, err := a.Store.UpdateHandoff(r.Context(), id, p)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	otel.RecordHandoffOp(r.Context(), "update", h.Project, h.Status)
	a.Hub.PublishEvent(EventHandoffUpdated, map[string]any{"id": id, "status": h.Status})
	writeJSON(w, toModel(h, false))
}

func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.Store.HandoffStats(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := models.Stats{
		Total:       st.Total,
		ByProject:   map[string]models.ProjectStats{},
		ByDirection: st.ByDirection,
		ThisWeek:    st.ThisWeek,
		GCSSyncStatus: models.SyncStatus{
			Synced:  st.Synced,
			Pending: st.PendingSync,
		},
	}
	for project, ps := range st.ByProject {
		out.ByProject[project] = models.ProjectStats{
			Total:   ps.Total,
			Pending: ps.Pending,
			Done:    ps.Done,
			Emoji:   models.EmojiFor(project),
		}
	}
	writeJSON(w, out)
}

func (a *App) handleSync(w http.ResponseWriter, r *http.Request) {
	if a.Syncer == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "bucket sync not configured")
		return
	}
	sum := a.Syncer.Run(r.Context())
	if sum.Imported > 0 {
		a.Hub.PublishEvent(EventSyncFinished, map[string]any{"imported": sum.Imported})
	}
	writeJSON(w, sum)
}

func (a *App) handleExportLog(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	if project == "" {
		writeJSONError(w, http.StatusBadRequest, "project query required")
		return
	}
	items, err := a.Store.ListHandoffsByProject(r.Context(), project)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if r.URL.Query().Get("format") == "json" {
		out := make([]models.Handoff, 0, len(items))
		for i := range items {
			out = append(out, toModel(&items[i], false))
		}
		writeJSON(w, map[string]any{"project": project, "handoffs": out})
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(RenderHandoffLog(project, items)))
}

// RenderHandoffLog renders the HANDOFF_LOG markdown table for a project.
func RenderHandoffLog(project string, items []store.Handoff) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s HANDOFF LOG\n\n", models.EmojiFor(project), project)
	b.WriteString("| Date | Version | Task | Direction | Status | UAT |\n")
	b.WriteString("|------|---------|------|-----------|--------|-----|\n")
	for _, h := range items {
		version := "-"
		if h.Version != nil {
			version = *h.Version
		}
		uat := "-"
		if h.UATStatus != nil {
			uat = *h.UATStatus
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			h.CreatedAt.Format("2006-01-02"), version, h.Task, h.Direction, h.Status, uat)
	}
	return b.String()
}

// --- Completions ---

func (a *App) handleComplete(w http.ResponseWriter, r *http.Request, id string) {
	var body models.CompletionCreate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := lifecycle.ValidateCompletion(body); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	cur, err := a.Store.GetHandoff(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	c := &store.Completion{HandoffID: id, Status: body.Status}
	setOpt(&c.CommitHash, body.CommitHash)
	setOpt(&c.CompletionURL, body.CompletionURL)
	setOpt(&c.Notes, body.Notes)
	cid, err := a.Store.CreateCompletion(r.Context(), c)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A full completion moves the handoff forward; partial/blocked leave it
	// where it is.
	newStatus := lifecycle.CompletionOutcomeStatus(body.Status)
	if lifecycle.ValidateTransition(cur.Status, newStatus) == nil && cur.Status != newStatus {
		p := store.HandoffPatch{Status: &newStatus}
		lifecycle.StampTimestamps(cur, &p, time.Now().UTC())
		if _, err := a.Store.UpdateHandoff(r.Context(), id, p); err != nil {
			slog.Warn("completion status update failed", "id", id, "error", err)
		}
	}
	otel.RecordHandoffOp(r.Context(), "complete", cur.Project, body.Status)
	a.Hub.PublishEvent(EventHandoffCompleted, map[string]any{"id": id, "completion_status": body.Status})
	writeJSON(w, map[string]any{"completion_id": cid, "handoff_id": id, "status": body.Status})
}

func (a *App) handleListCompletions(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := a.Store.GetHandoff(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	list, err := a.Store.ListCompletions(r.Context(), id)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]models.Completion, 0, len(list))
	for _, c := range list {
		out = append(out, models.Completion{
			ID:            c.ID,
			HandoffID:     c.HandoffID,
			Status:        c.Status,
			CommitHash:    c.CommitHash,
			CompletionURL: c.CompletionURL,
			Notes:         c.Notes,
			CompletedAt:   c.CompletedAt,
		})
	}
	writeJSON(w, map[string]any{"handoff_id": id, "completions": out})
}

// --- UAT ---

func (a *App) handleSubmitUAT(w http.ResponseWriter, r *http.Request, id string) {
	var body models.UATSubmit
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	cur, err := a.Store.GetHandoff(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	res, err := a.recordUAT(r, cur, body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, res)
}

// recordUAT validates and stores a UAT result, then applies the outcome to
// the handoff (passed closes it, anything else sends it back for fixes).
func (a *App) recordUAT(r *http.Request, h *store.Handoff, body models.UATSubmit) (*models.UATResult, error) {
	if err := lifecycle.ValidateUAT(body); err != nil {
		return nil, err
	}
	resultsText := body.ResultsText
	if strings.TrimSpace(resultsText) == "" {
		resultsText = lifecycle.RenderCases(body.Cases)
	}
	notesCount := body.NotesCount
	if notesCount == 0 {
		for _, c := range body.Cases {
			if c.Notes != "" {
				notesCount++
			}
		}
	}
	u := &store.UATResult{
		HandoffID:   h.ID,
		Status:      body.Status,
		TotalTests:  body.TotalTests,
		Passed:      body.Passed,
		Failed:      body.Failed,
		NotesCount:  notesCount,
		ResultsText: &resultsText,
		TestedBy:    body.TestedBy,
	}
	setOpt(&u.ChecklistPath, body.ChecklistPath)
	if _, err := a.Store.CreateUATResult(r.Context(), u); err != nil {
		return nil, err
	}

	newStatus := lifecycle.UATOutcomeStatus(body.Status)
	now := time.Now().UTC()
	p := store.HandoffPatch{
		Status:    &newStatus,
		UATStatus: &body.Status,
		UATPassed: &body.Passed,
		UATFailed: &body.Failed,
		UATDate:   &now,
	}
	lifecycle.StampTimestamps(h, &p, now)
	if _, err := a.Store.UpdateHandoff(r.Context(), h.ID, p); err != nil {
		slog.Warn("uat status update failed", "id", h.ID, "error", err)
	}
	otel.RecordHandoffOp(r.Context(), "uat", h.Project, body.Status)
	a.Hub.PublishEvent(EventUATSubmitted, map[string]any{
		"handoff_id": h.ID, "status": body.Status, "project": h.Project,
	})
	return &models.UATResult{
		ID:          u.ID,
		HandoffID:   h.ID,
		Project:     h.Project,
		Status:      u.Status,
		TotalTests:  u.TotalTests,
		Passed:      u.Passed,
		Failed:      u.Failed,
		NotesCount:  u.NotesCount,
		ResultsText: u.ResultsText,
		TestedBy:    u.TestedBy,
		TestedAt:    u.TestedAt,
	}, nil
}

func (a *App) handleUATHistory(w http.ResponseWriter, r *http.Request, id string) {
	h, err := a.Store.GetHandoff(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	attempts, err := a.Store.ListUATForHandoff(r.Context(), id)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]models.UATResult, 0, len(attempts))
	for _, u := range attempts {
		out = append(out, toUATModel(&u))
	}
	var latest *string
	if len(attempts) > 0 {
		latest = &attempts[0].Status
	}
	writeJSON(w, models.UATHistory{HandoffID: h.ID, Attempts: out, LatestStatus: latest})
}

// handleDirectUAT records a checklist result against the handoff for a
// project/version, creating one when none exists.
func (a *App) handleDirectUAT(w http.ResponseWriter, r *http.Request) {
	var body models.UATDirectSubmit
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Project == "" || body.Version == "" {
		writeJSONError(w, http.StatusBadRequest, "project and version required")
		return
	}

	h, err := a.Store.FindHandoffByProjectVersion(r.Context(), body.Project, body.Version)
	switch {
	case errors.Is(err, store.ErrNotFound):
		h, err = a.createUATHandoff(r, body)
	case err == nil:
		// Re-submission for a known version replaces the handoff document
		// with the fresh checklist results.
		err = a.Store.UpdateHandoffContent(r.Context(), h.ID, uatHandoffContent(body))
	}
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.recordUAT(r, h, models.UATSubmit{
		Status:        body.Status,
		TotalTests:    body.TotalTests,
		Passed:        body.Passed,
		Failed:        body.Failed,
		Blocked:       body.Blocked,
		NotesCount:    body.NotesCount,
		ResultsText:   body.ResultsText,
		Cases:         body.Cases,
		TestedBy:      body.TestedBy,
		ChecklistPath: body.ChecklistPath,
	})
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	res.Version = body.Version
	writeJSON(w, res)
}

func uatHandoffContent(body models.UATDirectSubmit) string {
	feature := body.Feature
	if feature == "" {
		feature = "UAT checklist"
	}
	return fmt.Sprintf("# %s %s UAT\n\n**Project**: %s\n**Task**: %s %s\n\n%s\n",
		body.Project, body.Version, body.Project, body.Version, feature, body.ResultsText)
}

func (a *App) createUATHandoff(r *http.Request, body models.UATDirectSubmit) (*store.Handoff, error) {
	feature := body.Feature
	if feature == "" {
		feature = "UAT checklist"
	}
	res, err := ingest.Ingest(r.Context(), a.Store, ingest.Request{
		Project: body.Project,
		Task:    body.Version + " " + feature,
		Content: uatHandoffContent(body),
		Source:  models.SourceUATChecklist,
	})
	if err != nil {
		return nil, err
	}
	return a.Store.GetHandoff(r.Context(), res.ID)
}

func (a *App) handleLatestUAT(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	if project == "" {
		writeJSONError(w, http.StatusBadRequest, "project query required")
		return
	}
	u, err := a.Store.LatestUAT(r.Context(), project, r.URL.Query().Get("version"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, toUATModel(u))
}

func (a *App) handleListUAT(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.UATFilter{
		Project: q.Get("project"),
		Status:  q.Get("status"),
		Limit:   intQuery(q.Get("limit"), 10),
		Offset:  intQuery(q.Get("offset"), 0),
	}
	items, total, err := a.Store.ListUATResults(r.Context(), f)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]models.UATResult, 0, len(items))
	for _, u := range items {
		out = append(out, toUATModel(&u))
	}
	writeJSON(w, models.UATList{Results: out, Total: total})
}

func (a *App) handleGetUAT(w http.ResponseWriter, r *http.Request, id string) {
	u, err := a.Store.GetUATResult(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, toUATModel(u))
}

// --- Requirement links ---

func (a *App) handleRequirementHandoffs(w http.ResponseWriter, r *http.Request, requirementID string) {
	items, err := a.Store.ListHandoffsForRequirement(r.Context(), requirementID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]models.Handoff, 0, len(items))
	for i := range items {
		out = append(out, toModel(&items[i], false))
	}
	writeJSON(w, map[string]any{"requirement_id": requirementID, "handoffs": out})
}

func (a *App) handleLinkRequirement(w http.ResponseWriter, r *http.Request, requirementID string) {
	var body models.RequirementLinkCreate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.HandoffID == "" {
		writeJSONError(w, http.StatusBadRequest, "handoff_id required")
		return
	}
	switch body.Relationship {
	case models.RelImplements, models.RelFixes, models.RelTests, models.RelEnhances:
	default:
		writeJSONError(w, http.StatusBadRequest, "invalid relationship")
		return
	}
	if _, err := a.Store.GetHandoff(r.Context(), body.HandoffID); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := a.Store.LinkRequirement(r.Context(), &store.RequirementLink{
		RequirementID: requirementID,
		HandoffID:     body.HandoffID,
		Relationship:  body.Relationship,
		DiscoveredVia: body.DiscoveredVia,
	}); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

// --- Metrics fallback ---

func (a *App) handlePlainMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	stats, err := a.Store.HandoffStats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var pending, done int
	for _, ps := range stats.ByProject {
		pending += ps.Pending
		done += ps.Done
	}
	_, _ = fmt.Fprintf(w, "# TYPE metapm_handoffs_total gauge\n")
	_, _ = fmt.Fprintf(w, "metapm_handoffs_total %d\n", stats.Total)
	_, _ = fmt.Fprintf(w, "metapm_handoffs_total{status=\"pending\"} %d\n", pending)
	_, _ = fmt.Fprintf(w, "metapm_handoffs_total{status=\"done\"} %d\n", done)
	_, _ = fmt.Fprintf(w, "# TYPE metapm_handoffs_synced gauge\n")
	_, _ = fmt.Fprintf(w, "metapm_handoffs_synced %d\n", stats.Synced)
	_, _ = fmt.Fprintf(w, "metapm_handoffs_pending_sync %d\n", stats.PendingSync)
}

// --- Helpers ---

func toModel(h *store.Handoff, withContent bool) models.Handoff {
	m := models.Handoff{
		ID:              h.ID,
		Project:         h.Project,
		Task:            h.Task,
		Title:           h.Title,
		Direction:       h.Direction,
		Status:          h.Status,
		Summary:         h.Summary,
		Source:          h.Source,
		FromEntity:      h.FromEntity,
		ToEntity:        h.ToEntity,
		Version:         h.Version,
		Priority:        h.Priority,
		Type:            h.Type,
		GitCommit:       h.GitCommit,
		GitVerified:     h.GitVerified,
		GCSPath:         h.GCSPath,
		GCSSynced:       h.GCSSynced,
		GCSURL:          h.GCSURL,
		GCSSyncedAt:     h.GCSSyncedAt,
		ComplianceScore: h.ComplianceScore,
		UATStatus:       h.UATStatus,
		UATPassed:       h.UATPassed,
		UATFailed:       h.UATFailed,
		UATDate:         h.UATDate,
		ReadAt:          h.ReadAt,
		CompletedAt:     h.CompletedAt,
		CreatedAt:       h.CreatedAt,
		UpdatedAt:       h.UpdatedAt,
		Emoji:           models.EmojiFor(h.Project),
	}
	if withContent {
		m.Content = h.Content
	}
	return m
}

func toUATModel(u *store.UATResult) models.UATResult {
	return models.UATResult{
		ID:            u.ID,
		HandoffID:     u.HandoffID,
		Project:       u.Project,
		Version:       u.Version,
		Status:        u.Status,
		TotalTests:    u.TotalTests,
		Passed:        u.Passed,
		Failed:        u.Failed,
		NotesCount:    u.NotesCount,
		ResultsText:   u.ResultsText,
		TestedBy:      u.TestedBy,
		TestedAt:      u.TestedAt,
		ChecklistPath: u.ChecklistPath,
	}
}

func setOpt(dst **string, v string) {
	if v != "" {
		*dst = &v
	}
}

func intQuery(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSONError(w, http.StatusInternalServerError, err.Error())
}

// responseRecorder captures status code for logging and forwards Flusher if supported.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// apiKeyMiddleware guards mutating requests. Reads, /health, /metrics, and
// the event stream stay open for the dashboard.
func apiKeyMiddleware(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key != apiKey {
			writeJSONError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		slog.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeJSONError sends a JSON body {"error": "message"} with the given status code.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}
