package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coreyprator/metapm/pkg/models"
)

func newTestApp(t *testing.T, opts ServerOptions) (*App, *httptest.Server) {
	t.Helper()
	if opts.Home == "" {
		opts.Home = t.TempDir()
	}
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	app, err := NewApp(opts)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	ts := httptest.NewServer(app.Server.Handler)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = app.Store.Close() })
	return app, ts
}

func postJSON(t *testing.T, url string, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	data, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, data
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func createHandoff(t *testing.T, ts *httptest.Server, project, task, content string) string {
	t.Helper()
	body := fmt.Sprintf(`{"project":%q,"task":%q,"direction":"cc_to_ai","content":%q}`, project, task, content)
	resp, data := postJSON(t, ts.URL+"/handoffs", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /handoffs: status=%d body=%s", resp.StatusCode, data)
	}
	var created models.HandoffCreated
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected non-empty handoff id")
	}
	return created.ID
}

func TestCreateHandoff_validationAndDuplicate(t *testing.T) {
	t.Parallel()
	_, ts := newTestApp(t, ServerOptions{})

	// Missing content
	resp, _ := postJSON(t, ts.URL+"/handoffs", `{"project":"metapm","task":"t1"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty content: status=%d", resp.StatusCode)
	}

	// Invalid JSON
	resp, _ = postJSON(t, ts.URL+"/handoffs", `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid json: status=%d", resp.StatusCode)
	}

	id := createHandoff(t, ts, "metapm", "v1.0 api", "# API Handoff\n\nv1.0 implementation notes.\n")

	// Same content again is deduplicated onto the existing record.
	resp, data := postJSON(t, ts.URL+"/handoffs",
		`{"project":"metapm","task":"v1.0 api","direction":"cc_to_ai","content":"# API Handoff\n\nv1.0 implementation notes.\n"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("duplicate POST: status=%d", resp.StatusCode)
	}
	var dup models.HandoffCreated
	if err := json.Unmarshal(data, &dup); err != nil {
		t.Fatalf("decode duplicate: %v", err)
	}
	if !dup.Duplicate {
		t.Error("expected duplicate=true on second POST with identical content")
	}
	if dup.ID != id {
		t.Errorf("duplicate returned id %s, want original %s", dup.ID, id)
	}
}

func TestCreateHandoff_metadataParsed(t *testing.T) {
	t.Parallel()
	_, ts := newTestApp(t, ServerOptions{})

	doc := "> **From**: Claude Code (Command Center)\n" +
		"> **To**: Claude.ai (Architect)\n" +
		"> **Project**: \U0001F535 HarmonyLab\n" +
		"> **Task**: v2.1.0 chord engine\n\n" +
		"# Chord Engine Handoff\n\nReady for review.\n"
	body, _ := json.Marshal(models.HandoffCreate{Project: "ignored", Task: "ignored", Content: doc})
	resp, data := postJSON(t, ts.URL+"/handoffs", string(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /handoffs: status=%d body=%s", resp.StatusCode, data)
	}
	var created models.HandoffCreated
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Project != "HarmonyLab" {
		t.Errorf("parsed project = %q, want HarmonyLab", created.Project)
	}
	if created.Task != "v2.1.0 chord engine" {
		t.Errorf("parsed task = %q", created.Task)
	}
	if created.Direction != models.DirectionCCToAI {
		t.Errorf("parsed direction = %q", created.Direction)
	}

	var full models.Handoff
	getJSON(t, ts.URL+"/handoffs/"+created.ID, &full)
	if full.Content == "" {
		t.Error("GET by id should include content")
	}
	if full.Version == nil || *full.Version != "v2.1.0" {
		t.Errorf("version = %v, want v2.1.0", full.Version)
	}

	// Raw content endpoint returns the original markdown.
	resp = getJSON(t, ts.URL+"/handoffs/"+created.ID+"/content", nil)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("content endpoint Content-Type = %q", ct)
	}
}

func TestPatchHandoff_statusTransitions(t *testing.T) {
	t.Parallel()
	_, ts := newTestApp(t, ServerOptions{})
	id := createHandoff(t, ts, "metapm", "patch test", "# Patch\n\nbody\n")

	patch := func(body string) (*http.Response, []byte) {
		req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/handoffs/"+id, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("PATCH: %v", err)
		}
		data, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return resp, data
	}

	// pending -> needs_fixes is not a legal transition
	resp, _ := patch(`{"status":"needs_fixes"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("illegal transition: status=%d", resp.StatusCode)
	}

	// pending -> read stamps read_at
	resp, data := patch(`{"status":"read"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pending->read: status=%d body=%s", resp.StatusCode, data)
	}
	var h models.Handoff
	if err := json.Unmarshal(data, &h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.Status != models.StatusRead {
		t.Errorf("status = %q, want read", h.Status)
	}
	if h.ReadAt == nil {
		t.Error("expected read_at stamped on pending->read")
	}

	// read -> done stamps completed_at
	resp, data = patch(`{"status":"done"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("read->done: status=%d body=%s", resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, &h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.CompletedAt == nil {
		t.Error("expected completed_at stamped on read->done")
	}

	// Unknown id
	req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/handoffs/nope", strings.NewReader(`{"status":"read"}`))
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PATCH unknown: %v", err)
	}
	_ = resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("patch unknown id: status=%d", resp2.StatusCode)
	}
}

func TestListHandoffs_filters(t *testing.T) {
	t.Parallel()
	_, ts := newTestApp(t, ServerOptions{})
	for i := 0; i < 3; i++ {
		createHandoff(t, ts, "ArtForge", fmt.Sprintf("task %d", i), fmt.Sprintf("# ArtForge %d\n\nbody %d\n", i, i))
	}
	createHandoff(t, ts, "Etymython", "other", "# Etymython\n\nother body\n")

	var list models.HandoffList
	getJSON(t, ts.URL+"/handoffs?project=ArtForge&limit=2", &list)
	if list.Total != 3 {
		t.Errorf("total = %d, want 3", list.Total)
	}
	if len(list.Items) != 2 || !list.HasMore {
		t.Errorf("page: items=%d has_more=%v", len(list.Items), list.HasMore)
	}
	for _, h := range list.Items {
		if h.Content != "" {
			t.Error("list items must not carry content")
		}
	}

	getJSON(t, ts.URL+"/handoffs?status=pending&search=other", &list)
	if list.Total != 1 || list.Items[0].Project != "Etymython" {
		t.Errorf("search filter: total=%d", list.Total)
	}
}

func TestCompleteHandoff(t *testing.T) {
	t.Parallel()
	_, ts := newTestApp(t, ServerOptions{})
	id := createHandoff(t, ts, "metapm", "complete test", "# Complete\n\nbody\n")

	resp, _ := postJSON(t, ts.URL+"/handoffs/"+id+"/complete", `{"status":"bogus"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid completion status: status=%d", resp.StatusCode)
	}

	resp, data := postJSON(t, ts.URL+"/handoffs/"+id+"/complete",
		`{"status":"complete","commit_hash":"abc1234","notes":"shipped"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete: status=%d body=%s", resp.StatusCode, data)
	}

	// A full completion moves the handoff to processed.
	var h models.Handoff
	getJSON(t, ts.URL+"/handoffs/"+id, &h)
	if h.Status != models.StatusProcessed {
		t.Errorf("status after completion = %q, want processed", h.Status)
	}
	if h.CompletedAt == nil {
		t.Error("expected completed_at after full completion")
	}

	var out struct {
		Completions []models.Completion `json:"completions"`
	}
	getJSON(t, ts.URL+"/handoffs/"+id+"/completions", &out)
	if len(out.Completions) != 1 {
		t.Fatalf("completions = %d, want 1", len(out.Completions))
	}
	if out.Completions[0].CommitHash == nil || *out.Completions[0].CommitHash != "abc1234" {
		t.Errorf("commit_hash = %v", out.Completions[0].CommitHash)
	}
}

func TestUATSubmitAndHistory(t *testing.T) {
	t.Parallel()
	_, ts := newTestApp(t, ServerOptions{})
	id := createHandoff(t, ts, "HarmonyLab", "v2.1.0 uat", "# UAT target\n\nbody\n")

	// Counts exceeding total_tests are rejected.
	resp, _ := postJSON(t, ts.URL+"/handoffs/"+id+"/uat",
		`{"status":"passed","total_tests":5,"passed":3,"failed":3,"results_text":"x"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("overcounted uat: status=%d", resp.StatusCode)
	}

	// Failed run sends the handoff back for fixes.
	resp, data := postJSON(t, ts.URL+"/handoffs/"+id+"/uat",
		`{"status":"failed","total_tests":4,"passed":2,"failed":2,"cases":[{"name":"login","status":"passed"},{"name":"export","status":"failed","notes":"timeout"}]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("uat failed run: status=%d body=%s", resp.StatusCode, data)
	}
	var ur models.UATResult
	if err := json.Unmarshal(data, &ur); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ur.ResultsText == nil || !strings.Contains(*ur.ResultsText, "[FAILED] export") {
		t.Errorf("results_text not rendered from cases: %v", ur.ResultsText)
	}
	if ur.NotesCount != 1 {
		t.Errorf("notes_count = %d, want 1", ur.NotesCount)
	}

	var h models.Handoff
	getJSON(t, ts.URL+"/handoffs/"+id, &h)
	if h.Status != models.StatusNeedsFixes {
		t.Errorf("status after failed uat = %q, want needs_fixes", h.Status)
	}

	// Passing run closes it out.
	resp, _ = postJSON(t, ts.URL+"/handoffs/"+id+"/uat",
		`{"status":"passed","total_tests":4,"passed":4,"results_text":"all green"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("uat passed run: status=%d", resp.StatusCode)
	}
	getJSON(t, ts.URL+"/handoffs/"+id, &h)
	if h.Status != models.StatusDone {
		t.Errorf("status after passed uat = %q, want done", h.Status)
	}
	if h.UATStatus == nil || *h.UATStatus != models.UATPassed {
		t.Errorf("uat_status = %v", h.UATStatus)
	}

	var hist models.UATHistory
	getJSON(t, ts.URL+"/handoffs/"+id+"/uat", &hist)
	if len(hist.Attempts) != 2 {
		t.Fatalf("uat attempts = %d, want 2", len(hist.Attempts))
	}
	if hist.LatestStatus == nil || *hist.LatestStatus != models.UATPassed {
		t.Errorf("latest_status = %v", hist.LatestStatus)
	}

	// Single result fetch and filtered list.
	var fetched models.UATResult
	getJSON(t, ts.URL+"/uat/"+ur.ID, &fetched)
	if fetched.HandoffID != id {
		t.Errorf("GET /uat/{id}: handoff_id = %q", fetched.HandoffID)
	}
	var list models.UATList
	getJSON(t, ts.URL+"/uat/list?project=HarmonyLab&status=failed", &list)
	if list.Total != 1 {
		t.Errorf("filtered uat list total = %d, want 1", list.Total)
	}
	var latest models.UATResult
	getJSON(t, ts.URL+"/uat/latest?project=HarmonyLab", &latest)
	if latest.Status != models.UATPassed {
		t.Errorf("latest uat status = %q, want passed", latest.Status)
	}
}

func TestDirectUAT_findOrCreate(t *testing.T) {
	t.Parallel()
	_, ts := newTestApp(t, ServerOptions{})

	// No handoff exists for this project/version; one is synthesized.
	resp, data := postJSON(t, ts.URL+"/uat/submit",
		`{"project":"Super-Flashcards","version":"v3.2.0","feature":"deck export","status":"passed","total_tests":6,"passed":6,"results_text":"all good"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("direct uat: status=%d body=%s", resp.StatusCode, data)
	}
	var ur models.UATResult
	if err := json.Unmarshal(data, &ur); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ur.Version != "v3.2.0" {
		t.Errorf("version = %q", ur.Version)
	}

	var h models.Handoff
	getJSON(t, ts.URL+"/handoffs/"+ur.HandoffID, &h)
	if h.Project != "Super-Flashcards" || h.Source != models.SourceUATChecklist {
		t.Errorf("synthesized handoff: project=%q source=%q", h.Project, h.Source)
	}
	if h.Status != models.StatusDone {
		t.Errorf("synthesized handoff status = %q, want done after pass", h.Status)
	}

	// Second submit for the same version reuses the handoff.
	resp, data = postJSON(t, ts.URL+"/uat/submit",
		`{"project":"Super-Flashcards","version":"v3.2.0","status":"failed","total_tests":6,"passed":5,"failed":1,"results_text":"regression"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second direct uat: status=%d body=%s", resp.StatusCode, data)
	}
	var ur2 models.UATResult
	if err := json.Unmarshal(data, &ur2); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ur2.HandoffID != ur.HandoffID {
		t.Errorf("second submit created new handoff %s, want %s", ur2.HandoffID, ur.HandoffID)
	}

	// The reused handoff's document now carries the fresh results.
	cResp, err := http.Get(ts.URL + "/handoffs/" + ur.HandoffID + "/content")
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	content, _ := io.ReadAll(cResp.Body)
	_ = cResp.Body.Close()
	if !strings.Contains(string(content), "regression") {
		t.Errorf("content not refreshed by re-submission: %s", content)
	}
	if strings.Contains(string(content), "all good") {
		t.Errorf("content still holds the first run's results: %s", content)
	}

	// Missing version is rejected.
	resp, _ = postJSON(t, ts.URL+"/uat/submit", `{"project":"Super-Flashcards","status":"passed","total_tests":1,"passed":1,"results_text":"x"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing version: status=%d", resp.StatusCode)
	}
}

func TestRequirementLinks(t *testing.T) {
	t.Parallel()
	_, ts := newTestApp(t, ServerOptions{})
	id := createHandoff(t, ts, "metapm", "req test", "# Req\n\nbody\n")

	resp, _ := postJSON(t, ts.URL+"/requirements/REQ-042/handoffs",
		fmt.Sprintf(`{"handoff_id":%q,"relationship":"implements"}`, id))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("link: status=%d", resp.StatusCode)
	}

	resp, _ = postJSON(t, ts.URL+"/requirements/REQ-042/handoffs",
		fmt.Sprintf(`{"handoff_id":%q,"relationship":"sponsors"}`, id))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad relationship: status=%d", resp.StatusCode)
	}

	resp, _ = postJSON(t, ts.URL+"/requirements/REQ-042/handoffs",
		`{"handoff_id":"missing","relationship":"fixes"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown handoff: status=%d", resp.StatusCode)
	}

	var out struct {
		Handoffs []models.Handoff `json:"handoffs"`
	}
	getJSON(t, ts.URL+"/requirements/REQ-042/handoffs", &out)
	if len(out.Handoffs) != 1 || out.Handoffs[0].ID != id {
		t.Fatalf("linked handoffs = %d", len(out.Handoffs))
	}
}

func TestStatsAndExportLog(t *testing.T) {
	t.Parallel()
	_, ts := newTestApp(t, ServerOptions{})
	id := createHandoff(t, ts, "ArtForge", "v1.2 brushes", "# Brushes\n\nbody\n")
	createHandoff(t, ts, "Etymython", "roots", "# Roots\n\nbody 2\n")

	var stats models.Stats
	getJSON(t, ts.URL+"/handoffs/stats", &stats)
	if stats.Total != 2 {
		t.Errorf("stats total = %d, want 2", stats.Total)
	}
	if stats.ByProject["ArtForge"].Total != 1 {
		t.Errorf("ArtForge total = %d", stats.ByProject["ArtForge"].Total)
	}
	if stats.ThisWeek != 2 {
		t.Errorf("this_week = %d, want 2", stats.ThisWeek)
	}

	// Markdown export
	resp, err := http.Get(ts.URL + "/handoffs/export/log?project=ArtForge")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	md, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(md), "| Date | Version | Task | Direction | Status | UAT |") {
		t.Errorf("export log missing table header:\n%s", md)
	}
	if !strings.Contains(string(md), "v1.2 brushes") {
		t.Errorf("export log missing task row:\n%s", md)
	}

	// JSON export
	var exported struct {
		Project  string           `json:"project"`
		Handoffs []models.Handoff `json:"handoffs"`
	}
	getJSON(t, ts.URL+"/handoffs/export/log?project=ArtForge&format=json", &exported)
	if len(exported.Handoffs) != 1 || exported.Handoffs[0].ID != id {
		t.Fatalf("json export handoffs = %d", len(exported.Handoffs))
	}

	// Project is required.
	resp, err = http.Get(ts.URL + "/handoffs/export/log")
	if err != nil {
		t.Fatalf("export no project: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("export without project: status=%d", resp.StatusCode)
	}
}

// memBucket is an in-memory ObjectStore for sync endpoint tests.
type memBucket struct {
	objects map[string][]byte
}

func (b *memBucket) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	for name := range b.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (b *memBucket) Read(_ context.Context, name string) ([]byte, error) {
	data, ok := b.objects[name]
	if !ok {
		return nil, fmt.Errorf("object %s not found", name)
	}
	return data, nil
}

func TestSyncEndpoint(t *testing.T) {
	t.Parallel()

	// Without a bucket the endpoint is unavailable.
	_, ts := newTestApp(t, ServerOptions{})
	resp, _ := postJSON(t, ts.URL+"/handoffs/sync", `{}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("sync without bucket: status=%d", resp.StatusCode)
	}

	bucket := &memBucket{objects: map[string][]byte{
		"ArtForge/outbox/v1.0-handoff.md": []byte("# ArtForge v1.0\n\nOutbox doc.\n"),
		"ArtForge/outbox/notes.txt":       []byte("ignored"),
	}}
	_, ts2 := newTestApp(t, ServerOptions{
		Bucket:     bucket,
		BucketName: "pm-handoffs",
		Projects:   []string{"ArtForge"},
	})

	resp, data := postJSON(t, ts2.URL+"/handoffs/sync", `{}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync: status=%d body=%s", resp.StatusCode, data)
	}
	var sum models.SyncSummary
	if err := json.Unmarshal(data, &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.Scanned != 1 || sum.Imported != 1 {
		t.Errorf("summary: scanned=%d imported=%d, want 1/1", sum.Scanned, sum.Imported)
	}

	var list models.HandoffList
	getJSON(t, ts2.URL+"/handoffs?project=ArtForge", &list)
	if list.Total != 1 {
		t.Fatalf("imported handoffs = %d, want 1", list.Total)
	}
	if !list.Items[0].GCSSynced {
		t.Error("imported handoff should be marked gcs_synced")
	}

	// Re-running skips everything already imported.
	resp, data = postJSON(t, ts2.URL+"/handoffs/sync", `{}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second sync: status=%d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.Imported != 0 || sum.Skipped != 1 {
		t.Errorf("second run: imported=%d skipped=%d, want 0/1", sum.Imported, sum.Skipped)
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()
	_, ts := newTestApp(t, ServerOptions{APIKey: "sekrit"})

	// Reads stay open.
	resp := getJSON(t, ts.URL+"/handoffs", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unauthenticated GET: status=%d", resp.StatusCode)
	}

	// Mutations without a key are rejected.
	resp, _ = postJSON(t, ts.URL+"/handoffs", `{"project":"p","task":"t","content":"# T\n\nbody\n"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated POST: status=%d", resp.StatusCode)
	}

	send := func(header, value string) int {
		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/handoffs",
			strings.NewReader(fmt.Sprintf(`{"project":"p","task":"t","content":"# T\n\nbody %s\n"}`, value)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(header, value)
		r, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST with %s: %v", header, err)
		}
		_ = r.Body.Close()
		return r.StatusCode
	}
	if code := send("X-API-Key", "sekrit"); code != http.StatusOK {
		t.Errorf("X-API-Key auth: status=%d", code)
	}
	if code := send("Authorization", "Bearer sekrit"); code != http.StatusOK {
		t.Errorf("bearer auth: status=%d", code)
	}
	if code := send("X-API-Key", "wrong"); code != http.StatusUnauthorized {
		t.Errorf("wrong key: status=%d", code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	_, ts := newTestApp(t, ServerOptions{})

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/handoffs", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE /handoffs: status=%d", resp.StatusCode)
	}

	resp2, _ := postJSON(t, ts.URL+"/handoffs/stats", `{}`)
	if resp2.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST /handoffs/stats: status=%d", resp2.StatusCode)
	}
}
