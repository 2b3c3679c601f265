package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coreyprator/metapm/pkg/models"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:8844", "")
	if c.BaseURL != "http://localhost:8844" || c.APIKey != "" {
		t.Errorf("New: %+v", c)
	}
	c2 := New("http://localhost:8844", "secret")
	if c2.APIKey != "secret" {
		t.Errorf("New with key: %+v", c2)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	ok, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !ok {
		t.Fatal("Health: expected ok true")
	}
}

func TestHealth_error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"down"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.Health(context.Background())
	if err == nil {
		t.Fatal("expected error from 503")
	}
}

func TestClient_setsAPIKeyHeader(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "mykey")
	_, _ = c.Health(context.Background())
	if gotKey != "mykey" {
		t.Errorf("X-API-Key: got %q", gotKey)
	}
}

func TestCreateHandoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/handoffs" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body models.HandoffCreate
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Project != "ArtForge" {
			t.Errorf("project: %q", body.Project)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.HandoffCreated{ID: "h-1", Project: "ArtForge", Duplicate: false})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	created, err := c.CreateHandoff(context.Background(), models.HandoffCreate{
		Project: "ArtForge", Task: "t", Content: "# doc\n",
	})
	if err != nil {
		t.Fatalf("CreateHandoff: %v", err)
	}
	if created.ID != "h-1" || created.Duplicate {
		t.Errorf("created: %+v", created)
	}
}

func TestListHandoffs_query(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[],"total":0,"page":1,"pages":0,"has_more":false,"compliance_summary":{"overall":0,"synced":0,"pending_sync":0}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.ListHandoffs(context.Background(), HandoffListOptions{
		Project:  "metapm",
		Statuses: []string{"pending", "read"},
		Page:     2,
		Limit:    50,
	})
	if err != nil {
		t.Fatalf("ListHandoffs: %v", err)
	}
	for _, want := range []string{"project=metapm", "status=pending%2Cread", "page=2", "limit=50"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestUpdateStatus_errorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid status transition pending -> done"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.UpdateStatus(context.Background(), "h-1", "done")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "invalid status transition") {
		t.Errorf("error: %v", err)
	}
}
