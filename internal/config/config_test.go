package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWithHome_HomeFrom(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if _, ok := HomeFrom(ctx); ok {
		t.Fatal("expected no home in empty context")
	}
	ctx = WithHome(ctx, "/foo/bar")
	got, ok := HomeFrom(ctx)
	if !ok || got != "/foo/bar" {
		t.Fatalf("HomeFrom: got %q, ok=%v; want /foo/bar, true", got, ok)
	}
}

func TestMustHomeFrom(t *testing.T) {
	t.Parallel()
	ctx := WithHome(context.Background(), "/metapm")
	if got := MustHomeFrom(ctx); got != "/metapm" {
		t.Fatalf("MustHomeFrom: got %q", got)
	}
}

func TestMustHomeFrom_panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when home missing")
		}
	}()
	MustHomeFrom(context.Background())
}

func TestResolveHome_override(t *testing.T) {
	t.Parallel()
	got, err := ResolveHome("/custom/home")
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	if got != filepath.Clean("/custom/home") {
		t.Fatalf("ResolveHome: got %q", got)
	}
}

func TestResolveHome_env(t *testing.T) {
	t.Setenv("METAPM_HOME", "/env/home")
	got, err := ResolveHome("")
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	if got != filepath.Clean("/env/home") {
		t.Fatalf("ResolveHome from env: got %q", got)
	}
}

func TestResolveHome_default(t *testing.T) {
	t.Setenv("METAPM_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("UserHomeDir: %v", err)
	}
	got, err := ResolveHome("")
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	want := filepath.Join(home, ".metapm")
	if got != want {
		t.Fatalf("ResolveHome default: got %q, want %q", got, want)
	}
}

func TestLoad_missingFileUsesDefaults(t *testing.T) {
	t.Setenv("METAPM_ADDR", "")
	t.Setenv("METAPM_API_KEY", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GCS_HANDOFF_BUCKET", "")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "127.0.0.1:8844" {
		t.Errorf("default addr = %q", cfg.Addr)
	}
	if cfg.DB.Driver != "sqlite" {
		t.Errorf("default driver = %q", cfg.DB.Driver)
	}
	if len(cfg.GCS.Projects) == 0 {
		t.Error("default projects empty")
	}
	if cfg.GCS.SyncInterval != 10*time.Minute {
		t.Errorf("default sync interval = %v", cfg.GCS.SyncInterval)
	}
}

func TestLoad_fileAndSaveRoundTrip(t *testing.T) {
	t.Setenv("METAPM_ADDR", "")
	t.Setenv("METAPM_API_KEY", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GCS_HANDOFF_BUCKET", "")

	home := t.TempDir()
	want := Default()
	want.Addr = "0.0.0.0:9000"
	want.APIKey = "file-key"
	want.GCS.Bucket = "pm-handoffs"
	want.GCS.Projects = []string{"ArtForge"}
	if err := Save(home, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(home)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Addr != want.Addr || got.APIKey != want.APIKey {
		t.Errorf("round-trip: got addr=%q key=%q", got.Addr, got.APIKey)
	}
	if got.GCS.Bucket != "pm-handoffs" || len(got.GCS.Projects) != 1 {
		t.Errorf("round-trip gcs: %+v", got.GCS)
	}
}

func TestLoad_envOverrides(t *testing.T) {
	t.Setenv("METAPM_ADDR", "127.0.0.1:7777")
	t.Setenv("METAPM_API_KEY", "env-key")
	t.Setenv("DATABASE_URL", "postgres://pm:pm@localhost/metapm")
	t.Setenv("GCS_HANDOFF_BUCKET", "env-bucket")

	home := t.TempDir()
	if err := Save(home, Default()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	cfg, err := Load(home)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "127.0.0.1:7777" {
		t.Errorf("addr override: %q", cfg.Addr)
	}
	if cfg.APIKey != "env-key" {
		t.Errorf("api key override: %q", cfg.APIKey)
	}
	if cfg.DB.Driver != "postgres" || cfg.DB.URL == "" {
		t.Errorf("db override: %+v", cfg.DB)
	}
	if cfg.GCS.Bucket != "env-bucket" {
		t.Errorf("bucket override: %q", cfg.GCS.Bucket)
	}
}

func TestLoad_badYAML(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	if err := os.WriteFile(Path(home), []byte("addr: [not a string"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(home); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
