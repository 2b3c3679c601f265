package daemon

import "time"

// StartOptions configures the daemon (home, port, DB backend, bucket sync).
type StartOptions struct {
	Home       string
	Port       int
	Dev        bool
	PprofAddr  string
	APIKey     string
	DBDriver   string // "sqlite" (default) or "postgres"
	DBURL      string // for postgres: connection string (or DATABASE_URL env)
	EnableOtel bool   // enable OpenTelemetry metrics (Prometheus exporter + HTTP/SSE instrumentation)

	// Bucket sync: when GCSBucket is set, a periodic sync job scans each
	// project's outbox prefix and the POST /handoffs/sync endpoint works.
	GCSBucket    string
	Projects     []string
	SyncInterval time.Duration
}

// StatusInfo is the result of Status (running or not, PID, listen addr).
type StatusInfo struct {
	Running bool
	PID     int
	Addr    string
}
