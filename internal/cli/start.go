package cli

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coreyprator/metapm/internal/config"
	"github.com/coreyprator/metapm/internal/daemon"
	"github.com/spf13/cobra"
)

func newStartCmd() *cobra.Command {
	var (
		port         int
		foreground   bool
		dev          bool
		pprofAddr    string
		envFile      string
		dbDriver     string
		dbURL        string
		bucket       string
		projects     []string
		syncInterval time.Duration
		enableOtel   bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the MetaPM server (API + dashboard endpoints + bucket sync)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := loadEnvFile(envFile); err != nil {
					return err
				}
			}
			home := config.MustHomeFrom(cmd.Context())
			cfg, err := config.Load(home)
			if err != nil {
				return err
			}

			opts := startOptions(cmd, cfg, daemon.StartOptions{
				Home:         home,
				Port:         port,
				Dev:          dev,
				PprofAddr:    pprofAddr,
				DBDriver:     dbDriver,
				DBURL:        dbURL,
				GCSBucket:    bucket,
				Projects:     projects,
				SyncInterval: syncInterval,
				EnableOtel:   enableOtel,
			})

			api := (&url.URL{Scheme: "http", Host: fmt.Sprintf("localhost:%d", opts.Port)}).String()

			if foreground {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Starting MetaPM in foreground on %s\n", api)
				return daemon.StartForeground(cmd.Context(), opts)
			}

			pid, err := daemon.StartBackground(cmd.Context(), opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "MetaPM started (pid %d)\n", pid)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "API: %s\n", api)
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 8844, "Port for the HTTP API")
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Run in foreground (do not daemonize)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable dev mode (CORS for the dashboard dev server)")
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Load env vars from file (KEY=VALUE per line) before starting")
	cmd.Flags().StringVar(&dbDriver, "db-driver", "", "Store driver: sqlite or postgres (default from config)")
	cmd.Flags().StringVar(&dbURL, "db-url", "", "DB connection string (for postgres; or set DATABASE_URL)")
	cmd.Flags().StringVar(&bucket, "bucket", "", "GCS bucket for handoff outbox sync (default from config)")
	cmd.Flags().StringSliceVar(&projects, "projects", nil, "Project outboxes to scan (default from config)")
	cmd.Flags().DurationVar(&syncInterval, "sync-interval", 0, "Interval between bucket scans (default from config)")
	cmd.Flags().BoolVar(&enableOtel, "otel", true, "Enable OpenTelemetry metrics (Prometheus exporter, HTTP/SSE instrumentation)")

	return cmd
}

// startOptions fills unset flags from the config file; a changed flag always
// wins over the file.
func startOptions(cmd *cobra.Command, cfg config.Config, opts daemon.StartOptions) daemon.StartOptions {
	opts.APIKey = cfg.APIKey
	if opts.DBDriver == "" {
		opts.DBDriver = cfg.DB.Driver
	}
	if opts.DBURL == "" {
		opts.DBURL = cfg.DB.URL
	}
	if opts.GCSBucket == "" {
		opts.GCSBucket = cfg.GCS.Bucket
	}
	if len(opts.Projects) == 0 {
		opts.Projects = cfg.GCS.Projects
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = cfg.GCS.SyncInterval
	}
	if !cmd.Flags().Changed("port") && cfg.Addr != "" {
		if _, portStr, ok := strings.Cut(cfg.Addr, ":"); ok {
			var p int
			if _, err := fmt.Sscanf(portStr, "%d", &p); err == nil && p > 0 {
				opts.Port = p
			}
		}
	}
	return opts
}

func loadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		i := strings.Index(line, "=")
		if i <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		value := strings.TrimSpace(line[i+1:])
		if key != "" {
			_ = os.Setenv(key, value)
		}
	}
	return sc.Err()
}
