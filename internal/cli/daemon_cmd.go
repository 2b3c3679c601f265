package cli

import (
	"github.com/coreyprator/metapm/internal/config"
	"github.com/coreyprator/metapm/internal/daemon"
	"github.com/spf13/cobra"
)

func newDaemonCmd() *cobra.Command {
	var (
		port       int
		dev        bool
		pprofAddr  string
		enableOtel bool
	)

	cmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Internal: run daemon process",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			cfg, err := config.Load(home)
			if err != nil {
				return err
			}
			return daemon.StartForeground(cmd.Context(), daemon.StartOptions{
				Home:         home,
				Port:         port,
				Dev:          dev,
				PprofAddr:    pprofAddr,
				APIKey:       cfg.APIKey,
				DBDriver:     cfg.DB.Driver,
				DBURL:        cfg.DB.URL,
				GCSBucket:    cfg.GCS.Bucket,
				Projects:     cfg.GCS.Projects,
				SyncInterval: cfg.GCS.SyncInterval,
				EnableOtel:   enableOtel,
			})
		},
	}

	cmd.Flags().IntVar(&port, "port", 8844, "Port for the HTTP API")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable dev mode")
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	cmd.Flags().BoolVar(&enableOtel, "otel", true, "Enable OpenTelemetry metrics")

	return cmd
}
