package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/coreyprator/metapm/internal/config"
	"github.com/coreyprator/metapm/internal/store"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Verify the MetaPM home, config, and database",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())

			var problems []string

			if err := os.MkdirAll(home, 0o755); err != nil {
				problems = append(problems, fmt.Sprintf("home not writable: %v", err))
			}

			cfg, err := config.Load(home)
			if err != nil {
				problems = append(problems, fmt.Sprintf("config: %v", err))
			}

			if cfg.DB.Driver == "postgres" {
				if cfg.DB.URL == "" && os.Getenv("DATABASE_URL") == "" {
					problems = append(problems, "db driver is postgres but no db url configured (set db.url or DATABASE_URL)")
				}
			} else if len(problems) == 0 {
				st, err := store.Open(home)
				if err != nil {
					problems = append(problems, fmt.Sprintf("sqlite store: %v", err))
				} else {
					_ = st.Close()
				}
			}

			if cfg.GCS.Bucket != "" && len(cfg.GCS.Projects) == 0 {
				problems = append(problems, "gcs bucket configured but no projects to scan")
			}

			if len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	return cmd
}
