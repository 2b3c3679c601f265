package cli

import (
	"fmt"

	"github.com/coreyprator/metapm/internal/config"
	"github.com/coreyprator/metapm/internal/ingest"
	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var bucket string
	var projects []string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Scan project outboxes in the GCS bucket and import new handoffs",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			cfg, err := config.Load(home)
			if err != nil {
				return err
			}
			if bucket == "" {
				bucket = cfg.GCS.Bucket
			}
			if bucket == "" {
				return fmt.Errorf("no bucket configured (set gcs.bucket in %s or pass --bucket)", config.Path(home))
			}
			if len(projects) == 0 {
				projects = cfg.GCS.Projects
			}

			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			gcs, err := ingest.OpenGCS(cmd.Context(), bucket)
			if err != nil {
				return err
			}
			defer func() { _ = gcs.Close() }()

			syncer := &ingest.Syncer{
				Store:      st,
				Bucket:     gcs,
				BucketName: bucket,
				Projects:   projects,
			}
			sum := syncer.Run(cmd.Context())

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Scanned %d objects across %d projects: %d imported, %d skipped\n",
				sum.Scanned, len(sum.ProjectsScanned), sum.Imported, sum.Skipped)
			for _, e := range sum.Errors {
				_, _ = fmt.Fprintf(out, "error: %s\n", e)
			}
			if len(sum.Errors) > 0 {
				return fmt.Errorf("%d objects failed", len(sum.Errors))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "GCS bucket name (default from config)")
	cmd.Flags().StringSliceVar(&projects, "projects", nil, "Projects to scan (default from config)")
	return cmd
}
