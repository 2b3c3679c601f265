package cli

import (
	"fmt"
	"sort"

	"github.com/coreyprator/metapm/pkg/models"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show handoff counts per project and direction",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			stats, err := st.HandoffStats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Total handoffs: %d (%d this week)\n", stats.Total, stats.ThisWeek)
			_, _ = fmt.Fprintf(out, "GCS sync: %d synced, %d pending\n\n", stats.Synced, stats.PendingSync)

			projects := make([]string, 0, len(stats.ByProject))
			for p := range stats.ByProject {
				projects = append(projects, p)
			}
			sort.Strings(projects)
			for _, p := range projects {
				ps := stats.ByProject[p]
				_, _ = fmt.Fprintf(out, "%s %-20s total %3d, pending %3d, done %3d\n",
					models.EmojiFor(p), p, ps.Total, ps.Pending, ps.Done)
			}
			if len(stats.ByDirection) > 0 {
				_, _ = fmt.Fprintln(out)
				for dir, n := range stats.ByDirection {
					_, _ = fmt.Fprintf(out, "%-10s %d\n", dir, n)
				}
			}
			return nil
		},
	}
	return cmd
}
