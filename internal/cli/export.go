package cli

import (
	"fmt"
	"os"

	"github.com/coreyprator/metapm/internal/httpapi"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export project records",
	}
	cmd.AddCommand(newExportLogCmd())
	return cmd
}

func newExportLogCmd() *cobra.Command {
	var project, outPath string

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Export a project's HANDOFF_LOG markdown table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if project == "" {
				return fmt.Errorf("--project is required")
			}
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			items, err := st.ListHandoffsByProject(cmd.Context(), project)
			if err != nil {
				return err
			}
			md := httpapi.RenderHandoffLog(project, items)
			if outPath == "" {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), md)
				return nil
			}
			if err := os.WriteFile(outPath, []byte(md), 0o644); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d handoffs to %s\n", len(items), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project name")
	cmd.Flags().StringVar(&outPath, "out", "", "Write to file instead of stdout")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
