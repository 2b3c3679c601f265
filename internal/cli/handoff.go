package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/coreyprator/metapm/internal/config"
	"github.com/coreyprator/metapm/internal/git"
	"github.com/coreyprator/metapm/internal/ingest"
	"github.com/coreyprator/metapm/internal/lifecycle"
	"github.com/coreyprator/metapm/internal/store"
	"github.com/coreyprator/metapm/internal/store/postgres"
	"github.com/spf13/cobra"
)

func newHandoffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handoff",
		Short: "Manage handoffs",
	}
	cmd.AddCommand(newHandoffCreateCmd())
	cmd.AddCommand(newHandoffListCmd())
	cmd.AddCommand(newHandoffShowCmd())
	cmd.AddCommand(newHandoffStatusCmd())
	return cmd
}

func openStoreFromCmd(cmd *cobra.Command) (store.Store, error) {
	home := config.MustHomeFrom(cmd.Context())
	cfg, err := config.Load(home)
	if err != nil {
		return nil, err
	}
	if cfg.DB.Driver == "postgres" {
		return postgres.Open(cfg.DB.URL)
	}
	return store.Open(home)
}

func newHandoffCreateCmd() *cobra.Command {
	var project, task, direction, gitCommit, file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Ingest a handoff document from a markdown file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			content, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			if gitCommit == "" {
				// Best effort when run from a checkout.
				if sha, gerr := git.HeadCommit(cmd.Context(), "."); gerr == nil {
					gitCommit = sha
				}
			}
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			res, err := ingest.Ingest(cmd.Context(), st, ingest.Request{
				Project:   project,
				Task:      task,
				Direction: direction,
				GitCommit: gitCommit,
				Content:   string(content),
			})
			if err != nil {
				return err
			}
			if res.Duplicate {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Duplicate content; existing handoff %s\n", res.ID)
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created handoff %s\n", res.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project name (parsed from the document when present)")
	cmd.Flags().StringVar(&task, "task", "", "Task name (parsed from the document when present)")
	cmd.Flags().StringVar(&direction, "direction", "", "cc_to_ai or ai_to_cc")
	cmd.Flags().StringVar(&gitCommit, "git-commit", "", "Git commit hash this handoff refers to")
	cmd.Flags().StringVar(&file, "file", "", "Path to the handoff markdown document")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newHandoffListCmd() *cobra.Command {
	var project, status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List handoffs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			f := store.HandoffFilter{Project: project, Limit: limit}
			if status != "" {
				f.Statuses = []string{status}
			}
			page, err := st.ListHandoffs(cmd.Context(), f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, h := range page.Items {
				_, _ = fmt.Fprintf(out, "%s  %-12s %-10s %-20s %s\n",
					h.ID, h.Project, h.Status, h.CreatedAt.Format(time.RFC3339), h.Task)
			}
			_, _ = fmt.Fprintf(out, "%d of %d handoffs\n", len(page.Items), page.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Filter by project")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().IntVar(&limit, "limit", 20, "Max handoffs to list")
	return cmd
}

func newHandoffShowCmd() *cobra.Command {
	var id string
	var content bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one handoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id is required")
			}
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			h, err := st.GetHandoff(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if content {
				_, _ = fmt.Fprint(out, h.Content)
				return nil
			}
			_, _ = fmt.Fprintf(out, "ID:        %s\n", h.ID)
			_, _ = fmt.Fprintf(out, "Project:   %s\n", h.Project)
			_, _ = fmt.Fprintf(out, "Task:      %s\n", h.Task)
			_, _ = fmt.Fprintf(out, "Direction: %s\n", h.Direction)
			_, _ = fmt.Fprintf(out, "Status:    %s\n", h.Status)
			if h.Version != nil {
				_, _ = fmt.Fprintf(out, "Version:   %s\n", *h.Version)
			}
			if h.Summary != nil {
				_, _ = fmt.Fprintf(out, "Summary:   %s\n", *h.Summary)
			}
			if h.UATStatus != nil {
				_, _ = fmt.Fprintf(out, "UAT:       %s\n", *h.UATStatus)
			}
			_, _ = fmt.Fprintf(out, "Created:   %s\n", h.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Handoff ID")
	cmd.Flags().BoolVar(&content, "content", false, "Print the raw markdown instead of the summary")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newHandoffStatusCmd() *cobra.Command {
	var id, status string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Move a handoff to a new status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" || status == "" {
				return fmt.Errorf("--id and --status are required")
			}
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			cur, err := st.GetHandoff(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := lifecycle.ValidateTransition(cur.Status, status); err != nil {
				return err
			}
			p := store.HandoffPatch{Status: &status}
			lifecycle.StampTimestamps(cur, &p, time.Now().UTC())
			if _, err := st.UpdateHandoff(cmd.Context(), id, p); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Handoff %s: %s -> %s\n", id, cur.Status, status)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Handoff ID")
	cmd.Flags().StringVar(&status, "status", "", "New status (e.g. read, processed, archived)")
	return cmd
}
