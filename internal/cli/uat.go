package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/coreyprator/metapm/internal/lifecycle"
	"github.com/coreyprator/metapm/internal/store"
	"github.com/coreyprator/metapm/pkg/models"
	"github.com/spf13/cobra"
)

func newUATCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uat",
		Short: "Record and inspect UAT results",
	}
	cmd.AddCommand(newUATSubmitCmd())
	cmd.AddCommand(newUATLatestCmd())
	return cmd
}

func newUATSubmitCmd() *cobra.Command {
	var (
		handoffID   string
		status      string
		total       int
		passed      int
		failed      int
		blocked     int
		resultsText string
		testedBy    string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Record a UAT run against a handoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if handoffID == "" {
				return fmt.Errorf("--id is required")
			}
			sub := models.UATSubmit{
				Status:      status,
				TotalTests:  total,
				Passed:      passed,
				Failed:      failed,
				Blocked:     blocked,
				ResultsText: resultsText,
				TestedBy:    testedBy,
			}
			if err := lifecycle.ValidateUAT(sub); err != nil {
				return err
			}

			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			h, err := st.GetHandoff(cmd.Context(), handoffID)
			if err != nil {
				return err
			}
			u := &store.UATResult{
				HandoffID:   h.ID,
				Status:      sub.Status,
				TotalTests:  sub.TotalTests,
				Passed:      sub.Passed,
				Failed:      sub.Failed,
				ResultsText: &sub.ResultsText,
				TestedBy:    sub.TestedBy,
			}
			if _, err := st.CreateUATResult(cmd.Context(), u); err != nil {
				return err
			}

			newStatus := lifecycle.UATOutcomeStatus(sub.Status)
			now := time.Now().UTC()
			p := store.HandoffPatch{
				Status:    &newStatus,
				UATStatus: &sub.Status,
				UATPassed: &sub.Passed,
				UATFailed: &sub.Failed,
				UATDate:   &now,
			}
			lifecycle.StampTimestamps(h, &p, now)
			if _, err := st.UpdateHandoff(cmd.Context(), h.ID, p); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "UAT %s recorded for handoff %s (%d/%d passed); handoff now %s\n",
				sub.Status, h.ID, sub.Passed, sub.TotalTests, newStatus)
			return nil
		},
	}
	cmd.Flags().StringVar(&handoffID, "id", "", "Handoff ID")
	cmd.Flags().StringVar(&status, "status", "", "passed, failed, or pending")
	cmd.Flags().IntVar(&total, "total", 0, "Total test count")
	cmd.Flags().IntVar(&passed, "passed", 0, "Passed test count")
	cmd.Flags().IntVar(&failed, "failed", 0, "Failed test count")
	cmd.Flags().IntVar(&blocked, "blocked", 0, "Blocked test count")
	cmd.Flags().StringVar(&resultsText, "results", "", "Free-form results text")
	cmd.Flags().StringVar(&testedBy, "tested-by", "", "Tester name")
	return cmd
}

func newUATLatestCmd() *cobra.Command {
	var project, version string

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the latest UAT result for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if project == "" {
				return fmt.Errorf("--project is required")
			}
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			u, err := st.LatestUAT(cmd.Context(), project, version)
			if errors.Is(err, store.ErrNotFound) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No UAT results for %s\n", project)
				return nil
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s (%d/%d passed, tested by %s at %s)\n",
				u.Project, u.Version, u.Status, u.Passed, u.TotalTests, u.TestedBy, u.TestedAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project name")
	cmd.Flags().StringVar(&version, "version", "", "Restrict to one version")
	return cmd
}
