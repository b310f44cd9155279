package cmd

import (
	"context"
	"fmt"

	taskrender "github.com/bnema/taskflow-cli/internal/adapters/render/tasks"
	"github.com/bnema/taskflow-cli/internal/domain"
	"github.com/bnema/taskflow-cli/internal/querycache"
	"github.com/spf13/cobra"
)

func newAnalyticsCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show completion statistics for your tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.ensureSession(cmd.Context(), cmd.ErrOrStderr())

			var summary domain.AnalyticsSummary
			fetch := func(ctx context.Context, observe querycache.Listener) error {
				var err error
				summary, err = app.queries.Analytics(ctx, observe)
				return err
			}
			if err := runFetch(cmd, asJSON, "analytics", fetch); err != nil {
				return userError(err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			rendered, err := taskrender.RenderAnalytics(summary)
			if err != nil {
				return fmt.Errorf("render analytics: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}
