package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

func Execute() error {
	return run(newRootCmd())
}

// run executes the command tree and tears the app down afterwards, whether
// or not the command failed.
func run(rootCmd *cobra.Command, app *app) error {
	if app != nil {
		defer app.close()
	}
	return rootCmd.Execute()
}

// newRootCmd returns a nil app when wiring failed; the root command then
// reports the wiring error.
func newRootCmd() (*cobra.Command, *app) {
	rootCmd := &cobra.Command{
		Use:           "tf",
		Short:         "taskflow CLI (tf): manage your tasks from the terminal",
		Long:          "tf (taskflow CLI) signs in to a taskflow service, lists, filters and edits your tasks, shows completion analytics and offers a live terminal dashboard.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp(os.Stderr)
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd, nil
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newAuthCmd(app),
		newTasksCmd(app),
		newAnalyticsCmd(app),
		newDashboardCmd(app),
	)

	return rootCmd, app
}
