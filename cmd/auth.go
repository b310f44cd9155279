package cmd

import (
	"fmt"
	"time"

	"github.com/bnema/taskflow-cli/internal/application"
	"github.com/spf13/cobra"
)

func newAuthCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the taskflow session",
	}

	cmd.AddCommand(
		newAuthLoginCmd(app),
		newAuthRegisterCmd(app),
		newAuthLogoutCmd(app),
		newAuthRefreshCmd(app),
		newAuthStatusCmd(app),
	)

	return cmd
}

func newAuthLoginCmd(app *app) *cobra.Command {
	var email string
	var password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.auth.Login(cmd.Context(), application.LoginCommand{Email: email, Password: password}); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", sanitizeForTerminal(email))
			return err
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newAuthRegisterCmd(app *app) *cobra.Command {
	var email string
	var password string
	var fullName string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account (does not log in)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := app.auth.Register(cmd.Context(), application.RegisterCommand{
				Email:    email,
				Password: password,
				FullName: fullName,
			})
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (id %d). Run `tf auth login` to sign in.\n", sanitizeForTerminal(user.Email), user.ID)
			return err
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (at least 8 characters)")
	cmd.Flags().StringVar(&fullName, "full-name", "", "Display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newAuthLogoutCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session and cached data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.auth.Logout(cmd.Context()); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return err
		},
	}
}

func newAuthRefreshCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.auth.Refresh(cmd.Context()); err != nil {
				return userError(err)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Session refreshed")
			return err
		},
	}
}

func newAuthStatusCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a session is stored and when it expires",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status := app.auth.Status()
			out := cmd.OutOrStdout()

			if !status.Authenticated {
				_, err := fmt.Fprintln(out, "Not logged in")
				return err
			}
			if status.ExpiresAt.IsZero() {
				_, err := fmt.Fprintln(out, "Logged in (expiry unknown)")
				return err
			}
			if status.Expired {
				_, err := fmt.Fprintf(out, "Logged in, access token expired at %s (run `tf auth refresh`)\n", status.ExpiresAt.Format(time.RFC3339))
				return err
			}
			_, err := fmt.Fprintf(out, "Logged in, access token expires at %s\n", status.ExpiresAt.Format(time.RFC3339))
			return err
		},
	}
}
