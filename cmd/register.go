package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"codesensei/internal/bootstrap"
	"codesensei/internal/bootstrap/logging"
	"codesensei/internal/errs"
	"codesensei/internal/usecase/review"
)

// registerCmd connects a GitHub account and prints its dashboard API token.
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a GitHub account and mint its dashboard API token",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *review.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		accountID, _ := cmd.Flags().GetInt64("github-account-id")
		login, _ := cmd.Flags().GetString("login")

		user, err := svc.RegisterUser(ctx, review.RegisterUserInput{
			GitHubAccountID: accountID,
			Login:           login,
		})
		if err != nil {
			return errs.Wrap(err, "register user")
		}

		logging.Info(ctx, "user registered",
			slog.Uint64("user_id", user.UserID),
			slog.Int64("github_account_id", user.GitHubAccountID),
		)
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "user_id=%d api_token=%s\n", user.UserID, user.APIToken); err != nil {
			return errs.Wrap(err, "write register output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().Int64("github-account-id", 0, "GitHub account id")
	registerCmd.Flags().String("login", "", "GitHub login")
	_ = registerCmd.MarkFlagRequired("github-account-id")
}
