package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clinicq/backend/internal/application/services"
	"github.com/clinicq/backend/internal/infrastructure/metrics"
	"github.com/clinicq/backend/internal/infrastructure/sms"
)

// issueTokenCmd prints a bearer token for a user; e2e tests use it to skip the login form
func issueTokenCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "issue-token USERNAME",
		Short: "Open a session for a user without a password (DEBUG only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.setup()
			if err != nil {
				return err
			}
			defer rt.close()
			if !rt.cfg.Debug {
				return fmt.Errorf("issue-token is only available with DEBUG=true")
			}

			conn, err := rt.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			sm, err := services.NewServiceManager(conn, rt.cfg, metrics.New(), sms.NewLogSender(rt.logger), rt.logger)
			if err != nil {
				return err
			}
			result, err := sm.Auth.IssueFor(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), result.Token)
			return nil
		},
	}
}
