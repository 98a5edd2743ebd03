package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clinicq/backend/internal/bootstrap"
	"github.com/clinicq/backend/internal/infrastructure/migrations"
	"github.com/clinicq/backend/internal/infrastructure/persistence"
	"github.com/clinicq/backend/internal/staticfiles"
)

func migrateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and sync the admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.setup()
			if err != nil {
				return err
			}
			defer rt.close()

			ctx := cmd.Context()
			conn, err := rt.openDB(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			out := cmd.OutOrStdout()
			applied, err := migrations.New(conn.DB(), conn.Driver(), rt.logger).Up(ctx)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "No migrations to apply.")
			}
			for _, v := range applied {
				fmt.Fprintf(out, "Applying %s... OK\n", v)
			}

			created, err := bootstrap.EnsureAdmin(ctx, persistence.NewUserRepository(conn.DB()), adminSpec(rt), rt.logger)
			if err != nil {
				return fmt.Errorf("admin data migration failed: %w", err)
			}
			if created {
				fmt.Fprintf(out, "Created superuser %q.\n", rt.cfg.AdminUsername)
			}
			return nil
		},
	}
}

func ensureAdminCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-admin",
		Short: "Create the admin account or reset its password from ADMIN_PASSWORD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.setup()
			if err != nil {
				return err
			}
			defer rt.close()
			if rt.cfg.AdminPassword == "" {
				return fmt.Errorf("ADMIN_PASSWORD is not set")
			}

			conn, err := rt.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			created, err := bootstrap.EnsureAdmin(cmd.Context(), persistence.NewUserRepository(conn.DB()), adminSpec(rt), rt.logger)
			if err != nil {
				return err
			}
			verb := "Updated"
			if created {
				verb = "Created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s superuser %q.\n", verb, rt.cfg.AdminUsername)
			return nil
		},
	}
}

func adminSpec(rt *cmdRuntime) bootstrap.AdminSpec {
	return bootstrap.AdminSpec{
		Username: rt.cfg.AdminUsername,
		Email:    rt.cfg.AdminEmail,
		Password: rt.cfg.AdminPassword,
	}
}

func loaddataCmd(opts *globalOptions) *cobra.Command {
	var dirs []string

	cmd := &cobra.Command{
		Use:   "loaddata FIXTURE [FIXTURE...]",
		Short: "Install fixture files into the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.setup()
			if err != nil {
				return err
			}
			defer rt.close()

			conn, err := rt.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			search := append(append([]string{}, dirs...), rt.cfg.FixtureDirs...)
			result, err := bootstrap.NewLoader(conn.DB(), search, rt.logger).LoadFiles(cmd.Context(), args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %d object(s) from %d fixture(s)\n", result.Objects, result.Fixtures)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&dirs, "fixture-dir", nil, "extra directory searched for bare fixture names")
	return cmd
}

func collectstaticCmd(opts *globalOptions) *cobra.Command {
	var noInput, clearRoot bool

	cmd := &cobra.Command{
		Use:   "collectstatic",
		Short: "Copy static files into STATIC_ROOT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.setup()
			if err != nil {
				return err
			}
			defer rt.close()

			out := cmd.OutOrStdout()
			options := staticfiles.Options{
				Sources: rt.cfg.StaticFilesDirs,
				Root:    rt.cfg.StaticRoot,
				Clear:   clearRoot,
				Logger:  rt.logger,
			}
			if !noInput {
				options.Confirm = promptYesNo(cmd.InOrStdin(), out)
			}

			result, err := staticfiles.Collect(cmd.Context(), options)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, result.Summary(rt.cfg.StaticRoot))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noInput, "noinput", false, "do not prompt for confirmation")
	cmd.Flags().BoolVar(&noInput, "no-input", false, "alias of --noinput")
	cmd.Flags().BoolVar(&clearRoot, "clear", false, "delete existing files in STATIC_ROOT first")
	return cmd
}

// promptYesNo asks on out and reads the answer from in; only "yes" or "y" confirms
func promptYesNo(in io.Reader, out io.Writer) staticfiles.Confirm {
	reader := bufio.NewReader(in)
	return func(message string) (bool, error) {
		fmt.Fprintf(out, "\n%s\n\nType 'yes' to continue, or 'no' to cancel: ", message)
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "yes", "y":
			return true, nil
		}
		return false, nil
	}
}

func wipeCmd(opts *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Drop every application table (development only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.setup()
			if err != nil {
				return err
			}
			defer rt.close()
			if !force && !rt.cfg.Debug {
				return fmt.Errorf("refusing to wipe with DEBUG off; pass --force")
			}

			conn, err := rt.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			dropped, err := persistence.DropAll(cmd.Context(), conn.DB(), conn.Driver())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dropped %d table(s).\n", len(dropped))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "wipe even when DEBUG is off")
	return cmd
}
