package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clinicq/backend/internal/deploy"
	"github.com/clinicq/backend/internal/infrastructure/logging"
)

func buildCmd(opts *globalOptions) *cobra.Command {
	var variant, fixture, file string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the deploy pipeline (migrate, optional loaddata, collectstatic)",
		Long: "Runs each step as a child process in order and stops at the first failure.\n" +
			"The process exits with the failed step's exit code.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(opts.debug)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			pipeline, err := selectPipeline(variant, fixture, file, opts)
			if err != nil {
				return err
			}
			pipeline.Stdout = cmd.OutOrStdout()
			pipeline.Stderr = cmd.ErrOrStderr()
			pipeline.Logger = logger
			return pipeline.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&variant, "variant", string(deploy.VariantStandard), "pipeline variant: standard or seeded")
	cmd.Flags().StringVar(&fixture, "fixture", deploy.DefaultFixture, "fixture loaded by the seeded variant")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML pipeline definition; overrides --variant")
	return cmd
}

func selectPipeline(variant, fixture, file string, opts *globalOptions) (*deploy.Pipeline, error) {
	executor := deploy.ExecExecutor{}
	if file != "" {
		return deploy.LoadFile(file, executor)
	}

	v, err := deploy.ParseVariant(variant)
	if err != nil {
		return nil, err
	}
	return deploy.For(v, deploy.CLI{Program: selfProgram(), Exec: executor, Args: childFlags(opts)}, fixture), nil
}

// selfProgram is the running clinicctl binary, so steps call the same build
func selfProgram() string {
	if exe, err := os.Executable(); err == nil {
		return exe
	}
	return os.Args[0]
}

func childFlags(opts *globalOptions) []string {
	var flags []string
	if opts.debug {
		flags = append(flags, "--debug")
	}
	if opts.envFile != "" {
		flags = append(flags, fmt.Sprintf("--env-file=%s", opts.envFile))
	}
	return flags
}
