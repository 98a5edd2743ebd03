// Command server runs the API; it is "clinicctl serve" under its historical name.
package main

import (
	"os"

	"github.com/clinicq/backend/internal/cli"
	"github.com/clinicq/backend/internal/deploy"
)

func main() {
	cmd := cli.NewRootCmd()
	cmd.SetArgs(append([]string{"serve"}, os.Args[1:]...))
	if err := cmd.Execute(); err != nil {
		os.Exit(deploy.ExitCode(err))
	}
}
