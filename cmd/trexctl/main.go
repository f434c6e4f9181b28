package main

import (
	"fmt"
	"os"

	"github.com/ruteri/trex-suite-provisioning/cmd/flags"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "trexctl",
		Usage: "Deploy and operate T-REX permissioned token suites",
		Flags: flags.CommonFlags,
		Commands: []*cli.Command{
			deploySuiteCommand,
			deployFactorySuiteCommand,
			checkExistingCommand,
			issueClaimCommand,
			verifyClaimCommand,
			validateAddressCommand,
			rolesCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
