// Package main is the entry point for vhybzctl
package main

import (
	"errors"
	"os"

	"vhybz-auth/cmd/vhybzctl/cmd"
	"vhybz-auth/cmd/vhybzctl/internal/output"
)

// version is set at build time via ldflags
var version = "dev"

func main() {
	cmd.SetVersion(version)
	if err := cmd.Execute(); err != nil {
		var cliErr *output.CLIError
		if errors.As(err, &cliErr) {
			cmd.Printer().FormatError(cliErr)
			os.Exit(cliErr.ExitCode)
		}
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
