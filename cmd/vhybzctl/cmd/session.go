package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"vhybz-auth/cmd/vhybzctl/internal/output"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the stored session cookie",
}

var sessionSetCmd = &cobra.Command{
	Use:   "set <value>",
	Short: "Store the session cookie value copied from the browser",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionSet,
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the stored session cookie",
	RunE:  runSessionClear,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionSetCmd, sessionClearCmd)
}

func runSessionSet(cmd *cobra.Command, args []string) error {
	value := strings.TrimSpace(args[0])
	value = strings.TrimPrefix(value, cfg.CookieName+"=")
	if value == "" {
		return &output.CLIError{Summary: "empty session cookie", ExitCode: output.ExitUsageError}
	}

	if err := jar.SetSession(value); err != nil {
		return &output.CLIError{Summary: "failed to store session cookie", Detail: err.Error(), ExitCode: output.ExitGeneral}
	}
	where := jar.Path()
	if where == "" {
		where = "memory"
	}
	printer.Success("Session cookie stored (%s)", where)
	return nil
}

func runSessionClear(cmd *cobra.Command, args []string) error {
	if err := jar.Clear(); err != nil {
		return &output.CLIError{Summary: "failed to clear session cookie", Detail: err.Error(), ExitCode: output.ExitGeneral}
	}
	printer.Success("Session cookie cleared")
	return nil
}
