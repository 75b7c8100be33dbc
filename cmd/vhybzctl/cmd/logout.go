package cmd

import (
	"github.com/spf13/cobra"

	"vhybz-auth/cmd/vhybzctl/internal/output"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session",
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	stack, err := openStack(nil)
	if err != nil {
		return err
	}
	defer stack.Close()

	if err := stack.Facade.Logout(cmd.Context()); err != nil {
		return &output.CLIError{
			Summary:    "logout failed",
			Detail:     stack.Facade.State().Error,
			Suggestion: "Retry, or run 'vhybzctl session clear' to forget the session locally",
			ExitCode:   output.ExitGeneral,
		}
	}

	if err := jar.Clear(); err != nil {
		printer.Warning("session ended but the local cookie store was not removed: %v", err)
	}
	printer.Success("Logged out")
	return nil
}
