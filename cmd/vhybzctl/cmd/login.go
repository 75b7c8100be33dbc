package cmd

import (
	"github.com/spf13/cobra"

	"vhybz-auth/cmd/vhybzctl/internal/output"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Start the Google sign-in in your browser",
	Long: `Open the platform's Google sign-in page in the system browser.

The session cookie is set in the browser. Copy its value and store it with
'vhybzctl session set <cookie>' to use it from the terminal.`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	stack, err := openStack(newNavigator(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer stack.Close()

	if err := stack.Facade.Login(cmd.Context()); err != nil {
		return &output.CLIError{
			Summary:    "could not start sign-in",
			Detail:     err.Error(),
			Suggestion: "Open the login URL manually in a browser",
			ExitCode:   output.ExitGeneral,
		}
	}
	stack.Facade.NavigationComplete()

	printer.Success("Sign-in opened in your browser")
	printer.Info("When done, run: vhybzctl session set <%s cookie value>", cfg.CookieName)
	return nil
}
