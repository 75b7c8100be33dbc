package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"vhybz-auth/cmd/vhybzctl/internal/output"
	"vhybz-auth/internal/usecase"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	stack, err := openStack(nil)
	if err != nil {
		return err
	}
	defer stack.Close()

	state := stack.Facade.Ensure(cmd.Context())
	if err := stateError(state); err != nil {
		return err
	}

	user := state.User
	printer.Print("%s", printer.Bold(user.Name))
	printer.Field("Email", user.Email)
	printer.Field("Role", string(user.Role))
	printer.Field("User ID", user.ID)
	if user.HasPermissions() {
		printer.Field("Permissions", strings.Join(user.Permissions, ", "))
	}
	return nil
}

// stateError converts a settled non-authenticated state into a CLI error.
func stateError(state usecase.AuthState) error {
	switch {
	case state.IsAuthenticated:
		return nil
	case state.Error != "":
		return &output.CLIError{
			Summary:    "could not determine session",
			Detail:     state.Error,
			Suggestion: "Check API_BASE_URL and that the platform API is reachable",
			ExitCode:   output.ExitGeneral,
		}
	case state.IsLoading:
		return &output.CLIError{Summary: "session check did not finish", ExitCode: output.ExitTimeout}
	default:
		return &output.CLIError{
			Summary:    "not logged in",
			Suggestion: "Run 'vhybzctl login', then 'vhybzctl session set <cookie>'",
			ExitCode:   output.ExitUnauthenticated,
		}
	}
}
