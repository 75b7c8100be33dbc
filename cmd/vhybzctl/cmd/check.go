package cmd

import (
	"github.com/spf13/cobra"

	"vhybz-auth/cmd/vhybzctl/internal/output"
	"vhybz-auth/internal/domain"
	"vhybz-auth/internal/usecase"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate the access gate for a route",
	Long: `Decide whether a route with the given requirements would render.

Exit codes: 0 authorized, 3 unauthenticated, 4 forbidden, 5 still checking.

Examples:
  vhybzctl check                                   # Any signed-in user
  vhybzctl check --role admin --role superadmin    # The admin page
  vhybzctl check --permission users:read           # Permission-gated page`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringArray("role", nil, "accepted role (repeatable)")
	checkCmd.Flags().StringArray("permission", nil, "required permission (repeatable)")
	checkCmd.Flags().Bool("anonymous", false, "route renders for logged-out visitors")
}

func runCheck(cmd *cobra.Command, args []string) error {
	roleNames, _ := cmd.Flags().GetStringArray("role")
	permissions, _ := cmd.Flags().GetStringArray("permission")
	anonymous, _ := cmd.Flags().GetBool("anonymous")

	route := usecase.Route{Permissions: permissions, AllowAnonymous: anonymous}
	for _, name := range roleNames {
		role, err := domain.ParseRole(name)
		if err != nil {
			return &output.CLIError{
				Summary:    "unknown role: " + name,
				Suggestion: "Use user, admin or superadmin",
				ExitCode:   output.ExitUsageError,
			}
		}
		route.Roles = append(route.Roles, role)
	}

	stack, err := openStack(nil)
	if err != nil {
		return err
	}
	defer stack.Close()

	out := stack.Gate.Check(cmd.Context(), route)
	printer.Print("%s %s", printer.DecisionBadge(string(out.Decision)), printer.Dim(route.String()))

	switch out.Decision {
	case usecase.DecisionAuthorized:
		return nil
	case usecase.DecisionUnauthenticated:
		return &output.CLIError{
			Summary:    "not logged in",
			Detail:     "the shell would redirect to " + out.RedirectTo,
			Suggestion: "Run 'vhybzctl login'",
			ExitCode:   output.ExitUnauthenticated,
		}
	case usecase.DecisionForbidden:
		detail := ""
		if out.MissingPermission != "" {
			detail = "missing permission " + out.MissingPermission
		}
		return &output.CLIError{Summary: out.Message, Detail: detail, ExitCode: output.ExitForbidden}
	default:
		return &output.CLIError{Summary: "session check did not finish", ExitCode: output.ExitTimeout}
	}
}
