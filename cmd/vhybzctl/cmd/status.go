package cmd

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"vhybz-auth/internal/bootstrap"
	"vhybz-auth/internal/domain"
	"vhybz-auth/internal/usecase"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the merged session state",
	Long: `Display the session state the shell would see: user, authenticated,
loading and the visible error.

Examples:
  vhybzctl status              # Show current state
  vhybzctl status --json       # Output as JSON
  vhybzctl status --watch      # Follow state changes`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().Bool("json", false, "output as JSON")
	statusCmd.Flags().BoolP("watch", "w", false, "watch for changes")
	statusCmd.Flags().Duration("interval", 30*time.Second, "how often --watch revalidates the session")
}

func runStatus(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	watch, _ := cmd.Flags().GetBool("watch")
	interval, _ := cmd.Flags().GetDuration("interval")

	stack, err := openStack(nil)
	if err != nil {
		return err
	}
	defer stack.Close()

	if watch {
		return watchStatus(cmd.Context(), stack, interval, jsonOutput)
	}

	state := stack.Facade.Ensure(cmd.Context())
	return printState(state, jsonOutput)
}

// watchStatus prints the state whenever the cache entry changes. The ticker
// revalidates, which refetches only once the freshness window has passed.
func watchStatus(ctx context.Context, stack *bootstrap.Stack, interval time.Duration, jsonOutput bool) error {
	changes := make(chan struct{}, 1)
	unsubscribe := stack.Cache.Subscribe(func(domain.CacheEntry) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	var last usecase.AuthState
	emit := func() error {
		state := stack.Facade.State()
		if sameState(state, last) {
			return nil
		}
		last = state
		return printState(state, jsonOutput)
	}

	go stack.Facade.Ensure(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			if err := emit(); err != nil {
				return err
			}
		case <-ticker.C:
			go stack.Facade.Ensure(ctx)
		}
	}
}

func sameState(a, b usecase.AuthState) bool {
	if a.IsAuthenticated != b.IsAuthenticated || a.IsLoading != b.IsLoading || a.Error != b.Error {
		return false
	}
	if a.User == nil || b.User == nil {
		return a.User == b.User
	}
	return a.User.ID == b.User.ID && a.User.Role == b.User.Role
}

func printState(state usecase.AuthState, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(printer.Out())
		return enc.Encode(state)
	}

	switch {
	case state.IsLoading:
		printer.Print("%s", printer.DecisionBadge(string(usecase.DecisionChecking)))
	case state.IsAuthenticated:
		printer.Print("%s %s (%s)", printer.DecisionBadge("AUTHENTICATED"), state.User.Email, state.User.Role)
	default:
		printer.Print("%s", printer.DecisionBadge("LOGGED OUT"))
	}
	if state.Error != "" {
		printer.Warning("%s", state.Error)
	}
	return nil
}
