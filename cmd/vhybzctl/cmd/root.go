// Package cmd contains all CLI commands for vhybzctl
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"vhybz-auth/cmd/vhybzctl/internal/output"
	"vhybz-auth/config"
	"vhybz-auth/internal/bootstrap"
	"vhybz-auth/internal/domain"
	"vhybz-auth/internal/infrastructure/cookiestore"
	"vhybz-auth/internal/infrastructure/navigator"
	"vhybz-auth/utils/logger"
)

var (
	verbose   bool
	colorMode string
	cfg       *config.Config
	log       *slog.Logger
	jar       *cookiestore.Jar
	printer   *output.Printer
	version   = "dev"
)

// newNavigator builds the navigator used by login. Tests replace it.
var newNavigator = func(w io.Writer) domain.Navigator {
	return navigator.NewBrowser(w)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vhybzctl",
	Short: "VhybZ session and access control CLI",
	Long: `vhybzctl inspects and manages your VhybZ session from the terminal.

It talks to the same identity endpoints as the VhybZ shell and applies the
same access rules, so "check" answers exactly what a protected page would.

Example usage:
  vhybzctl login                       # Sign in through the browser
  vhybzctl session set <cookie>        # Store the session cookie from the browser
  vhybzctl whoami                      # Show the signed-in user
  vhybzctl check --role admin          # Would the admin page let me in?
  vhybzctl status --watch              # Follow session state changes`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Printer returns the printer configured for the last run, or a plain one.
func Printer() *output.Printer {
	if printer == nil {
		return output.NewPrinter(os.Stdout, os.Stderr, false)
	}
	return printer
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "color output: auto, always, never")
}

// initConfig loads configuration, the logger and the cookie jar.
func initConfig(cmd *cobra.Command) error {
	mode, err := output.ParseColorMode(colorMode)
	if err != nil {
		return &output.CLIError{Summary: err.Error(), ExitCode: output.ExitUsageError}
	}
	printer = output.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ResolveColors(mode))

	level := logger.LevelFromEnv(slog.LevelWarn)
	if verbose {
		level = slog.LevelDebug
	}
	log = logger.Setup(cmd.ErrOrStderr(), logger.Options{Level: level, Text: true})

	cfg, err = config.Load()
	if err != nil {
		return &output.CLIError{
			Summary:  "invalid configuration",
			Detail:   err.Error(),
			ExitCode: output.ExitUsageError,
		}
	}

	jar, err = bootstrap.OpenJar(cfg)
	if err != nil {
		return &output.CLIError{
			Summary:    "cannot open cookie store",
			Detail:     err.Error(),
			Suggestion: fmt.Sprintf("Check permissions on %s or set COOKIE_STORE_PATH", cfg.CookieStorePath),
			ExitCode:   output.ExitGeneral,
		}
	}

	log.Debug("configuration loaded",
		"identity_backend", cfg.IdentityBackend,
		"identity_url", cfg.IdentityURL(),
		"cookie_store", jar.Path(),
	)
	return nil
}

// openStack wires the auth stack for one command invocation.
func openStack(nav domain.Navigator) (*bootstrap.Stack, error) {
	transport, err := bootstrap.NewTransport(cfg, jar, nav)
	if err != nil {
		return nil, &output.CLIError{Summary: "invalid identity backend", Detail: err.Error(), ExitCode: output.ExitUsageError}
	}
	return bootstrap.New(cfg, transport, log), nil
}
