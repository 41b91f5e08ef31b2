package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"qbconnect/internal/oauth"
	"qbconnect/pkg/logging"
)

// Exit codes for CLI commands. These follow common conventions so scripts
// can branch on the outcome.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error.
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates re-authorization is needed.
	ExitCodeAuthRequired = 2
	// ExitCodeNotConnected indicates the connection test failed or no
	// connection exists.
	ExitCodeNotConnected = 3
)

var (
	flagConfigPath string
	flagDebug      bool
)

// rootCmd represents the base command for the qbconnect application.
var rootCmd = &cobra.Command{
	Use:   "qbconnect",
	Short: "Manage the QuickBooks OAuth connection",
	Long: `qbconnect keeps a long-lived QuickBooks Online integration authorized:
it stores the OAuth token pair locally, refreshes access tokens before they
expire, and drives the browser-based authorization flow when no refresh token
exists.`,
	// SilenceUsage prevents cobra from printing usage on handled errors.
	// Errors are printed by Execute so exit-code-only errors stay quiet.
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logging.LevelInfo
		if flagDebug {
			level = logging.LevelDebug
		}
		logging.Init(level, os.Stderr)

		// Optional .env overlay for local development; a missing file is fine.
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config directory (default ~/.config/qbconnect)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
}

// SetVersion sets the version for the root command. Called from main with
// the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "qbconnect version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if !errors.As(err, &ee) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps error classes to semantic exit codes.
func getExitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if oauth.IsReauthorizationRequired(err) || errors.Is(err, oauth.ErrAuthorizationNotCompleted) {
		return ExitCodeAuthRequired
	}
	return ExitCodeError
}

// exitError carries an explicit exit code without extra output; commands
// return it after they have already printed their result.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
