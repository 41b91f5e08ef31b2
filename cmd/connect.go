package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// connectCmd composes initialize, ensure-valid-token, and the connectivity
// probe. When no refresh token exists this launches the browser-based
// authorization flow.
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Authorize and verify the QuickBooks connection",
	Long: `Connect ensures credentials are initialized, obtains a valid access token
(refreshing or launching the browser-based authorization as needed), and
verifies connectivity against the QuickBooks API.`,
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	w, err := buildWiring()
	if err != nil {
		return err
	}
	defer w.close()

	ok, err := w.manager.Connect(cmd.Context())
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Connection failed. Run with --debug for details.")
		return fmt.Errorf("could not establish QuickBooks connection")
	}

	fmt.Println("Connected to QuickBooks.")
	return nil
}
