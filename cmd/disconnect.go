package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Remove stored tokens and company association",
	Long: `Disconnect clears the stored access and refresh tokens along with the
company (realm) association. Client credentials are kept so a later
"connect" can re-authorize without re-entering them.`,
	RunE: runDisconnect,
}

func init() {
	rootCmd.AddCommand(disconnectCmd)
}

func runDisconnect(cmd *cobra.Command, args []string) error {
	w, err := buildWiring()
	if err != nil {
		return err
	}
	defer w.close()

	if err := w.manager.Disconnect(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Disconnected from QuickBooks.")
	return nil
}
