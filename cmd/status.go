package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"qbconnect/internal/formatting"
	"qbconnect/internal/manager"
)

var flagOutput string

// statusReport is the serializable shape of the status command's result.
type statusReport struct {
	State   string `json:"state" yaml:"state"`
	Message string `json:"message" yaml:"message"`
}

// Summary returns the one-line console rendering.
func (r statusReport) Summary() string {
	return r.Message
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the current QuickBooks connection state",
	Long: `Status reports the connection state without refreshing tokens or
launching any authorization flow. The exit code reflects the state:
0 when connected, 2 when re-authorization is required, 1 otherwise.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&flagOutput, "output", "o", "console", "output format (console, json, yaml)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := formatting.ParseFormat(flagOutput)
	if err != nil {
		return err
	}

	w, err := buildWiring()
	if err != nil {
		return err
	}
	defer w.close()

	st := w.manager.Status(cmd.Context())

	rendered, err := formatting.NewFormatter(format).Format(statusReport{
		State:   st.Kind.String(),
		Message: st.Message,
	})
	if err != nil {
		return err
	}
	fmt.Println(rendered)

	switch st.Kind {
	case manager.StatusConnected:
		return nil
	case manager.StatusNotConnectedNoTokens, manager.StatusNotConnectedExpired:
		return &exitError{code: ExitCodeAuthRequired}
	case manager.StatusConnectionTestFailed:
		return &exitError{code: ExitCodeNotConnected}
	default:
		return &exitError{code: ExitCodeError}
	}
}
