package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"qbconnect/internal/webhook"
	"qbconnect/pkg/logging"
)

var flagNoTunnel bool

// secretWebhookVerifier is the secret-store name of the provider-issued
// webhook verifier token.
const secretWebhookVerifier = "webhook-verifier"

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Run the local webhook listener",
	Long: `Listen starts the local QuickBooks webhook endpoint and, unless
--no-tunnel is given, brings up the tunnel so the provider can reach it.
The listener runs until interrupted.`,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().BoolVar(&flagNoTunnel, "no-tunnel", false, "do not start the tunnel process")
	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	w, err := buildWiring()
	if err != nil {
		return err
	}
	defer w.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.manager.EnsureInitialized(ctx); err != nil {
		return err
	}

	if !flagNoTunnel {
		if w.tunnel.EnsureTunnel(ctx) {
			if url := w.tunnel.PublicURL(); url != "" {
				fmt.Printf("Tunnel public URL: %s\n", url)
			}
		} else {
			logging.Warn("CLI", "Tunnel not available; webhooks are only reachable locally")
		}
	}

	verifier, _ := w.resolver.Resolve(ctx, secretWebhookVerifier)
	server := webhook.NewServer(w.cfg.Webhook.Port, verifier)

	fmt.Printf("Listening for webhooks on localhost:%d (Ctrl-C to stop)\n", w.cfg.Webhook.Port)
	return server.Start(ctx)
}
