package config

const (
	// DefaultRedirectURI is the local callback endpoint registered with the
	// provider for development use.
	DefaultRedirectURI = "http://localhost:8721/callback"

	// DefaultScope grants read/write access to QuickBooks accounting data.
	DefaultScope = "com.intuit.quickbooks.accounting"

	// DefaultWebhookPort is the local webhook listener port. It is served by
	// the webhook server and targeted by the tunnel; the OAuth callback
	// listener uses the redirect URI port instead.
	DefaultWebhookPort = 8725

	// DefaultTunnelCommand is the forwarding executable spawned by the
	// tunnel supervisor.
	DefaultTunnelCommand = "ngrok"
)

// GetDefaultConfig returns the default configuration for qbconnect.
func GetDefaultConfig() Config {
	return Config{
		Environment: EnvironmentSandbox,
		RedirectURI: DefaultRedirectURI,
		Scopes:      []string{DefaultScope},
		Storage: StorageConfig{
			Backend: "file",
		},
		Tunnel: TunnelConfig{
			Command: DefaultTunnelCommand,
		},
		Webhook: WebhookConfig{
			Port: DefaultWebhookPort,
		},
	}
}
