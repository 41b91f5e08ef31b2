package config

// Environment identifies which QuickBooks environment the credentials belong to.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// IsValid reports whether the environment tag is one of the known values.
func (e Environment) IsValid() bool {
	return e == EnvironmentSandbox || e == EnvironmentProduction
}

// Config is the top-level configuration structure for qbconnect.
type Config struct {
	// Environment selects the QuickBooks environment (default: sandbox).
	Environment Environment `yaml:"environment,omitempty"`

	// RedirectURI is the OAuth redirect URI registered with the provider.
	// The callback listener binds the host and port of this URI.
	RedirectURI string `yaml:"redirectUri,omitempty"`

	// PreLoginURL is an optional provider-specific URL opened before the
	// authorization URL to disambiguate multi-account sign-in.
	PreLoginURL string `yaml:"preLoginUrl,omitempty"`

	// Scopes are the OAuth scopes requested during authorization.
	Scopes []string `yaml:"scopes,omitempty"`

	Storage StorageConfig `yaml:"storage,omitempty"`
	Tunnel  TunnelConfig  `yaml:"tunnel,omitempty"`
	Webhook WebhookConfig `yaml:"webhook,omitempty"`
}

// StorageConfig selects the settings-store backend.
type StorageConfig struct {
	// Backend is "file" or "sqlite" (default: file).
	Backend string `yaml:"backend,omitempty"`

	// Path overrides the storage location. For the file backend this is the
	// settings JSON file; for sqlite it is the database file.
	Path string `yaml:"path,omitempty"`
}

// TunnelConfig configures the optional reachability tunnel for the webhook
// listener. The tunnel is advisory infrastructure; authorization works
// without it.
type TunnelConfig struct {
	// Command is the tunnel executable (default: ngrok).
	Command string `yaml:"command,omitempty"`

	// ExtraArgs are appended to the generated argument list.
	ExtraArgs []string `yaml:"extraArgs,omitempty"`
}

// WebhookConfig configures the local webhook listener the tunnel forwards to.
type WebhookConfig struct {
	// Port is the local port the webhook listener binds (default: 8725).
	// This is distinct from the OAuth callback listener port.
	Port int `yaml:"port,omitempty"`
}
