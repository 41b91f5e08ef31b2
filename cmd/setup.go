package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"qbconnect/internal/config"
	"qbconnect/internal/manager"
	"qbconnect/internal/secrets"
	"qbconnect/internal/settings"
	"qbconnect/internal/tunnel"
)

// wiring holds the assembled application components for one command run.
type wiring struct {
	cfg      config.Config
	resolver *secrets.Resolver
	manager  *manager.Manager
	tunnel   *tunnel.Supervisor
	store    settings.Store
}

// buildWiring loads configuration and assembles the secret resolver, the
// settings store, the tunnel supervisor, and the lifecycle manager.
func buildWiring() (*wiring, error) {
	configPath := flagConfigPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	secretStore, err := secrets.NewFileStore(filepath.Join(configPath, "secrets.json"))
	if err != nil {
		return nil, err
	}
	resolver := secrets.NewResolver(secretStore)

	store, err := buildSettingsStore(cfg, configPath)
	if err != nil {
		return nil, err
	}

	supervisor := tunnel.NewSupervisor(tunnel.Config{
		Command:   cfg.Tunnel.Command,
		ExtraArgs: cfg.Tunnel.ExtraArgs,
		LocalPort: cfg.Webhook.Port,
	})

	mgr := manager.NewManager(cfg, resolver, store,
		manager.WithTunnel(supervisor),
	)

	return &wiring{
		cfg:      cfg,
		resolver: resolver,
		manager:  mgr,
		tunnel:   supervisor,
		store:    store,
	}, nil
}

// buildSettingsStore selects the configured settings backend.
func buildSettingsStore(cfg config.Config, configPath string) (settings.Store, error) {
	switch cfg.Storage.Backend {
	case "", "file":
		path := cfg.Storage.Path
		if path == "" {
			path = filepath.Join(configPath, "settings.json")
		}
		return settings.NewFileStore(path)
	case "sqlite":
		path := cfg.Storage.Path
		if path == "" {
			path = filepath.Join(configPath, "qbconnect.db")
		}
		return settings.NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// close releases long-lived resources held by the wiring.
func (w *wiring) close() {
	if w.tunnel != nil {
		w.tunnel.Close()
	}
	if closer, ok := w.store.(io.Closer); ok {
		_ = closer.Close()
	}
}
