package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"qbconnect/internal/config"
	"qbconnect/internal/oauth"
	"qbconnect/internal/secrets"
	"qbconnect/internal/settings"
	"qbconnect/pkg/logging"
)

const logContext = "Manager"

// Secret names resolved during initialization. The company-id name is kept
// for backward compatibility with older installs.
const (
	SecretClientID     = "client-id"
	SecretClientSecret = "client-secret"
	SecretRedirectURI  = "redirect-uri"
	SecretEnvironment  = "environment"
	SecretRealmID      = "realm-id"
	SecretRealmIDOld   = "company-id"
	SecretPreLoginURL  = "pre-login-url"
)

// flowRunner abstracts the interactive flow for testing.
type flowRunner interface {
	Run(ctx context.Context) (*oauth.FlowResult, error)
}

// Manager is the public-facing credential lifecycle facade. It owns the
// token state, sequences the secret resolver, refresh engine, and interactive
// flow, and persists every successful token mutation immediately.
type Manager struct {
	cfg      config.Config
	resolver *secrets.Resolver
	store    settings.Store
	tunnel   oauth.TunnelProvider // may be nil

	// Initialization gate: double-checked so late callers observe the
	// completed result without re-running resolution. A config error is
	// cached and aborts initialization permanently.
	initDone atomic.Bool
	initMu   sync.Mutex
	initErr  error

	// Guarded by mu after initialization.
	mu     sync.Mutex
	creds  oauth.Credentials
	token  oauth.Token
	client *oauth.Client

	clientOpts []oauth.ClientOption
	api        RemoteAPI
	newFlow    func(client *oauth.Client, creds oauth.Credentials, tunnel oauth.TunnelProvider) flowRunner
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClientOptions forwards options to the token endpoint client built
// during initialization.
func WithClientOptions(opts ...oauth.ClientOption) Option {
	return func(m *Manager) { m.clientOpts = opts }
}

// WithRemoteAPI overrides the remote data API used by the connectivity probe.
func WithRemoteAPI(api RemoteAPI) Option {
	return func(m *Manager) { m.api = api }
}

// WithTunnel attaches a tunnel provider consulted by the interactive flow.
func WithTunnel(t oauth.TunnelProvider) Option {
	return func(m *Manager) { m.tunnel = t }
}

// withFlowRunner replaces the interactive flow, for tests.
func withFlowRunner(fn func(client *oauth.Client, creds oauth.Credentials, tunnel oauth.TunnelProvider) flowRunner) Option {
	return func(m *Manager) { m.newFlow = fn }
}

// NewManager creates the lifecycle coordinator. Nothing is resolved until
// EnsureInitialized runs.
func NewManager(cfg config.Config, resolver *secrets.Resolver, store settings.Store, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		resolver: resolver,
		store:    store,
		newFlow: func(client *oauth.Client, creds oauth.Credentials, tunnel oauth.TunnelProvider) flowRunner {
			return oauth.NewInteractiveFlow(client, creds, tunnel)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureInitialized performs the one-time secret resolution pass. Concurrent
// callers block behind the gate and observe the same completed state.
func (m *Manager) EnsureInitialized(ctx context.Context) error {
	if m.initDone.Load() {
		return m.initErr
	}

	m.initMu.Lock()
	defer m.initMu.Unlock()

	// Second check inside the lock: another caller may have finished while
	// we were waiting.
	if m.initDone.Load() {
		return m.initErr
	}

	m.initErr = m.initialize(ctx)
	m.initDone.Store(true)
	return m.initErr
}

// initialize resolves credentials and loads persisted token state.
func (m *Manager) initialize(ctx context.Context) error {
	clientID, ok := m.resolver.Resolve(ctx, SecretClientID)
	if !ok {
		return &oauth.AuthError{
			Kind: oauth.KindConfig,
			Op:   "initialize",
			Err: fmt.Errorf("client id not configured: set the %s secret or the %s environment variable",
				SecretClientID, secrets.EnvName(SecretClientID)),
		}
	}

	clientSecret, _ := m.resolver.Resolve(ctx, SecretClientSecret)
	redirectURI, ok := m.resolver.Resolve(ctx, SecretRedirectURI)
	if !ok {
		redirectURI = m.cfg.RedirectURI
	}
	environment := m.cfg.Environment
	if env, ok := m.resolver.Resolve(ctx, SecretEnvironment); ok {
		environment = config.Environment(env)
	}
	realmID, _ := m.resolver.Resolve(ctx, SecretRealmID, SecretRealmIDOld)
	preLoginURL, ok := m.resolver.Resolve(ctx, SecretPreLoginURL)
	if !ok {
		preLoginURL = m.cfg.PreLoginURL
	}

	creds := oauth.Credentials{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		Environment:  environment,
		RealmID:      realmID,
		PreLoginURL:  preLoginURL,
		Scopes:       m.cfg.Scopes,
	}

	record, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted settings: %w", err)
	}

	m.mu.Lock()
	m.creds = creds
	m.client = oauth.NewClient(creds, m.clientOpts...)
	m.token = oauth.Token{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		Expiry:       record.TokenExpiry,
	}
	if m.creds.RealmID == "" {
		m.creds.RealmID = record.RealmID
	}
	if m.api == nil {
		m.api = NewQuickBooksAPI(environment, m.snapshot)
	}
	m.mu.Unlock()

	logging.Info(logContext, "Initialized for environment %s (tokens persisted: %t)", environment, record.HasTokens())
	return nil
}

// snapshot returns the current token and realm id for the connectivity probe.
func (m *Manager) snapshot() (oauth.Token, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.creds.RealmID
}

// EnsureTokenValid makes sure a usable access token is present: a no-op when
// the token is valid, a refresh when a refresh token exists, otherwise a full
// interactive authorization.
func (m *Manager) EnsureTokenValid(ctx context.Context) error {
	if err := m.EnsureInitialized(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	token := m.token
	creds := m.creds
	client := m.client
	m.mu.Unlock()

	if token.Valid() {
		return nil
	}

	if token.RefreshToken == "" {
		return m.runInteractiveFlow(ctx, client, creds)
	}

	newToken, err := client.Refresh(ctx, token.RefreshToken)
	if err != nil {
		if oauth.IsReauthorizationRequired(err) {
			// The refresh token is dead; keeping the stale pair around
			// would just repeat the 400 forever.
			m.clearTokens(ctx, false)
			logging.Warn(logContext, "Refresh token rejected, re-authorization required")
		}
		return err
	}

	return m.commitToken(ctx, newToken, "")
}

// runInteractiveFlow drives the browser-based authorization and commits its
// result.
func (m *Manager) runInteractiveFlow(ctx context.Context, client *oauth.Client, creds oauth.Credentials) error {
	result, err := m.newFlow(client, creds, m.tunnel).Run(ctx)
	if err != nil {
		if errors.Is(err, oauth.ErrAuthorizationNotCompleted) || oauth.IsCancelled(err) {
			return err
		}
		return fmt.Errorf("%w: %v", oauth.ErrAuthorizationNotCompleted, err)
	}

	if result.RealmID != "" {
		m.resolver.Persist(ctx, SecretRealmID, result.RealmID)
	}
	return m.commitToken(ctx, result.Token, result.RealmID)
}

// commitToken writes the new token pair into token state and persists it
// immediately. Save is treated as durable once it returns.
func (m *Manager) commitToken(ctx context.Context, token oauth.Token, realmID string) error {
	m.mu.Lock()
	m.token = token
	if realmID != "" {
		m.creds.RealmID = realmID
	}
	record := &settings.Record{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry,
		RealmID:      m.creds.RealmID,
	}
	m.mu.Unlock()

	if err := m.store.Save(ctx, record); err != nil {
		return fmt.Errorf("failed to persist token state: %w", err)
	}
	logging.Debug(logContext, "Token state persisted (%s)", token.String())
	return nil
}

// clearTokens resets token state and persists the cleared record.
// When clearRealm is set the cached tenant identifier is dropped too.
func (m *Manager) clearTokens(ctx context.Context, clearRealm bool) {
	m.mu.Lock()
	m.token = oauth.Token{}
	if clearRealm {
		m.creds.RealmID = ""
	}
	record := &settings.Record{RealmID: m.creds.RealmID}
	m.mu.Unlock()

	if err := m.store.Save(ctx, record); err != nil {
		logging.Warn(logContext, "Failed to persist cleared token state: %v", err)
	}
}

// Connect composes initialization, token validation, and a lightweight
// connectivity probe. It returns a boolean outcome; the error is non-nil only
// for cancellation.
func (m *Manager) Connect(ctx context.Context) (bool, error) {
	if err := m.EnsureInitialized(ctx); err != nil {
		if oauth.IsCancelled(err) {
			return false, err
		}
		logging.Error(logContext, err, "Initialization failed")
		return false, nil
	}

	if err := m.EnsureTokenValid(ctx); err != nil {
		if oauth.IsCancelled(err) {
			return false, err
		}
		logging.Error(logContext, err, "Could not obtain a valid token")
		return false, nil
	}

	if err := m.api.TestConnectivity(ctx); err != nil {
		if oauth.IsCancelled(err) {
			return false, err
		}
		logging.Error(logContext, err, "Connectivity probe failed")
		return false, nil
	}

	return true, nil
}

// Disconnect clears token state and the cached tenant identifier and
// persists the cleared record. The provider-side grant is not revoked.
func (m *Manager) Disconnect(ctx context.Context) error {
	if err := m.EnsureInitialized(ctx); err != nil && oauth.IsCancelled(err) {
		return err
	}

	m.clearTokens(ctx, true)
	m.resolver.Persist(ctx, SecretRealmID, "")
	logging.Info(logContext, "Disconnected; local token state cleared")
	return nil
}
