package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"runtime"
	"time"

	"github.com/google/uuid"
)

// FlowState tracks the interactive authorization state machine.
type FlowState int

const (
	FlowIdle FlowState = iota
	FlowPreparing
	FlowListenerBound
	FlowBrowserLaunched
	FlowAwaitingCallback
	FlowSucceeded
	FlowFailed
	FlowTimedOut
)

// String returns the string representation of the flow state.
func (s FlowState) String() string {
	switch s {
	case FlowIdle:
		return "idle"
	case FlowPreparing:
		return "preparing"
	case FlowListenerBound:
		return "listener_bound"
	case FlowBrowserLaunched:
		return "browser_launched"
	case FlowAwaitingCallback:
		return "awaiting_callback"
	case FlowSucceeded:
		return "succeeded"
	case FlowFailed:
		return "failed"
	case FlowTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// TunnelProvider prepares an outbound tunnel so the callback endpoint is
// reachable from the provider's redirect. Advisory: a false return never
// blocks the flow.
type TunnelProvider interface {
	EnsureTunnel(ctx context.Context) bool
}

// FlowResult is the outcome of one interactive authorization.
type FlowResult struct {
	Token   Token
	RealmID string
}

// InteractiveFlow drives one browser-based authorization: local listener,
// CSRF state, browser launch, callback correlation, code exchange. A flow is
// single-use; construct a new one per attempt.
type InteractiveFlow struct {
	client *Client
	creds  Credentials
	tunnel TunnelProvider // may be nil

	state  FlowState
	flowID string

	// openBrowser is replaceable in tests; launching a real browser there is
	// neither possible nor wanted.
	openBrowser func(url string) error
}

// NewInteractiveFlow creates a flow for the given client and credentials.
func NewInteractiveFlow(client *Client, creds Credentials, tunnel TunnelProvider) *InteractiveFlow {
	return &InteractiveFlow{
		client:      client,
		creds:       creds,
		tunnel:      tunnel,
		state:       FlowIdle,
		flowID:      uuid.NewString(),
		openBrowser: OpenBrowser,
	}
}

// State returns the current flow state.
func (f *InteractiveFlow) State() FlowState {
	return f.state
}

// Run executes the flow to completion. It blocks until the callback arrives,
// the 5-minute deadline passes, or the context is cancelled. On success the
// returned result carries the token pair and, when the provider supplied one,
// the realm id.
func (f *InteractiveFlow) Run(ctx context.Context) (*FlowResult, error) {
	f.state = FlowPreparing

	state, err := GenerateState()
	if err != nil {
		f.state = FlowFailed
		return nil, err
	}

	f.grantListenerPermission()

	server := NewCallbackServer(f.creds.RedirectURI)
	if err := server.Start(ctx); err != nil {
		f.state = FlowFailed
		return nil, err
	}
	defer server.Stop()
	f.state = FlowListenerBound

	slog.Debug("Callback listener bound",
		"flow_id", f.flowID,
		"redirect_uri", f.creds.RedirectURI,
	)

	// Best-effort reachability tunnel for the webhook listener. Failure is
	// logged inside the supervisor and does not block authorization.
	if f.tunnel != nil {
		if !f.tunnel.EnsureTunnel(ctx) {
			slog.Debug("Tunnel unavailable, continuing without it", "flow_id", f.flowID)
		}
	}

	authURL, err := f.client.BuildAuthorizationURL(f.creds.RedirectURI, state)
	if err != nil {
		f.state = FlowFailed
		return nil, err
	}

	// Optional provider-specific pre-login page to disambiguate
	// multi-account sign-in.
	openBrowserAdvisory(f.creds.PreLoginURL, "pre-login")

	if err := f.openBrowser(authURL); err != nil {
		f.state = FlowFailed
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	f.state = FlowBrowserLaunched

	slog.Info("Waiting for authorization in browser",
		"flow_id", f.flowID,
		"timeout", CallbackTimeout.String(),
	)

	f.state = FlowAwaitingCallback
	waitCtx, cancel := context.WithTimeout(ctx, CallbackTimeout)
	defer cancel()

	result, err := server.WaitForCallback(waitCtx)
	if err != nil {
		if waitCtx.Err() != nil && ctx.Err() == nil {
			f.state = FlowTimedOut
			return nil, fmt.Errorf("timed out waiting for authorization callback: %w", ErrAuthorizationNotCompleted)
		}
		f.state = FlowFailed
		return nil, fmt.Errorf("callback failed: %w", err)
	}

	if result.IsError() {
		f.state = FlowFailed
		slog.Warn("Authorization denied by provider",
			"flow_id", f.flowID,
			"error", result.Error,
			"error_description", result.ErrorDescription,
		)
		return nil, fmt.Errorf("authorization failed: %s: %w", result.Error, ErrAuthorizationNotCompleted)
	}

	if result.State != state {
		f.state = FlowFailed
		slog.Warn("State mismatch on callback - possible CSRF attempt",
			"flow_id", f.flowID,
			"expected_state_len", len(state),
			"received_state_len", len(result.State),
		)
		return nil, fmt.Errorf("state mismatch on callback: %w", ErrAuthorizationNotCompleted)
	}

	if result.Code == "" {
		f.state = FlowFailed
		return nil, fmt.Errorf("callback carried no authorization code: %w", ErrAuthorizationNotCompleted)
	}

	token, err := f.client.Exchange(ctx, result.Code, f.creds.RedirectURI)
	if err != nil {
		f.state = FlowFailed
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	realmID := result.RealmID
	if realmID == "" {
		realmID = accountHintFromPreLoginURL(f.creds.PreLoginURL)
	}

	f.state = FlowSucceeded
	slog.Info("Authorization completed",
		"flow_id", f.flowID,
		"has_realm_id", realmID != "",
		"expiry", token.Expiry.Format(time.RFC3339),
	)

	return &FlowResult{Token: token, RealmID: realmID}, nil
}

// grantListenerPermission is an advisory pre-bind step. On Windows an HTTP
// prefix needs a urlacl grant; checking it here lets us log the exact command
// up front. The bind itself still fails loudly when truly blocked.
func (f *InteractiveFlow) grantListenerPermission() bool {
	addr, _, err := listenerTarget(f.creds.RedirectURI)
	if err != nil {
		return false
	}

	probe, err := net.Listen("tcp", addr)
	if err != nil {
		if runtime.GOOS == "windows" {
			slog.Warn("Listener prefix may need a permission grant",
				"addr", addr,
				"remediation", bindRemediation(f.creds.RedirectURI),
			)
		}
		return false
	}
	_ = probe.Close()
	return true
}

// accountHintFromPreLoginURL makes one best-effort attempt to pull an account
// identifier out of the pre-login URL's query parameters. Advisory only.
func accountHintFromPreLoginURL(preLoginURL string) string {
	if preLoginURL == "" {
		return ""
	}
	parsed, err := url.Parse(preLoginURL)
	if err != nil {
		return ""
	}
	query := parsed.Query()
	for _, key := range []string{"realmId", "companyId", "account"} {
		if v := query.Get(key); v != "" {
			return v
		}
	}
	return ""
}
