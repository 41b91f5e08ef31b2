package manager

import (
	"context"
	"fmt"
	"time"
)

// StatusKind enumerates the connection states reported by Status.
type StatusKind int

const (
	StatusNotConnectedNoTokens StatusKind = iota
	StatusNotConnectedExpired
	StatusConnected
	StatusConnectionTestFailed
)

// String returns the string representation of the status kind.
func (k StatusKind) String() string {
	switch k {
	case StatusNotConnectedNoTokens:
		return "not_connected_no_tokens"
	case StatusNotConnectedExpired:
		return "not_connected_expired"
	case StatusConnected:
		return "connected"
	case StatusConnectionTestFailed:
		return "connection_test_failed"
	default:
		return "unknown"
	}
}

// Status is the human-readable connection state.
type Status struct {
	Kind    StatusKind
	Message string
}

// Status reports the current connection state without mutating it. The
// expiry comparison is a plain past-check with no safety margin, unlike
// Token.Valid: a token inside its final minute still reports as connected
// while Valid already forces a refresh.
func (m *Manager) Status(ctx context.Context) Status {
	if err := m.EnsureInitialized(ctx); err != nil {
		return Status{
			Kind:    StatusNotConnectedNoTokens,
			Message: fmt.Sprintf("not connected - no tokens (%v)", err),
		}
	}

	m.mu.Lock()
	token := m.token
	realmID := m.creds.RealmID
	m.mu.Unlock()

	if token.AccessToken == "" && token.RefreshToken == "" {
		return Status{
			Kind:    StatusNotConnectedNoTokens,
			Message: "not connected - no tokens",
		}
	}

	if token.Expiry.Before(time.Now()) {
		return Status{
			Kind:    StatusNotConnectedExpired,
			Message: "not connected - tokens expired",
		}
	}

	if err := m.api.TestConnectivity(ctx); err != nil {
		return Status{
			Kind:    StatusConnectionTestFailed,
			Message: fmt.Sprintf("connection test failed: %v", err),
		}
	}

	message := "connected"
	if realmID != "" {
		message = fmt.Sprintf("connected to company %s", realmID)
	}
	return Status{Kind: StatusConnected, Message: message}
}
