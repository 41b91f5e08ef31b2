package secrets

import (
	"context"
	"os"
	"strings"
	"sync/atomic"

	"qbconnect/pkg/logging"
)

// EnvPrefix is prepended to derived environment variable names.
const EnvPrefix = "QBCONNECT_"

// Store is the secret-store capability consumed by the resolver. Both
// operations are fallible but never fatal to the caller: a failing store is
// treated the same as an empty one.
type Store interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
}

// Resolver resolves named credentials by trying a secret store first and an
// environment variable of a derived name second. Absence is a normal outcome,
// not an error.
type Resolver struct {
	store Store // may be nil

	// calls counts Resolve invocations so initialization idempotency can be
	// verified by callers and tests.
	calls atomic.Int64
}

// NewResolver creates a resolver backed by the given store. A nil store is
// allowed; resolution then falls through to the environment only.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve tries each candidate name in priority order against the secret
// store, then against the environment. The first non-empty value wins.
// Multiple candidate names exist for backward compatibility with older
// credential names.
func (r *Resolver) Resolve(ctx context.Context, names ...string) (string, bool) {
	r.calls.Add(1)

	for _, name := range names {
		if r.store != nil {
			value, err := r.store.Get(ctx, name)
			if err != nil {
				logging.Debug("Secrets", "Secret store lookup for %s failed, falling back to environment: %v", name, err)
			} else if value != "" {
				return value, true
			}
		}

		if value := os.Getenv(EnvName(name)); value != "" {
			return value, true
		}
	}

	return "", false
}

// Persist writes a secret back to the store. Best-effort: failures are logged
// and reported as a boolean so callers never escalate them.
func (r *Resolver) Persist(ctx context.Context, name, value string) bool {
	if r.store == nil {
		return false
	}
	if err := r.store.Set(ctx, name, value); err != nil {
		logging.Warn("Secrets", "Failed to persist secret %s: %v", name, err)
		return false
	}
	return true
}

// CallCount returns how many Resolve calls have been made.
func (r *Resolver) CallCount() int64 {
	return r.calls.Load()
}

// EnvName derives the environment variable name for a secret:
// "client-id" -> "QBCONNECT_CLIENT_ID".
func EnvName(name string) string {
	upper := strings.ToUpper(name)
	upper = strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(upper)
	return EnvPrefix + upper
}
