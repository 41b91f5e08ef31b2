package settings

import (
	"context"
	"time"
)

// Record is the persisted connection state. TokenExpiry uses the zero time as
// the "never obtained" sentinel.
type Record struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenExpiry  time.Time `json:"token_expiry,omitempty"`
	RealmID      string    `json:"realm_id,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// HasTokens reports whether any token material is present.
func (r *Record) HasTokens() bool {
	return r != nil && (r.AccessToken != "" || r.RefreshToken != "")
}

// Store persists the connection record. Save is durable once it returns; the
// lifecycle coordinator calls it after every successful token mutation and
// does not buffer or batch writes.
type Store interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, record *Record) error
}
