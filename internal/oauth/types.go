package oauth

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"qbconnect/internal/config"
)

const (
	// TokenEndpoint is the QuickBooks bearer token endpoint, shared by the
	// sandbox and production environments.
	TokenEndpoint = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"

	// AuthorizationEndpoint is the browser-directed QuickBooks consent page.
	AuthorizationEndpoint = "https://appcenter.intuit.com/connect/oauth2"
)

// Credentials are the immutable client credentials resolved once at
// initialization. ClientID is mandatory; ClientSecret may be empty for public
// clients; RealmID may be absent until captured from a callback.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Environment  config.Environment
	RealmID      string
	PreLoginURL  string
	Scopes       []string
}

// tokenExpiryMargin is the early-renewal margin applied by Token.Valid.
// It avoids the race where a token expires mid-request.
const tokenExpiryMargin = 60 * time.Second

// Token holds the current access/refresh token pair. The zero Expiry is the
// "never obtained" sentinel and is always invalid.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Valid reports whether the access token is usable: non-empty, with a known
// expiry strictly more than the safety margin in the future.
func (t Token) Valid() bool {
	if t.AccessToken == "" {
		return false
	}
	if t.Expiry.IsZero() {
		return false
	}
	return time.Now().Add(tokenExpiryMargin).Before(t.Expiry)
}

// ToOAuth2Token converts to the x/oauth2 token type so the pair can be
// plugged into oauth2-based SDK clients.
func (t Token) ToOAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       t.Expiry,
	}
}

// String renders the token with values redacted. Only lengths and the expiry
// instant are shown so the type is safe to log.
func (t Token) String() string {
	return fmt.Sprintf("Token{access:%d bytes, refresh:%d bytes, expiry:%s}",
		len(t.AccessToken), len(t.RefreshToken), t.Expiry.Format(time.RFC3339))
}

// tokenResponse is the token endpoint's JSON body. access_token and
// expires_in are required; refresh_token rotation is optional per provider
// behavior.
type tokenResponse struct {
	AccessToken          string `json:"access_token"`
	TokenType            string `json:"token_type"`
	ExpiresIn            int    `json:"expires_in"`
	RefreshToken         string `json:"refresh_token,omitempty"`
	XRefreshTokenExpires int    `json:"x_refresh_token_expires_in,omitempty"`
}
