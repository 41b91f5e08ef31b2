package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultHTTPTimeout is the default timeout for token endpoint requests.
const DefaultHTTPTimeout = 30 * time.Second

// refreshAttempts caps how many times a single Refresh call hits the
// endpoint.
const refreshAttempts = 3

// Client talks to the provider's token endpoint. It is safe to call
// repeatedly; callers serialize refresh/exchange at a higher level (the
// lifecycle coordinator gates them behind its own locking).
type Client struct {
	httpClient *http.Client
	tokenURL   string
	authURL    string
	creds      Credentials

	// sleep is replaceable in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoints overrides the token and authorization endpoints. Used by
// tests and non-default provider deployments.
func WithEndpoints(tokenURL, authURL string) ClientOption {
	return func(c *Client) {
		c.tokenURL = tokenURL
		c.authURL = authURL
	}
}

// NewClient creates a token endpoint client for the given credentials.
func NewClient(creds Credentials, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		tokenURL:   TokenEndpoint,
		authURL:    AuthorizationEndpoint,
		creds:      creds,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Refresh exchanges a refresh token for a new token pair. Up to three
// attempts are made; a 400 response aborts immediately as a permanent
// failure, everything else is retried with 2^attempt seconds of backoff.
// When the response omits a rotated refresh token, the prior one is retained.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	if refreshToken == "" {
		return Token{}, &AuthError{Kind: KindPermanent, Op: "refresh", Err: ErrReauthorizationRequired}
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	var lastErr error
	for attempt := 1; attempt <= refreshAttempts; attempt++ {
		token, err := c.postToken(ctx, "refresh", form)
		if err == nil {
			if token.RefreshToken == "" {
				token.RefreshToken = refreshToken
			}
			slog.Debug("Token refresh succeeded",
				"attempt", attempt,
				"expiry", token.Expiry.Format(time.RFC3339),
			)
			return token, nil
		}

		if authErr, ok := err.(*AuthError); ok {
			switch authErr.Kind {
			case KindPermanent, KindCancelled:
				return Token{}, err
			}
		}
		lastErr = err

		slog.Warn("Token refresh attempt failed",
			"attempt", attempt,
			"error", err.Error(),
		)

		if attempt < refreshAttempts {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			if err := c.sleep(ctx, backoff); err != nil {
				return Token{}, &AuthError{Kind: KindCancelled, Op: "refresh", Err: err}
			}
		}
	}

	return Token{}, fmt.Errorf("refresh failed after %d attempts: %w", refreshAttempts, lastErr)
}

// Exchange trades an authorization code for a token pair. The flow does not
// retry a failed exchange; a fresh authorization must be started instead.
func (c *Client) Exchange(ctx context.Context, code, redirectURI string) (Token, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	return c.postToken(ctx, "exchange", form)
}

// postToken performs one token endpoint request and classifies the outcome.
func (c *Client) postToken(ctx context.Context, op string, form url.Values) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, &AuthError{Kind: KindTransient, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Token{}, &AuthError{Kind: KindCancelled, Op: op, Err: ctx.Err()}
		}
		return Token{}, &AuthError{Kind: KindTransient, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, &AuthError{Kind: KindTransient, Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		// The provider rejects invalid or expired refresh tokens with 400.
		return Token{}, &AuthError{
			Kind:       KindPermanent,
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        ErrReauthorizationRequired,
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Token{}, &AuthError{
			Kind:       KindTransient,
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return Token{}, &AuthError{
			Kind:       KindProtocol,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("malformed token response: %w", err),
		}
	}
	if tokenResp.AccessToken == "" || tokenResp.ExpiresIn == 0 {
		return Token{}, &AuthError{
			Kind:       KindProtocol,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("token response missing access_token or expires_in"),
		}
	}

	return Token{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		Expiry:       time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}, nil
}

// BuildAuthorizationURL constructs the browser-directed consent URL. Scopes
// are space-joined into a single percent-encoded query parameter.
func (c *Client) BuildAuthorizationURL(redirectURI, state string) (string, error) {
	authURL, err := url.Parse(c.authURL)
	if err != nil {
		return "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}

	scopes := c.creds.Scopes
	if len(scopes) == 0 {
		scopes = []string{"com.intuit.quickbooks.accounting"}
	}

	params := url.Values{
		"client_id":     {c.creds.ClientID},
		"response_type": {"code"},
		"scope":         {strings.Join(scopes, " ")},
		"redirect_uri":  {redirectURI},
		"state":         {state},
	}
	// Encode() renders spaces as "+"; the provider expects %20 in the
	// space-delimited scope list. Literal plus signs are already %2B by now,
	// so the rewrite is unambiguous.
	authURL.RawQuery = strings.ReplaceAll(params.Encode(), "+", "%20")
	return authURL.String(), nil
}
