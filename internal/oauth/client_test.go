package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCredentials() Credentials {
	return Credentials{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURI:  "http://localhost:8721/callback",
	}
}

// newTestClient points a Client at the given token server and replaces the
// backoff sleeper with one that records requested durations.
func newTestClient(t *testing.T, serverURL string) (*Client, *[]time.Duration) {
	t.Helper()
	var slept []time.Duration
	c := NewClient(testCredentials(), WithEndpoints(serverURL, AuthorizationEndpoint))
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return c, &slept
}

func tokenJSON(accessToken, refreshToken string, expiresIn int) string {
	body, _ := json.Marshal(map[string]interface{}{
		"access_token":               accessToken,
		"refresh_token":              refreshToken,
		"token_type":                 "bearer",
		"expires_in":                 expiresIn,
		"x_refresh_token_expires_in": 8726400,
	})
	return string(body)
}

func TestRefreshSuccess(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok, "token request must carry basic auth")
		assert.Equal(t, "test-client-id", user)
		assert.Equal(t, "test-client-secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(tokenJSON("new-access", "new-refresh", 3600)))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	token, err := client.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)

	assert.Equal(t, "new-access", token.AccessToken)
	assert.Equal(t, "new-refresh", token.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(3600*time.Second), token.Expiry, 5*time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestRefreshRetainsRefreshTokenWhenRotationOmitted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(tokenJSON("new-access", "", 3600)))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	token, err := client.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "old-refresh", token.RefreshToken)
}

func TestRefreshBadRequestAbortsImmediately(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	client, slept := newTestClient(t, server.URL)
	_, err := client.Refresh(context.Background(), "revoked-refresh")
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, KindPermanent, authErr.Kind)
	assert.True(t, IsReauthorizationRequired(err))

	assert.Equal(t, int32(1), atomic.LoadInt32(&requests), "400 must not be retried")
	assert.Empty(t, *slept)
}

func TestRefreshRetriesTransientFailures(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(tokenJSON("third-time-access", "third-time-refresh", 3600)))
	}))
	defer server.Close()

	client, slept := newTestClient(t, server.URL)
	token, err := client.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "third-time-access", token.AccessToken)

	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
	require.Len(t, *slept, 2)
	assert.Equal(t, 2*time.Second, (*slept)[0])
	assert.Equal(t, 4*time.Second, (*slept)[1])
}

func TestRefreshExhaustsAttempts(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	_, err := client.Refresh(context.Background(), "old-refresh")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh failed after 3 attempts")

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, KindTransient, authErr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, authErr.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
	assert.False(t, IsReauthorizationRequired(err))
}

func TestRefreshMalformedSuccessBodyIsRetried(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		if n == 1 {
			_, _ = w.Write([]byte(`{"token_type":"bearer"`))
			return
		}
		_, _ = w.Write([]byte(tokenJSON("recovered", "recovered-refresh", 3600)))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	token, err := client.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "recovered", token.AccessToken)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestRefreshMissingRequiredFieldsIsProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Valid JSON but no access_token.
		_, _ = w.Write([]byte(`{"token_type":"bearer","expires_in":3600}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	_, err := client.Refresh(context.Background(), "old-refresh")
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, KindProtocol, authErr.Kind)
}

func TestRefreshWithoutRefreshTokenIsPermanent(t *testing.T) {
	client, _ := newTestClient(t, "http://127.0.0.1:1")
	_, err := client.Refresh(context.Background(), "")
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, KindPermanent, authErr.Kind)
	assert.True(t, IsReauthorizationRequired(err))
}

func TestRefreshCancellationDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(testCredentials(), WithEndpoints(server.URL, AuthorizationEndpoint))
	client.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := client.Refresh(ctx, "old-refresh")
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.False(t, IsReauthorizationRequired(err))
}

func TestRefreshCancelledRequestIsNotRetried(t *testing.T) {
	var requests int32
	ctx, cancel := context.WithCancel(context.Background())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		cancel()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	_, err := client.Refresh(ctx, "old-refresh")
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestExchangeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "auth-code-123", r.PostForm.Get("code"))
		assert.Equal(t, "http://localhost:8721/callback", r.PostForm.Get("redirect_uri"))
		_, _ = w.Write([]byte(tokenJSON("exchanged-access", "exchanged-refresh", 3600)))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	token, err := client.Exchange(context.Background(), "auth-code-123", "http://localhost:8721/callback")
	require.NoError(t, err)
	assert.Equal(t, "exchanged-access", token.AccessToken)
	assert.Equal(t, "exchanged-refresh", token.RefreshToken)
}

func TestExchangeDoesNotRetry(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	_, err := client.Exchange(context.Background(), "auth-code", "http://localhost:8721/callback")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestBuildAuthorizationURL(t *testing.T) {
	creds := testCredentials()
	creds.Scopes = []string{"com.intuit.quickbooks.accounting", "openid"}
	client := NewClient(creds)

	rawURL, err := client.BuildAuthorizationURL(creds.RedirectURI, "state-xyz")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rawURL, AuthorizationEndpoint+"?"))
	// Scopes must be %20-delimited, not "+".
	assert.Contains(t, rawURL, "scope=com.intuit.quickbooks.accounting%20openid")
	assert.NotContains(t, rawURL, "scope=com.intuit.quickbooks.accounting+openid")

	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	query := parsed.Query()
	assert.Equal(t, "test-client-id", query.Get("client_id"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "http://localhost:8721/callback", query.Get("redirect_uri"))
	assert.Equal(t, "state-xyz", query.Get("state"))
	assert.Equal(t, "com.intuit.quickbooks.accounting openid", query.Get("scope"))
}

func TestBuildAuthorizationURLDefaultScope(t *testing.T) {
	client := NewClient(testCredentials())
	rawURL, err := client.BuildAuthorizationURL("http://localhost:8721/callback", "s")
	require.NoError(t, err)
	assert.Contains(t, rawURL, "scope=com.intuit.quickbooks.accounting")
}
