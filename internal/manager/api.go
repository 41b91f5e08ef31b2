package manager

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"qbconnect/internal/config"
	"qbconnect/internal/oauth"
)

// RemoteAPI is the opaque remote data API capability. The lifecycle
// coordinator only needs a connectivity probe from it; data fetch and
// pagination live with the consumers of the authorized connection.
type RemoteAPI interface {
	TestConnectivity(ctx context.Context) error
}

// API base URLs per environment.
const (
	sandboxAPIBase    = "https://sandbox-quickbooks.api.intuit.com"
	productionAPIBase = "https://quickbooks.api.intuit.com"
)

// QuickBooksAPI probes the QuickBooks company endpoint with the current
// bearer token.
type QuickBooksAPI struct {
	httpClient *http.Client
	baseURL    string
	snapshot   func() (oauth.Token, string)
}

// NewQuickBooksAPI creates the probe for the given environment. The snapshot
// callback supplies the current token and realm id at call time.
func NewQuickBooksAPI(env config.Environment, snapshot func() (oauth.Token, string)) *QuickBooksAPI {
	baseURL := sandboxAPIBase
	if env == config.EnvironmentProduction {
		baseURL = productionAPIBase
	}
	return &QuickBooksAPI{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		snapshot:   snapshot,
	}
}

// SetHTTPClient overrides the HTTP client, for tests.
func (a *QuickBooksAPI) SetHTTPClient(hc *http.Client) {
	a.httpClient = hc
}

// SetBaseURL overrides the API base URL, for tests.
func (a *QuickBooksAPI) SetBaseURL(baseURL string) {
	a.baseURL = baseURL
}

// TestConnectivity fetches the company info record for the current realm.
// Any non-2xx response or transport error is a probe failure.
func (a *QuickBooksAPI) TestConnectivity(ctx context.Context) error {
	token, realmID := a.snapshot()
	if realmID == "" {
		return fmt.Errorf("no company is linked yet")
	}
	if token.AccessToken == "" {
		return fmt.Errorf("no access token available")
	}

	url := fmt.Sprintf("%s/v3/company/%s/companyinfo/%s?minorversion=65", a.baseURL, realmID, realmID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("connectivity probe failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("connectivity probe returned status %d", resp.StatusCode)
	}
	return nil
}
