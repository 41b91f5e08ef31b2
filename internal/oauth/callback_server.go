package oauth

import (
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"sync"
	"time"
)

// FallbackCallbackAddr is always bound in addition to the configured redirect
// URI so local testing works even when the registered redirect differs.
const FallbackCallbackAddr = "localhost:8720"

// CallbackTimeout is how long the interactive flow waits for the redirect.
const CallbackTimeout = 5 * time.Minute

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

// CallbackResult represents the parameters delivered by the authorization
// redirect.
type CallbackResult struct {
	// Code is the authorization code.
	Code string

	// State is echoed back and must match the original CSRF value.
	State string

	// RealmID is the tenant/company identifier, when the provider supplies
	// one on the redirect.
	RealmID string

	// Error is the error code if the authorization failed.
	Error string

	// ErrorDescription is a human-readable error description.
	ErrorDescription string
}

// IsError returns true if the callback result represents an error. An
// explicit error parameter forces failure regardless of other fields.
func (r *CallbackResult) IsError() bool {
	return r.Error != ""
}

// CallbackServer is a temporary local HTTP listener for one authorization
// redirect. It binds the prefix derived from the configured redirect URI and
// a fixed localhost fallback, waits for a single callback, then shuts down.
type CallbackServer struct {
	redirectURI string
	servers     []*http.Server
	listeners   []net.Listener
	resultCh    chan *CallbackResult
	errorCh     chan error
	once        sync.Once
	stopOnce    sync.Once
}

// NewCallbackServer creates a callback server for the given redirect URI.
func NewCallbackServer(redirectURI string) *CallbackServer {
	return &CallbackServer{
		redirectURI: redirectURI,
		resultCh:    make(chan *CallbackResult, 1),
		errorCh:     make(chan error, 1),
	}
}

// Start binds the listeners and begins serving. Binding the redirect-URI
// prefix is essential: failure is returned with remediation text. The
// fallback prefix is advisory; a conflict there is only logged.
// The server stops automatically when the context is cancelled.
func (s *CallbackServer) Start(ctx context.Context) error {
	addr, path, err := listenerTarget(s.redirectURI)
	if err != nil {
		return fmt.Errorf("invalid redirect URI %q: %w", s.redirectURI, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, s.handleCallback)
	// The normalized prefix ends with "/" and matches as a subtree; register
	// the exact path too so the redirect is handled without a 301 hop.
	if trimmed := strings.TrimSuffix(path, "/"); trimmed != "" {
		mux.HandleFunc(trimmed, s.handleCallback)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind callback listener on %s: %w\n%s", addr, err, bindRemediation(s.redirectURI))
	}
	s.serveOn(listener, mux)

	if addr != FallbackCallbackAddr {
		fallbackMux := http.NewServeMux()
		fallbackMux.HandleFunc("/callback", s.handleCallback)
		fallbackListener, err := net.Listen("tcp", FallbackCallbackAddr)
		if err != nil {
			slog.Debug("Fallback callback listener unavailable",
				"addr", FallbackCallbackAddr,
				"error", err.Error(),
			)
		} else {
			s.serveOn(fallbackListener, fallbackMux)
		}
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// serveOn starts an HTTP server on the listener and tracks both for shutdown.
func (s *CallbackServer) serveOn(listener net.Listener, handler http.Handler) {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.listeners = append(s.listeners, listener)
	s.servers = append(s.servers, server)

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()
}

// WaitForCallback waits for the redirect or context expiry.
func (s *CallbackServer) WaitForCallback(ctx context.Context) (*CallbackResult, error) {
	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// handleCallback processes the redirect request. Only the first request is
// handled; the prefix stays bound until Stop but later hits are rejected so
// two flows can never corrupt each other.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	var handled bool
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})

	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

// processCallback reads the redirect parameters, renders the outcome page,
// and hands the result to the waiting flow. Called exactly once via sync.Once.
func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	query := r.URL.Query()
	result := &CallbackResult{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		RealmID:          query.Get("realmId"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}

	var tmpl *template.Template
	var data interface{}

	if result.IsError() || result.Code == "" {
		tmpl = template.Must(template.New("error").Parse(callbackErrorHTML))
		data = map[string]string{
			"Error":       result.Error,
			"Description": result.ErrorDescription,
		}
	} else {
		tmpl = template.Must(template.New("success").Parse(callbackSuccessHTML))
		data = map[string]string{}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}

	select {
	case s.resultCh <- result:
	default:
	}
}

// Stop gracefully shuts down all listeners. Safe to call more than once.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		for _, server := range s.servers {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = server.Shutdown(ctx)
			cancel()
		}
		for _, listener := range s.listeners {
			_ = listener.Close()
		}
	})
}

// listenerTarget derives the bind address and handler path from the redirect
// URI. The path is normalized to end with "/" so sub-paths route to the same
// handler.
func listenerTarget(redirectURI string) (addr, path string, err error) {
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return "", "", err
	}
	if parsed.Host == "" {
		return "", "", fmt.Errorf("redirect URI has no host")
	}

	host := parsed.Hostname()
	port := parsed.Port()
	if port == "" {
		if parsed.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}

	path = parsed.Path
	if path == "" {
		path = "/"
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	return net.JoinHostPort(host, port), path, nil
}

// bindRemediation returns the actionable command a user needs to run when the
// listener prefix cannot be bound.
func bindRemediation(redirectURI string) string {
	if runtime.GOOS == "windows" {
		return fmt.Sprintf("To allow binding this listener, run as administrator:\n  netsh http add urlacl url=%s/ user=%%USERNAME%%", strings.TrimSuffix(redirectURI, "/"))
	}
	return "Ports below 1024 need elevated privileges; use a port above 1024 in the redirect URI or grant the binary the net bind capability:\n  sudo setcap 'cap_net_bind_service=+ep' $(command -v qbconnect)"
}
