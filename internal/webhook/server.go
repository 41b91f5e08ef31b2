package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"qbconnect/pkg/logging"
)

const logContext = "WebhookServer"

// maxPayloadBytes bounds webhook request bodies.
const maxPayloadBytes = 1 << 20

// eventPayload is the QuickBooks webhook notification shape, reduced to the
// fields worth logging.
type eventPayload struct {
	EventNotifications []struct {
		RealmID         string `json:"realmId"`
		DataChangeEvent struct {
			Entities []struct {
				Name      string `json:"name"`
				ID        string `json:"id"`
				Operation string `json:"operation"`
			} `json:"entities"`
		} `json:"dataChangeEvent"`
	} `json:"eventNotifications"`
}

// Server is the local webhook listener the tunnel forwards to. It verifies
// the provider's HMAC signature and logs event summaries; downstream
// consumers subscribe via the Handler callback.
type Server struct {
	port          int
	verifierToken string
	handler       func(realmID, entity, operation, id string)
	httpServer    *http.Server
}

// NewServer creates a webhook server on the given port. verifierToken is the
// provider-issued secret used to check the intuit-signature header; when
// empty, signature verification is skipped (local development only).
func NewServer(port int, verifierToken string) *Server {
	return &Server{port: port, verifierToken: verifierToken}
}

// SetHandler registers a callback invoked per received entity change.
func (s *Server) SetHandler(handler func(realmID, entity, operation, id string)) {
	s.handler = handler
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/webhooks/quickbooks", s.handleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return r
}

// Start runs the listener until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	logging.Info(logContext, "Webhook listener on localhost:%d", s.port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if s.verifierToken != "" {
		signature := r.Header.Get("intuit-signature")
		if !verifySignature(body, signature, s.verifierToken) {
			logging.Warn(logContext, "Rejected webhook with bad signature")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	eventID := uuid.NewString()

	var payload eventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		logging.Warn(logContext, "Malformed webhook payload (event %s): %v", eventID, err)
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	for _, notification := range payload.EventNotifications {
		for _, entity := range notification.DataChangeEvent.Entities {
			logging.Info(logContext, "Webhook event %s: realm=%s %s %s id=%s",
				eventID, notification.RealmID, entity.Operation, entity.Name, entity.ID)
			if s.handler != nil {
				s.handler(notification.RealmID, entity.Name, entity.Operation, entity.ID)
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}

// verifySignature checks the provider's HMAC-SHA256 signature (base64 of the
// raw body keyed by the verifier token).
func verifySignature(body []byte, signature, verifierToken string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(verifierToken))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
