// Package server is the HTTP ingress: the Jira Automation webhook endpoint
// and health probes. It authenticates and validates requests before the
// refinement service is invoked, and answers fast so Jira's Automation rule
// does not time out waiting on the agent loop.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tuannvm/jira-refiner/internal/config"
	log "github.com/tuannvm/jira-refiner/internal/logging"
	"github.com/tuannvm/jira-refiner/internal/models"
)

// Version is reported by the health endpoints.
const Version = "0.2.0"

// secretHeader carries the shared secret configured in the Automation rule.
const secretHeader = "X-Webhook-Secret"

// Refiner is the service surface the ingress depends on.
type Refiner interface {
	Refine(ctx context.Context, req models.RefinementRequest) models.AgentOutcome
}

// BridgeStatus is what the health endpoint reads from the bridge client.
type BridgeStatus interface {
	Connected() bool
}

// webhookPayload is the body Jira Automation sends to /jira/refine.
type webhookPayload struct {
	IssueKey  string `json:"issue_key"`
	Mode      string `json:"mode"`
	PMComment string `json:"pm_comment,omitempty"`
}

// Server hosts the webhook and health endpoints.
type Server struct {
	cfg     *config.Config
	refiner Refiner
	bridge  BridgeStatus
	httpSrv *http.Server
}

// New creates the ingress server.
func New(cfg *config.Config, refiner Refiner, bridge BridgeStatus) *Server {
	s := &Server{cfg: cfg, refiner: refiner, bridge: bridge}

	mux := http.NewServeMux()
	mux.HandleFunc("/jira/refine", s.handleRefine)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	s.httpSrv = &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler exposes the routing for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start runs the server until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on %s", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Infof("Shutting down HTTP server...")
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// handleRefine receives a refinement trigger, validates it, and dispatches
// the agent run in the background so Jira gets a fast 200.
func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	secret := r.Header.Get(secretHeader)
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.WebhookSecret)) != 1 {
		log.Warnf("Webhook auth failed from %s", r.RemoteAddr)
		writeJSONError(w, http.StatusUnauthorized, "invalid webhook secret")
		return
	}

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload.IssueKey == "" {
		writeJSONError(w, http.StatusBadRequest, "issue_key is required")
		return
	}
	mode := models.Mode(payload.Mode)
	if !mode.Valid() {
		writeJSONError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("invalid mode '%s', must be 'first_pass' or 'pm_feedback'", payload.Mode))
		return
	}

	req := models.RefinementRequest{
		IssueKey:  payload.IssueKey,
		Mode:      mode,
		PMComment: payload.PMComment,
	}
	go s.runRefinement(req)

	log.Infof("Webhook accepted: issue=%s mode=%s", req.IssueKey, req.Mode)
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "accepted",
		"issue":  req.IssueKey,
		"mode":   string(req.Mode),
	})
}

// runRefinement executes the agent loop detached from the request. Outcomes
// land on the ticket itself; here they are only logged.
func (s *Server) runRefinement(req models.RefinementRequest) {
	outcome := s.refiner.Refine(context.Background(), req)
	if outcome.Failed() {
		log.Errorf("Refinement failed: issue=%s error=%s detail=%s",
			req.IssueKey, outcome.Error, outcome.Detail)
		return
	}
	log.Infof("Refinement finished: issue=%s action=%s state=%s turns=%d",
		req.IssueKey, outcome.Action, outcome.State, outcome.Turns)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "jira-refiner",
		"version": Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	bridgeConnected := false
	if s.bridge != nil {
		bridgeConnected = s.bridge.Connected()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"bridge_connected": bridgeConnected,
		"jira_configured":  s.cfg.JiraConfigured(),
		"llm_configured":   s.cfg.LLMConfigured(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
		},
	})
}
