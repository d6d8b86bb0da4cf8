// Package service is the thin coordination layer between the ingress and the
// agent loop: it validates the request mode, loads the domain configuration
// once per process, builds the prompt, and delegates to the loop.
package service

import (
	"context"
	"sync"

	"github.com/tuannvm/jira-refiner/internal/agent"
	"github.com/tuannvm/jira-refiner/internal/bridge"
	"github.com/tuannvm/jira-refiner/internal/config"
	"github.com/tuannvm/jira-refiner/internal/domain"
	"github.com/tuannvm/jira-refiner/internal/llm"
	log "github.com/tuannvm/jira-refiner/internal/logging"
	"github.com/tuannvm/jira-refiner/internal/models"
	"github.com/tuannvm/jira-refiner/internal/retrieval"
)

// Service runs one refinement per call. It holds no per-ticket state; the
// external ticket system carries all state between invocations.
type Service struct {
	cfg       *config.Config
	model     llm.Caller
	bridge    bridge.Caller
	retriever retrieval.Retriever

	domainOnce sync.Once
	domainCfg  *domain.Config
}

// New creates the refinement service.
func New(cfg *config.Config, model llm.Caller, br bridge.Caller, retriever retrieval.Retriever) *Service {
	if retriever == nil {
		retriever = retrieval.Noop{}
	}
	return &Service{
		cfg:       cfg,
		model:     model,
		bridge:    br,
		retriever: retriever,
	}
}

// Refine validates the request and runs the agent loop, returning the loop's
// outcome unchanged. Unrecognized modes are rejected before any model or
// bridge call is made.
func (s *Service) Refine(ctx context.Context, req models.RefinementRequest) models.AgentOutcome {
	if !req.Mode.Valid() {
		log.Warnf("Rejected request for %s: invalid mode '%s'", req.IssueKey, req.Mode)
		return models.AgentOutcome{
			Action: models.ActionNoAction,
			Error:  models.ErrInvalidMode,
			Detail: "mode must be 'first_pass' or 'pm_feedback', got '" + string(req.Mode) + "'",
		}
	}

	domainCfg := s.domain()

	// Similar-ticket context is a first-pass-only prompt input; the feedback
	// pass already carries the prior spec on the ticket itself.
	var similar []retrieval.Ticket
	if req.Mode == models.ModeFirstPass {
		tickets, err := s.retriever.SimilarTickets(ctx, req.IssueKey)
		if err != nil {
			log.Warnf("Similar-ticket retrieval failed for %s, continuing without context: %v", req.IssueKey, err)
		} else {
			similar = tickets
		}
	}

	prompt := llm.BuildPrompt(req.Mode, req.IssueKey, req.PMComment, s.cfg.JiraStateField, domainCfg, similar)

	loop := &agent.Loop{
		Model:        s.model,
		Bridge:       s.bridge,
		MaxTurns:     s.cfg.MaxAgentTurns,
		FailureLimit: s.cfg.ToolFailureLimit,
	}
	return loop.Run(ctx, req, prompt)
}

// domain loads the domain configuration once per process lifetime. A broken
// config file is logged and replaced by defaults rather than failing every
// request.
func (s *Service) domain() *domain.Config {
	s.domainOnce.Do(func() {
		cfg, err := domain.Load(s.cfg.DomainConfigPath)
		if err != nil {
			log.Errorf("Failed to load domain config from %s, using defaults: %v", s.cfg.DomainConfigPath, err)
			cfg = domain.Default()
		}
		s.domainCfg = cfg
	})
	return s.domainCfg
}
