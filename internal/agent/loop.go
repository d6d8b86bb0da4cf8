// Package agent drives the turn-by-turn tool-calling loop: it asks the model
// for the next action, executes requested tool calls through the bridge,
// feeds results back, and stops on a terminal signal or when a budget runs
// out. The ticket itself is the only state that outlives a run.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/tuannvm/jira-refiner/internal/bridge"
	"github.com/tuannvm/jira-refiner/internal/llm"
	log "github.com/tuannvm/jira-refiner/internal/logging"
	"github.com/tuannvm/jira-refiner/internal/models"
)

// Loop orchestrates one agent invocation. MaxTurns bounds model calls in
// freeform mode; FailureLimit bounds consecutive tool failures fed back as
// observations before the run is abandoned.
type Loop struct {
	Model        llm.Caller
	Bridge       bridge.Caller
	MaxTurns     int
	FailureLimit int
}

// Run executes the loop for one request and returns the outcome. It never
// panics or returns an error: every termination path maps to an
// AgentOutcome, with the error field set when the run did not complete.
func (l *Loop) Run(ctx context.Context, req models.RefinementRequest, prompt llm.Prompt) models.AgentOutcome {
	conv := llm.NewConversation(prompt.System, prompt.Opening)

	log.Infof("Agent loop start: issue=%s mode=%s maxTurns=%d", req.IssueKey, req.Mode, l.MaxTurns)

	consecutiveFailures := 0
	turns := 0

	for turns < l.MaxTurns {
		turns++
		log.Debugf("Agent turn %d/%d for %s", turns, l.MaxTurns, req.IssueKey)

		resp, err := l.Model.Complete(ctx, conv)
		if err != nil {
			log.Errorf("Model call failed on turn %d: %v", turns, err)
			return models.AgentOutcome{
				Action: models.ActionNoAction,
				Turns:  turns,
				Error:  models.ErrModelError,
				Detail: err.Error(),
			}
		}

		if !resp.WantsToolCalls() {
			// Terminal signal: keep the free-text turn in the conversation so
			// the structured turn can summarize it.
			if resp.Content != "" {
				conv.AddAssistantText(resp.Content)
			}
			return l.finalize(ctx, req, conv, turns)
		}

		conv.AddAssistantToolCalls(resp.Content, resp.ToolCalls)

		// Execute in the order the model returned. Ticket mutations are not
		// commutative, so there is no fan-out.
		for _, call := range resp.ToolCalls {
			result := l.Bridge.Call(ctx, call.Name, call.Arguments)
			conv.AddToolResult(call, result.Observation())

			if !result.Failed() {
				consecutiveFailures = 0
				continue
			}

			if result.Err.Code == models.ErrChannelUnavailable {
				// No further tool calls are possible; continuing the
				// conversation would be meaningless.
				log.Errorf("Bridge channel unavailable on turn %d: %s", turns, result.Err.Detail)
				return models.AgentOutcome{
					Action: models.ActionNoAction,
					Turns:  turns,
					Error:  models.ErrChannelUnavailable,
					Detail: result.Err.Detail,
				}
			}

			consecutiveFailures++
			log.Warnf("Tool '%s' failed (%s), consecutive failures: %d/%d",
				call.Name, result.Err.Code, consecutiveFailures, l.FailureLimit)
			if consecutiveFailures > l.FailureLimit {
				return models.AgentOutcome{
					Action: models.ActionNoAction,
					Turns:  turns,
					Error:  models.ErrToolFailuresExceeded,
					Detail: fmt.Sprintf("%d consecutive tool failures, last: %s", consecutiveFailures, result.Err.Error()),
				}
			}
		}
	}

	log.Warnf("Agent loop hit turn budget (%d) for %s", l.MaxTurns, req.IssueKey)
	return models.AgentOutcome{
		Action: models.ActionNoAction,
		Turns:  turns,
		Error:  models.ErrBudgetExhausted,
		Detail: fmt.Sprintf("no terminal signal after %d turns", l.MaxTurns),
	}
}

// finalize requests the structured terminal turn and maps it onto the
// outcome.
func (l *Loop) finalize(ctx context.Context, req models.RefinementRequest, conv *llm.Conversation, turns int) models.AgentOutcome {
	result, err := l.Model.CompleteStructured(ctx, conv)
	if err != nil {
		code := models.ErrModelError
		if errors.Is(err, llm.ErrMalformedResponse) {
			code = models.ErrMalformedResponse
		}
		log.Errorf("Structured terminal turn failed for %s: %v", req.IssueKey, err)
		return models.AgentOutcome{
			Action: models.ActionNoAction,
			Turns:  turns,
			Error:  code,
			Detail: err.Error(),
		}
	}

	outcome := models.AgentOutcome{
		Action:  mapAction(result.Action),
		State:   models.RefinementState(result.NextState),
		Turns:   turns,
		Summary: result.Summary,
	}
	log.Infof("Agent loop complete: issue=%s action=%s state=%s turns=%d",
		req.IssueKey, outcome.Action, outcome.State, turns)
	return outcome
}

func mapAction(action string) models.Action {
	switch action {
	case models.ResultComment:
		return models.ActionCommentPosted
	case models.ResultFinalize:
		return models.ActionTicketFinalized
	default:
		return models.ActionNoAction
	}
}
