package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/tuannvm/jira-refiner/internal/bridge"
	"github.com/tuannvm/jira-refiner/internal/config"
	log "github.com/tuannvm/jira-refiner/internal/logging"
	"github.com/tuannvm/jira-refiner/internal/models"
)

// ErrMalformedResponse is returned when the structured terminal response
// still fails schema validation after the corrective retry.
var ErrMalformedResponse = errors.New("model returned a malformed structured response")

// Caller is the model surface the agent loop depends on.
type Caller interface {
	// Complete runs one freeform turn: the model may request tool calls or
	// emit terminal content.
	Complete(ctx context.Context, conv *Conversation) (*Response, error)
	// CompleteStructured runs the final turn constrained to the result
	// schema, retrying once with a corrective instruction on validation
	// failure before giving up with ErrMalformedResponse.
	CompleteStructured(ctx context.Context, conv *Conversation) (*models.FinalResult, error)
}

// Client implements Caller using langchain-go.
type Client struct {
	llm         llms.Model
	tools       []llms.Tool
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

// NewClient creates a model caller based on the provided configuration and
// tool catalog.
func NewClient(cfg *config.Config, catalog []bridge.CatalogEntry) (*Client, error) {
	var llmModel llms.Model
	var err error

	// Select LLM provider based on configuration
	switch cfg.LLMProvider {
	case "openai":
		opts := []openai.Option{
			openai.WithToken(cfg.LLMAPIKey),
			openai.WithModel(cfg.LLMModel),
		}
		if cfg.LLMBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.LLMBaseURL))
		}
		llmModel, err = openai.New(opts...)
	case "azure":
		llmModel, err = openai.New(
			openai.WithToken(cfg.LLMAPIKey),
			openai.WithModel(cfg.LLMModel),
			openai.WithBaseURL(cfg.LLMBaseURL),
			openai.WithAPIType(openai.APITypeAzure),
		)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &Client{
		llm:         llmModel,
		tools:       convertCatalog(catalog),
		maxTokens:   cfg.LLMMaxTokens,
		temperature: cfg.LLMTemperature,
		timeout:     cfg.LLMTimeout,
	}, nil
}

// convertCatalog renders bridge catalog entries as function-calling tools.
func convertCatalog(catalog []bridge.CatalogEntry) []llms.Tool {
	tools := make([]llms.Tool, 0, len(catalog))
	for _, entry := range catalog {
		tools = append(tools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        entry.Name,
				Description: entry.Description,
				Parameters:  entry.Schema(),
			},
		})
	}
	return tools
}

// Complete sends the conversation with the full tool catalog attached.
func (c *Client) Complete(ctx context.Context, conv *Conversation) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	log.Debugf("Model call: %d messages, %d tools", conv.Len(), len(c.tools))
	resp, err := c.llm.GenerateContent(ctx, conv.Messages(),
		llms.WithTools(c.tools),
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("LLM generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty response from LLM")
	}

	choice := resp.Choices[0]
	out := &Response{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		args := map[string]any{}
		if tc.FunctionCall.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &args); err != nil {
				// Let the bridge's argument validation report this back to
				// the model as a recoverable failure.
				log.Warnf("Undecodable tool arguments for '%s': %v", tc.FunctionCall.Name, err)
				args = map[string]any{}
			}
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: args,
		})
	}

	log.Infof("Model turn complete: %d tool calls, content=%s",
		len(out.ToolCalls), truncateForLogging(out.Content))
	return out, nil
}

const structuredInstruction = `You are done with tool calls. Respond with ONLY a JSON object of this exact shape:
{"action": "COMMENT" | "FINALIZE" | "NONE", "summary": "<one-paragraph summary of what you did>", "next_state": "NEEDS_REFINEMENT" | "WAITING_FOR_PM" | "READY_FOR_DEV"}
Use "COMMENT" if your main output was a posted comment, "FINALIZE" if you finalized the ticket's description, "NONE" if you took no action on the ticket.`

// CompleteStructured requests the terminal result constrained to the schema.
func (c *Client) CompleteStructured(ctx context.Context, conv *Conversation) (*models.FinalResult, error) {
	conv.AddInstruction(structuredInstruction)

	result, verr, err := c.structuredAttempt(ctx, conv)
	if err != nil {
		return nil, err
	}
	if verr == nil {
		return result, nil
	}

	// One corrective retry with the validation error appended.
	log.Warnf("Structured response failed validation (%v), retrying once", verr)
	conv.AddInstruction(fmt.Sprintf("Your previous response was invalid: %s. Respond again with ONLY the JSON object in the required shape.", verr))

	result, verr, err = c.structuredAttempt(ctx, conv)
	if err != nil {
		return nil, err
	}
	if verr != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, verr)
	}
	return result, nil
}

// structuredAttempt performs one JSON-mode call. The middle return value
// carries schema/parse violations, the last one transport failures.
func (c *Client) structuredAttempt(ctx context.Context, conv *Conversation) (*models.FinalResult, error, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.llm.GenerateContent(callCtx, conv.Messages(),
		llms.WithJSONMode(),
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("LLM generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, nil, errors.New("empty response from LLM")
	}

	raw := resp.Choices[0].Content
	log.Debugf("Structured response: %s", truncateForLogging(raw))
	conv.AddAssistantText(raw)

	payload, perr := extractJSON(raw)
	if perr != nil {
		return nil, perr, nil
	}
	var result models.FinalResult
	if uerr := json.Unmarshal([]byte(payload), &result); uerr != nil {
		return nil, fmt.Errorf("invalid JSON: %w", uerr), nil
	}
	if verr := result.Validate(); verr != nil {
		return nil, verr, nil
	}
	return &result, nil, nil
}

var jsonObjectRegex = regexp.MustCompile(`(?s)\{.*\}`)

// extractJSON pulls the JSON object out of a text response, tolerating
// models that wrap it in prose or code fences.
func extractJSON(text string) (string, error) {
	match := jsonObjectRegex.FindString(text)
	if match == "" {
		return "", errors.New("no JSON object found in response")
	}
	var probe any
	if err := json.Unmarshal([]byte(match), &probe); err != nil {
		return "", fmt.Errorf("no valid JSON object found in response: %w", err)
	}
	return match, nil
}

// truncateForLogging truncates a string to a reasonable length for logging
func truncateForLogging(s string) string {
	const maxLength = 500
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength] + "... [truncated]"
}
