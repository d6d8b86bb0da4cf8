package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/tuannvm/jira-refiner/internal/bridge"
	"github.com/tuannvm/jira-refiner/internal/models"
)

// scriptedModel returns canned content responses in order.
type scriptedModel struct {
	responses []*llms.ContentResponse
	calls     int
}

func (m *scriptedModel) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.calls >= len(m.responses) {
		return nil, errors.New("no more scripted responses")
	}
	resp := m.responses[m.calls]
	m.calls++
	return resp, nil
}

func (m *scriptedModel) Call(_ context.Context, _ string, _ ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content}},
	}
}

func toolResponse(name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			ToolCalls: []llms.ToolCall{{
				ID:   "call_1",
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      name,
					Arguments: args,
				},
			}},
		}},
	}
}

func newTestClient(model llms.Model) *Client {
	return &Client{
		llm:         model,
		tools:       convertCatalog(bridge.Catalog()),
		maxTokens:   100,
		temperature: 0,
		timeout:     5 * time.Second,
	}
}

func TestCompleteParsesToolCalls(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolResponse("get_issue", `{"issue_key": "PROJ-1"}`),
	}}
	c := newTestClient(model)

	conv := NewConversation("system", "opening")
	resp, err := c.Complete(context.Background(), conv)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if !resp.WantsToolCalls() {
		t.Fatal("Expected a tool-call response")
	}
	call := resp.ToolCalls[0]
	if call.Name != "get_issue" {
		t.Errorf("Expected tool get_issue, got %s", call.Name)
	}
	if call.Arguments["issue_key"] != "PROJ-1" {
		t.Errorf("Expected decoded arguments, got %v", call.Arguments)
	}
}

func TestCompleteParsesTerminalContent(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		textResponse("All steps complete."),
	}}
	c := newTestClient(model)

	resp, err := c.Complete(context.Background(), NewConversation("s", "o"))
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.WantsToolCalls() {
		t.Error("Expected terminal content, got tool calls")
	}
	if resp.Content != "All steps complete." {
		t.Errorf("Unexpected content: %q", resp.Content)
	}
}

func TestCompleteStructuredValid(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		textResponse(`{"action": "COMMENT", "summary": "posted questions", "next_state": "WAITING_FOR_PM"}`),
	}}
	c := newTestClient(model)

	result, err := c.CompleteStructured(context.Background(), NewConversation("s", "o"))
	if err != nil {
		t.Fatalf("CompleteStructured failed: %v", err)
	}
	if result.Action != models.ResultComment {
		t.Errorf("Expected action COMMENT, got %s", result.Action)
	}
	if result.NextState != string(models.StateWaitingForPM) {
		t.Errorf("Expected next_state WAITING_FOR_PM, got %s", result.NextState)
	}
	if model.calls != 1 {
		t.Errorf("Expected 1 model call, got %d", model.calls)
	}
}

func TestCompleteStructuredRetriesOnceThenSucceeds(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		textResponse(`{"action": "SHRUG", "summary": "hm", "next_state": "WAITING_FOR_PM"}`),
		textResponse(`{"action": "FINALIZE", "summary": "updated the spec", "next_state": "READY_FOR_DEV"}`),
	}}
	c := newTestClient(model)

	result, err := c.CompleteStructured(context.Background(), NewConversation("s", "o"))
	if err != nil {
		t.Fatalf("Expected the corrective retry to succeed, got %v", err)
	}
	if result.Action != models.ResultFinalize {
		t.Errorf("Expected action FINALIZE, got %s", result.Action)
	}
	if model.calls != 2 {
		t.Errorf("Expected exactly 2 model calls (one retry), got %d", model.calls)
	}
}

func TestCompleteStructuredMalformedAfterRetry(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		textResponse(`not json at all`),
		textResponse(`{"action": "COMMENT"}`),
	}}
	c := newTestClient(model)

	_, err := c.CompleteStructured(context.Background(), NewConversation("s", "o"))
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("Expected ErrMalformedResponse, got %v", err)
	}
	if model.calls != 2 {
		t.Errorf("Expected exactly 2 model calls, got %d", model.calls)
	}
}

func TestCompleteStructuredExtractsFencedJSON(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		textResponse("Here is the result:\n```json\n{\"action\": \"NONE\", \"summary\": \"nothing to do\", \"next_state\": \"NEEDS_REFINEMENT\"}\n```"),
	}}
	c := newTestClient(model)

	result, err := c.CompleteStructured(context.Background(), NewConversation("s", "o"))
	if err != nil {
		t.Fatalf("CompleteStructured failed: %v", err)
	}
	if result.Action != models.ResultNone {
		t.Errorf("Expected action NONE, got %s", result.Action)
	}
}

func TestCompleteUndecodableArgumentsFallBackToEmpty(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolResponse("get_issue", `{broken`),
	}}
	c := newTestClient(model)

	resp, err := c.Complete(context.Background(), NewConversation("s", "o"))
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("Expected the tool call to survive, got %d calls", len(resp.ToolCalls))
	}
	if len(resp.ToolCalls[0].Arguments) != 0 {
		t.Errorf("Expected empty arguments, got %v", resp.ToolCalls[0].Arguments)
	}
}
