package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/tuannvm/jira-refiner/internal/config"
	"github.com/tuannvm/jira-refiner/internal/models"
)

func testClient() *Client {
	return NewClient(&config.Config{
		BridgeCommand: "/nonexistent-bridge-binary",
		BridgeTimeout: 2 * time.Second,
	})
}

func TestCatalogHasFiveFixedTools(t *testing.T) {
	entries := Catalog()
	if len(entries) != 5 {
		t.Fatalf("Expected 5 catalog entries, got %d", len(entries))
	}

	want := map[string]bool{
		ToolGetIssue:     true,
		ToolSearchIssues: true,
		ToolAddComment:   true,
		ToolUpdateIssue:  true,
		ToolCreateIssue:  true,
	}
	for _, e := range entries {
		if !want[e.Name] {
			t.Errorf("Unexpected catalog entry %s", e.Name)
		}
		delete(want, e.Name)
	}
	if len(want) != 0 {
		t.Errorf("Missing catalog entries: %v", want)
	}
}

func TestCatalogEntrySchema(t *testing.T) {
	entry, ok := Lookup(ToolAddComment)
	if !ok {
		t.Fatal("Expected add_comment in the catalog")
	}

	schema := entry.Schema()
	if schema["type"] != "object" {
		t.Errorf("Expected object schema, got %v", schema["type"])
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatal("Expected a properties map")
	}
	if _, ok := props["issue_key"]; !ok {
		t.Error("Expected issue_key property")
	}
	if _, ok := props["body"]; !ok {
		t.Error("Expected body property")
	}
	required, ok := schema["required"].([]string)
	if !ok || len(required) != 2 {
		t.Errorf("Expected two required arguments, got %v", schema["required"])
	}
}

func TestCallUnknownToolFailsWithoutChannel(t *testing.T) {
	c := testClient()
	result := c.Call(context.Background(), "delete_everything", map[string]any{})

	if !result.Failed() {
		t.Fatal("Expected a failure result")
	}
	if result.Err.Code != models.ErrToolNotFound {
		t.Errorf("Expected %s, got %s", models.ErrToolNotFound, result.Err.Code)
	}
	if c.Connected() {
		t.Error("Catalog rejection must not establish the channel")
	}
}

func TestCallMissingRequiredArgument(t *testing.T) {
	c := testClient()
	result := c.Call(context.Background(), ToolAddComment, map[string]any{"issue_key": "PROJ-1"})

	if !result.Failed() {
		t.Fatal("Expected a failure result")
	}
	if result.Err.Code != models.ErrInvalidArguments {
		t.Errorf("Expected %s, got %s", models.ErrInvalidArguments, result.Err.Code)
	}
	if c.Connected() {
		t.Error("Argument rejection must not establish the channel")
	}
}

func TestCallWrongArgumentType(t *testing.T) {
	c := testClient()
	result := c.Call(context.Background(), ToolGetIssue, map[string]any{"issue_key": 42})

	if !result.Failed() {
		t.Fatal("Expected a failure result")
	}
	if result.Err.Code != models.ErrInvalidArguments {
		t.Errorf("Expected %s, got %s", models.ErrInvalidArguments, result.Err.Code)
	}
}

func TestCallUnknownArgumentRejected(t *testing.T) {
	c := testClient()
	result := c.Call(context.Background(), ToolGetIssue, map[string]any{
		"issue_key": "PROJ-1",
		"verbose":   true,
	})

	if !result.Failed() || result.Err.Code != models.ErrInvalidArguments {
		t.Fatalf("Expected %s for an argument outside the schema, got %+v", models.ErrInvalidArguments, result)
	}
}

func TestCallChannelUnavailableWhenProcessCannotStart(t *testing.T) {
	c := testClient()
	result := c.Call(context.Background(), ToolGetIssue, map[string]any{"issue_key": "PROJ-1"})

	if !result.Failed() {
		t.Fatal("Expected a failure result")
	}
	if result.Err.Code != models.ErrChannelUnavailable {
		t.Errorf("Expected %s, got %s", models.ErrChannelUnavailable, result.Err.Code)
	}
}

func TestValidateArgumentsAcceptsNumbersAndObjects(t *testing.T) {
	search, _ := Lookup(ToolSearchIssues)
	if err := ValidateArguments(search, map[string]any{"query": "project = PROJ", "max_results": float64(5)}); err != nil {
		t.Errorf("Expected JSON numbers to validate, got %v", err)
	}

	update, _ := Lookup(ToolUpdateIssue)
	args := map[string]any{
		"issue_key": "PROJ-1",
		"fields":    map[string]any{"description": "new spec"},
	}
	if err := ValidateArguments(update, args); err != nil {
		t.Errorf("Expected object fields to validate, got %v", err)
	}
}

func TestObservationFormatting(t *testing.T) {
	ok := ToolResult{Tool: ToolGetIssue, Content: `{"key":"PROJ-1"}`}
	if ok.Observation() != `{"key":"PROJ-1"}` {
		t.Errorf("Unexpected success observation: %s", ok.Observation())
	}

	failed := ToolResult{Tool: ToolGetIssue, Err: &CallError{Code: models.ErrRemoteError, Detail: "issue not found"}}
	obs := failed.Observation()
	if obs != "Error calling tool 'get_issue': REMOTE_ERROR: issue not found" {
		t.Errorf("Unexpected failure observation: %s", obs)
	}
}
