// Package bridge manages the channel to the external capability bridge: an
// MCP server subprocess exposing a fixed catalog of Jira tools. Tool failures
// are returned as values, never raised, so the agent loop can feed them back
// into the conversation.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tuannvm/jira-refiner/internal/config"
	log "github.com/tuannvm/jira-refiner/internal/logging"
	"github.com/tuannvm/jira-refiner/internal/models"
)

// CallError is a typed tool-call failure surfaced to the orchestrator.
type CallError struct {
	Code   string
	Detail string
}

func (e *CallError) Error() string {
	if e.Detail == "" {
		return e.Code
	}
	return e.Code + ": " + e.Detail
}

// ToolResult is the outcome of one tool call, success or failure.
type ToolResult struct {
	Tool    string
	Content string
	Err     *CallError
}

// Failed reports whether the call failed.
func (r ToolResult) Failed() bool {
	return r.Err != nil
}

// Observation renders the result as the text fed back into the conversation.
func (r ToolResult) Observation() string {
	if r.Err != nil {
		return fmt.Sprintf("Error calling tool '%s': %s", r.Tool, r.Err.Error())
	}
	return r.Content
}

// Caller is the bridge surface the agent loop depends on.
type Caller interface {
	// Call invokes a remote tool. Failures come back inside the ToolResult.
	Call(ctx context.Context, name string, args map[string]any) ToolResult
	// Tools returns the fixed catalog.
	Tools() []CatalogEntry
}

// Client talks to the bridge subprocess over stdio. The channel is
// established lazily on first use and reused across calls; in-flight calls
// are serialized because the channel does not support interleaved requests.
type Client struct {
	command   string
	args      []string
	env       []string
	timeout   time.Duration
	reconnect bool

	mu          sync.Mutex
	session     *mcpclient.Client
	retriedOnce bool
}

// NewClient creates a bridge client from the application configuration. No
// subprocess is spawned until the first call.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		command: cfg.BridgeCommand,
		args:    cfg.BridgeArgs,
		env: []string{
			"JIRA_URL=" + cfg.JiraBaseURL,
			"JIRA_USERNAME=" + cfg.JiraUserEmail,
			"JIRA_API_TOKEN=" + cfg.JiraAPIToken,
		},
		timeout:   cfg.BridgeTimeout,
		reconnect: cfg.BridgeReconnect,
	}
}

// Tools returns the fixed catalog.
func (c *Client) Tools() []CatalogEntry {
	return Catalog()
}

// Connected reports whether the channel is currently established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Call validates the tool call against the catalog, then performs one
// round trip to the bridge subprocess under the per-call timeout.
func (c *Client) Call(ctx context.Context, name string, args map[string]any) ToolResult {
	entry, ok := Lookup(name)
	if !ok {
		return ToolResult{Tool: name, Err: &CallError{Code: models.ErrToolNotFound, Detail: fmt.Sprintf("no tool named '%s' in the catalog", name)}}
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := ValidateArguments(entry, args); err != nil {
		return ToolResult{Tool: name, Err: &CallError{Code: models.ErrInvalidArguments, Detail: err.Error()}}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		if err := c.connectLocked(ctx); err != nil {
			return ToolResult{Tool: name, Err: &CallError{Code: models.ErrChannelUnavailable, Detail: err.Error()}}
		}
	}

	result, err := c.roundTrip(ctx, name, args)
	if err == nil {
		return result
	}

	if errors.Is(err, context.DeadlineExceeded) {
		log.Warnf("Tool call '%s' timed out after %s", name, c.timeout)
		return ToolResult{Tool: name, Err: &CallError{Code: models.ErrTimeout, Detail: fmt.Sprintf("no response within %s", c.timeout)}}
	}

	// Channel death. Reconnect once per client lifetime if configured, then
	// retry the same call a single time.
	if c.reconnect && !c.retriedOnce {
		c.retriedOnce = true
		log.Warnf("Bridge channel failed (%v), attempting one reconnect", err)
		c.closeLocked()
		if rerr := c.connectLocked(ctx); rerr == nil {
			if result, err = c.roundTrip(ctx, name, args); err == nil {
				return result
			}
		}
	}

	c.closeLocked()
	return ToolResult{Tool: name, Err: &CallError{Code: models.ErrChannelUnavailable, Detail: err.Error()}}
}

// Close tears down the channel and the subprocess.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) connectLocked(ctx context.Context) error {
	session, err := mcpclient.NewStdioMCPClient(c.command, c.env, c.args...)
	if err != nil {
		return fmt.Errorf("failed to start bridge process: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "jira-refiner", Version: "0.2.0"}

	if _, err := session.Initialize(initCtx, initReq); err != nil {
		_ = session.Close()
		return fmt.Errorf("failed to initialize bridge session: %w", err)
	}

	c.session = session
	log.Infof("Bridge channel established (command=%s)", c.command)
	return nil
}

func (c *Client) closeLocked() {
	if c.session != nil {
		_ = c.session.Close()
		c.session = nil
	}
}

// roundTrip performs a single call/response exchange on the open channel.
func (c *Client) roundTrip(ctx context.Context, name string, args map[string]any) (ToolResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	log.Infof("Bridge tool call: %s", name)
	res, err := c.session.CallTool(callCtx, req)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return ToolResult{}, context.DeadlineExceeded
		}
		return ToolResult{}, err
	}

	text := extractText(res)
	if res.IsError {
		log.Warnf("Bridge tool '%s' returned an error: %s", name, truncate(text, 200))
		return ToolResult{Tool: name, Err: &CallError{Code: models.ErrRemoteError, Detail: text}}, nil
	}

	log.Debugf("Bridge tool '%s' succeeded (%d bytes)", name, len(text))
	return ToolResult{Tool: name, Content: text}, nil
}

// extractText joins all text content parts of a tool result.
func extractText(res *mcp.CallToolResult) string {
	var parts []string
	for _, content := range res.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
			continue
		}
		if tc, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... [truncated]"
}
