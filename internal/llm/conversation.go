package llm

import (
	"encoding/json"

	"github.com/tmc/langchaingo/llms"
)

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Response is the outcome of one freeform model turn: either a batch of tool
// calls to execute, or terminal content.
type Response struct {
	ToolCalls []ToolCall
	Content   string
}

// WantsToolCalls reports whether the model requested tool execution.
func (r *Response) WantsToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// Conversation is the append-only message history of one agent invocation.
// It is owned by a single invocation and discarded when the run returns.
type Conversation struct {
	messages []llms.MessageContent
}

// NewConversation seeds the history with the system prompt and the
// mode-specific opening instruction.
func NewConversation(system, opening string) *Conversation {
	return &Conversation{
		messages: []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, system),
			llms.TextParts(llms.ChatMessageTypeHuman, opening),
		},
	}
}

// Messages returns the history in model-call order.
func (c *Conversation) Messages() []llms.MessageContent {
	return c.messages
}

// Len returns the number of messages recorded so far.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// AddAssistantToolCalls records the assistant turn that requested the calls,
// so the following tool observations attach to it.
func (c *Conversation) AddAssistantToolCalls(content string, calls []ToolCall) {
	parts := make([]llms.ContentPart, 0, len(calls)+1)
	if content != "" {
		parts = append(parts, llms.TextPart(content))
	}
	for _, call := range calls {
		args, err := json.Marshal(call.Arguments)
		if err != nil {
			args = []byte("{}")
		}
		parts = append(parts, llms.ToolCall{
			ID:   call.ID,
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      call.Name,
				Arguments: string(args),
			},
		})
	}
	c.messages = append(c.messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeAI,
		Parts: parts,
	})
}

// AddToolResult feeds a tool observation (success payload or failure text)
// back into the conversation.
func (c *Conversation) AddToolResult(call ToolCall, observation string) {
	c.messages = append(c.messages, llms.MessageContent{
		Role: llms.ChatMessageTypeTool,
		Parts: []llms.ContentPart{
			llms.ToolCallResponse{
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    observation,
			},
		},
	})
}

// AddAssistantText records terminal free-text content from the model.
func (c *Conversation) AddAssistantText(text string) {
	c.messages = append(c.messages, llms.TextParts(llms.ChatMessageTypeAI, text))
}

// AddInstruction appends a steering instruction as a user message.
func (c *Conversation) AddInstruction(text string) {
	c.messages = append(c.messages, llms.TextParts(llms.ChatMessageTypeHuman, text))
}
