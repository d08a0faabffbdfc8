package openrouter

import "encoding/json"

// Message is one entry in the ordered conversation sent to the completion
// backend. Role is one of "system", "user", "assistant" or "tool".
//
// Assistant messages may carry tool calls; tool messages must reference the
// originating call via ToolCallID.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a structured request from the model naming a tool and its
// JSON-encoded arguments.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the tool name and the raw argument payload exactly
// as the backend returned it.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool is a tool descriptor advertised to the backend.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction describes one callable function. Parameters holds the JSON
// schema of the argument object; any value that marshals to a JSON schema
// works (the registry passes *jsonschema.Schema).
type ToolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters"`
}

// Request describes one completion call.
type Request struct {
	Messages   []Message
	Tools      []Tool // nil = no tools offered (finalization round)
	ToolChoice string // "auto" when tools are offered
	MaxTokens  int
}

// Completion is the assistant's reply to one completion call.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
	Model     string
}

type chatRequest struct {
	Model      string    `json:"model"`
	Messages   []Message `json:"messages"`
	MaxTokens  int       `json:"max_tokens,omitempty"`
	Tools      []Tool    `json:"tools,omitempty"`
	ToolChoice string    `json:"tool_choice,omitempty"`
}

type chatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
}

type choice struct {
	Index        int             `json:"index"`
	Message      responseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// responseMessage tolerates backends that return content as null.
type responseMessage struct {
	Role      string     `json:"role"`
	Content   *string    `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

func (m responseMessage) text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// RawArguments returns the argument payload of a tool call as raw JSON,
// substituting an empty object when the backend sent none.
func RawArguments(tc ToolCall) json.RawMessage {
	if tc.Function.Arguments == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(tc.Function.Arguments)
}
