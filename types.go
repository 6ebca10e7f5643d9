package discogs

import "encoding/json"

// Message roles used across providers. Providers translate these to their
// native role names (e.g. Gemini uses "model" for assistant turns).
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Image is an inline image attachment on a user message, already decoded
// from whatever the frontend received (Discord CDN download, clipboard, ...).
type Image struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// ChatMessage is one turn in a conversation.
type ChatMessage struct {
	ID        string     `json:"id,omitempty"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Images    []Image    `json:"images,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID links a RoleTool message back to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
	CreatedAt  int64  `json:"created_at,omitempty"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// ToolDefinition describes a callable tool to the model.
// Parameters is a JSON Schema object.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolResult is what a Tool returns for a single call. User-level failures
// go in Error as a plain string the model can read; the error return of
// Tool.Execute is reserved for infrastructure problems.
type ToolResult struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// ChatRequest is a provider-agnostic chat completion request.
type ChatRequest struct {
	Messages    []ChatMessage
	Tools       []ToolDefinition
	Temperature *float64
	MaxTokens   int
}

// ChatResponse is a provider-agnostic chat completion response.
// A response carries either text content, tool calls, or both.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

// Usage reports token accounting when the provider supplies it.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{ID: NewID(), Role: RoleSystem, Content: content, CreatedAt: NowUnix()}
}

// UserMessage builds a user-role message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{ID: NewID(), Role: RoleUser, Content: content, CreatedAt: NowUnix()}
}

// AssistantMessage builds an assistant-role message carrying text and any
// tool calls the model made in the same turn.
func AssistantMessage(content string, calls ...ToolCall) ChatMessage {
	return ChatMessage{ID: NewID(), Role: RoleAssistant, Content: content, ToolCalls: calls, CreatedAt: NowUnix()}
}

// ToolResultMessage builds a tool-role message answering one tool call.
func ToolResultMessage(callID, content string) ChatMessage {
	return ChatMessage{ID: NewID(), Role: RoleTool, Content: content, ToolCallID: callID, CreatedAt: NowUnix()}
}

// Temp is a convenience for ChatRequest.Temperature literals.
func Temp(t float64) *float64 { return &t }
