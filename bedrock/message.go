package bedrock

// Role values for conversation messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one conversation turn in a JSON-friendly shape, so graph state
// carrying messages can be checkpointed and streamed as-is.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a model request to run a named tool.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// UserMessage builds a user turn.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// ToolResultMessage builds a tool-result turn answering a tool call.
func ToolResultMessage(toolCallID, name, result string) Message {
	return Message{Role: RoleTool, Content: result, ToolCallID: toolCallID, Name: name}
}
