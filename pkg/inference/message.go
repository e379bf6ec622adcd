package inference

// Role is the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a chat conversation. Assistant messages may carry
// ToolCalls; each answer comes back as a RoleTool message with the call's
// ID and tool Name.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a function invocation requested by the model. Arguments is a
// JSON object.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool declares a function the model may call. Parameters is a JSON Schema
// object.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

func NewSystemMessage(text string) Message    { return Message{Role: RoleSystem, Content: text} }
func NewUserMessage(text string) Message      { return Message{Role: RoleUser, Content: text} }
func NewAssistantMessage(text string) Message { return Message{Role: RoleAssistant, Content: text} }

// NewToolMessage answers the call with the given id.
func NewToolMessage(callID, name, result string) Message {
	return Message{Role: RoleTool, Content: result, ToolCallID: callID, Name: name}
}

// splitSystem pops a leading system message, which some providers take as a
// separate instruction.
func splitSystem(msgs []Message) (system string, rest []Message) {
	if len(msgs) == 0 || msgs[0].Role != RoleSystem {
		return "", msgs
	}
	return msgs[0].Content, msgs[1:]
}
