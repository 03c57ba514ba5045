package model

// Conversation roles understood by the reasoning service.
const (
	RoleUser  = "user"
	RoleModel = "model"
	RoleTool  = "tool"
)

// FunctionCall represents a tool invocation requested by the model.
type FunctionCall struct {
	ID   string         `json:"id,omitempty" bson:"id,omitempty"`
	Name string         `json:"name" bson:"name"`
	Args map[string]any `json:"args,omitempty" bson:"args,omitempty"`
}

// FunctionResponse represents the result of a tool invocation.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty" bson:"id,omitempty"`
	Name     string         `json:"name" bson:"name"`
	Response map[string]any `json:"response,omitempty" bson:"response,omitempty"`
}

// Media is an inline attachment such as an image.
type Media struct {
	MIMEType string `json:"mime_type" bson:"mime_type"`
	Data     []byte `json:"data" bson:"data"`
}

// Part is a single piece of a conversation turn. Exactly one field is set.
type Part struct {
	Text             string            `json:"text,omitempty" bson:"text,omitempty"`
	Media            *Media            `json:"media,omitempty" bson:"media,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty" bson:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty" bson:"function_response,omitempty"`
}

// Content is a single conversation turn, composed of one or more parts.
type Content struct {
	Parts []Part `json:"parts" bson:"parts"`
	Role  string `json:"role" bson:"role"`
}

// TextPart returns a part carrying plain text.
func TextPart(text string) Part {
	return Part{Text: text}
}

// HistoryEntry is a caller-supplied history item before formatting.
type HistoryEntry struct {
	Sender string  `json:"sender" bson:"sender"`
	Text   string  `json:"text,omitempty" bson:"text,omitempty"`
	Media  []Media `json:"media,omitempty" bson:"media,omitempty"`
}

// UserMessage is the new message being answered.
type UserMessage struct {
	Text  string  `json:"text"`
	Media []Media `json:"media,omitempty"`
}
