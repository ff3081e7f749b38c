// internal/workers/messaging/unwrap-envelope/models.go
package unwrapenvelope

import "fmt"

// MessageType mirrors the producer's AgentMessage type constants.
type MessageType int

const (
	TypeUnknown   MessageType = -1
	TypeToLLM     MessageType = 0
	TypeToGoogle  MessageType = 1
	TypeToStorage MessageType = 2
)

var typeNames = map[MessageType]string{
	TypeToLLM:     "TO_LLM",
	TypeToGoogle:  "TO_GOOGLE",
	TypeToStorage: "TO_STORAGE",
}

func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Source records how an envelope was unwrapped.
type Source string

const (
	SourceParser Source = "parser"
	SourceModel  Source = "model"
)

// Envelope is the unwrapped agent message.
type Envelope struct {
	Content string      `json:"content"`
	Type    MessageType `json:"type"`
	// HasContent is false when the serialized message carried no content field.
	HasContent bool   `json:"-"`
	Source     Source `json:"-"`
}

// IsTarget reports whether the message is destined for the language model.
func (e *Envelope) IsTarget() bool {
	return e.Type == TypeToLLM
}

func (e *Envelope) String() string {
	return fmt.Sprintf("AgentMessage { content: %s, type: %s }", e.Content, e.Type)
}

// modelEnvelope is the JSON shape requested from the model.
type modelEnvelope struct {
	Content string `json:"content"`
	Type    int    `json:"type"`
}
