package session

// MessageKind distinguishes entries in the conversation log.
type MessageKind string

const (
	MessageSystem   MessageKind = "system"
	MessageSent     MessageKind = "sent"
	MessageReceived MessageKind = "received"
)

// Message is one conversation log entry. The log is append-only; entries
// are never mutated after creation.
type Message struct {
	Kind         MessageKind `json:"kind"`
	DisplayText  string      `json:"display_text"`
	OriginalText string      `json:"original_text,omitempty"`
}
