package models

// MessageType kind of chat event
type MessageType string

const (
	TypeMessage  MessageType = "message"
	TypeReaction MessageType = "reaction"
	TypeSystem   MessageType = "system"
)

// EventKind how the message reached the bot
type EventKind string

const (
	EventDirectMention EventKind = "direct_mention"
	EventDirectMessage EventKind = "direct_message"
	EventMention       EventKind = "mention"
	EventAmbient       EventKind = "ambient"
)

// Message an inbound chat message as seen by the dispatcher
type Message struct {
	ID      string
	Type    MessageType
	Event   EventKind
	Text    string
	User    string
	Channel string

	// Raw is the transport's own message value, used to reply in place.
	Raw any
}

// Addressed reports whether the bot was spoken to directly
func (m *Message) Addressed() bool {
	return m.Event == EventDirectMention || m.Event == EventDirectMessage
}

// SelfInfo identity of the bot account
type SelfInfo struct {
	ID   string
	Name string
}
