package session

// State is the send status of a conversation.
type State string

const (
	StateIdle    State = "idle"
	StateSending State = "sending"
)
