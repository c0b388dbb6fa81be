package session

// StatusCategory mirrors the styling category attached to status text.
type StatusCategory string

const (
	StatusNeutral   StatusCategory = ""
	StatusConnected StatusCategory = "connected"
	StatusRecording StatusCategory = "recording"
)

// Notifier is the collaborator interface towards the presentation layer.
// The core never touches presentation concerns directly; it only calls
// these methods. Implementations must not call back into the session.
type Notifier interface {
	Status(text string, category StatusCategory)
	Loading(show bool)
	ShowError(message string)
	HideError()
	Message(m Message)
	RoomInfo(roomID string, participants int)
	Volume(level float64)
}
