package transport

// Wire payloads, named after their events. Field names follow the server
// protocol exactly.

type JoinRoom struct {
	RoomID   string `json:"room_id"`
	Language string `json:"language"`
}

type AudioData struct {
	RoomID string `json:"room_id"`
	Audio  string `json:"audio"`
}

// Connected is the handshake ack. The server assigns the session id here;
// a bare websocket has no ambient identity of its own.
type Connected struct {
	Message string `json:"message"`
	SID     string `json:"sid,omitempty"`
}

type RoomJoined struct {
	RoomID     string `json:"room_id"`
	UsersCount int    `json:"users_count"`
}

type UserJoined struct {
	RoomUsers int    `json:"room_users"`
	Language  string `json:"language"`
}

type ServerError struct {
	Message string `json:"message"`
}

// TranslatedAudio is an inbound translation result. TargetUser narrows the
// recipient when the server broadcasts to the whole room.
type TranslatedAudio struct {
	TargetUser   string `json:"target_user,omitempty"`
	Text         string `json:"text"`
	OriginalText string `json:"original_text,omitempty"`
	Audio        string `json:"audio"`
}
