package transport

import (
	"context"
	"encoding/json"
	"errors"
)

// EventName identifies a named message on the channel.
type EventName string

const (
	// Client to server
	EventJoinRoom  EventName = "join_room"
	EventAudioData EventName = "audio_data"

	// Server to client
	EventConnected       EventName = "connected"
	EventRoomJoined      EventName = "room_joined"
	EventUserJoined      EventName = "user_joined"
	EventUserLeft        EventName = "user_left"
	EventTranslatedAudio EventName = "translated_audio"
	EventError           EventName = "error"

	// Synthesized locally when the channel ends, so consumers see the
	// loss of connection in arrival order with everything before it.
	EventDisconnect EventName = "disconnect"
)

// Event is one inbound named message. Data holds the raw payload; the
// consumer decodes it based on Name.
type Event struct {
	Name EventName
	Data json.RawMessage
}

var (
	ErrNotConnected  = errors.New("transport is not connected")
	ErrClientClosed  = errors.New("transport client is closed")
	ErrInvalidScheme = errors.New("server URL must be http(s):// or ws(s)://")
)

// Client is a bidirectional named-message channel to the translation server.
// Events are delivered strictly in the order the server sent them; the
// events channel is closed after a final disconnect event.
type Client interface {
	Connect(ctx context.Context) error
	Emit(event EventName, payload interface{}) error
	Events() <-chan Event
	SessionID() string
	Close() error
}

// Factory builds a client for a user-supplied server address. The session
// manager owns the connection; everything else only emits through it.
type Factory func(serverURL string) Client
