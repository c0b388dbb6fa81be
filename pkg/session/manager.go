package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/babelroom/voice-client/pkg/metrics"
	"github.com/babelroom/voice-client/pkg/transport"
	"github.com/labstack/gommon/log"
)

// Transient error banners are cleared after a fixed interval so they never
// permanently obscure the interface.
const errorDisplayDuration = 5 * time.Second

// ConnectRequest carries the user-supplied configuration surface.
type ConnectRequest struct {
	ServerURL string
	RoomID    string
	Language  string
}

// Info is a snapshot of the current session for the collaborator layer.
type Info struct {
	State        State    `json:"state"`
	RoomID       string   `json:"room_id,omitempty"`
	Language     Language `json:"language,omitempty"`
	Participants int      `json:"participants"`
	LocalID      string   `json:"local_id,omitempty"`
}

// TranslationSink consumes inbound translation results. Filtering by
// recipient is the sink's responsibility, not the manager's.
type TranslationSink interface {
	Handle(p transport.TranslatedAudio)
}

// MonitorRunner is a periodic task started on room entry and wound down
// when the session leaves the room.
type MonitorRunner interface {
	Run(ctx context.Context)
}

// CaptureProber checks that the microphone is usable before a session is
// opened.
type CaptureProber interface {
	Probe(ctx context.Context) error
}

var (
	ErrEmptyRoomID   = errors.New("room ID must not be empty")
	ErrSessionActive = errors.New("a session is already active")
)

// Service owns the transport connection, room membership and the
// conversation log. All transport events pass through its single dispatch
// loop, strictly in arrival order.
type Service interface {
	Connect(ctx context.Context, req ConnectRequest) error
	Disconnect()

	State() State
	Info() Info
	Messages() []Message
	Usable() bool
	RoomID() string
	LocalIdentity() string

	AppendMessage(m Message)
	NotifyError(message string)
	Emit(event transport.EventName, payload interface{}) error

	SetTranslationSink(sink TranslationSink)
	SetVolumeMonitor(monitor MonitorRunner)
	SetCaptureProber(prober CaptureProber)
}

type manager struct {
	dial     transport.Factory
	notifier Notifier
	metrics  *metrics.Metrics

	lock          sync.Mutex
	state         State
	roomID        string
	language      Language
	localID       string
	participants  int
	messages      []Message
	client        transport.Client
	closing       bool
	monitorCancel context.CancelFunc
	errTimer      *time.Timer

	sink    TranslationSink
	monitor MonitorRunner
	prober  CaptureProber
}

func NewManager(dial transport.Factory, notifier Notifier, m *metrics.Metrics) Service {
	return &manager{
		dial:     dial,
		notifier: notifier,
		metrics:  m,
		state:    StateDisconnected,
	}
}

func (m *manager) SetTranslationSink(sink TranslationSink) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.sink = sink
}

func (m *manager) SetVolumeMonitor(monitor MonitorRunner) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.monitor = monitor
}

func (m *manager) SetCaptureProber(prober CaptureProber) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.prober = prober
}

func (m *manager) Connect(ctx context.Context, req ConnectRequest) error {
	roomID := strings.TrimSpace(req.RoomID)
	if roomID == "" {
		m.NotifyError("Please enter a room ID")
		return ErrEmptyRoomID
	}

	lang, err := ParseLanguage(req.Language)
	if err != nil {
		m.NotifyError(fmt.Sprintf("Unsupported language: %s", req.Language))
		return err
	}

	if m.prober != nil {
		if err = m.prober.Probe(ctx); err != nil {
			log.Errorf("capture probe failed | error: %v", err)
			m.NotifyError("Microphone access denied. Please allow microphone access to use voice translation.")
			return err
		}
	}

	m.lock.Lock()
	if m.state != StateDisconnected {
		m.lock.Unlock()
		return ErrSessionActive
	}
	client := m.dial(req.ServerURL)
	m.client = client
	m.setStateLocked(StateConnecting)
	m.roomID = roomID
	m.language = lang
	m.closing = false
	m.lock.Unlock()

	m.metrics.Connects.Inc()
	m.notifier.Loading(true)

	go m.run(ctx, client)
	return nil
}

// run dials the transport and then consumes its events one by one until the
// channel ends. This is the only goroutine that mutates session state after
// Connect returns.
func (m *manager) run(ctx context.Context, client transport.Client) {
	if err := client.Connect(ctx); err != nil {
		log.Errorf("cannot open transport | error: %v", err)
		m.metrics.ConnectFailures.Inc()

		m.lock.Lock()
		m.resetLocked()
		m.lock.Unlock()

		m.notifier.Loading(false)
		m.NotifyError("Failed to connect to server. Please check the server URL and that the backend is running.")
		return
	}

	for ev := range client.Events() {
		m.dispatch(ev)
	}
}

func (m *manager) dispatch(ev transport.Event) {
	switch ev.Name {
	case transport.EventConnected:
		m.handleConnected(ev.Data)
	case transport.EventRoomJoined:
		m.handleRoomJoined(ev.Data)
	case transport.EventUserJoined:
		m.handleUserJoined(ev.Data)
	case transport.EventUserLeft:
		m.handleUserLeft()
	case transport.EventTranslatedAudio:
		m.handleTranslatedAudio(ev.Data)
	case transport.EventError:
		m.handleServerError(ev.Data)
	case transport.EventDisconnect:
		m.handleDisconnect()
	default:
		log.Warnf("ignoring unknown event | event: %s", ev.Name)
	}
}

func (m *manager) handleConnected(data json.RawMessage) {
	var ack transport.Connected
	if err := json.Unmarshal(data, &ack); err != nil {
		log.Warnf("bad connected payload | error: %v", err)
	}
	log.Debugf("transport handshake complete | message: %s", ack.Message)

	m.lock.Lock()
	if m.state != StateConnecting {
		m.lock.Unlock()
		return
	}
	m.setStateLocked(StateJoinPending)
	client := m.client
	req := transport.JoinRoom{RoomID: m.roomID, Language: string(m.language)}
	m.lock.Unlock()

	if err := client.Emit(transport.EventJoinRoom, req); err != nil {
		log.Errorf("cannot send join request | room: %s, error: %v", req.RoomID, err)
		m.metrics.ConnectFailures.Inc()

		m.lock.Lock()
		m.resetLocked()
		m.lock.Unlock()
		client.Close()

		m.notifier.Loading(false)
		m.NotifyError("Failed to connect to server. Please check the server URL and that the backend is running.")
	}
}

func (m *manager) handleRoomJoined(data json.RawMessage) {
	var joined transport.RoomJoined
	if err := json.Unmarshal(data, &joined); err != nil {
		log.Warnf("bad room_joined payload | error: %v", err)
		return
	}

	m.lock.Lock()
	if m.state != StateJoinPending {
		m.lock.Unlock()
		return
	}
	m.setStateLocked(StateInRoom)
	m.roomID = joined.RoomID
	m.participants = joined.UsersCount
	m.localID = m.client.SessionID()
	monitor := m.monitor
	var monitorCtx context.Context
	if monitor != nil {
		monitorCtx, m.monitorCancel = context.WithCancel(context.Background())
	}
	m.lock.Unlock()

	log.Infof("joined room | room: %s, participants: %d, local: %s", joined.RoomID, joined.UsersCount, m.LocalIdentity())
	m.metrics.Participants.Set(float64(joined.UsersCount))

	m.notifier.Loading(false)
	m.notifier.Status("Connected to room", StatusConnected)
	m.notifier.RoomInfo(joined.RoomID, joined.UsersCount)

	if monitor != nil {
		go monitor.Run(monitorCtx)
	}
}

func (m *manager) handleUserJoined(data json.RawMessage) {
	var joined transport.UserJoined
	if err := json.Unmarshal(data, &joined); err != nil {
		log.Warnf("bad user_joined payload | error: %v", err)
		return
	}

	m.lock.Lock()
	if m.state != StateInRoom {
		m.lock.Unlock()
		return
	}
	m.participants = joined.RoomUsers
	roomID := m.roomID
	m.lock.Unlock()

	m.metrics.Participants.Set(float64(joined.RoomUsers))
	m.AppendMessage(Message{Kind: MessageSystem, DisplayText: fmt.Sprintf("User joined (%s)", joined.Language)})
	m.notifier.RoomInfo(roomID, joined.RoomUsers)
}

func (m *manager) handleUserLeft() {
	m.lock.Lock()
	if m.state != StateInRoom {
		m.lock.Unlock()
		return
	}
	if m.participants > 0 {
		m.participants--
	}
	roomID := m.roomID
	participants := m.participants
	m.lock.Unlock()

	m.metrics.Participants.Set(float64(participants))
	m.AppendMessage(Message{Kind: MessageSystem, DisplayText: "User left the room"})
	m.notifier.RoomInfo(roomID, participants)
}

func (m *manager) handleTranslatedAudio(data json.RawMessage) {
	m.lock.Lock()
	inRoom := m.state == StateInRoom
	sink := m.sink
	m.lock.Unlock()
	if !inRoom || sink == nil {
		return
	}

	var payload transport.TranslatedAudio
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warnf("bad translated_audio payload | error: %v", err)
		return
	}
	sink.Handle(payload)
}

// handleServerError surfaces a server-reported error without touching the
// connection state; the server may continue the session.
func (m *manager) handleServerError(data json.RawMessage) {
	var serverErr transport.ServerError
	if err := json.Unmarshal(data, &serverErr); err != nil {
		log.Warnf("bad error payload | error: %v", err)
		return
	}
	log.Warnf("server error | message: %s", serverErr.Message)
	m.NotifyError(serverErr.Message)
}

func (m *manager) handleDisconnect() {
	m.lock.Lock()
	if m.closing {
		// Expected loss: Disconnect() already tore the session down.
		m.lock.Unlock()
		return
	}
	wasInRoom := m.state == StateInRoom
	m.resetLocked()
	m.lock.Unlock()

	m.metrics.Participants.Set(0)
	m.notifier.Loading(false)
	m.notifier.Status("Disconnected from server", StatusNeutral)

	if wasInRoom {
		log.Warn("transport closed unexpectedly")
		m.metrics.SpontaneousDisconnects.Inc()
		m.NotifyError("Connection lost. Please reconnect.")
	} else {
		m.metrics.ConnectFailures.Inc()
		m.NotifyError("Failed to connect to server. Please check the server URL and that the backend is running.")
	}
}

func (m *manager) Disconnect() {
	m.lock.Lock()
	client := m.client
	alreadyDown := m.state == StateDisconnected && client == nil
	m.resetLocked()
	m.messages = nil
	m.lock.Unlock()

	if client != nil {
		client.Close()
	}
	if alreadyDown {
		return
	}

	m.metrics.Participants.Set(0)
	m.notifier.Loading(false)
	m.notifier.Status("Disconnected", StatusNeutral)
	m.notifier.RoomInfo("", 0)
}

// resetLocked clears everything but the conversation log; the log survives
// a spontaneous disconnect and is only wiped by an explicit Disconnect.
func (m *manager) setStateLocked(s State) {
	m.state = s
	m.metrics.SessionState.Set(float64(s.Ordinal()))
}

func (m *manager) resetLocked() {
	m.setStateLocked(StateDisconnected)
	m.roomID = ""
	m.language = ""
	m.localID = ""
	m.participants = 0
	m.client = nil
	m.closing = true
	if m.monitorCancel != nil {
		m.monitorCancel()
		m.monitorCancel = nil
	}
}

func (m *manager) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state
}

func (m *manager) Info() Info {
	m.lock.Lock()
	defer m.lock.Unlock()
	return Info{
		State:        m.state,
		RoomID:       m.roomID,
		Language:     m.language,
		Participants: m.participants,
		LocalID:      m.localID,
	}
}

func (m *manager) Messages() []Message {
	m.lock.Lock()
	defer m.lock.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Usable reports whether the session can carry a recording: connected and
// inside a room.
func (m *manager) Usable() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state == StateInRoom && m.roomID != ""
}

func (m *manager) RoomID() string {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.roomID
}

func (m *manager) LocalIdentity() string {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.localID
}

func (m *manager) AppendMessage(msg Message) {
	m.lock.Lock()
	m.messages = append(m.messages, msg)
	m.lock.Unlock()
	m.notifier.Message(msg)
}

// NotifyError shows a transient banner and schedules it to clear.
func (m *manager) NotifyError(message string) {
	m.notifier.ShowError(message)

	m.lock.Lock()
	if m.errTimer != nil {
		m.errTimer.Stop()
	}
	m.errTimer = time.AfterFunc(errorDisplayDuration, m.notifier.HideError)
	m.lock.Unlock()
}

func (m *manager) Emit(event transport.EventName, payload interface{}) error {
	m.lock.Lock()
	client := m.client
	m.lock.Unlock()
	if client == nil {
		return transport.ErrNotConnected
	}
	return client.Emit(event, payload)
}
