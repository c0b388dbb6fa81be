package recording

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/babelroom/voice-client/pkg/audio"
	"github.com/babelroom/voice-client/pkg/capture"
	"github.com/babelroom/voice-client/pkg/metrics"
	"github.com/babelroom/voice-client/pkg/session"
	"github.com/babelroom/voice-client/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	event   transport.EventName
	payload interface{}
}

// fakeSession is an in-room session that records emissions and messages.
type fakeSession struct {
	mu       sync.Mutex
	usable   bool
	roomID   string
	localID  string
	emits    []emitted
	emitErr  error
	messages []session.Message
	errors   []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{usable: true, roomID: "abc", localID: "user-1"}
}

func (s *fakeSession) Connect(ctx context.Context, req session.ConnectRequest) error { return nil }
func (s *fakeSession) Disconnect()                                                   {}
func (s *fakeSession) State() session.State                                          { return session.StateInRoom }
func (s *fakeSession) Info() session.Info                                            { return session.Info{} }
func (s *fakeSession) SetTranslationSink(sink session.TranslationSink)               {}
func (s *fakeSession) SetVolumeMonitor(monitor session.MonitorRunner)                {}
func (s *fakeSession) SetCaptureProber(prober session.CaptureProber)                 {}

func (s *fakeSession) Usable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usable
}

func (s *fakeSession) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

func (s *fakeSession) LocalIdentity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localID
}

func (s *fakeSession) Messages() []session.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]session.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *fakeSession) AppendMessage(m session.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
}

func (s *fakeSession) NotifyError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, message)
}

func (s *fakeSession) Emit(event transport.EventName, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emitErr != nil {
		return s.emitErr
	}
	s.emits = append(s.emits, emitted{event, payload})
	return nil
}

func (s *fakeSession) emittedEvents() []emitted {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]emitted, len(s.emits))
	copy(out, s.emits)
	return out
}

// fakeCapture hands out sessions preloaded with chunks.
type fakeCapture struct {
	mu       sync.Mutex
	chunks   [][]byte
	startErr error
	sessions []*fakeCaptureSession
}

func (c *fakeCapture) Probe(ctx context.Context) error {
	return nil
}

func (c *fakeCapture) Start(ctx context.Context, cfg capture.Config) (capture.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return nil, c.startErr
	}
	s := &fakeCaptureSession{out: make(chan []byte, len(c.chunks)+1)}
	for _, chunk := range c.chunks {
		s.out <- chunk
	}
	c.sessions = append(c.sessions, s)
	return s, nil
}

func (c *fakeCapture) started() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

type fakeCaptureSession struct {
	mu      sync.Mutex
	out     chan []byte
	stopped bool
}

func (s *fakeCaptureSession) Chunks() <-chan []byte {
	return s.out
}

func (s *fakeCaptureSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return capture.ErrCaptureStopped
	}
	s.stopped = true
	close(s.out)
	return nil
}

func (s *fakeCaptureSession) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type notifierStub struct {
	mu       sync.Mutex
	statuses []string
}

func (n *notifierStub) Status(text string, category session.StatusCategory) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, text)
}

func (n *notifierStub) Loading(show bool)                         {}
func (n *notifierStub) ShowError(message string)                  {}
func (n *notifierStub) HideError()                                {}
func (n *notifierStub) Message(m session.Message)                 {}
func (n *notifierStub) RoomInfo(roomID string, participants int)  {}
func (n *notifierStub) Volume(level float64)                      {}

func newTestPipeline(svc *fakeSession, cap *fakeCapture) Pipeline {
	return NewPipeline(svc, cap, &notifierStub{}, metrics.NewMetrics(prometheus.NewRegistry()))
}

func TestStartStopSubmitsClip(t *testing.T) {
	svc := newFakeSession()
	cap := &fakeCapture{chunks: [][]byte{{1, 2}, {3}, {4, 5, 6}}}
	p := newTestPipeline(svc, cap)

	require.NoError(t, p.Start(context.Background()))
	require.True(t, p.Active())

	p.Stop()
	require.False(t, p.Active())

	emits := svc.emittedEvents()
	require.Len(t, emits, 1)
	require.Equal(t, transport.EventAudioData, emits[0].event)

	data, ok := emits[0].payload.(transport.AudioData)
	require.True(t, ok)
	require.Equal(t, "abc", data.RoomID)

	decoded, err := audio.DecodeTransmissible(data.Audio)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, decoded)

	// The transmission is reflected in the conversation log
	messages := svc.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, session.MessageSent, messages[0].Kind)
}

func TestEmptyCaptureIsDiscarded(t *testing.T) {
	svc := newFakeSession()
	cap := &fakeCapture{}
	p := newTestPipeline(svc, cap)

	require.NoError(t, p.Start(context.Background()))
	p.Stop()

	require.Empty(t, svc.emittedEvents())
	require.Empty(t, svc.Messages())
}

func TestStopWithoutStart(t *testing.T) {
	svc := newFakeSession()
	p := newTestPipeline(svc, &fakeCapture{})

	p.Stop()
	require.Empty(t, svc.emittedEvents())
}

func TestSecondStartIsRejected(t *testing.T) {
	svc := newFakeSession()
	cap := &fakeCapture{chunks: [][]byte{{9}}}
	p := newTestPipeline(svc, cap)

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Start(context.Background()))

	// Only one capture session was ever acquired; the first is untouched
	require.Equal(t, 1, cap.started())

	p.Stop()
	require.Len(t, svc.emittedEvents(), 1)
}

func TestStartOutsideRoom(t *testing.T) {
	svc := newFakeSession()
	svc.usable = false
	cap := &fakeCapture{}
	p := newTestPipeline(svc, cap)

	require.NoError(t, p.Start(context.Background()))
	require.False(t, p.Active())
	require.Zero(t, cap.started())
}

func TestCaptureFailureIsSurfaced(t *testing.T) {
	svc := newFakeSession()
	cap := &fakeCapture{startErr: errors.New("device busy")}
	p := newTestPipeline(svc, cap)

	err := p.Start(context.Background())
	require.Error(t, err)
	require.False(t, p.Active())
	require.Contains(t, svc.errors[0], "Failed to start recording")
}

func TestMicrophoneReleasedWhenEmitFails(t *testing.T) {
	svc := newFakeSession()
	svc.emitErr = errors.New("connection closed")
	cap := &fakeCapture{chunks: [][]byte{{1}}}
	p := newTestPipeline(svc, cap)

	require.NoError(t, p.Start(context.Background()))
	p.Stop()

	// No stuck hot mic: the capture session stopped despite the failure
	require.True(t, cap.sessions[0].isStopped())
	require.Contains(t, svc.errors[0], "Failed to process audio recording")
	require.False(t, p.Active())
}

type recordedUpload struct {
	key         string
	contentType string
	data        []byte
}

type fakeUploader struct {
	mu      sync.Mutex
	uploads []recordedUpload
}

func (u *fakeUploader) Upload(ctx context.Context, key string, contentType string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploads = append(u.uploads, recordedUpload{key, contentType, data})
	return nil
}

func (u *fakeUploader) GetDirectory() string { return "clips" }

func (u *fakeUploader) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.uploads)
}

func TestClipIsArchived(t *testing.T) {
	svc := newFakeSession()
	cap := &fakeCapture{chunks: [][]byte{{7, 8}}}
	p := newTestPipeline(svc, cap)

	uploader := &fakeUploader{}
	p.SetUploader(uploader)

	require.NoError(t, p.Start(context.Background()))
	p.Stop()

	require.Eventually(t, func() bool { return uploader.count() == 1 }, time.Second, time.Millisecond)

	uploader.mu.Lock()
	defer uploader.mu.Unlock()
	require.Equal(t, audio.EncodingOpusWebM, uploader.uploads[0].contentType)
	require.Equal(t, []byte{7, 8}, uploader.uploads[0].data)
}
