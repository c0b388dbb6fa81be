package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/babelroom/voice-client/pkg/audio"
	"github.com/babelroom/voice-client/pkg/metrics"
	"github.com/babelroom/voice-client/pkg/session"
	"github.com/babelroom/voice-client/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// fakeSession only needs identity and the conversation log here.
type fakeSession struct {
	mu       sync.Mutex
	localID  string
	messages []session.Message
	errors   []string
}

func (s *fakeSession) Connect(ctx context.Context, req session.ConnectRequest) error { return nil }
func (s *fakeSession) Disconnect()                                                   {}
func (s *fakeSession) State() session.State                                          { return session.StateInRoom }
func (s *fakeSession) Info() session.Info                                            { return session.Info{} }
func (s *fakeSession) Usable() bool                                                  { return true }
func (s *fakeSession) RoomID() string                                                { return "abc" }
func (s *fakeSession) SetTranslationSink(sink session.TranslationSink)               {}
func (s *fakeSession) SetVolumeMonitor(monitor session.MonitorRunner)                {}
func (s *fakeSession) SetCaptureProber(prober session.CaptureProber)                 {}

func (s *fakeSession) Emit(event transport.EventName, payload interface{}) error { return nil }

func (s *fakeSession) LocalIdentity() string {
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

type fakePlayer struct {
	mu      sync.Mutex
	clips   []audio.Clip
	playErr error
}

func (p *fakePlayer) Play(ctx context.Context, clip audio.Clip) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playErr != nil {
		return p.playErr
	}
	p.clips = append(p.clips, clip)
	return nil
}

func (p *fakePlayer) played() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clips)
}

func newTestPipeline(localID string) (*Pipeline, *fakeSession, *fakePlayer) {
	svc := &fakeSession{localID: localID}
	player := &fakePlayer{}
	p := NewPipeline(svc, player, metrics.NewMetrics(prometheus.NewRegistry()))
	return p, svc, player
}

func TestAcceptedClipIsPlayedAndLogged(t *testing.T) {
	p, svc, player := newTestPipeline("user-1")

	p.Handle(transport.TranslatedAudio{
		TargetUser:   "user-1",
		Text:         "bonjour",
		OriginalText: "hello",
		Audio:        audio.EncodeTransmissible([]byte{1, 2, 3}),
	})

	messages := svc.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, session.MessageReceived, messages[0].Kind)
	require.Equal(t, "bonjour", messages[0].DisplayText)
	require.Equal(t, "hello", messages[0].OriginalText)

	require.Eventually(t, func() bool { return player.played() == 1 }, time.Second, time.Millisecond)
	player.mu.Lock()
	defer player.mu.Unlock()
	require.Equal(t, []byte{1, 2, 3}, player.clips[0].Data)
	require.Equal(t, audio.EncodingMP3, player.clips[0].Encoding)
}

func TestBroadcastWithoutTargetIsAccepted(t *testing.T) {
	p, svc, player := newTestPipeline("user-1")

	p.Handle(transport.TranslatedAudio{Text: "hola", Audio: audio.EncodeTransmissible([]byte{9})})

	require.Len(t, svc.Messages(), 1)
	require.Eventually(t, func() bool { return player.played() == 1 }, time.Second, time.Millisecond)
}

func TestClipForOtherRecipientIsDroppedEntirely(t *testing.T) {
	p, svc, player := newTestPipeline("user-1")

	p.Handle(transport.TranslatedAudio{
		TargetUser: "user-2",
		Text:       "not for you",
		Audio:      audio.EncodeTransmissible([]byte{9}),
	})

	// No message appended, nothing decoded or played
	require.Empty(t, svc.Messages())
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, player.played())
}

func TestUndecodableClipIsNonFatal(t *testing.T) {
	p, svc, player := newTestPipeline("user-1")

	p.Handle(transport.TranslatedAudio{Text: "hi", Audio: "!!! not base64 !!!"})

	// The message is still logged; only playback is lost
	require.Len(t, svc.Messages(), 1)
	require.Zero(t, player.played())
	require.Contains(t, svc.errors[0], "Failed to play translated audio")
}

func TestPlayerErrorDoesNotAffectLaterClips(t *testing.T) {
	p, svc, player := newTestPipeline("user-1")
	player.playErr = errors.New("no audio device")

	p.Handle(transport.TranslatedAudio{Text: "one", Audio: audio.EncodeTransmissible([]byte{1})})
	time.Sleep(20 * time.Millisecond)

	player.mu.Lock()
	player.playErr = nil
	player.mu.Unlock()

	p.Handle(transport.TranslatedAudio{Text: "two", Audio: audio.EncodeTransmissible([]byte{2})})
	require.Eventually(t, func() bool { return player.played() == 1 }, time.Second, time.Millisecond)
	require.Len(t, svc.Messages(), 2)
}

func TestExtensionFor(t *testing.T) {
	require.Equal(t, ".mp3", extensionFor(audio.EncodingMP3))
	require.Equal(t, ".webm", extensionFor(audio.EncodingOpusWebM))
	require.Equal(t, ".bin", extensionFor("application/octet-stream"))
}
