package playback

import (
	"context"

	"github.com/babelroom/voice-client/pkg/audio"
	"github.com/babelroom/voice-client/pkg/metrics"
	"github.com/babelroom/voice-client/pkg/session"
	"github.com/babelroom/voice-client/pkg/transport"
	"github.com/labstack/gommon/log"
)

// Pipeline receives inbound translation results, narrows them to this
// participant, and plays the accepted ones. Playback failures never affect
// the session or later messages.
type Pipeline struct {
	session session.Service
	player  Player
	metrics *metrics.Metrics
}

func NewPipeline(svc session.Service, player Player, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		session: svc,
		player:  player,
		metrics: m,
	}
}

// Handle processes one translated_audio payload in arrival order. Payloads
// addressed to another participant are dropped entirely: no conversation
// entry, no decode, no playback.
func (p *Pipeline) Handle(payload transport.TranslatedAudio) {
	if payload.TargetUser != "" && payload.TargetUser != p.session.LocalIdentity() {
		log.Debugf("dropping clip for other recipient | target: %s", payload.TargetUser)
		p.metrics.ClipsFiltered.Inc()
		return
	}

	p.session.AppendMessage(session.Message{
		Kind:         session.MessageReceived,
		DisplayText:  payload.Text,
		OriginalText: payload.OriginalText,
	})
	p.metrics.ClipsReceived.Inc()

	data, err := audio.DecodeTransmissible(payload.Audio)
	if err != nil {
		log.Errorf("cannot decode clip | error: %v", err)
		p.metrics.PlaybackErrors.Inc()
		p.session.NotifyError("Failed to play translated audio.")
		return
	}

	clip := audio.Clip{Data: data, Encoding: audio.EncodingMP3}
	go func() {
		if err := p.player.Play(context.TODO(), clip); err != nil {
			log.Warnf("playback failed | error: %v", err)
			p.metrics.PlaybackErrors.Inc()
		}
	}()
}
