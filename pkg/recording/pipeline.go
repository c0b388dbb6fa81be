package recording

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/babelroom/voice-client/pkg/archive"
	"github.com/babelroom/voice-client/pkg/audio"
	"github.com/babelroom/voice-client/pkg/capture"
	"github.com/babelroom/voice-client/pkg/metrics"
	"github.com/babelroom/voice-client/pkg/session"
	"github.com/babelroom/voice-client/pkg/transport"
	"github.com/labstack/gommon/log"
)

// Pipeline drives the capture service during one press-to-talk interval
// and submits the result for translation. At most one recording may be
// active; a second start while one is live is rejected, not overlapped.
type Pipeline interface {
	Start(ctx context.Context) error
	Stop()
	Active() bool
	SetUploader(uploader archive.Uploader)
}

type pipeline struct {
	session  session.Service
	capture  capture.Capture
	notifier session.Notifier
	metrics  *metrics.Metrics

	lock     sync.Mutex
	active   *recordingSession
	uploader archive.Uploader
}

// recordingSession accumulates encoded chunks for a single capture. The
// done channel closes once the chunk stream has fully drained.
type recordingSession struct {
	source capture.Session
	chunks [][]byte
	done   chan struct{}
}

func NewPipeline(svc session.Service, cap capture.Capture, notifier session.Notifier, m *metrics.Metrics) Pipeline {
	return &pipeline{
		session:  svc,
		capture:  cap,
		notifier: notifier,
		metrics:  m,
	}
}

func (p *pipeline) SetUploader(uploader archive.Uploader) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.uploader = uploader
}

func (p *pipeline) Active() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.active != nil
}

func (p *pipeline) Start(ctx context.Context) error {
	p.lock.Lock()

	// A recording is already live, or the session cannot carry one.
	// Either way this press does nothing.
	if p.active != nil || !p.session.Usable() {
		p.lock.Unlock()
		return nil
	}

	source, err := p.capture.Start(ctx, capture.SpeechConfig())
	if err != nil {
		p.lock.Unlock()
		log.Errorf("cannot start capture | error: %v", err)
		p.session.NotifyError("Failed to start recording. Please check microphone permissions.")
		return err
	}

	rs := &recordingSession{source: source, done: make(chan struct{})}
	p.active = rs
	p.lock.Unlock()

	go rs.accumulate()
	p.notifier.Status("Recording... Release to translate", session.StatusRecording)
	return nil
}

func (rs *recordingSession) accumulate() {
	for chunk := range rs.source.Chunks() {
		if len(chunk) > 0 {
			rs.chunks = append(rs.chunks, chunk)
		}
	}
	close(rs.done)
}

func (p *pipeline) Stop() {
	p.lock.Lock()
	rs := p.active
	p.active = nil
	p.lock.Unlock()
	if rs == nil {
		return
	}

	// Release the microphone before anything else. Packaging may still
	// fail, but the stream must never keep capturing.
	if err := rs.source.Stop(); err != nil && err != capture.ErrCaptureStopped {
		log.Warnf("error stopping capture | error: %v", err)
	}

	// Wait for the final buffered chunk to flush through
	<-rs.done

	p.notifier.Status("Processing...", session.StatusConnected)
	p.publish(rs.chunks)
}

// publish packages accumulated chunks into one clip and emits it tagged
// with the current room.
func (p *pipeline) publish(chunks [][]byte) {
	data, err := audio.Merge(chunks)
	if err != nil {
		// Silence or an instant release: discard without transmission
		log.Debug("discarding empty capture")
		p.metrics.ClipsDiscarded.Inc()
		return
	}
	clip := audio.Clip{Data: data, Encoding: audio.EncodingOpusWebM}

	payload := transport.AudioData{
		RoomID: p.session.RoomID(),
		Audio:  audio.EncodeTransmissible(clip.Data),
	}
	if err = p.session.Emit(transport.EventAudioData, payload); err != nil {
		log.Errorf("cannot submit clip | room: %s, error: %v", payload.RoomID, err)
		p.session.NotifyError("Failed to process audio recording.")
		return
	}

	p.metrics.ClipsSent.Inc()
	p.metrics.ClipBytes.Observe(float64(len(clip.Data)))
	p.notifier.Status("Audio sent for translation", session.StatusConnected)
	p.session.AppendMessage(session.Message{Kind: session.MessageSent, DisplayText: "Voice clip sent for translation"})

	p.archiveClip(clip)
}

func (p *pipeline) archiveClip(clip audio.Clip) {
	p.lock.Lock()
	uploader := p.uploader
	p.lock.Unlock()
	if uploader == nil {
		return
	}

	key := archive.ClipKey(time.Now(), "webm")
	go func() {
		if err := uploader.Upload(context.TODO(), key, clip.Encoding, bytes.NewReader(clip.Data)); err != nil {
			log.Errorf("cannot archive clip | key: %s, error: %v", key, err)
			return
		}
		log.Infof("archived clip | key: %s", key)
	}()
}
