package capture

import "context"

// Config describes how the microphone should be captured for speech.
type Config struct {
	SampleRate       int
	Channels         int
	EchoCancellation bool
	NoiseSuppression bool
}

// SpeechConfig is the fixed capture profile used for push-to-talk clips.
func SpeechConfig() Config {
	return Config{
		SampleRate:       16000,
		Channels:         1,
		EchoCancellation: true,
		NoiseSuppression: true,
	}
}

// Session is one live microphone capture. Chunks delivers encoded audio in
// capture order and is closed once the underlying stream has fully stopped,
// after any buffered final chunk has been flushed.
type Session interface {
	Chunks() <-chan []byte
	Stop() error
}

// Capture produces encoded audio chunks from a live microphone stream.
type Capture interface {
	// Probe checks that a capture device is accessible at all.
	Probe(ctx context.Context) error
	Start(ctx context.Context, cfg Config) (Session, error)
}
