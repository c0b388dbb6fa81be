package playback

import (
	"context"
	"os"
	"os/exec"

	"github.com/babelroom/voice-client/pkg/audio"
)

// Player turns a clip into audible output, once.
type Player interface {
	Play(ctx context.Context, clip audio.Clip) error
}

type ffplayPlayer struct{}

// NewFFplayPlayer plays clips through ffplay. Each clip is staged as a
// temporary file which is removed when playback ends, whether it succeeded
// or not.
func NewFFplayPlayer() Player {
	return &ffplayPlayer{}
}

func extensionFor(encoding string) string {
	switch encoding {
	case audio.EncodingMP3:
		return ".mp3"
	case audio.EncodingOpusWebM:
		return ".webm"
	default:
		return ".bin"
	}
}

func (p *ffplayPlayer) Play(ctx context.Context, clip audio.Clip) error {
	file, err := os.CreateTemp("", "clip-*"+extensionFor(clip.Encoding))
	if err != nil {
		return err
	}
	defer os.Remove(file.Name())

	if _, err = file.Write(clip.Data); err != nil {
		file.Close()
		return err
	}
	if err = file.Close(); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, "ffplay",
		"-hide_banner", "-loglevel", "error",
		"-autoexit", "-nodisp",
		file.Name(),
	)
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
