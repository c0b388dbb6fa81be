package capture

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/labstack/gommon/log"
)

const meterWindow = 256

// Meter taps the microphone as a separate low-rate raw stream and keeps
// the most recent window of amplitude samples for level feedback. It is
// independent of recording: both may run against the device at once.
type Meter struct {
	inputFormat string
	device      string

	lock   sync.Mutex
	window [meterWindow]byte
}

func NewMeter(inputFormat, device string) *Meter {
	return &Meter{inputFormat: inputFormat, device: device}
}

// Run streams unsigned 8-bit samples from the device until the context is
// cancelled. It blocks; call it in a goroutine.
func (m *Meter) Run(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-f", m.inputFormat,
		"-i", m.device,
		"-ac", "1",
		"-ar", "8000",
		"-f", "u8",
		"pipe:1",
	)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err = cmd.Start(); err != nil {
		return err
	}

	buf := make([]byte, meterWindow)
	for {
		_, err = io.ReadFull(stdout, buf)
		if err != nil {
			if ctx.Err() == nil {
				log.Warnf("meter stream ended | error: %v", err)
			}
			return cmd.Wait()
		}
		m.push(buf)
	}
}

// push converts centered u8 samples to 0-255 amplitudes and stores them.
func (m *Meter) push(samples []byte) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for i, s := range samples {
		if i >= meterWindow {
			break
		}
		amp := int(s) - 128
		if amp < 0 {
			amp = -amp
		}
		amp *= 2
		if amp > 255 {
			amp = 255
		}
		m.window[i] = byte(amp)
	}
}

// Samples returns a copy of the most recent amplitude window.
func (m *Meter) Samples() []byte {
	m.lock.Lock()
	defer m.lock.Unlock()
	out := make([]byte, meterWindow)
	copy(out[:], m.window[:])
	return out
}
