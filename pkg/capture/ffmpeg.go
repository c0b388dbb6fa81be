package capture

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
)

const chunkSize = 4096

// stopGrace is how long a stopping capture may take to flush its container
// before the process is killed outright.
const stopGrace = 2 * time.Second

var ErrCaptureStopped = errors.New("capture already stopped")

type ffmpegCapture struct {
	inputFormat string
	device      string
}

// NewFFmpegCapture captures the microphone by running ffmpeg against an
// input device (e.g. format "pulse" device "default", or "avfoundation"
// ":0") and streaming opus-in-webm from its stdout.
func NewFFmpegCapture(inputFormat, device string) Capture {
	return &ffmpegCapture{inputFormat: inputFormat, device: device}
}

func (f *ffmpegCapture) Probe(ctx context.Context) error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return err
	}

	// Open the device for a moment and discard the output
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	cmd := exec.CommandContext(probeCtx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-f", f.inputFormat,
		"-i", f.device,
		"-t", "0.1",
		"-f", "null", "-",
	)
	return cmd.Run()
}

func buildCaptureArgs(inputFormat, device string, cfg Config) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", inputFormat,
		"-i", device,
	}

	var filters []string
	if cfg.EchoCancellation {
		// Strip the low band where room rumble and speaker bleed live
		filters = append(filters, "highpass=f=200")
	}
	if cfg.NoiseSuppression {
		filters = append(filters, "afftdn=nf=-25")
	}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}

	return append(args,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-c:a", "libopus",
		"-b:a", "32k",
		"-f", "webm",
		"pipe:1",
	)
}

func (f *ffmpegCapture) Start(ctx context.Context, cfg Config) (Session, error) {
	cmd := exec.Command("ffmpeg", buildCaptureArgs(f.inputFormat, f.device, cfg)...)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err = cmd.Start(); err != nil {
		return nil, err
	}

	s := &ffmpegSession{
		cmd:    cmd,
		chunks: make(chan []byte),
	}
	go func() {
		readChunks(stdout, s.chunks)
		close(s.chunks)
	}()
	return s, nil
}

// readChunks moves encoded bytes from the stream to the channel in capture
// order until the stream ends.
func readChunks(r io.Reader, out chan<- []byte) {
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out <- chunk
		}
		if err != nil {
			if err != io.EOF {
				log.Warnf("capture stream ended | error: %v", err)
			}
			return
		}
	}
}

type ffmpegSession struct {
	cmd     *exec.Cmd
	chunks  chan []byte
	stopped bool
}

func (s *ffmpegSession) Chunks() <-chan []byte {
	return s.chunks
}

// Stop interrupts ffmpeg so it finalises the container, then waits for it
// to exit. The microphone device is released by the process exiting; it
// must never keep capturing in the background.
func (s *ffmpegSession) Stop() error {
	if s.stopped {
		return ErrCaptureStopped
	}
	s.stopped = true

	if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
		s.cmd.Process.Kill()
	}

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case err := <-done:
		// ffmpeg exits non-zero on SIGINT; that is a normal stop
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}
		return err
	case <-time.After(stopGrace):
		log.Warn("capture did not stop in time, killing")
		s.cmd.Process.Kill()
		return <-done
	}
}
