package main

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"strings"

	"github.com/babelroom/voice-client/pkg/archive"
	"github.com/babelroom/voice-client/pkg/capture"
	"github.com/babelroom/voice-client/pkg/http/rest"
	"github.com/babelroom/voice-client/pkg/metrics"
	"github.com/babelroom/voice-client/pkg/playback"
	"github.com/babelroom/voice-client/pkg/recording"
	"github.com/babelroom/voice-client/pkg/session"
	"github.com/babelroom/voice-client/pkg/transport"
	"github.com/babelroom/voice-client/pkg/volume"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func getEnvOrFail(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("%s not set", key)
	}
	return val
}

func getEnvOrDefault(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

// logNotifier is the headless stand-in for the presentation layer: every
// collaborator notification becomes a log line.
type logNotifier struct{}

func (n *logNotifier) Status(text string, category session.StatusCategory) {
	log.Infof("status | text: %s, category: %s", text, category)
}

func (n *logNotifier) Loading(show bool) {
	log.Debugf("loading | show: %v", show)
}

func (n *logNotifier) ShowError(message string) {
	log.Warnf("error banner | message: %s", message)
}

func (n *logNotifier) HideError() {
	log.Debug("error banner cleared")
}

func (n *logNotifier) Message(m session.Message) {
	log.Infof("message | kind: %s, text: %s", m.Kind, m.DisplayText)
}

func (n *logNotifier) RoomInfo(roomID string, participants int) {
	log.Infof("room | id: %s, participants: %d", roomID, participants)
}

func (n *logNotifier) Volume(level float64) {
	log.Debugf("volume | level: %.1f", level)
}

func main() {
	// Get env variables
	port := getEnvOrFail("APP_PORT")
	logLevel := os.Getenv("LOG_LEVEL")
	inputFormat := getEnvOrDefault("CAPTURE_FORMAT", "pulse")
	inputDevice := getEnvOrDefault("CAPTURE_DEVICE", "default")

	// Get log verbosity
	var verbosity log.Lvl
	switch strings.ToLower(logLevel) {
	case "debug":
		verbosity = log.DEBUG
	case "info":
		verbosity = log.INFO
	case "warn":
		verbosity = log.WARN
	case "error":
		fallthrough
	default:
		verbosity = log.ERROR
	}
	log.SetLevel(verbosity)
	log.SetHeader("(${short_file}:${line}) ${time_rfc3339} ${level}: ")

	// Check that ffmpeg and ffplay are installed
	for _, bin := range []string{"ffmpeg", "ffplay"} {
		if _, err := exec.LookPath(bin); err != nil {
			log.Fatal(err)
		}
	}

	// Create S3 clip archive only if the environment variables are not empty
	s3Region := os.Getenv("S3_REGION")
	s3Bucket := os.Getenv("S3_BUCKET")
	var uploader archive.Uploader
	if s3Region != "" && s3Bucket != "" {
		var err error
		uploader, err = archive.NewS3Uploader(archive.S3Config{
			Region:    s3Region,
			Bucket:    s3Bucket,
			Directory: os.Getenv("S3_DIRECTORY"),
		})
		if err != nil {
			log.Fatal(err)
		}
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	notifier := &logNotifier{}
	mic := capture.NewFFmpegCapture(inputFormat, inputDevice)

	// Initialise session manager
	manager := session.NewManager(transport.NewWebsocketClient, notifier, m)
	manager.SetCaptureProber(mic)

	// Initialise pipelines
	recorder := recording.NewPipeline(manager, mic, notifier, m)
	recorder.SetUploader(uploader)
	player := playback.NewPipeline(manager, playback.NewFFplayPlayer(), m)
	manager.SetTranslationSink(player)

	// Initialise volume monitor, fed by a background microphone tap
	meter := capture.NewMeter(inputFormat, inputDevice)
	go func() {
		if err := meter.Run(context.Background()); err != nil {
			log.Warnf("level meter unavailable | error: %v", err)
		}
	}()
	manager.SetVolumeMonitor(volume.NewMonitor(
		meter,
		func() bool { return manager.State() == session.StateInRoom },
		func(level float64) {
			m.VolumeLevel.Set(level)
			notifier.Volume(level)
		},
	))

	// Initialise controllers
	sessionController := rest.NewSessionController(manager)
	recordingController := rest.NewRecordingController(recorder)

	// Initialise server
	e := echo.New()

	// Attach middlewares
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "(${host}) ${time_rfc3339} ${level}: ${method} ${uri} ${status} ${error}\n",
	}))

	// Attach handlers
	e.GET("/health-check", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Attach session handlers
	e.POST("/session/connect", sessionController.Connect)
	e.POST("/session/disconnect", sessionController.Disconnect)
	e.GET("/session", sessionController.GetSession)
	e.GET("/session/messages", sessionController.GetMessages)

	// Attach push-to-talk handlers
	e.POST("/recording/start", recordingController.StartRecording)
	e.POST("/recording/stop", recordingController.StopRecording)

	// Start server
	e.Logger.Fatal(e.Start(":" + port))
}
