package rest

import (
	"net/http"

	"github.com/babelroom/voice-client/pkg/recording"
	"github.com/labstack/echo/v4"
)

type recordingController struct {
	recording.Pipeline
}

func NewRecordingController(pipeline recording.Pipeline) recordingController {
	return recordingController{pipeline}
}

// StartRecording begins a push-to-talk capture. Pressing twice is safe;
// the second call changes nothing.
func (rc *recordingController) StartRecording(c echo.Context) error {
	if err := rc.Pipeline.Start(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusOK)
}

func (rc *recordingController) StopRecording(c echo.Context) error {
	rc.Pipeline.Stop()
	return c.NoContent(http.StatusOK)
}
