package rest

import (
	"errors"
	"net/http"

	"github.com/babelroom/voice-client/pkg/session"
	"github.com/labstack/echo/v4"
)

type sessionController struct {
	session.Service
}

type ConnectRequest struct {
	ServerURL string `json:"server_url"`
	RoomID    string `json:"room_id"`
	Language  string `json:"language"`
}

func NewSessionController(service session.Service) sessionController {
	return sessionController{service}
}

var ErrEmptyFields = errors.New("one or more fields is empty")

func (sc *sessionController) Connect(c echo.Context) error {
	// Bind request data
	data := new(ConnectRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	// Sanitise request
	if data.ServerURL == "" || data.RoomID == "" || data.Language == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	// Call service
	err := sc.Service.Connect(c.Request().Context(), session.ConnectRequest{
		ServerURL: data.ServerURL,
		RoomID:    data.RoomID,
		Language:  data.Language,
	})
	switch {
	case err == nil:
	case errors.Is(err, session.ErrEmptyRoomID),
		errors.Is(err, session.ErrUnknownLanguage),
		errors.Is(err, session.ErrSessionActive):
		return echo.NewHTTPError(http.StatusBadRequest, err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	// Return success
	return c.NoContent(http.StatusOK)
}

func (sc *sessionController) Disconnect(c echo.Context) error {
	sc.Service.Disconnect()
	return c.NoContent(http.StatusOK)
}

func (sc *sessionController) GetSession(c echo.Context) error {
	return c.JSON(http.StatusOK, sc.Service.Info())
}

func (sc *sessionController) GetMessages(c echo.Context) error {
	messages := sc.Service.Messages()
	if messages == nil {
		messages = []session.Message{}
	}
	return c.JSON(http.StatusOK, messages)
}
