package handler

import (
	"errors"
	"net/http"

	"gowalink/internal/helper"
	"gowalink/internal/session"

	"github.com/labstack/echo/v4"
)

// SendMessageRequest is the payload for sending a text message.
type SendMessageRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// SendMessage relays a text message through the session's socket
// POST /api/sessions/:sessionId/send
func (h *SessionHandler) SendMessage(c echo.Context) error {
	snap, ok, errResp := h.ownedSession(c)
	if !ok {
		return errResp
	}

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "BAD_REQUEST", err.Error())
	}
	if req.To == "" || req.Body == "" {
		return ErrorResponse(c, http.StatusBadRequest, "to and body are required", "MISSING_FIELDS", "")
	}

	to, err := helper.NormalizePhoneNumber(req.To)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, err.Error(), "INVALID_RECIPIENT", "")
	}

	msg, err := h.manager.SendMessage(c.Request().Context(), snap.ID, to, req.Body)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			return ErrorResponse(c, http.StatusNotFound, "Session not found", "SESSION_NOT_FOUND", "")
		case errors.Is(err, session.ErrSessionNotReady):
			return ErrorResponse(c, http.StatusConflict, "Session is not ready", "SESSION_NOT_READY", "")
		case errors.Is(err, session.ErrSocketUnavailable):
			return ErrorResponse(c, http.StatusServiceUnavailable, "Socket unavailable", "SOCKET_UNAVAILABLE", "")
		default:
			return ErrorResponse(c, http.StatusBadGateway, "Failed to send message", "SEND_FAILED", err.Error())
		}
	}

	return SuccessResponse(c, http.StatusOK, "Message sent", msg)
}
