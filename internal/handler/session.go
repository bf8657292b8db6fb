package handler

import (
	"errors"
	"net/http"

	"gowalink/internal/service"
	"gowalink/internal/session"

	"github.com/labstack/echo/v4"
)

// SessionHandler exposes the session lifecycle over HTTP.
type SessionHandler struct {
	manager *session.Manager
}

func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

// PairRequest is the payload for phone-number pairing.
type PairRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// ownedSession resolves :sessionId and enforces that the caller owns it
// (admins can touch any session).
func (h *SessionHandler) ownedSession(c echo.Context) (session.Snapshot, bool, error) {
	id := c.Param("sessionId")
	snap, ok := h.manager.GetSession(id)
	if !ok {
		return session.Snapshot{}, false, ErrorResponse(c, http.StatusNotFound, "Session not found", "SESSION_NOT_FOUND", "")
	}

	claims, _ := c.Get("user_claims").(*service.Claims)
	if claims == nil {
		return session.Snapshot{}, false, ErrorResponse(c, http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED", "")
	}
	if claims.Role != "admin" && snap.UserID != claims.Username {
		return session.Snapshot{}, false, ErrorResponse(c, http.StatusForbidden, "Session belongs to another user", "FORBIDDEN", "")
	}
	return snap, true, nil
}

// CreateSession starts (or reuses) the caller's linked-device session
// POST /api/sessions
func (h *SessionHandler) CreateSession(c echo.Context) error {
	claims, _ := c.Get("user_claims").(*service.Claims)
	if claims == nil {
		return ErrorResponse(c, http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED", "")
	}

	snap, err := h.manager.CreateSession(c.Request().Context(), claims.Username)
	if err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to create session", "SESSION_CREATE_FAILED", err.Error())
	}

	return SuccessResponse(c, http.StatusCreated, "Session created", snap)
}

// GetMySession returns the caller's live session
// GET /api/sessions/me
func (h *SessionHandler) GetMySession(c echo.Context) error {
	claims, _ := c.Get("user_claims").(*service.Claims)
	if claims == nil {
		return ErrorResponse(c, http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED", "")
	}

	snap, ok := h.manager.GetSessionByUserID(claims.Username)
	if !ok {
		return ErrorResponse(c, http.StatusNotFound, "No active session", "SESSION_NOT_FOUND", "")
	}
	return SuccessResponse(c, http.StatusOK, "Session retrieved", snap)
}

// GetSession returns one session by id, tombstones included
// GET /api/sessions/:sessionId
func (h *SessionHandler) GetSession(c echo.Context) error {
	snap, ok, errResp := h.ownedSession(c)
	if !ok {
		return errResp
	}
	return SuccessResponse(c, http.StatusOK, "Session retrieved", snap)
}

// ListSessions returns every registered session (admin only)
// GET /api/sessions
func (h *SessionHandler) ListSessions(c echo.Context) error {
	return SuccessResponse(c, http.StatusOK, "Sessions retrieved", h.manager.ListSessions())
}

// GetQR returns the current QR artifact while pairing is pending
// GET /api/sessions/:sessionId/qr
func (h *SessionHandler) GetQR(c echo.Context) error {
	snap, ok, errResp := h.ownedSession(c)
	if !ok {
		return errResp
	}

	if snap.QRCode == "" {
		return ErrorResponse(c, http.StatusNotFound, "No QR code available in state "+string(snap.State), "QR_UNAVAILABLE", "")
	}

	return SuccessResponse(c, http.StatusOK, "QR code retrieved", map[string]string{
		"qr":    snap.QRCode,
		"state": string(snap.State),
	})
}

// RequestPairingCode switches pairing to a typed code
// POST /api/sessions/:sessionId/pair
func (h *SessionHandler) RequestPairingCode(c echo.Context) error {
	snap, ok, errResp := h.ownedSession(c)
	if !ok {
		return errResp
	}

	var req PairRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "BAD_REQUEST", err.Error())
	}
	if req.PhoneNumber == "" {
		return ErrorResponse(c, http.StatusBadRequest, "phone_number is required", "MISSING_FIELDS", "")
	}

	code, err := h.manager.RequestPairingCode(c.Request().Context(), snap.ID, req.PhoneNumber)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrPairingUnavailable):
			return ErrorResponse(c, http.StatusConflict, "Session is past the pairing phase", "PAIRING_UNAVAILABLE", "")
		case errors.Is(err, session.ErrSocketUnavailable):
			return ErrorResponse(c, http.StatusServiceUnavailable, "Socket not ready yet, retry shortly", "SOCKET_UNAVAILABLE", "")
		default:
			return ErrorResponse(c, http.StatusInternalServerError, "Failed to request pairing code", "PAIRING_FAILED", err.Error())
		}
	}

	return SuccessResponse(c, http.StatusOK, "Pairing code issued", map[string]string{
		"code": code,
	})
}

// DestroySession tears the session down
// DELETE /api/sessions/:sessionId
func (h *SessionHandler) DestroySession(c echo.Context) error {
	snap, ok, errResp := h.ownedSession(c)
	if !ok {
		return errResp
	}

	h.manager.DestroySession(snap.ID)
	return SuccessResponse(c, http.StatusOK, "Session destroyed", nil)
}

// LogoutSession unlinks the device and erases its credentials
// POST /api/sessions/:sessionId/logout
func (h *SessionHandler) LogoutSession(c echo.Context) error {
	snap, ok, errResp := h.ownedSession(c)
	if !ok {
		return errResp
	}

	if err := h.manager.LogoutSession(c.Request().Context(), snap.ID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return ErrorResponse(c, http.StatusNotFound, "Session not found", "SESSION_NOT_FOUND", "")
		}
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to logout session", "SESSION_LOGOUT_FAILED", err.Error())
	}

	return SuccessResponse(c, http.StatusOK, "Session logged out and credentials erased", nil)
}
