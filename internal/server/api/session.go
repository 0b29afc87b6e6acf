package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ayusman/shotcoach/internal/session"
)

// CaptureController starts and cancels captures on the live camera.
type CaptureController interface {
	Status() session.Status
	StartCapture(userName string) error
	CancelCapture() error
}

// SessionHandler serves /api/session, /api/session/start and
// /api/session/cancel.
type SessionHandler struct {
	ctrl CaptureController
}

// NewSessionHandler creates a SessionHandler for ctrl.
func NewSessionHandler(ctrl CaptureController) *SessionHandler {
	return &SessionHandler{ctrl: ctrl}
}

type startCaptureRequest struct {
	UserName string `json:"userName"`
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/session"), "/")

	switch action {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.ctrl.Status())
	case "start":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.start(w, r)
	case "cancel":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := h.ctrl.CancelCapture(); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.ctrl.Status())
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *SessionHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startCaptureRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.ctrl.StartCapture(strings.TrimSpace(req.UserName)); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.ctrl.Status())
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrDeviceUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, session.ErrModelNotReady), errors.Is(err, session.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
