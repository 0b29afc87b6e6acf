package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ayusman/shotcoach/internal/session"
)

type fakeController struct {
	status    session.Status
	startErr  error
	cancelErr error
	started   []string
	cancelled int
}

func (f *fakeController) Status() session.Status { return f.status }

func (f *fakeController) StartCapture(user string) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, user)
	f.status.State = session.Countdown
	f.status.UserName = user
	return nil
}

func (f *fakeController) CancelCapture() error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled++
	f.status.State = session.Previewing
	return nil
}

func TestSessionHandler_Status(t *testing.T) {
	ctrl := &fakeController{status: session.Status{State: session.Previewing, ModelReady: true}}
	h := NewSessionHandler(ctrl)

	rr := do(t, h, http.MethodGet, "/api/session", nil)
	var got map[string]any
	decode(t, rr, &got)
	if got["state"] != "previewing" || got["modelReady"] != true {
		t.Errorf("status = %v", got)
	}
}

func TestSessionHandler_Start(t *testing.T) {
	ctrl := &fakeController{status: session.Status{State: session.Previewing, ModelReady: true}}
	h := NewSessionHandler(ctrl)

	rr := do(t, h, http.MethodPost, "/api/session/start", startCaptureRequest{UserName: " Kyrie "})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d (body %s)", rr.Code, rr.Body.String())
	}
	if len(ctrl.started) != 1 || ctrl.started[0] != "Kyrie" {
		t.Errorf("started = %v", ctrl.started)
	}

	// An empty body starts a guest capture.
	rr = do(t, h, http.MethodPost, "/api/session/start", nil)
	if rr.Code != http.StatusAccepted || ctrl.started[1] != "" {
		t.Errorf("empty body: status = %d, started = %v", rr.Code, ctrl.started)
	}
}

func TestSessionHandler_StartErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"device", fmt.Errorf("%w: camera 0", session.ErrDeviceUnavailable), http.StatusServiceUnavailable},
		{"model", session.ErrModelNotReady, http.StatusConflict},
		{"transition", fmt.Errorf("%w: start from analyzing", session.ErrInvalidTransition), http.StatusConflict},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSessionHandler(&fakeController{startErr: tt.err})
			rr := do(t, h, http.MethodPost, "/api/session/start", startCaptureRequest{UserName: "a"})
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestSessionHandler_Cancel(t *testing.T) {
	ctrl := &fakeController{status: session.Status{State: session.Analyzing}}
	h := NewSessionHandler(ctrl)

	rr := do(t, h, http.MethodPost, "/api/session/cancel", nil)
	if rr.Code != http.StatusOK || ctrl.cancelled != 1 {
		t.Errorf("status = %d, cancelled = %d", rr.Code, ctrl.cancelled)
	}

	ctrl.cancelErr = fmt.Errorf("%w: cancel from previewing", session.ErrInvalidTransition)
	if rr := do(t, h, http.MethodPost, "/api/session/cancel", nil); rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}

func TestSessionHandler_Routing(t *testing.T) {
	h := NewSessionHandler(&fakeController{})

	tests := []struct {
		method, path string
		wantStatus   int
	}{
		{http.MethodPost, "/api/session", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/session/start", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/session/cancel", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/session/other", http.StatusNotFound},
	}
	for _, tt := range tests {
		if rr := do(t, h, tt.method, tt.path, nil); rr.Code != tt.wantStatus {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rr.Code, tt.wantStatus)
		}
	}
}
