package server

import (
	"fmt"
	"net/http"
	"time"
)

// streamInterval is the MJPEG poll period (~15 FPS).
const streamInterval = 66 * time.Millisecond

// FrameSource provides the most recent annotated preview frame.
type FrameSource interface {
	// LatestJPEG returns the newest encoded frame and a sequence number
	// that changes whenever the frame does. It returns nil before the
	// first frame.
	LatestJPEG() ([]byte, uint64)
}

// StreamHandler serves the preview as MJPEG.
type StreamHandler struct {
	frames FrameSource
}

// NewStreamHandler creates a StreamHandler reading from frames.
func NewStreamHandler(frames FrameSource) *StreamHandler {
	return &StreamHandler{frames: frames}
}

// ServeHTTP streams each new frame until the client disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var last uint64
	for {
		if buf, seq := h.frames.LatestJPEG(); buf != nil && seq != last {
			last = seq
			if err := writePart(w, buf); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writePart(w http.ResponseWriter, buf []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(buf)); err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\r\n")
	return err
}
