package detector

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// LoadRecording reads a pose recording: one pose service response per line,
// as written by pose_service.py. Each line becomes one frame's result.
func LoadRecording(r io.Reader, minScore float64) ([][]Pose, error) {
	var frames [][]Pose
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for n := 1; sc.Scan(); n++ {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		poses, err := parseServiceResponse(line, minScore)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		frames = append(frames, poses)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}

// LoadRecordingFile is LoadRecording for a file path.
func LoadRecordingFile(path string, minScore float64) ([][]Pose, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadRecording(f, minScore)
}

// ReplayDetector plays back a recording, one frame per Detect call, and
// starts over at the end. The frame content is ignored.
type ReplayDetector struct {
	mu     sync.Mutex
	frames [][]Pose
	next   int
}

// NewReplayDetector creates a ReplayDetector over frames.
func NewReplayDetector(frames [][]Pose) *ReplayDetector {
	return &ReplayDetector{frames: frames}
}

// Detect returns the next recorded result.
func (d *ReplayDetector) Detect(frame *gocv.Mat) ([]Pose, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.frames) == 0 {
		return nil, nil
	}
	poses := d.frames[d.next]
	d.next = (d.next + 1) % len(d.frames)
	return poses, nil
}

// Close is a no-op.
func (d *ReplayDetector) Close() error {
	return nil
}
