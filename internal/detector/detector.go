package detector

import "gocv.io/x/gocv"

// Detector defines the interface for pose estimation implementations.
type Detector interface {
	// Detect analyzes a video frame and returns at most one pose.
	// Returns an empty slice if no person is detected.
	Detect(frame *gocv.Mat) ([]Pose, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for pose detection.
type Config struct {
	// Model selects the pose model served by the helper process
	// ("movenet_lightning", "movenet_thunder" or "mediapipe").
	Model string

	// MinPoseScore drops whole-pose estimates below this score (0.0-1.0).
	MinPoseScore float64

	// IdleTimeout shuts the helper process down after this long without use.
	IdleTimeoutSec int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Model:          "movenet_lightning",
		MinPoseScore:   0.2,
		IdleTimeoutSec: 30,
	}
}
