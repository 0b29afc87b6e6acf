// Package analysis turns smoothed pose keypoints into shot metrics and
// coaching feedback.
package analysis

// Config holds every tunable threshold of the frame pipeline.
type Config struct {
	// Smoothing
	HistorySize int     // Per-joint history capacity
	Alpha       float64 // EMA factor (0-1, higher = more new data)

	// Validation
	PreviewConfidence float64 // Minimum joint confidence while previewing
	CaptureConfidence float64 // Minimum joint confidence while analyzing
	PostureTolerance  float64 // Elbow may sit this far below the shoulder (image units)

	// Plausibility
	Bounds Bounds

	// Aggregation
	MinFrames int // Accepted frames needed for a result
}

// DefaultConfig returns the thresholds used by the shipped app.
func DefaultConfig() Config {
	return Config{
		HistorySize: 5,
		Alpha:       0.3,

		PreviewConfidence: 0.3,
		CaptureConfidence: 0.4,
		PostureTolerance:  80,

		Bounds: DefaultBounds(),

		MinFrames: 10,
	}
}
