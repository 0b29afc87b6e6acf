package analysis

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned when a session has too few accepted frames.
var ErrInsufficientData = errors.New("insufficient data")

// SessionAggregate is the summary of one completed capture.
type SessionAggregate struct {
	AverageElbowAngle   float64  `json:"averageElbowAngle"`
	AverageFeetDistance float64  `json:"averageFeetDistance"`
	Tips                []string `json:"tips"`
	FrameCount          int      `json:"frameCount"`
}

// Aggregate returns the arithmetic means of elbow angle and feet distance.
// frames must not be empty.
func Aggregate(frames []FrameMetric) (avgElbow, avgFeet float64) {
	var sumElbow, sumFeet float64
	for _, f := range frames {
		sumElbow += f.ElbowAngle
		sumFeet += f.FeetDistance
	}
	n := float64(len(frames))
	return sumElbow / n, sumFeet / n
}

// Summarize applies the minimum-sample gate and builds the aggregate with
// tips from engine.
func Summarize(frames []FrameMetric, minFrames int, engine *Engine) (SessionAggregate, error) {
	if len(frames) == 0 || len(frames) < minFrames {
		return SessionAggregate{}, fmt.Errorf("%w: %d of %d frames", ErrInsufficientData, len(frames), minFrames)
	}

	avgElbow, avgFeet := Aggregate(frames)

	return SessionAggregate{
		AverageElbowAngle:   avgElbow,
		AverageFeetDistance: avgFeet,
		Tips:                engine.Tips(avgElbow, avgFeet),
		FrameCount:          len(frames),
	}, nil
}
