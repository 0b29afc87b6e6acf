package analysis

import (
	"github.com/ayusman/shotcoach/internal/detector"
)

// FrameMetric holds the two measurements taken from one accepted frame.
type FrameMetric struct {
	FrameIndex   int     `json:"frameIndex"`
	ElbowAngle   float64 `json:"elbowAngle"`
	FeetDistance float64 `json:"feetDistance"`
}

// Bounds are the physiologically plausible ranges for a FrameMetric.
// The elbow range is closed; the feet range is open.
type Bounds struct {
	MinElbow float64 `json:"minElbow"`
	MaxElbow float64 `json:"maxElbow"`
	MinFeet  float64 `json:"minFeet"`
	MaxFeet  float64 `json:"maxFeet"`
}

// DefaultBounds returns [30,180] degrees and (0.3,4.0) shoulder widths.
func DefaultBounds() Bounds {
	return Bounds{
		MinElbow: 30,
		MaxElbow: 180,
		MinFeet:  0.3,
		MaxFeet:  4.0,
	}
}

// ElbowOK reports whether deg lies in [MinElbow, MaxElbow].
func (b Bounds) ElbowOK(deg float64) bool {
	return deg >= b.MinElbow && deg <= b.MaxElbow
}

// FeetOK reports whether d lies in (MinFeet, MaxFeet).
func (b Bounds) FeetOK(d float64) bool {
	return d > b.MinFeet && d < b.MaxFeet
}

// Check re-validates an already extracted metric, for example one submitted
// by a client.
func (b Bounds) Check(m FrameMetric) Rejection {
	if !b.ElbowOK(m.ElbowAngle) {
		return ElbowOutOfRange
	}
	if !b.FeetOK(m.FeetDistance) {
		return FeetOutOfRange
	}
	return Accepted
}

// Extractor computes FrameMetrics from validated frames.
type Extractor struct {
	Bounds Bounds
}

// ElbowAngle returns the angle at the elbow for one arm.
func ElbowAngle(f *Frame, shoulderID, elbowID, wristID detector.JointID) (float64, bool) {
	shoulder, ok1 := f.Joint(shoulderID)
	elbow, ok2 := f.Joint(elbowID)
	wrist, ok3 := f.Joint(wristID)
	if !ok1 || !ok2 || !ok3 {
		return 0, false
	}
	return AngleBetween(PointOf(shoulder), PointOf(elbow), PointOf(wrist))
}

// Extract measures f. index is the position the metric will take in the
// session sequence.
func (e Extractor) Extract(f *Frame, index int) (FrameMetric, Rejection) {
	left, okL := ElbowAngle(f, detector.LeftShoulder, detector.LeftElbow, detector.LeftWrist)
	right, okR := ElbowAngle(f, detector.RightShoulder, detector.RightElbow, detector.RightWrist)
	if !okL || !okR {
		return FrameMetric{}, DegenerateElbow
	}
	if !e.Bounds.ElbowOK(left) || !e.Bounds.ElbowOK(right) {
		return FrameMetric{}, ElbowOutOfRange
	}

	ls, _ := f.Joint(detector.LeftShoulder)
	rs, _ := f.Joint(detector.RightShoulder)
	la, okLA := f.Joint(detector.LeftAnkle)
	ra, okRA := f.Joint(detector.RightAnkle)
	if !okLA || !okRA {
		return FrameMetric{}, FeetHidden
	}

	shoulderWidth := Distance(PointOf(ls), PointOf(rs))
	if shoulderWidth == 0 {
		return FrameMetric{}, ZeroShoulderWidth
	}

	feet := Distance(PointOf(la), PointOf(ra)) / shoulderWidth
	if !e.Bounds.FeetOK(feet) {
		return FrameMetric{}, FeetOutOfRange
	}

	return FrameMetric{
		FrameIndex:   index,
		ElbowAngle:   (left + right) / 2,
		FeetDistance: feet,
	}, Accepted
}
