package analysis

import "github.com/ayusman/shotcoach/internal/detector"

// Rejection names the reason a frame was dropped. The zero value means the
// frame was accepted.
type Rejection int

const (
	Accepted Rejection = iota
	NoPose
	ArmsHidden
	FeetHidden
	NotInStance
	DegenerateElbow
	ElbowOutOfRange
	ZeroShoulderWidth
	FeetOutOfRange
	numRejections
)

// NumRejections is the number of distinct Rejection values.
const NumRejections = int(numRejections)

var rejectionNames = [numRejections]string{
	"accepted",
	"no_pose",
	"arms_hidden",
	"feet_hidden",
	"not_in_stance",
	"degenerate_elbow",
	"elbow_out_of_range",
	"zero_shoulder_width",
	"feet_out_of_range",
}

func (r Rejection) String() string {
	if r < 0 || r >= numRejections {
		return "unknown"
	}
	return rejectionNames[r]
}

// MarshalText implements encoding.TextMarshaler.
func (r Rejection) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Hint is a short user-facing suggestion for fixing the rejection.
func (r Rejection) Hint() string {
	switch r {
	case NoPose:
		return "No one was detected. Step into the camera view."
	case ArmsHidden:
		return "Your arms were not clearly visible. Face the camera and keep both arms in frame."
	case FeetHidden:
		return "Your feet were not visible. Step back so your whole body is in frame."
	case NotInStance:
		return "Raise your shooting elbow to shoulder height during the capture."
	case DegenerateElbow, ElbowOutOfRange:
		return "Your elbow angle could not be read. Turn slightly so both arms are visible."
	case ZeroShoulderWidth, FeetOutOfRange:
		return "Your stance could not be measured. Face the camera squarely."
	default:
		return ""
	}
}

// Phase selects which confidence floor the validator applies.
type Phase int

const (
	PhasePreview Phase = iota
	PhaseCapture
)

// Joint groups that must be visible.
var (
	ArmJoints  = []detector.JointID{detector.LeftShoulder, detector.RightShoulder, detector.LeftElbow, detector.RightElbow, detector.LeftWrist, detector.RightWrist}
	FeetJoints = []detector.JointID{detector.LeftAnkle, detector.RightAnkle}
)

// Validator gates frames on joint visibility and shooting posture.
type Validator struct {
	PreviewConfidence float64
	CaptureConfidence float64
	PostureTolerance  float64
}

// NewValidator builds a Validator from cfg.
func NewValidator(cfg Config) Validator {
	return Validator{
		PreviewConfidence: cfg.PreviewConfidence,
		CaptureConfidence: cfg.CaptureConfidence,
		PostureTolerance:  cfg.PostureTolerance,
	}
}

func (v Validator) threshold(phase Phase) float64 {
	if phase == PhasePreview {
		return v.PreviewConfidence
	}
	return v.CaptureConfidence
}

// GroupVisible reports whether every joint in group is present with a
// confidence strictly above the phase threshold.
func (v Validator) GroupVisible(f *Frame, group []detector.JointID, phase Phase) bool {
	floor := v.threshold(phase)
	for _, id := range group {
		kp, ok := f.Joint(id)
		if !ok || kp.Confidence <= floor {
			return false
		}
	}
	return true
}

// InStance reports whether at least one elbow is at or above its shoulder,
// allowing PostureTolerance of slack. Smaller Y is higher in the image.
func (v Validator) InStance(f *Frame) bool {
	return v.elbowRaised(f, detector.LeftShoulder, detector.LeftElbow) ||
		v.elbowRaised(f, detector.RightShoulder, detector.RightElbow)
}

func (v Validator) elbowRaised(f *Frame, shoulderID, elbowID detector.JointID) bool {
	shoulder, ok := f.Joint(shoulderID)
	if !ok {
		return false
	}
	elbow, ok := f.Joint(elbowID)
	if !ok {
		return false
	}
	return elbow.Y <= shoulder.Y+v.PostureTolerance
}

// Validate returns the first gate f fails, or Accepted.
func (v Validator) Validate(f *Frame, phase Phase) Rejection {
	if !v.GroupVisible(f, ArmJoints, phase) {
		return ArmsHidden
	}
	if !v.GroupVisible(f, FeetJoints, phase) {
		return FeetHidden
	}
	if !v.InStance(f) {
		return NotInStance
	}
	return Accepted
}

// PreviewStatus summarises a frame for the live positioning indicator.
type PreviewStatus struct {
	ArmsVisible bool `json:"armsVisible"`
	FeetVisible bool `json:"feetVisible"`
	InStance    bool `json:"inStance"`
	Ready       bool `json:"ready"`
}

// Preview evaluates f with the preview threshold.
func (v Validator) Preview(f *Frame) PreviewStatus {
	st := PreviewStatus{
		ArmsVisible: v.GroupVisible(f, ArmJoints, PhasePreview),
		FeetVisible: v.GroupVisible(f, FeetJoints, PhasePreview),
		InStance:    v.InStance(f),
	}
	st.Ready = st.ArmsVisible && st.FeetVisible && st.InStance
	return st
}
