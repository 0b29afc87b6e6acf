// Package detector provides body pose detection interfaces and types.
package detector

import (
	"fmt"
)

// JointID identifies one skeletal landmark.
// Indices follow the COCO / MoveNet 17-keypoint convention.
type JointID int

// Body landmarks.
const (
	Nose JointID = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	NumJoints = 17
)

var jointNames = [NumJoints]string{
	"nose",
	"left_eye",
	"right_eye",
	"left_ear",
	"right_ear",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
}

// String returns the snake_case landmark name used on the wire.
func (j JointID) String() string {
	if !j.Valid() {
		return fmt.Sprintf("joint(%d)", int(j))
	}
	return jointNames[j]
}

// Valid reports whether j names a known landmark.
func (j JointID) Valid() bool {
	return j >= 0 && j < NumJoints
}

// ParseJointID looks up a landmark by its wire name.
func ParseJointID(name string) (JointID, bool) {
	for i, n := range jointNames {
		if n == name {
			return JointID(i), true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (j JointID) MarshalText() ([]byte, error) {
	if !j.Valid() {
		return nil, fmt.Errorf("invalid joint id %d", int(j))
	}
	return []byte(jointNames[j]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (j *JointID) UnmarshalText(text []byte) error {
	id, ok := ParseJointID(string(text))
	if !ok {
		return fmt.Errorf("unknown joint %q", string(text))
	}
	*j = id
	return nil
}

// Keypoint is one scored 2-D landmark estimate in image coordinates.
// Y grows downward.
type Keypoint struct {
	Joint      JointID `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"score"`
}

// Pose is a single-person estimate for one frame.
// Keypoints may omit joints the model could not place.
type Pose struct {
	Keypoints []Keypoint `json:"keypoints"`
	Score     float64    `json:"score"`
}

// Find returns the keypoint for the given joint, if present.
func (p *Pose) Find(id JointID) (Keypoint, bool) {
	if p == nil {
		return Keypoint{}, false
	}
	for _, kp := range p.Keypoints {
		if kp.Joint == id {
			return kp, true
		}
	}
	return Keypoint{}, false
}
