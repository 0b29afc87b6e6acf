package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	poses []Pose
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetPoses sets the poses that will be returned by Detect.
func (m *MockDetector) SetPoses(poses []Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poses = poses
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured poses or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Pose, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.poses, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// ShootingStancePose returns a preset pose of a player in a set shot:
// both elbows raised near shoulder height, bent at roughly 107 degrees,
// feet a little wider than the shoulders. Coordinates are in a 480x360 frame.
func ShootingStancePose() Pose {
	return Pose{
		Score: 0.92,
		Keypoints: []Keypoint{
			{Joint: Nose, X: 240, Y: 80, Confidence: 0.95},
			{Joint: LeftEye, X: 232, Y: 74, Confidence: 0.93},
			{Joint: RightEye, X: 248, Y: 74, Confidence: 0.93},
			{Joint: LeftEar, X: 222, Y: 78, Confidence: 0.85},
			{Joint: RightEar, X: 258, Y: 78, Confidence: 0.85},
			{Joint: LeftShoulder, X: 200, Y: 120, Confidence: 0.9},
			{Joint: RightShoulder, X: 280, Y: 120, Confidence: 0.9},
			{Joint: LeftElbow, X: 170, Y: 115, Confidence: 0.88},
			{Joint: RightElbow, X: 310, Y: 115, Confidence: 0.88},
			{Joint: LeftWrist, X: 165, Y: 75, Confidence: 0.86},
			{Joint: RightWrist, X: 315, Y: 75, Confidence: 0.86},
			{Joint: LeftHip, X: 210, Y: 220, Confidence: 0.9},
			{Joint: RightHip, X: 270, Y: 220, Confidence: 0.9},
			{Joint: LeftKnee, X: 205, Y: 280, Confidence: 0.87},
			{Joint: RightKnee, X: 280, Y: 280, Confidence: 0.87},
			{Joint: LeftAnkle, X: 200, Y: 340, Confidence: 0.85},
			{Joint: RightAnkle, X: 290, Y: 340, Confidence: 0.85},
		},
	}
}

// ArmsDownPose returns a preset pose of a player standing with both arms
// hanging below the shoulders, which never passes the stance check.
func ArmsDownPose() Pose {
	pose := ShootingStancePose()
	for i := range pose.Keypoints {
		switch pose.Keypoints[i].Joint {
		case LeftElbow:
			pose.Keypoints[i].X, pose.Keypoints[i].Y = 190, 210
		case RightElbow:
			pose.Keypoints[i].X, pose.Keypoints[i].Y = 290, 210
		case LeftWrist:
			pose.Keypoints[i].X, pose.Keypoints[i].Y = 192, 290
		case RightWrist:
			pose.Keypoints[i].X, pose.Keypoints[i].Y = 288, 290
		}
	}
	return pose
}

// WithConfidence returns a copy of p with every keypoint's confidence set to c.
func WithConfidence(p Pose, c float64) Pose {
	out := Pose{Score: p.Score, Keypoints: make([]Keypoint, len(p.Keypoints))}
	copy(out.Keypoints, p.Keypoints)
	for i := range out.Keypoints {
		out.Keypoints[i].Confidence = c
	}
	return out
}
