package analysis

import "github.com/ayusman/shotcoach/internal/detector"

// Frame is the smoothed keypoint set for one detection cycle.
type Frame struct {
	joints  [detector.NumJoints]detector.Keypoint
	present [detector.NumJoints]bool
}

// NewFrame builds an unsmoothed Frame from raw keypoints.
// Later duplicates of a joint replace earlier ones.
func NewFrame(kps []detector.Keypoint) Frame {
	var f Frame
	for _, kp := range kps {
		if !kp.Joint.Valid() {
			continue
		}
		f.joints[kp.Joint] = kp
		f.present[kp.Joint] = true
	}
	return f
}

// Joint returns the keypoint for id and whether the model reported it.
func (f *Frame) Joint(id detector.JointID) (detector.Keypoint, bool) {
	if !id.Valid() || !f.present[id] {
		return detector.Keypoint{}, false
	}
	return f.joints[id], true
}

// Keypoints returns the present keypoints in JointID order.
func (f *Frame) Keypoints() []detector.Keypoint {
	out := make([]detector.Keypoint, 0, detector.NumJoints)
	for i := range f.joints {
		if f.present[i] {
			out = append(out, f.joints[i])
		}
	}
	return out
}

// jointHistory is a fixed-capacity ring of smoothed samples for one joint.
type jointHistory struct {
	buf   []detector.Keypoint
	start int
	n     int
}

func (h *jointHistory) push(kp detector.Keypoint) {
	if len(h.buf) == 0 {
		return
	}
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = kp
		h.n++
		return
	}
	h.buf[h.start] = kp
	h.start = (h.start + 1) % len(h.buf)
}

func (h *jointHistory) last() (detector.Keypoint, bool) {
	if h.n == 0 {
		return detector.Keypoint{}, false
	}
	return h.buf[(h.start+h.n-1)%len(h.buf)], true
}

func (h *jointHistory) reset() {
	h.start = 0
	h.n = 0
}

// Smoother damps detector jitter with a per-joint exponential moving average.
// It is not safe for concurrent use; each session owns one.
type Smoother struct {
	alpha   float64
	history [detector.NumJoints]jointHistory
}

// NewSmoother creates a Smoother keeping size samples per joint.
func NewSmoother(size int, alpha float64) *Smoother {
	if size < 1 {
		size = 1
	}
	alpha = clamp(alpha, 0, 1)

	s := &Smoother{alpha: alpha}
	for i := range s.history {
		s.history[i].buf = make([]detector.Keypoint, size)
	}
	return s
}

// Smooth blends each raw keypoint with the previous smoothed sample of the
// same joint and records the result. A joint seen for the first time since
// the last Reset passes through unchanged.
func (s *Smoother) Smooth(kps []detector.Keypoint) Frame {
	raw := NewFrame(kps)
	var out Frame

	for i := range raw.joints {
		if !raw.present[i] {
			continue
		}
		cur := raw.joints[i]
		h := &s.history[i]

		if prev, ok := h.last(); ok {
			a := s.alpha
			cur.X = a*cur.X + (1-a)*prev.X
			cur.Y = a*cur.Y + (1-a)*prev.Y
			cur.Confidence = a*cur.Confidence + (1-a)*prev.Confidence
		}

		h.push(cur)
		out.joints[i] = cur
		out.present[i] = true
	}

	return out
}

// Len returns how many samples are held for a joint.
func (s *Smoother) Len(id detector.JointID) int {
	if !id.Valid() {
		return 0
	}
	return s.history[id].n
}

// Reset drops all history.
func (s *Smoother) Reset() {
	for i := range s.history {
		s.history[i].reset()
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
