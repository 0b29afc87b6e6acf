package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

const (
	activityBlur      = 21 // Gaussian kernel size
	activityPixelDiff = 25 // Per-pixel difference that counts as changed
)

// ActivityMeter measures how much of the scene changed since the previous
// frame. The app uses it while previewing to skip pose detection when the
// player is standing still.
type ActivityMeter struct {
	mu        sync.Mutex
	threshold float64 // percent of pixels
	prev      gocv.Mat
	primed    bool
}

// NewActivityMeter returns a meter that reports movement when more than
// threshold percent of pixels change.
func NewActivityMeter(threshold float64) *ActivityMeter {
	if threshold <= 0 {
		threshold = 1.0
	}
	return &ActivityMeter{threshold: threshold, prev: gocv.NewMat()}
}

// Measure compares frame with the previous one. The first frame after a
// Reset always counts as movement.
func (m *ActivityMeter) Measure(frame *gocv.Mat) (moved bool, percent float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(activityBlur, activityBlur), 0, 0, gocv.BorderDefault)

	if !m.primed {
		blurred.CopyTo(&m.prev)
		m.primed = true
		return true, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prev, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, activityPixelDiff, 255, gocv.ThresholdBinary)

	total := mask.Rows() * mask.Cols()
	percent = float64(gocv.CountNonZero(mask)) / float64(total) * 100
	blurred.CopyTo(&m.prev)

	return percent > m.threshold, percent
}

// Reset forgets the reference frame.
func (m *ActivityMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.primed = false
}

// Close releases the reference frame.
func (m *ActivityMeter) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prev.Close()
	m.prev = gocv.NewMat()
	m.primed = false
}
