package session

import (
	"context"
	"time"

	"github.com/ayusman/shotcoach/internal/detector"
)

// DefaultInterval is the frame period of a Runner (15 fps).
const DefaultInterval = time.Second / 15

// PoseSource yields at most one pose per call. A nil pose with a nil error
// means nobody was detected.
type PoseSource interface {
	Estimate(ctx context.Context) (*detector.Pose, error)
}

// PoseSourceFunc adapts a function to PoseSource.
type PoseSourceFunc func(ctx context.Context) (*detector.Pose, error)

// Estimate calls f.
func (f PoseSourceFunc) Estimate(ctx context.Context) (*detector.Pose, error) {
	return f(ctx)
}

// Runner drives a Session from a PoseSource, one frame per tick.
type Runner struct {
	Session  *Session
	Source   PoseSource
	Interval time.Duration
	Now      func() time.Time
	OnEvent  func(Event)
}

// Run processes frames until ctx is done or the source fails. A session still
// counting down or capturing when ctx ends is cancelled. A source failure
// moves the session to Failed and is returned wrapped in
// ErrDeviceUnavailable.
func (r *Runner) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	if r.Session.State() == Idle {
		if ev, err := r.Session.Preview(); err == nil {
			r.publish(ev)
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.cancelCapture()
			return ctx.Err()
		case <-ticker.C:
			if err := r.Step(ctx); err != nil {
				if ctx.Err() != nil {
					r.cancelCapture()
				}
				return err
			}
		}
	}
}

// cancelCapture abandons a countdown or capture left open by a stopped loop.
func (r *Runner) cancelCapture() {
	if ev, err := r.Session.Cancel(); err == nil {
		r.publish(ev)
	}
}

// Step runs one detect, observe, advance cycle.
func (r *Runner) Step(ctx context.Context) error {
	pose, err := r.Source.Estimate(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.publish(r.Session.Fail(err))
		return r.Session.Err()
	}

	now := r.now()
	for _, ev := range r.Session.Observe(pose, now) {
		r.publish(ev)
	}
	for _, ev := range r.Session.Advance(now) {
		r.publish(ev)
	}
	return nil
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) publish(ev Event) {
	if r.OnEvent == nil || ev.IsZero() {
		return
	}
	r.OnEvent(ev)
}
