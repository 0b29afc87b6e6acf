package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/shotcoach/internal/detector"
)

// scriptedSource replays a list of poses, then repeats the last one.
type scriptedSource struct {
	mu    sync.Mutex
	poses []*detector.Pose
	err   error
	calls int
}

func (s *scriptedSource) Estimate(ctx context.Context) (*detector.Pose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.poses) == 0 {
		return nil, nil
	}
	p := s.poses[0]
	if len(s.poses) > 1 {
		s.poses = s.poses[1:]
	}
	return p, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func TestRunner_StepDrivesFullCapture(t *testing.T) {
	clock := t0
	rec := &recorder{}
	s := New(DefaultConfig(), nil)
	s.Preview()

	r := &Runner{
		Session: s,
		Source:  &scriptedSource{poses: []*detector.Pose{stance()}},
		Now:     func() time.Time { return clock },
		OnEvent: rec.add,
	}
	ctx := context.Background()

	if err := r.Step(ctx); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if _, err := s.Start("kobe", clock); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// 100ms frames through the countdown and the full window.
	for i := 0; i < 90; i++ {
		clock = clock.Add(100 * time.Millisecond)
		if err := r.Step(ctx); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}

	if s.State() != Completed {
		t.Fatalf("state = %v, want completed", s.State())
	}
	res := s.Result()
	if res == nil || res.Aggregate.FrameCount < 40 {
		t.Fatalf("result = %+v, expected roughly 50 frames", res)
	}

	var sawCountdown, sawFrame, sawCompleted bool
	for _, typ := range rec.types() {
		switch typ {
		case EventCountdown:
			sawCountdown = true
		case EventFrame:
			sawFrame = true
		case EventCompleted:
			sawCompleted = true
		}
	}
	if !sawCountdown || !sawFrame || !sawCompleted {
		t.Errorf("missing events in %v", rec.types())
	}
}

func TestRunner_SourceErrorIsFatal(t *testing.T) {
	rec := &recorder{}
	s := New(DefaultConfig(), nil)
	r := &Runner{
		Session:  s,
		Source:   &scriptedSource{err: errors.New("read frame: device busy")},
		Interval: time.Millisecond,
		OnEvent:  rec.add,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := r.Run(ctx)
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Run() error = %v, want ErrDeviceUnavailable", err)
	}
	if s.State() != Failed {
		t.Errorf("state = %v, want failed", s.State())
	}

	types := rec.types()
	if len(types) == 0 || types[len(types)-1] != EventFailed {
		t.Errorf("last event should be failed, got %v", types)
	}
}

func TestRunner_CancelStopsCapture(t *testing.T) {
	s := New(DefaultConfig(), nil)
	src := &scriptedSource{poses: []*detector.Pose{stance()}}
	r := &Runner{Session: s, Source: src, Interval: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !s.Status().ModelReady {
		if time.Now().After(deadline) {
			t.Fatal("runner never observed a frame")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := s.Start("kobe", time.Now()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if s.State() != Previewing {
		t.Errorf("state = %v, want previewing after cancel", s.State())
	}
}

// blockingSource returns one pose, then blocks every later call until ctx
// is done.
type blockingSource struct {
	once    sync.Once
	served  bool
	entered chan struct{}
}

func (b *blockingSource) Estimate(ctx context.Context) (*detector.Pose, error) {
	if !b.served {
		b.served = true
		return stance(), nil
	}
	b.once.Do(func() { close(b.entered) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunner_CancelDuringEstimate(t *testing.T) {
	s := New(DefaultConfig(), nil)
	src := &blockingSource{entered: make(chan struct{})}
	rec := &recorder{}
	r := &Runner{Session: s, Source: src, Interval: time.Millisecond, OnEvent: rec.add}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case <-src.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("source never blocked")
	}

	if _, err := s.Start("kobe", time.Now()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if s.State() != Previewing {
		t.Fatalf("state = %v, want previewing after cancel", s.State())
	}
	if st := s.Status(); st.FrameCount != 0 {
		t.Errorf("frame count = %d, want 0 after cancel", st.FrameCount)
	}
	if _, err := s.Preview(); err != nil {
		t.Errorf("Preview() after stopped loop error = %v", err)
	}
}

func TestPoseSourceFunc(t *testing.T) {
	want := stance()
	src := PoseSourceFunc(func(ctx context.Context) (*detector.Pose, error) { return want, nil })

	got, err := src.Estimate(context.Background())
	if err != nil || got != want {
		t.Errorf("Estimate() = %v, %v", got, err)
	}
}
