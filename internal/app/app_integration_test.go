package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/shotcoach/internal/capture"
	"github.com/ayusman/shotcoach/internal/detector"
	"github.com/ayusman/shotcoach/internal/session"
	"github.com/ayusman/shotcoach/internal/store"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type eventLog struct {
	mu     sync.Mutex
	events []session.Event
}

func (l *eventLog) add(ev session.Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) count(typ session.EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// newTestApp builds an App on a looping blank mock camera and a mock
// detector that always sees the given pose.
func newTestApp(t *testing.T, s *store.Store, pluginDir string, pose detector.Pose) (*App, *capture.MockCamera, *detector.MockDetector, *clock, *eventLog) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	a := New(Config{Store: s, PluginDir: pluginDir, Session: session.DefaultConfig()})
	cam := capture.NewMockCamera(nil, true)
	det := detector.NewMockDetector()
	det.SetPoses([]detector.Pose{pose})
	a.SetCamera(cam)
	a.SetDetector(det)

	clk := &clock{t: time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)}
	a.now = clk.Now

	events := &eventLog{}
	a.Subscribe(events.add)
	t.Cleanup(a.Stop)
	return a, cam, det, clk, events
}

// runUntil steps the capture loop 100ms at a time until the session reaches
// want or the step budget runs out.
func runUntil(t *testing.T, a *App, clk *clock, want session.State) {
	t.Helper()
	r := a.runner()
	for i := 0; i < 200; i++ {
		if err := r.Step(context.Background()); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
		if a.Status().State == want {
			return
		}
		clk.Add(100 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", a.Status().State, want)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestApp_CaptureSavesForRegisteredUser(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Users().Create("Jordan"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	a, _, det, clk, events := newTestApp(t, s, t.TempDir(), detector.ShootingStancePose())
	if err := a.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	// Preview: the still scene is only detected once.
	r := a.runner()
	for i := 0; i < 5; i++ {
		if err := r.Step(context.Background()); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
		clk.Add(100 * time.Millisecond)
	}
	if det.Calls() != 1 {
		t.Errorf("detector calls in still preview = %d, want 1", det.Calls())
	}
	st := a.Status()
	if !st.ModelReady || !st.Preview.Ready {
		t.Fatalf("preview status = %+v, want ready", st)
	}
	if buf, seq := a.LatestJPEG(); len(buf) == 0 || seq != 5 {
		t.Errorf("LatestJPEG() = %d bytes, seq %d", len(buf), seq)
	}

	if err := a.StartCapture("jordan"); err != nil {
		t.Fatalf("StartCapture() error = %v", err)
	}
	runUntil(t, a, clk, session.Completed)

	if det.Calls() < 50 {
		t.Errorf("detector calls = %d, want every capture frame detected", det.Calls())
	}
	if events.count(session.EventCompleted) != 1 {
		t.Errorf("completed events = %d, want 1", events.count(session.EventCompleted))
	}

	u, _ := s.Users().GetByName("jordan")
	list, err := s.Analyses().ListByUser(u.ID, 0)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("saved analyses = %d, want 1", len(list))
	}
	res := a.Status().Result
	if res == nil || list[0].FrameCount != res.Aggregate.FrameCount {
		t.Errorf("saved %+v, result %+v", list[0], res)
	}
}

func TestApp_GuestCaptureNotSaved(t *testing.T) {
	s := newTestStore(t)
	a, _, _, clk, _ := newTestApp(t, s, t.TempDir(), detector.ShootingStancePose())
	if err := a.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	runUntil(t, a, clk, session.Previewing)

	if err := a.StartCapture("walk-on"); err != nil {
		t.Fatalf("StartCapture() error = %v", err)
	}
	runUntil(t, a, clk, session.Completed)

	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM analyses`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("analyses = %d, want 0 for a guest", n)
	}
}

func TestApp_InsufficientDataReturnsToPreview(t *testing.T) {
	a, _, _, clk, events := newTestApp(t, nil, t.TempDir(), detector.ArmsDownPose())
	if err := a.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	runUntil(t, a, clk, session.Previewing)

	if err := a.StartCapture(""); err != nil {
		t.Fatalf("StartCapture() error = %v", err)
	}
	runUntil(t, a, clk, session.InsufficientData)
	if events.count(session.EventInsufficient) != 1 {
		t.Errorf("insufficient events = %d", events.count(session.EventInsufficient))
	}
	if msg := a.Status().Message; msg == "" {
		t.Error("insufficient data should carry a diagnostic message")
	}
	runUntil(t, a, clk, session.Previewing)
}

func TestApp_CameraFailures(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		a, cam, _, _, events := newTestApp(t, nil, "", detector.ShootingStancePose())
		cam.FailOpen(errors.New("no device"))

		err := a.Open()
		if !errors.Is(err, session.ErrDeviceUnavailable) {
			t.Fatalf("Open() error = %v, want ErrDeviceUnavailable", err)
		}
		if a.Status().State != session.Failed || events.count(session.EventFailed) != 1 {
			t.Errorf("status = %+v", a.Status())
		}
		if err := a.StartCapture("x"); !errors.Is(err, session.ErrDeviceUnavailable) {
			t.Errorf("StartCapture() error = %v, want ErrDeviceUnavailable", err)
		}
	})

	t.Run("read", func(t *testing.T) {
		a, cam, _, _, _ := newTestApp(t, nil, "", detector.ShootingStancePose())
		if err := a.Open(); err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		cam.FailRead(errors.New("unplugged"))

		err := a.runner().Step(context.Background())
		if !errors.Is(err, session.ErrDeviceUnavailable) {
			t.Fatalf("Step() error = %v, want ErrDeviceUnavailable", err)
		}
		if a.Status().State != session.Failed {
			t.Errorf("state = %s, want failed", a.Status().State)
		}
	})

	t.Run("detector", func(t *testing.T) {
		a, _, det, _, _ := newTestApp(t, nil, "", detector.ShootingStancePose())
		if err := a.Open(); err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		det.SetError(errors.New("service crashed"))

		if err := a.runner().Step(context.Background()); !errors.Is(err, session.ErrDeviceUnavailable) {
			t.Fatalf("Step() error = %v, want ErrDeviceUnavailable", err)
		}
	})
}

func TestApp_StartAndStop(t *testing.T) {
	a, _, det, _, events := newTestApp(t, nil, "", detector.ShootingStancePose())
	a.now = time.Now
	a.config.Interval = 10 * time.Millisecond

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for det.Calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if det.Calls() == 0 {
		t.Fatal("capture loop never ran the detector")
	}

	a.Stop()
	if a.Status().State != session.Idle {
		t.Errorf("state after Stop = %s, want idle", a.Status().State)
	}
	if events.count(session.EventState) == 0 {
		t.Error("expected state events")
	}
}

func TestApp_PublishesSavedAnalysesToPlugins(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping shell plugin test on Windows")
	}

	root := t.TempDir()
	out := filepath.Join(root, "seen.json")
	dir := filepath.Join(root, "recorder")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "plugin.json"),
		[]byte(`{"name":"recorder","executable":"run.sh","events":["analysis.completed"]}`), 0644)
	os.WriteFile(filepath.Join(dir, "run.sh"),
		[]byte("#!/bin/sh\ncat > \""+out+"\"\necho '{\"success\":true}'\n"), 0755)

	s := newTestStore(t)
	s.Users().Create("Bird")

	a, _, _, clk, _ := newTestApp(t, s, root, detector.ShootingStancePose())
	if err := a.DiscoverPlugins(); err != nil {
		t.Fatalf("DiscoverPlugins() error = %v", err)
	}
	if err := a.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	runUntil(t, a, clk, session.Previewing)
	if err := a.StartCapture("Bird"); err != nil {
		t.Fatalf("StartCapture() error = %v", err)
	}
	runUntil(t, a, clk, session.Completed)
	a.WaitPlugins()

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("plugin did not run: %v", err)
	}
	if len(data) == 0 {
		t.Error("plugin received no input")
	}
}
