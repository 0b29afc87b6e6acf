// Package app wires the camera, the pose detector and the capture session
// together and routes finished captures to the store and plugins.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/shotcoach/internal/analysis"
	"github.com/ayusman/shotcoach/internal/capture"
	"github.com/ayusman/shotcoach/internal/detector"
	"github.com/ayusman/shotcoach/internal/log"
	"github.com/ayusman/shotcoach/internal/plugin"
	"github.com/ayusman/shotcoach/internal/session"
	"github.com/ayusman/shotcoach/internal/store"
)

// DefaultActivityThreshold is the percentage of changed pixels that counts
// as movement in preview.
const DefaultActivityThreshold = 1.0

// Config holds configuration options for the application.
type Config struct {
	Store     *store.Store
	PluginDir string
	CameraID  int

	Session  session.Config
	Detector detector.Config

	// ActivityThresh is the percentage of changed pixels below which
	// preview frames reuse the previous pose instead of running detection.
	ActivityThresh float64
	// Interval is the frame period. Zero means session.DefaultInterval.
	Interval time.Duration
}

// App runs the capture loop and owns the single Session.
type App struct {
	config   Config
	camera   capture.Camera
	activity *capture.ActivityMeter
	detector detector.Detector
	session  *session.Session
	engines  *analysis.EngineRef
	plugins  *plugin.Dispatcher

	mu      sync.RWMutex
	subs    []func(session.Event)
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	frameMu  sync.Mutex
	frame    []byte
	frameSeq uint64
	lastPose *detector.Pose

	pluginWG sync.WaitGroup

	now func() time.Time
}

// New creates an App. The pose service detector is used when its helper
// script can be found; otherwise a detector that never sees anyone is
// installed and captures cannot start.
func New(config Config) *App {
	if config.Session.Duration == 0 {
		config.Session = session.DefaultConfig()
	}
	if config.ActivityThresh <= 0 {
		config.ActivityThresh = DefaultActivityThreshold
	}
	if config.Detector.Model == "" {
		config.Detector = detector.DefaultConfig()
	}

	engines := analysis.NewEngineRef(nil)
	a := &App{
		config:   config,
		camera:   capture.NewCamera(config.CameraID),
		activity: capture.NewActivityMeter(config.ActivityThresh),
		session:  session.New(config.Session, engines.Load()),
		engines:  engines,
		plugins:  plugin.NewDispatcher(config.PluginDir),
		now:      time.Now,
	}

	if ps, err := detector.NewPoseServiceDetector(config.Detector); err == nil {
		a.detector = ps
		log.Info("using pose service", "model", config.Detector.Model)
	} else {
		log.Warn("pose service not available, captures disabled", "error", err)
		a.detector = detector.NewMockDetector()
	}

	return a
}

// SetCamera replaces the camera. It must be called before Open.
func (a *App) SetCamera(c capture.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = c
}

// SetDetector replaces the pose detector.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// Session returns the capture session.
func (a *App) Session() *session.Session {
	return a.session
}

// Engines returns the current feedback engine reference.
func (a *App) Engines() *analysis.EngineRef {
	return a.engines
}

// SetEngine swaps the feedback engine used for later captures.
func (a *App) SetEngine(e *analysis.Engine) {
	a.engines.Store(e)
	a.session.SetEngine(e)
}

// LoadSettings loads the saved feedback bands from the store.
func (a *App) LoadSettings() error {
	if a.config.Store == nil {
		return nil
	}

	cfg, err := a.config.Store.Settings().FeedbackConfig()
	if err != nil {
		return fmt.Errorf("load feedback settings: %w", err)
	}
	engine, err := analysis.NewEngine(cfg)
	if err != nil {
		return fmt.Errorf("load feedback settings: %w", err)
	}
	a.SetEngine(engine)
	return nil
}

// DiscoverPlugins scans the plugin directory.
func (a *App) DiscoverPlugins() error {
	return a.plugins.Manager.Discover()
}

// Plugins returns the plugin dispatcher.
func (a *App) Plugins() *plugin.Dispatcher {
	return a.plugins
}

// Subscribe registers fn to receive every session event. fn runs on the
// capture goroutine and must not block.
func (a *App) Subscribe(fn func(session.Event)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subs = append(a.subs, fn)
}

// Open opens the camera and enters preview. A camera failure moves the
// session to Failed and is returned wrapped in session.ErrDeviceUnavailable.
func (a *App) Open() error {
	a.mu.RLock()
	cam := a.camera
	a.mu.RUnlock()

	if err := cam.Open(); err != nil {
		a.publish(a.session.Fail(fmt.Errorf("open camera %d: %w", a.config.CameraID, err)))
		return a.session.Err()
	}
	cam.SetFPS(capture.DefaultFPS)
	a.activity.Reset()

	ev, err := a.session.Preview()
	if err != nil {
		return err
	}
	a.publish(ev)
	return nil
}

// Start opens the camera and runs the capture loop in the background until
// ctx is done or Stop is called. Calling Start while running is a no-op.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = true
	a.mu.Unlock()

	if err := a.Open(); err != nil {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	a.mu.Lock()
	a.cancel = cancel
	a.done = done
	a.mu.Unlock()

	go func() {
		defer close(done)
		err := a.runner().Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("capture loop stopped", "error", err)
		}
		a.closeCamera()

		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	log.Info("capture loop started", "camera", a.config.CameraID)
	return nil
}

// Stop halts the capture loop, waits for running plugins and releases the
// camera and detector.
func (a *App) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	a.publish(a.session.Stop())
	a.pluginWG.Wait()

	a.closeCamera()
	a.activity.Close()

	a.mu.RLock()
	d := a.detector
	a.mu.RUnlock()
	if d != nil {
		if err := d.Close(); err != nil {
			log.Warn("close detector", "error", err)
		}
	}
	log.Info("capture loop stopped")
}

func (a *App) closeCamera() {
	a.mu.RLock()
	cam := a.camera
	a.mu.RUnlock()
	if err := cam.Close(); err != nil {
		log.Warn("close camera", "error", err)
	}
}

func (a *App) runner() *session.Runner {
	return &session.Runner{
		Session:  a.session,
		Source:   session.PoseSourceFunc(a.Estimate),
		Interval: a.config.Interval,
		Now:      a.now,
		OnEvent:  a.handleEvent,
	}
}

// Status returns a snapshot of the session.
func (a *App) Status() session.Status {
	return a.session.Status()
}

// StartCapture begins the countdown for userName. An empty name captures
// as a guest.
func (a *App) StartCapture(userName string) error {
	if a.session.State() == session.Failed {
		return a.session.Err()
	}
	ev, err := a.session.Start(userName, a.now())
	if err != nil {
		return err
	}
	log.Info("capture requested", "user", userName)
	a.publish(ev)
	return nil
}

// CancelCapture abandons the running countdown or capture.
func (a *App) CancelCapture() error {
	ev, err := a.session.Cancel()
	if err != nil {
		return err
	}
	a.publish(ev)
	return nil
}

// handleEvent persists completed captures and fans the event out.
func (a *App) handleEvent(ev session.Event) {
	if ev.Type == session.EventCompleted && ev.Result != nil {
		a.record(ev.Result)
	}
	a.publish(ev)
}

func (a *App) record(res *session.Result) {
	if a.config.Store == nil || res.UserName == "" {
		log.Info("guest capture finished", "frames", res.Aggregate.FrameCount)
		return
	}

	saved, err := a.config.Store.Record(res.UserName, res.Aggregate, res.Frames)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Info("capture by unregistered user not saved", "user", res.UserName)
	case err != nil:
		log.Error("save capture", "user", res.UserName, "error", err)
	default:
		log.Info("analysis saved", "id", saved.ID, "user", saved.UserName, "frames", saved.FrameCount)
		a.PublishAnalysis(saved)
	}
}

// PublishAnalysis sends a saved analysis to subscribed plugins in the
// background.
func (a *App) PublishAnalysis(an *store.Analysis) {
	if len(a.plugins.Manager.Subscribers(plugin.EventAnalysisCompleted)) == 0 {
		return
	}

	a.pluginWG.Add(1)
	go func() {
		defer a.pluginWG.Done()
		a.plugins.Publish(context.Background(), plugin.EventAnalysisCompleted, an)
	}()
}

// WaitPlugins blocks until background plugin runs have finished.
func (a *App) WaitPlugins() {
	a.pluginWG.Wait()
}

func (a *App) publish(ev session.Event) {
	if ev.IsZero() {
		return
	}
	a.mu.RLock()
	subs := a.subs
	a.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}
