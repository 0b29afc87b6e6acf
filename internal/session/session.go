// Package session implements the capture session state machine that turns a
// stream of poses into one shot analysis.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/shotcoach/internal/analysis"
	"github.com/ayusman/shotcoach/internal/detector"
	"github.com/ayusman/shotcoach/internal/log"
)

// State is a capture session state.
type State int

const (
	Idle State = iota
	Previewing
	Countdown
	Analyzing
	Completed
	InsufficientData
	Failed
)

var stateNames = [...]string{
	"idle",
	"previewing",
	"countdown",
	"analyzing",
	"completed",
	"insufficient_data",
	"failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", string(text))
}

// Session errors.
var (
	ErrModelNotReady     = errors.New("pose model not ready")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrDeviceUnavailable = errors.New("capture device unavailable")
)

// Config controls session timing and the frame pipeline thresholds.
type Config struct {
	Analysis analysis.Config

	CountdownSteps int           // Countdown ticks before analysis starts
	CountdownTick  time.Duration // Length of one countdown tick
	Duration       time.Duration // Capture window length
}

// DefaultConfig returns a 3 second countdown and a 5 second window.
func DefaultConfig() Config {
	return Config{
		Analysis:       analysis.DefaultConfig(),
		CountdownSteps: 3,
		CountdownTick:  time.Second,
		Duration:       5 * time.Second,
	}
}

// Result is a completed capture.
type Result struct {
	UserName  string                    `json:"userName"`
	Aggregate analysis.SessionAggregate `json:"aggregate"`
	Frames    []analysis.FrameMetric    `json:"frames"`
	StartedAt time.Time                 `json:"startedAt"`
	EndedAt   time.Time                 `json:"endedAt"`
}

// Status is a point-in-time snapshot of a Session.
type Status struct {
	State      State                  `json:"state"`
	ModelReady bool                   `json:"modelReady"`
	UserName   string                 `json:"userName,omitempty"`
	Countdown  int                    `json:"countdown,omitempty"`
	FrameCount int                    `json:"frameCount"`
	Rejections map[string]int         `json:"rejections,omitempty"`
	Preview    analysis.PreviewStatus `json:"preview"`
	Message    string                 `json:"message,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Result     *Result                `json:"result,omitempty"`
}

// Session is one camera's capture state machine. All methods are safe for
// concurrent use; the smoothing history is private to the session.
type Session struct {
	mu sync.Mutex

	cfg       Config
	engine    *analysis.Engine
	smoother  *analysis.Smoother
	validator analysis.Validator
	extractor analysis.Extractor

	state      State
	modelReady bool
	user       string

	countdownStart time.Time
	countdownDone  int

	windowStart time.Time
	frames      []analysis.FrameMetric
	rejections  [analysis.NumRejections]int
	preview     analysis.PreviewStatus

	result  *Result
	message string
	err     error
}

// New creates an idle Session. A nil engine uses the default feedback bands.
func New(cfg Config, engine *analysis.Engine) *Session {
	if engine == nil {
		engine = analysis.DefaultEngine()
	}
	return &Session{
		cfg:       cfg,
		engine:    engine,
		smoother:  analysis.NewSmoother(cfg.Analysis.HistorySize, cfg.Analysis.Alpha),
		validator: analysis.NewValidator(cfg.Analysis),
		extractor: analysis.Extractor{Bounds: cfg.Analysis.Bounds},
	}
}

// SetEngine replaces the feedback engine used for later results.
func (s *Session) SetEngine(e *analysis.Engine) {
	if e == nil {
		return
	}
	s.mu.Lock()
	s.engine = e
	s.mu.Unlock()
}

// SetModelReady records whether the pose model has produced a result.
func (s *Session) SetModelReady(ready bool) {
	s.mu.Lock()
	s.modelReady = ready
	s.mu.Unlock()
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the device error that moved the session to Failed, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Result returns the most recent completed capture, or nil.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:      s.state,
		ModelReady: s.modelReady,
		UserName:   s.user,
		FrameCount: len(s.frames),
		Preview:    s.preview,
		Message:    s.message,
		Result:     s.result,
	}
	if s.state == Countdown {
		st.Countdown = s.cfg.CountdownSteps - s.countdownDone
	}
	if s.err != nil {
		st.Error = s.err.Error()
	}
	for r, n := range s.rejections {
		if n == 0 {
			continue
		}
		if st.Rejections == nil {
			st.Rejections = make(map[string]int)
		}
		st.Rejections[analysis.Rejection(r).String()] = n
	}
	return st
}

// Preview moves the session into Previewing. It is a no-op while already
// previewing and refused during a countdown or capture.
func (s *Session) Preview() (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Previewing:
		return Event{}, nil
	case Countdown, Analyzing:
		return Event{}, fmt.Errorf("%w: preview from %s", ErrInvalidTransition, s.state)
	}

	s.err = nil
	s.message = ""
	s.resetCapture()
	return s.enter(Previewing, time.Time{}), nil
}

// Start begins the countdown for user. It is allowed from Previewing and
// Completed once the model is ready.
func (s *Session) Start(user string, now time.Time) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Previewing && s.state != Completed {
		return Event{}, fmt.Errorf("%w: start from %s", ErrInvalidTransition, s.state)
	}
	if !s.modelReady {
		return Event{}, ErrModelNotReady
	}

	s.user = user
	s.result = nil
	s.message = ""
	s.countdownStart = now
	s.countdownDone = 0
	s.resetCapture()

	ev := s.enter(Countdown, now)
	ev.Type = EventCountdown
	ev.Countdown = s.cfg.CountdownSteps
	return ev, nil
}

// Cancel abandons a countdown or capture and returns to Previewing. Nothing
// collected so far is kept.
func (s *Session) Cancel() (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Countdown && s.state != Analyzing {
		return Event{}, fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, s.state)
	}

	log.Info("capture cancelled", "user", s.user, "state", s.state.String(), "frames", len(s.frames))
	s.resetCapture()
	ev := s.enter(Previewing, time.Time{})
	ev.Message = "Capture cancelled."
	return ev, nil
}

// Fail moves the session to Failed. The stored error wraps
// ErrDeviceUnavailable.
func (s *Session) Fail(cause error) Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = fmt.Errorf("%w: %v", ErrDeviceUnavailable, cause)
	s.resetCapture()
	s.modelReady = false

	log.Error("capture device failed", "err", cause)
	ev := s.enter(Failed, time.Time{})
	ev.Type = EventFailed
	ev.Message = s.err.Error()
	return ev
}

// Stop returns the session to Idle and forgets readiness.
func (s *Session) Stop() Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetCapture()
	s.modelReady = false
	s.user = ""
	return s.enter(Idle, time.Time{})
}

// Observe feeds one detection cycle to the session. pose is nil when no
// person was detected. Previewing and Completed refresh the preview status,
// Analyzing records capture frames, and other states ignore the pose.
func (s *Session) Observe(pose *detector.Pose, now time.Time) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.modelReady = true

	switch s.state {
	case Previewing, Completed:
		return s.observePreview(pose, now)
	case Analyzing:
		if now.Sub(s.windowStart) >= s.cfg.Duration {
			return nil
		}
		return s.observeCapture(pose, now)
	}
	return nil
}

func (s *Session) observePreview(pose *detector.Pose, now time.Time) []Event {
	var st analysis.PreviewStatus
	if pose != nil {
		f := s.smoother.Smooth(pose.Keypoints)
		st = s.validator.Preview(&f)
	}
	if st == s.preview {
		return nil
	}
	s.preview = st
	return []Event{{Type: EventPreview, State: s.state, Time: now, Preview: &st}}
}

func (s *Session) observeCapture(pose *detector.Pose, now time.Time) []Event {
	if pose == nil {
		s.rejections[analysis.NoPose]++
		return nil
	}

	f := s.smoother.Smooth(pose.Keypoints)
	rej := s.validator.Validate(&f, analysis.PhaseCapture)
	var m analysis.FrameMetric
	if rej == analysis.Accepted {
		m, rej = s.extractor.Extract(&f, len(s.frames))
	}
	if rej != analysis.Accepted {
		s.rejections[rej]++
		log.Debug("frame rejected", "reason", rej.String())
		return nil
	}

	s.frames = append(s.frames, m)
	return []Event{{Type: EventFrame, State: s.state, Time: now, Metric: &m}}
}

// Advance applies time-driven transitions: countdown ticks, the close of the
// capture window and the return to preview after insufficient data.
func (s *Session) Advance(now time.Time) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Countdown:
		return s.advanceCountdown(now)
	case Analyzing:
		if now.Sub(s.windowStart) < s.cfg.Duration {
			return nil
		}
		return []Event{s.closeWindow(now)}
	case InsufficientData:
		s.resetCapture()
		return []Event{s.enter(Previewing, now)}
	}
	return nil
}

func (s *Session) advanceCountdown(now time.Time) []Event {
	var events []Event

	elapsed := now.Sub(s.countdownStart)
	steps := s.cfg.CountdownSteps
	if s.cfg.CountdownTick > 0 {
		steps = int(elapsed / s.cfg.CountdownTick)
	}

	for s.countdownDone < steps && s.countdownDone < s.cfg.CountdownSteps {
		s.countdownDone++
		events = append(events, Event{
			Type:      EventCountdown,
			State:     Countdown,
			Time:      now,
			Countdown: s.cfg.CountdownSteps - s.countdownDone,
		})
	}

	if s.countdownDone >= s.cfg.CountdownSteps {
		s.resetCapture()
		s.windowStart = now
		log.Info("capture started", "user", s.user, "window", s.cfg.Duration)
		events = append(events, s.enter(Analyzing, now))
	}
	return events
}

func (s *Session) closeWindow(now time.Time) Event {
	agg, err := analysis.Summarize(s.frames, s.cfg.Analysis.MinFrames, s.engine)
	if err != nil {
		s.message = diagnose(s.rejections, len(s.frames), s.cfg.Analysis.MinFrames)
		log.Info("capture had insufficient data", "user", s.user, "frames", len(s.frames), "reason", s.message)

		ev := s.enter(InsufficientData, now)
		ev.Type = EventInsufficient
		ev.Message = s.message
		return ev
	}

	frames := make([]analysis.FrameMetric, len(s.frames))
	copy(frames, s.frames)
	s.result = &Result{
		UserName:  s.user,
		Aggregate: agg,
		Frames:    frames,
		StartedAt: s.windowStart,
		EndedAt:   now,
	}
	log.Info("capture completed", "user", s.user, "frames", agg.FrameCount,
		"elbow", agg.AverageElbowAngle, "feet", agg.AverageFeetDistance)

	ev := s.enter(Completed, now)
	ev.Type = EventCompleted
	ev.Result = s.result
	return ev
}

// enter changes state and returns the matching state event. Callers hold mu.
func (s *Session) enter(to State, now time.Time) Event {
	from := s.state
	s.state = to
	if from != to {
		log.Debug("session state", "from", from.String(), "to", to.String())
	}
	return Event{Type: EventState, State: to, Time: now}
}

// resetCapture clears smoothing history and per-capture counters.
func (s *Session) resetCapture() {
	s.smoother.Reset()
	s.frames = nil
	s.rejections = [analysis.NumRejections]int{}
	s.preview = analysis.PreviewStatus{}
}

// diagnose explains an insufficient capture using the most frequent rejection.
func diagnose(counts [analysis.NumRejections]int, got, need int) string {
	top := analysis.NoPose
	best := 0
	for r := analysis.NoPose; int(r) < analysis.NumRejections; r++ {
		if counts[r] > best {
			top, best = r, counts[r]
		}
	}
	return fmt.Sprintf("Only %d of %d required frames were usable. %s", got, need, top.Hint())
}
