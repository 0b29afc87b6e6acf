package analysis

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

// Bound is one edge of a Band.
type Bound struct {
	Value     float64 `json:"value"`
	Inclusive bool    `json:"inclusive"`
}

// Band maps a range of a metric to a coaching tip. A nil bound is unbounded.
type Band struct {
	Lower *Bound `json:"lower,omitempty"`
	Upper *Bound `json:"upper,omitempty"`
	Tip   string `json:"tip"`
}

// Contains reports whether v falls inside the band.
func (b Band) Contains(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if b.Lower != nil {
		if v < b.Lower.Value || (v == b.Lower.Value && !b.Lower.Inclusive) {
			return false
		}
	}
	if b.Upper != nil {
		if v > b.Upper.Value || (v == b.Upper.Value && !b.Upper.Inclusive) {
			return false
		}
	}
	return true
}

// FeedbackConfig holds the ordered bands for each metric.
type FeedbackConfig struct {
	Elbow []Band `json:"elbow"`
	Feet  []Band `json:"feet"`
}

func below(v float64) *Bound { return &Bound{Value: v} }
func atMost(v float64) *Bound { return &Bound{Value: v, Inclusive: true} }
func above(v float64) *Bound { return &Bound{Value: v} }
func atLeast(v float64) *Bound { return &Bound{Value: v, Inclusive: true} }

// Default tips.
const (
	TipElbowTight    = "Your elbow is tucked too tight. Let your forearm open up so the ball sits above your shooting shoulder."
	TipElbowLow      = "Your elbow is a little low. Lift it up to shoulder level before you release."
	TipElbowOptimal  = "Great elbow position on your shot!"
	TipElbowStraight = "Your arm is too straight. Keep a bend in your elbow and bring it down to shoulder level."
	TipElbowExtended = "Your arm is fully extended before the shot. Start with a bent elbow and extend through the release."
	TipFeetClose     = "Your feet are too close to each other. Widen your stance so your feet are shoulder width apart."
	TipFeetOptimal   = "Perfect shooting stance!"
	TipFeetWide      = "Your stance is too wide. Bring your feet in so they are shoulder width apart."
)

// DefaultFeedbackConfig returns the shipped bands.
func DefaultFeedbackConfig() FeedbackConfig {
	return FeedbackConfig{
		Elbow: []Band{
			{Upper: below(70), Tip: TipElbowTight},
			{Lower: atLeast(70), Upper: below(90), Tip: TipElbowLow},
			{Lower: atLeast(90), Upper: atMost(120), Tip: TipElbowOptimal},
			{Lower: above(120), Upper: atMost(150), Tip: TipElbowStraight},
			{Lower: above(150), Tip: TipElbowExtended},
		},
		Feet: []Band{
			{Upper: below(0.8), Tip: TipFeetClose},
			{Lower: atLeast(0.8), Upper: atMost(2.2), Tip: TipFeetOptimal},
			{Lower: above(2.2), Tip: TipFeetWide},
		},
	}
}

// ErrInvalidBands is returned by NewEngine for gapped or overlapping bands.
var ErrInvalidBands = errors.New("invalid feedback bands")

// Validate checks that each metric's bands are ordered, do not overlap and
// leave no gap anywhere on the real line.
func (c FeedbackConfig) Validate() error {
	if err := validateBands(c.Elbow); err != nil {
		return fmt.Errorf("%w: elbow: %v", ErrInvalidBands, err)
	}
	if err := validateBands(c.Feet); err != nil {
		return fmt.Errorf("%w: feet: %v", ErrInvalidBands, err)
	}
	return nil
}

func validateBands(bands []Band) error {
	if len(bands) == 0 {
		return errors.New("no bands")
	}
	if bands[0].Lower != nil {
		return errors.New("first band must be unbounded below")
	}
	if bands[len(bands)-1].Upper != nil {
		return errors.New("last band must be unbounded above")
	}

	for i, b := range bands {
		if b.Tip == "" {
			return fmt.Errorf("band %d has no tip", i)
		}
		if b.Lower != nil && b.Upper != nil {
			if b.Lower.Value > b.Upper.Value {
				return fmt.Errorf("band %d is inverted", i)
			}
			if b.Lower.Value == b.Upper.Value && !(b.Lower.Inclusive && b.Upper.Inclusive) {
				return fmt.Errorf("band %d is empty", i)
			}
		}
		if i == 0 {
			continue
		}

		prev := bands[i-1]
		if prev.Upper == nil || b.Lower == nil {
			return fmt.Errorf("band %d is unbounded in the middle", i)
		}
		if prev.Upper.Value != b.Lower.Value {
			return fmt.Errorf("bands %d and %d do not meet", i-1, i)
		}
		if prev.Upper.Inclusive == b.Lower.Inclusive {
			return fmt.Errorf("edge %v between bands %d and %d must be inclusive on exactly one side", b.Lower.Value, i-1, i)
		}
	}
	return nil
}

// Engine maps aggregate metrics to tips. It is immutable once built.
type Engine struct {
	cfg FeedbackConfig
}

// NewEngine validates cfg and returns an Engine for it.
func NewEngine(cfg FeedbackConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// DefaultEngine returns an Engine for DefaultFeedbackConfig.
func DefaultEngine() *Engine {
	return &Engine{cfg: DefaultFeedbackConfig()}
}

// Config returns the bands the engine was built from.
func (e *Engine) Config() FeedbackConfig {
	return e.cfg
}

// ElbowTip returns the tip for an average elbow angle.
func (e *Engine) ElbowTip(avgElbow float64) string {
	return pick(e.cfg.Elbow, avgElbow)
}

// FeetTip returns the tip for an average feet distance.
func (e *Engine) FeetTip(avgFeet float64) string {
	return pick(e.cfg.Feet, avgFeet)
}

// Tips returns exactly two tips: elbow first, stance second.
func (e *Engine) Tips(avgElbow, avgFeet float64) []string {
	return []string{e.ElbowTip(avgElbow), e.FeetTip(avgFeet)}
}

// pick returns the tip of the band containing v. Validated bands cover every
// finite value, so only NaN yields "".
func pick(bands []Band, v float64) string {
	for _, b := range bands {
		if b.Contains(v) {
			return b.Tip
		}
	}
	return ""
}

// EngineRef holds the current Engine and lets it be replaced while other
// goroutines read it.
type EngineRef struct {
	p atomic.Pointer[Engine]
}

// NewEngineRef returns a reference to e, or to DefaultEngine when e is nil.
func NewEngineRef(e *Engine) *EngineRef {
	if e == nil {
		e = DefaultEngine()
	}
	r := &EngineRef{}
	r.p.Store(e)
	return r
}

// Load returns the current Engine.
func (r *EngineRef) Load() *Engine {
	return r.p.Load()
}

// Store replaces the current Engine. nil is ignored.
func (r *EngineRef) Store(e *Engine) {
	if e != nil {
		r.p.Store(e)
	}
}
