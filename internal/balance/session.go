// Package balance implements the single-leg balance test engine: frame
// ingest, unit calibration, adaptive smoothing, the test-validity state
// machine, and assembly of the final assessment result.
//
// The engine is single-threaded and frame-driven. It owns no goroutines and
// performs no I/O; the host pushes frames at the pose source's native rate and
// reads state back synchronously. Exactly one Session is active per attempt;
// retries create a fresh Session so no filter or buffer state can leak
// between attempts.
package balance

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/finessevanes/ltad-coach-sub005/internal/filter"
	"github.com/finessevanes/ltad-coach-sub005/internal/metrics"
	"github.com/finessevanes/ltad-coach-sub005/internal/pose"
	"github.com/finessevanes/ltad-coach-sub005/internal/timeutil"
)

// TestState represents the lifecycle state of a test attempt.
type TestState string

const (
	StateIdle      TestState = "idle"      // created, awaiting start
	StateReady     TestState = "ready"     // armed, waiting for a held valid position
	StateHolding   TestState = "holding"   // official test running
	StateCompleted TestState = "completed" // target duration reached
	StateFailed    TestState = "failed"    // a failure condition triggered
	StateAborted   TestState = "aborted"   // cancelled by the caller
)

// Terminal reports whether the state accepts no further frames or commands.
func (s TestState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateAborted
}

// End reasons recorded on terminal transition.
const (
	ReasonTimeComplete     = "time_complete"
	ReasonFootTouchdown    = "foot_touchdown"
	ReasonSupportFootMoved = "support_foot_moved"
	ReasonTrackingLost     = "tracking_lost"
	ReasonAborted          = "aborted"
)

var (
	// ErrSessionTerminal is returned for any frame or command received
	// after a terminal transition. This is a caller contract violation;
	// retries require a fresh Session.
	ErrSessionTerminal = errors.New("balance: session is terminal; create a new session to retry")

	// ErrNotIdle is returned when Start is issued outside idle.
	ErrNotIdle = errors.New("balance: start is only accepted in idle")

	// ErrNoResult is returned by Result before a completed/failed
	// transition (aborted sessions skip result assembly).
	ErrNoResult = errors.New("balance: no result available")
)

// debounce counts consecutive qualifying frames for one failure condition, so
// single-frame occlusion artifacts cannot trigger a failure.
type debounce struct {
	count int
}

// observe records one evaluation and reports whether the condition has held
// for the required number of consecutive frames.
func (d *debounce) observe(hit bool, need int) bool {
	if !hit {
		d.count = 0
		return false
	}
	d.count++
	return d.count >= need
}

// Session is the mutable aggregate for one test attempt. It is not safe for
// concurrent use; the engine contract is a single frame-driven caller.
type Session struct {
	tuning *Tuning
	leg    pose.Leg
	clock  timeutil.Clock
	checks []PositionCheck

	state  TestState
	buffer *FrameBuffer

	createdAt time.Time

	// Scale calibration: computed at most once, then frozen.
	scaleCmPerUnit float64
	scaleSet       bool
	scaleFallback  bool

	hipFilter *filter.Point2D

	// ready -> holding gate
	validSince    time.Duration
	hasValidSince bool
	lastCheck     CheckResult

	// holding bookkeeping
	holdStart     time.Duration
	holdDuration  time.Duration
	endReason     string
	supportStartX float64
	supportStartY float64
	raisedStartY  float64
	lastUsable    time.Duration

	touchdown    debounce
	footMove     debounce
	trackingLoss debounce

	// Held-interval signal set, parallel slices: one smoothed calibrated
	// hip sample per usable held frame. Timestamps are hold-relative.
	held []pose.Frame
	hip  []metrics.TimedPoint

	result *TestResult
}

// Option configures a Session at creation.
type Option func(*Session)

// WithClock substitutes the wall clock, for tests.
func WithClock(c timeutil.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// NewSession creates a fresh session for one attempt on the given leg.
// Filter and debounce state is created new: sessions are single-use and are
// never shared or reused across attempts.
func NewSession(t *Tuning, leg pose.Leg, opts ...Option) (*Session, error) {
	if t == nil {
		t = EmptyTuning()
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	if !leg.Valid() {
		return nil, fmt.Errorf("balance: invalid leg %q", leg)
	}

	s := &Session{
		tuning: t,
		leg:    leg,
		clock:  timeutil.RealClock{},
		state:  StateIdle,
		buffer: NewFrameBuffer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.checks = positionChecks(t, leg)
	s.hipFilter = filter.NewPoint2D(t.filterConfig())
	s.createdAt = s.clock.Now()
	return s, nil
}

// Start arms the session. Only valid from idle.
func (s *Session) Start() error {
	if s.state.Terminal() {
		return ErrSessionTerminal
	}
	if s.state != StateIdle {
		return ErrNotIdle
	}
	s.state = StateReady
	log.Printf("balance: session armed (leg=%s, target=%s)", s.leg, s.tuning.GetTargetHold())
	return nil
}

// Cancel aborts the attempt from any non-terminal state. Result assembly is
// skipped; the partial hold time remains readable through Snapshot.
func (s *Session) Cancel() error {
	if s.state.Terminal() {
		return ErrSessionTerminal
	}
	if s.state == StateHolding {
		if last, ok := s.buffer.Last(); ok {
			s.holdDuration = last.Timestamp - s.holdStart
		}
	}
	s.endReason = ReasonAborted
	s.state = StateAborted
	log.Printf("balance: session aborted after %.2fs held", s.holdDuration.Seconds())
	return nil
}

// Reset returns a replacement session with the same tuning, leg and clock.
// Sessions are never reused, so reset is construction of a fresh one.
func (s *Session) Reset() (*Session, error) {
	return NewSession(s.tuning, s.leg, WithClock(s.clock))
}

// State returns the current lifecycle state.
func (s *Session) State() TestState { return s.state }

// PushFrame ingests one frame from the pose source. It buffers, calibrates,
// smooths and advances the state machine; it returns ErrSessionTerminal after
// a terminal transition and ErrOutOfOrder for a non-advancing timestamp.
func (s *Session) PushFrame(f pose.Frame) error {
	if s.state.Terminal() {
		return ErrSessionTerminal
	}
	if err := s.buffer.Append(f); err != nil {
		return err
	}

	s.calibrate(f)
	if f.Usable() {
		s.lastUsable = f.Timestamp
	}

	switch s.state {
	case StateReady:
		s.evaluateReady(f)
	case StateHolding:
		s.evaluateHolding(f)
	default:
		// idle: buffered only; the test has not been armed
	}
	return nil
}

// calibrate derives the cm-per-normalized-unit scale from shoulder width on
// the first frame where both shoulders are confidently visible. Computed at
// most once per session.
func (s *Session) calibrate(f pose.Frame) {
	if s.scaleSet {
		return
	}
	left := f.Normalized[pose.LeftShoulder]
	right := f.Normalized[pose.RightShoulder]
	if left.Visibility < pose.MinVisibility || right.Visibility < pose.MinVisibility {
		return
	}
	width := math.Abs(right.X - left.X)
	if width <= 0 {
		return
	}
	s.scaleCmPerUnit = s.tuning.GetShoulderWidthCm() / width
	s.scaleSet = true
	log.Printf("balance: calibrated %.1f cm/unit from shoulder width %.3f", s.scaleCmPerUnit, width)
}

// evaluateReady gates the ready -> holding transition: the position must stay
// valid for a continuous buffer window.
func (s *Session) evaluateReady(f pose.Frame) {
	if !f.Usable() {
		s.hasValidSince = false
		return
	}

	s.lastCheck = evaluate(s.checks, f)
	if !s.lastCheck.InPosition {
		s.hasValidSince = false
		return
	}
	if !s.hasValidSince {
		s.validSince = f.Timestamp
		s.hasValidSince = true
	}
	if f.Timestamp-s.validSince >= s.tuning.GetReadyBuffer() {
		s.enterHolding(f)
	}
}

// enterHolding records the official test start instant and the reference
// positions the failure checks measure against.
func (s *Session) enterHolding(f pose.Frame) {
	s.state = StateHolding
	s.holdStart = f.Timestamp

	support := f.Normalized[s.leg.SupportAnkle()]
	s.supportStartX = support.X
	s.supportStartY = support.Y
	s.raisedStartY = f.Normalized[s.leg.RaisedAnkle()].Y

	if !s.scaleSet {
		s.scaleCmPerUnit = s.tuning.GetFallbackScaleCmPerUnit()
		s.scaleSet = true
		s.scaleFallback = true
		log.Printf("balance: shoulders never resolved, using fallback scale %.1f cm/unit", s.scaleCmPerUnit)
	}

	s.recordSample(f)
	log.Printf("balance: holding started at %s", f.Timestamp)
}

// recordSample appends one usable held frame to the parallel signal slices,
// smoothing and calibrating the hip midpoint. Timestamps are rebased to the
// hold start.
func (s *Session) recordSample(f pose.Frame) {
	t := f.Timestamp - s.holdStart
	hx, hy := f.HipMidpoint()
	fx, fy := s.hipFilter.Filter(hx, hy, t)
	s.hip = append(s.hip, metrics.TimedPoint{T: t, X: fx * s.scaleCmPerUnit, Y: fy * s.scaleCmPerUnit})

	held := f
	held.Timestamp = t
	s.held = append(s.held, held)
}

// evaluateHolding runs the three failure conditions and the completion check
// for one frame.
func (s *Session) evaluateHolding(f pose.Frame) {
	need := s.tuning.GetDebounceFrames()

	// Foot checks only read cleanly tracked frames. Unusable frames leave
	// their debounce counters untouched: occlusion must neither trigger
	// nor reset a pending condition.
	if f.Usable() {
		s.recordSample(f)
		if s.touchdown.observe(s.footTouchdown(f), need) {
			s.fail(ReasonFootTouchdown, f)
			return
		}
		if s.footMove.observe(s.supportFootMoved(f), need) {
			s.fail(ReasonSupportFootMoved, f)
			return
		}
	}

	lost := f.Timestamp-s.lastUsable >= s.tuning.GetTrackingLossTimeout()
	if s.trackingLoss.observe(lost, need) {
		s.fail(ReasonTrackingLost, f)
		return
	}

	if target := s.tuning.GetTargetHold(); f.Timestamp-s.holdStart >= target {
		s.complete(target)
	}
}

// footTouchdown reports whether the raised foot has returned to the support
// foot's level after a genuine raise.
func (s *Session) footTouchdown(f pose.Frame) bool {
	raised := f.Normalized[s.leg.RaisedAnkle()].Y
	support := f.Normalized[s.leg.SupportAnkle()].Y

	nearSupportLevel := math.Abs(raised-support) <= s.tuning.GetTouchdownProximity()
	// Normalized Y grows downward: descending means Y increasing. The
	// descent requirement rejects false positives from a foot that was
	// never fully raised.
	descended := raised-s.raisedStartY >= s.tuning.GetTouchdownMinDescent()
	return nearSupportLevel && descended
}

// supportFootMoved reports whether the standing ankle has shifted from its
// position at test start (hop or reposition).
func (s *Session) supportFootMoved(f pose.Frame) bool {
	cur := f.Normalized[s.leg.SupportAnkle()]
	displacement := math.Hypot(cur.X-s.supportStartX, cur.Y-s.supportStartY)
	return displacement > s.tuning.GetSupportFootMoveLimit()
}

func (s *Session) fail(reason string, f pose.Frame) {
	s.holdDuration = f.Timestamp - s.holdStart
	s.endReason = reason
	s.state = StateFailed
	s.assemble(false)
	log.Printf("balance: failed after %.2fs (%s)", s.holdDuration.Seconds(), reason)
}

func (s *Session) complete(target time.Duration) {
	s.holdDuration = target
	s.endReason = ReasonTimeComplete
	s.state = StateCompleted
	s.assemble(true)
	log.Printf("balance: completed full %.0fs hold", target.Seconds())
}

// Snapshot is the read-only live view exposed for on-screen feedback.
type Snapshot struct {
	State               TestState
	CreatedAt           time.Time
	HoldTime            time.Duration
	InPosition          bool
	FailedChecks        []string
	ScaleCmPerUnit      float64
	Frames              int
	LowConfidenceFrames int
}

// Snapshot returns the current live view. Safe to call in any state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		State:               s.state,
		CreatedAt:           s.createdAt,
		InPosition:          s.lastCheck.InPosition,
		FailedChecks:        append([]string(nil), s.lastCheck.FailedChecks...),
		ScaleCmPerUnit:      s.scaleCmPerUnit,
		Frames:              s.buffer.Len(),
		LowConfidenceFrames: s.buffer.LowConfidence(),
	}
	switch {
	case s.state == StateHolding:
		if last, ok := s.buffer.Last(); ok {
			snap.HoldTime = last.Timestamp - s.holdStart
		}
	case s.state.Terminal():
		snap.HoldTime = s.holdDuration
	}
	return snap
}

// Result returns the terminal result. Only completed and failed sessions
// assemble one; aborted sessions skip assembly by design.
func (s *Session) Result() (*TestResult, error) {
	if s.result == nil {
		return nil, ErrNoResult
	}
	return s.result, nil
}
