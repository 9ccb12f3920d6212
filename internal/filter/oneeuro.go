// Package filter implements the adaptive low-pass (one-euro) filter used to
// smooth landmark trajectories. The cutoff frequency rises with the
// instantaneous velocity of the signal: near-stationary segments are smoothed
// aggressively to suppress estimation jitter while fast intentional motion
// passes through with minimal lag.
package filter

import (
	"math"
	"time"
)

// Config holds the filter tuning parameters.
type Config struct {
	// Rate is the nominal sample rate in Hz, used for the first sample and
	// whenever timestamps do not advance.
	Rate float64
	// MinCutoff is the cutoff frequency (Hz) applied at zero velocity.
	MinCutoff float64
	// Beta scales how quickly the cutoff grows with signal velocity.
	Beta float64
	// DCutoff is the cutoff frequency (Hz) for the derivative estimate.
	DCutoff float64
}

// DefaultConfig returns the tuned operating parameters for pose trajectories.
func DefaultConfig() Config {
	return Config{
		Rate:      30.0,
		MinCutoff: 1.0,
		Beta:      0.007,
		DCutoff:   1.0,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Rate <= 0 {
		c.Rate = d.Rate
	}
	if c.MinCutoff <= 0 {
		c.MinCutoff = d.MinCutoff
	}
	if c.Beta < 0 {
		c.Beta = d.Beta
	}
	if c.DCutoff <= 0 {
		c.DCutoff = d.DCutoff
	}
	return c
}

// lowPass is a single exponential smoothing stage.
type lowPass struct {
	initialized bool
	value       float64
}

func (lp *lowPass) filter(v, alpha float64) float64 {
	if !lp.initialized {
		lp.initialized = true
		lp.value = v
		return v
	}
	lp.value = alpha*v + (1-alpha)*lp.value
	return lp.value
}

// OneEuro filters a single signal channel. It carries mutable state (previous
// filtered value and derivative estimate) and must not be shared across
// sessions; create a fresh instance, or call Reset, per session.
type OneEuro struct {
	cfg      Config
	x        lowPass
	dx       lowPass
	lastTime time.Duration
	hasLast  bool
}

// NewOneEuro creates a filter channel. Zero-valued config fields fall back to
// DefaultConfig.
func NewOneEuro(cfg Config) *OneEuro {
	return &OneEuro{cfg: cfg.withDefaults()}
}

func smoothingAlpha(cutoff, dt float64) float64 {
	tau := 1.0 / (2 * math.Pi * cutoff)
	return 1.0 / (1.0 + tau/dt)
}

// Filter smooths one sample taken at time t. Timestamps drive the effective
// sample interval; non-increasing timestamps fall back to the nominal rate.
func (f *OneEuro) Filter(v float64, t time.Duration) float64 {
	dt := 1.0 / f.cfg.Rate
	if f.hasLast && t > f.lastTime {
		dt = (t - f.lastTime).Seconds()
	}
	f.lastTime = t
	f.hasLast = true

	var dv float64
	if f.x.initialized {
		dv = (v - f.x.value) / dt
	}
	edv := f.dx.filter(dv, smoothingAlpha(f.cfg.DCutoff, dt))

	cutoff := f.cfg.MinCutoff + f.cfg.Beta*math.Abs(edv)
	return f.x.filter(v, smoothingAlpha(cutoff, dt))
}

// Reset clears all channel state, keeping the configuration.
func (f *OneEuro) Reset() {
	*f = OneEuro{cfg: f.cfg}
}

// Point2D filters an (x, y) channel pair with independent state.
type Point2D struct {
	x *OneEuro
	y *OneEuro
}

// NewPoint2D creates a two-channel filter for a 2D trajectory.
func NewPoint2D(cfg Config) *Point2D {
	return &Point2D{x: NewOneEuro(cfg), y: NewOneEuro(cfg)}
}

// Filter smooths one 2D sample taken at time t.
func (p *Point2D) Filter(x, y float64, t time.Duration) (float64, float64) {
	return p.x.Filter(x, t), p.y.Filter(y, t)
}

// Reset clears both channels.
func (p *Point2D) Reset() {
	p.x.Reset()
	p.y.Reset()
}
