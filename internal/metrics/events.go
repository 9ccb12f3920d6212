package metrics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/finessevanes/ltad-coach-sub005/internal/pose"
)

// EventType classifies a discrete notable occurrence within a held interval.
type EventType string

const (
	// EventCompensatorySpike marks a burst of compensatory arm movement:
	// wrist velocity beyond mean + 2 sigma of the session distribution.
	EventCompensatorySpike EventType = "compensatory_spike"
	// EventInstabilityBurst marks a cluster of corrections within a short
	// sliding window.
	EventInstabilityBurst EventType = "instability_burst"
	// EventStabilized marks the first instant sway velocity settled below
	// the stabilization limit and stayed there.
	EventStabilized EventType = "stabilized"
)

// Severity grades an event.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityMajor    Severity = "major"
)

// Event is one derived, read-only, timestamped occurrence. Times are offsets
// from the start of the holding interval.
type Event struct {
	Time     time.Duration `json:"time"`
	Type     EventType     `json:"type"`
	Severity Severity      `json:"severity,omitempty"`
	Detail   string        `json:"detail"`
}

// EventConfig holds the detector thresholds.
type EventConfig struct {
	SpikeCooldown          time.Duration // minimum gap between spike reports
	BurstWindow            time.Duration // sliding window for correction clustering
	BurstMinCorrections    int           // more than this many corrections flags a burst
	BurstMajorCorrections  int           // more than this many escalates severity
	StabilizedWindow       time.Duration // rolling-velocity window
	StabilizedHold         time.Duration // how long velocity must stay low
	StabilizedVelocityCmPS float64       // rolling-velocity limit (cm/s)
	CorrectionThresholdCm  float64       // excursion threshold for corrections
}

// DefaultEventConfig returns the tuned detector thresholds.
func DefaultEventConfig() EventConfig {
	return EventConfig{
		SpikeCooldown:          time.Second,
		BurstWindow:            2 * time.Second,
		BurstMinCorrections:    3,
		BurstMajorCorrections:  5,
		StabilizedWindow:       500 * time.Millisecond,
		StabilizedHold:         2 * time.Second,
		StabilizedVelocityCmPS: 2.0,
		CorrectionThresholdCm:  2.0,
	}
}

// DetectEvents runs the spike, burst and stabilization detectors once over the
// complete held-interval signal set and returns the events ordered by time.
func DetectEvents(frames []pose.Frame, hip []TimedPoint, cfg EventConfig) []Event {
	events := detectSpikes(frames, cfg)
	events = append(events, detectBursts(CorrectionTimes(hip, cfg.CorrectionThresholdCm), cfg)...)
	if ev, ok := detectStabilization(hip, cfg); ok {
		events = append(events, ev)
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Time < events[j].Time })
	return events
}

// wristVelocity is one frame-to-frame wrist speed sample (cm/s, world space),
// taking the faster of the two wrists.
type wristVelocity struct {
	t    time.Duration
	v    float64
	side string
}

func wristVelocities(frames []pose.Frame) []wristVelocity {
	var out []wristVelocity
	for i := 1; i < len(frames); i++ {
		dt := (frames[i].Timestamp - frames[i-1].Timestamp).Seconds()
		if dt <= 0 {
			continue
		}
		left := wristStep(frames[i-1], frames[i], pose.LeftWrist) / dt
		right := wristStep(frames[i-1], frames[i], pose.RightWrist) / dt

		wv := wristVelocity{t: frames[i].Timestamp, v: left, side: "left"}
		if right > left {
			wv.v, wv.side = right, "right"
		}
		out = append(out, wv)
	}
	return out
}

func wristStep(prev, cur pose.Frame, j pose.Joint) float64 {
	const cmPerMetre = 100
	return math.Hypot(cur.World[j].X-prev.World[j].X, cur.World[j].Y-prev.World[j].Y) * cmPerMetre
}

func detectSpikes(frames []pose.Frame, cfg EventConfig) []Event {
	samples := wristVelocities(frames)
	if len(samples) == 0 {
		return nil
	}

	vals := make([]float64, len(samples))
	for i, s := range samples {
		vals[i] = s.v
	}
	threshold := stat.Mean(vals, nil) + 2*stat.PopStdDev(vals, nil)
	if threshold <= 0 {
		return nil
	}

	var events []Event
	var lastFlag time.Duration
	flagged := false
	for _, s := range samples {
		if s.v <= threshold {
			continue
		}
		if flagged && s.t-lastFlag < cfg.SpikeCooldown {
			continue
		}

		ratio := s.v / threshold
		sev := SeverityMinor
		switch {
		case ratio > 2.0:
			sev = SeverityMajor
		case ratio >= 1.5:
			sev = SeverityModerate
		}
		events = append(events, Event{
			Time:     s.t,
			Type:     EventCompensatorySpike,
			Severity: sev,
			Detail:   fmt.Sprintf("%s wrist velocity %.1f cm/s (%.2fx threshold)", s.side, s.v, ratio),
		})
		flagged = true
		lastFlag = s.t
	}
	return events
}

func detectBursts(corrections []time.Duration, cfg EventConfig) []Event {
	var events []Event
	var lastFlag time.Duration
	flagged := false
	for i, t := range corrections {
		count := 0
		for j := i; j >= 0 && t-corrections[j] <= cfg.BurstWindow; j-- {
			count++
		}
		if count <= cfg.BurstMinCorrections {
			continue
		}
		if flagged && t-lastFlag < cfg.BurstWindow {
			continue
		}

		sev := SeverityModerate
		if count > cfg.BurstMajorCorrections {
			sev = SeverityMajor
		}
		events = append(events, Event{
			Time:     t,
			Type:     EventInstabilityBurst,
			Severity: sev,
			Detail:   fmt.Sprintf("%d corrections within %s", count, cfg.BurstWindow),
		})
		flagged = true
		lastFlag = t
	}
	return events
}

// rollingVelocities computes, per sample, the trajectory path length over the
// trailing window divided by the window width (cm/s).
func rollingVelocities(hip []TimedPoint, window time.Duration) []float64 {
	out := make([]float64, len(hip))
	lo := 0
	for i := range hip {
		for hip[i].T-hip[lo].T > window {
			lo++
		}
		out[i] = PathLength(hip[lo:i+1]) / window.Seconds()
	}
	return out
}

// detectStabilization reports the first instant at which the rolling sway
// velocity drops below the limit and remains below it continuously for the
// configured hold. Reported at most once per session.
func detectStabilization(hip []TimedPoint, cfg EventConfig) (Event, bool) {
	if len(hip) == 0 || cfg.StabilizedWindow <= 0 {
		return Event{}, false
	}

	vel := rollingVelocities(hip, cfg.StabilizedWindow)
	for i := range hip {
		if vel[i] >= cfg.StabilizedVelocityCmPS {
			continue
		}

		sustained := false
		ok := true
		for k := i; k < len(hip); k++ {
			if vel[k] >= cfg.StabilizedVelocityCmPS {
				ok = false
				break
			}
			if hip[k].T-hip[i].T >= cfg.StabilizedHold {
				sustained = true
				break
			}
		}
		if ok && sustained {
			return Event{
				Time:   hip[i].T,
				Type:   EventStabilized,
				Detail: fmt.Sprintf("sway velocity below %.1f cm/s for %s", cfg.StabilizedVelocityCmPS, cfg.StabilizedHold),
			}, true
		}
	}
	return Event{}, false
}
