// Package metrics derives the quantitative balance measures from the smoothed,
// calibrated trajectories buffered over a held interval: postural sway,
// compensatory arm movement, correction events, temporal breakdowns and
// discrete notable events.
package metrics

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// TimedPoint is one sample of a 2D trajectory in centimetres.
type TimedPoint struct {
	T time.Duration `json:"t"`
	X float64       `json:"x"`
	Y float64       `json:"y"`
}

// Sway summarises centre-of-mass movement over a held interval. All distances
// are centimetres; the standard deviations are population deviations over the
// sample set.
type Sway struct {
	StdXCm           float64 `json:"std_x_cm"`
	StdYCm           float64 `json:"std_y_cm"`
	PathLengthCm     float64 `json:"path_length_cm"`
	VelocityCmPerSec float64 `json:"velocity_cm_per_sec"`
	Corrections      int     `json:"corrections"`
}

// ComputeSway derives the sway metric set from a hip-midpoint trajectory held
// for the given duration. Corrections count full excursion-and-return cycles
// beyond thresholdCm from the trajectory start point.
func ComputeSway(traj []TimedPoint, hold time.Duration, thresholdCm float64) Sway {
	if len(traj) == 0 {
		return Sway{}
	}

	xs := make([]float64, len(traj))
	ys := make([]float64, len(traj))
	for i, p := range traj {
		xs[i] = p.X
		ys[i] = p.Y
	}

	s := Sway{
		StdXCm:       stat.PopStdDev(xs, nil),
		StdYCm:       stat.PopStdDev(ys, nil),
		PathLengthCm: PathLength(traj),
		Corrections:  len(CorrectionTimes(traj, thresholdCm)),
	}
	if hold > 0 {
		s.VelocityCmPerSec = s.PathLengthCm / hold.Seconds()
	}
	return s
}

// PathLength sums consecutive Euclidean distances along a trajectory.
func PathLength(traj []TimedPoint) float64 {
	var length float64
	for i := 1; i < len(traj); i++ {
		length += math.Hypot(traj[i].X-traj[i-1].X, traj[i].Y-traj[i-1].Y)
	}
	return length
}

// CorrectionTimes returns the instant of each correction: the moment the
// trajectory returns inside thresholdCm of its start point after having
// exceeded it. A sample sitting exactly on the threshold changes nothing.
func CorrectionTimes(traj []TimedPoint, thresholdCm float64) []time.Duration {
	if len(traj) == 0 || thresholdCm <= 0 {
		return nil
	}

	start := traj[0]
	outside := false
	var times []time.Duration
	for _, p := range traj {
		d := math.Hypot(p.X-start.X, p.Y-start.Y)
		switch {
		case !outside && d > thresholdCm:
			outside = true
		case outside && d < thresholdCm:
			outside = false
			times = append(times, p.T)
		}
	}
	return times
}
