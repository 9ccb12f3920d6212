package metrics

import (
	"fmt"
	"time"

	"github.com/finessevanes/ltad-coach-sub005/internal/pose"
)

// Segment holds the metric set recomputed over one slice of the held interval.
// Thirds give a coarse fatigue signal; fixed-width windows a fine timeline.
type Segment struct {
	Label                string        `json:"label"`
	Start                time.Duration `json:"start"`
	End                  time.Duration `json:"end"`
	Frames               int           `json:"frames"`
	ArmLeftDeg           float64       `json:"arm_left_deg"`
	ArmRightDeg          float64       `json:"arm_right_deg"`
	SwayVelocityCmPerSec float64       `json:"sway_velocity_cm_per_sec"`
	Corrections          int           `json:"corrections"`
}

var thirdLabels = [3]string{"first", "middle", "last"}

// SplitThirds partitions the held frames into three equal-count groups and
// recomputes the calculators on each. The frame and trajectory slices must be
// parallel (one trajectory sample per usable held frame).
func SplitThirds(frames []pose.Frame, hip []TimedPoint, thresholdCm float64) []Segment {
	n := len(frames)
	if n == 0 || n != len(hip) {
		return nil
	}

	segs := make([]Segment, 0, 3)
	for i := 0; i < 3; i++ {
		lo := i * n / 3
		hi := (i + 1) * n / 3
		if hi <= lo {
			continue
		}
		segs = append(segs, segmentOver(thirdLabels[i], frames[lo:hi], hip[lo:hi], thresholdCm))
	}
	return segs
}

// SplitWindows partitions the held interval into consecutive wall-time windows
// of the given width, the final window truncated to the remaining duration.
func SplitWindows(frames []pose.Frame, hip []TimedPoint, hold, width time.Duration, thresholdCm float64) []Segment {
	if len(frames) == 0 || len(frames) != len(hip) || width <= 0 || hold <= 0 {
		return nil
	}

	var segs []Segment
	for start := time.Duration(0); start < hold; start += width {
		end := start + width
		if end > hold {
			end = hold
		}

		lo, hi := -1, -1
		for i, p := range hip {
			if p.T < start || p.T >= end {
				// Samples exactly at the hold boundary land in the last window.
				if !(end == hold && p.T == hold) {
					continue
				}
			}
			if lo < 0 {
				lo = i
			}
			hi = i + 1
		}

		label := fmt.Sprintf("%.0f-%.0fs", start.Seconds(), end.Seconds())
		if lo < 0 {
			segs = append(segs, Segment{Label: label, Start: start, End: end})
			continue
		}
		seg := segmentOver(label, frames[lo:hi], hip[lo:hi], thresholdCm)
		seg.Start = start
		seg.End = end
		segs = append(segs, seg)
	}
	return segs
}

func segmentOver(label string, frames []pose.Frame, hip []TimedPoint, thresholdCm float64) Segment {
	elapsed := hip[len(hip)-1].T - hip[0].T
	sway := ComputeSway(hip, elapsed, thresholdCm)
	arms := ComputeArmAngles(frames)
	return Segment{
		Label:                label,
		Start:                hip[0].T,
		End:                  hip[len(hip)-1].T,
		Frames:               len(frames),
		ArmLeftDeg:           arms.LeftDeg,
		ArmRightDeg:          arms.RightDeg,
		SwayVelocityCmPerSec: sway.VelocityCmPerSec,
		Corrections:          sway.Corrections,
	}
}
