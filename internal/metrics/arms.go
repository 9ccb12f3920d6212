package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/finessevanes/ltad-coach-sub005/internal/pose"
)

// ArmAngles holds the time-averaged angle-from-horizontal per arm in degrees.
// 0 is the horizontal T-position; positive means the arm dropped below
// horizontal, negative raised above it. The asymmetry ratio is |left|/|right|
// (1.0 = symmetric).
type ArmAngles struct {
	LeftDeg        float64 `json:"left_deg"`
	RightDeg       float64 `json:"right_deg"`
	AsymmetryRatio float64 `json:"asymmetry_ratio"`
}

// ArmAngle computes one side's angle-from-horizontal for a single frame.
// It works on world-space (metre) landmarks, so no scale factor is involved;
// world Y increases downward, making a dropped wrist a positive angle.
func ArmAngle(shoulder, wrist pose.Point) float64 {
	return math.Atan2(wrist.Y-shoulder.Y, math.Abs(wrist.X-shoulder.X)) * 180 / math.Pi
}

// ComputeArmAngles averages the per-frame, per-side angles over frames.
func ComputeArmAngles(frames []pose.Frame) ArmAngles {
	if len(frames) == 0 {
		return ArmAngles{AsymmetryRatio: 1.0}
	}

	lefts := make([]float64, len(frames))
	rights := make([]float64, len(frames))
	for i, f := range frames {
		lefts[i] = ArmAngle(f.World[pose.LeftShoulder], f.World[pose.LeftWrist])
		rights[i] = ArmAngle(f.World[pose.RightShoulder], f.World[pose.RightWrist])
	}

	a := ArmAngles{
		LeftDeg:  stat.Mean(lefts, nil),
		RightDeg: stat.Mean(rights, nil),
	}
	a.AsymmetryRatio = asymmetry(a.LeftDeg, a.RightDeg)
	return a
}

func asymmetry(left, right float64) float64 {
	if math.Abs(right) < 1e-9 {
		return 1.0
	}
	return math.Abs(left) / math.Abs(right)
}
