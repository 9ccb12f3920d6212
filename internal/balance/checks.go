package balance

import (
	"math"

	"github.com/finessevanes/ltad-coach-sub005/internal/pose"
)

// PositionCheck evaluates one starting-posture requirement for a frame. The
// checklist is assembled per session from the tuning so the required posture
// stays configurable.
type PositionCheck interface {
	// Name identifies the check in UI feedback and logs.
	Name() string
	// Check reports whether the frame satisfies the requirement.
	Check(f pose.Frame) bool
}

// CheckResult reports one frame's posture evaluation.
type CheckResult struct {
	InPosition   bool
	FailedChecks []string
}

// evaluate runs every check against the frame.
func evaluate(checks []PositionCheck, f pose.Frame) CheckResult {
	res := CheckResult{InPosition: true}
	for _, c := range checks {
		if !c.Check(f) {
			res.InPosition = false
			res.FailedChecks = append(res.FailedChecks, c.Name())
		}
	}
	return res
}

// positionChecks builds the checklist for the configured posture.
func positionChecks(t *Tuning, leg pose.Leg) []PositionCheck {
	checks := []PositionCheck{
		ankleVisibilityCheck{},
		raisedLegCheck{leg: leg, minLift: t.GetRaisedLegMinLift()},
	}
	switch t.GetArmStyle() {
	case ArmStyleHandsOnHips:
		checks = append(checks, handsOnHipsCheck{radius: t.GetHandsOnHipsRadius()})
	default:
		checks = append(checks, tPoseArmsCheck{tolerance: t.GetArmDropTolerance()})
	}
	return checks
}

// ankleVisibilityCheck requires both ankles to be tracked confidently; the
// leg checks are meaningless on occluded ankles.
type ankleVisibilityCheck struct{}

func (ankleVisibilityCheck) Name() string { return "ankle_visibility" }

func (ankleVisibilityCheck) Check(f pose.Frame) bool {
	return f.Normalized[pose.LeftAnkle].Visibility >= pose.MinVisibility &&
		f.Normalized[pose.RightAnkle].Visibility >= pose.MinVisibility
}

// raisedLegCheck requires the raised ankle to sit at least minLift above the
// support ankle (normalized Y grows downward).
type raisedLegCheck struct {
	leg     pose.Leg
	minLift float64
}

func (raisedLegCheck) Name() string { return "raised_leg" }

func (c raisedLegCheck) Check(f pose.Frame) bool {
	support := f.Normalized[c.leg.SupportAnkle()].Y
	raised := f.Normalized[c.leg.RaisedAnkle()].Y
	return support-raised >= c.minLift
}

// tPoseArmsCheck requires both wrists within tolerance of shoulder height.
type tPoseArmsCheck struct {
	tolerance float64
}

func (tPoseArmsCheck) Name() string { return "arms_tpose" }

func (c tPoseArmsCheck) Check(f pose.Frame) bool {
	left := math.Abs(f.Normalized[pose.LeftWrist].Y - f.Normalized[pose.LeftShoulder].Y)
	right := math.Abs(f.Normalized[pose.RightWrist].Y - f.Normalized[pose.RightShoulder].Y)
	return left <= c.tolerance && right <= c.tolerance
}

// handsOnHipsCheck requires both wrists within radius of the same-side hip.
type handsOnHipsCheck struct {
	radius float64
}

func (handsOnHipsCheck) Name() string { return "hands_on_hips" }

func (c handsOnHipsCheck) Check(f pose.Frame) bool {
	return wristHipDistance(f, pose.LeftWrist, pose.LeftHip) <= c.radius &&
		wristHipDistance(f, pose.RightWrist, pose.RightHip) <= c.radius
}

func wristHipDistance(f pose.Frame, wrist, hip pose.Joint) float64 {
	return math.Hypot(
		f.Normalized[wrist].X-f.Normalized[hip].X,
		f.Normalized[wrist].Y-f.Normalized[hip].Y,
	)
}
