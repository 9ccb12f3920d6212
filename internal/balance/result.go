package balance

import (
	"time"

	"github.com/finessevanes/ltad-coach-sub005/internal/metrics"
	"github.com/finessevanes/ltad-coach-sub005/internal/pose"
	"github.com/finessevanes/ltad-coach-sub005/internal/scoring"
)

// Score holds the LTAD interpretation of one attempt.
type Score struct {
	Duration      int     `json:"duration_score"` // 1-5
	DurationLabel string  `json:"duration_label"`
	Stability     float64 `json:"stability_score"` // 0-100
	Percentile    int     `json:"percentile"`      // approximate national percentile
}

// TestResult is the complete, immutable record of one finished attempt.
// Assembled exactly once, on the completed or failed transition, from the
// held-interval signal set; re-assembling from the same frame sequence and
// tuning yields an identical value.
type TestResult struct {
	Success      bool          `json:"success"`
	HoldDuration time.Duration `json:"hold_duration"`
	EndReason    string        `json:"end_reason"`
	Leg          pose.Leg      `json:"leg"`

	ScaleCmPerUnit float64 `json:"scale_cm_per_unit"`
	ScaleFallback  bool    `json:"scale_fallback"`

	Sway metrics.Sway      `json:"sway"`
	Arms metrics.ArmAngles `json:"arms"`

	Score Score `json:"score"`

	Thirds  []metrics.Segment `json:"thirds"`
	Windows []metrics.Segment `json:"windows"`
	Events  []metrics.Event   `json:"events"`

	// HipTrajectory is the smoothed, calibrated hip-midpoint path over the
	// held interval, hold-relative timestamps, centimetres.
	HipTrajectory []metrics.TimedPoint `json:"hip_trajectory"`

	// Frames is the usable held-frame sequence with hold-relative
	// timestamps, parallel to HipTrajectory.
	Frames []pose.Frame `json:"-"`

	FrameCount          int `json:"frame_count"`
	LowConfidenceFrames int `json:"low_confidence_frames"`
}

// assemble computes every derived metric from the held-interval signal set and
// freezes the result. Inputs are copied so later session mutation cannot reach
// the result.
func (s *Session) assemble(success bool) {
	hip := make([]metrics.TimedPoint, len(s.hip))
	copy(hip, s.hip)
	frames := make([]pose.Frame, len(s.held))
	copy(frames, s.held)

	threshold := s.tuning.GetCorrectionThresholdCm()
	sway := metrics.ComputeSway(hip, s.holdDuration, threshold)
	arms := metrics.ComputeArmAngles(frames)

	durScore, durLabel := scoring.DurationScore(s.holdDuration.Seconds())
	avgAbsArm := (abs(arms.LeftDeg) + abs(arms.RightDeg)) / 2

	s.result = &TestResult{
		Success:        success,
		HoldDuration:   s.holdDuration,
		EndReason:      s.endReason,
		Leg:            s.leg,
		ScaleCmPerUnit: s.scaleCmPerUnit,
		ScaleFallback:  s.scaleFallback,
		Sway:           sway,
		Arms:           arms,
		Score: Score{
			Duration:      durScore,
			DurationLabel: durLabel,
			Stability: scoring.StabilityScore(
				sway.StdXCm+sway.StdYCm, sway.VelocityCmPerSec, avgAbsArm, sway.Corrections),
			Percentile: scoring.Percentile(durScore, s.holdDuration.Seconds()),
		},
		Thirds:              metrics.SplitThirds(frames, hip, threshold),
		Windows:             metrics.SplitWindows(frames, hip, s.holdDuration, s.tuning.GetWindowWidth(), threshold),
		Events:              metrics.DetectEvents(frames, hip, s.tuning.eventConfig()),
		HipTrajectory:       hip,
		Frames:              frames,
		FrameCount:          s.buffer.Len(),
		LowConfidenceFrames: s.buffer.LowConfidence(),
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
