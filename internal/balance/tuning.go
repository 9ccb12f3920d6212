package balance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/finessevanes/ltad-coach-sub005/internal/filter"
	"github.com/finessevanes/ltad-coach-sub005/internal/metrics"
)

// Arm posture styles. Two variants exist in the product history without a
// resolving decision; both are supported and the style is configured rather
// than hardcoded.
const (
	ArmStyleTPose       = "tpose"
	ArmStyleHandsOnHips = "hips"
)

// Tuning represents the runtime-adjustable parameters of the balance test
// engine. Fields are pointers so a partial JSON config is safe: anything
// omitted keeps its default via the Get* accessors.
type Tuning struct {
	// State machine params
	TargetHold          *string `json:"target_hold,omitempty"`           // duration string like "30s"
	ReadyBuffer         *string `json:"ready_buffer,omitempty"`          // continuous valid-position time before holding
	TrackingLossTimeout *string `json:"tracking_loss_timeout,omitempty"` // duration string like "500ms"
	DebounceFrames      *int    `json:"debounce_frames,omitempty"`       // consecutive qualifying frames per failure condition

	// Failure detection params (normalized units)
	TouchdownProximity   *float64 `json:"touchdown_proximity,omitempty"`     // raised foot within this of support level
	TouchdownMinDescent  *float64 `json:"touchdown_min_descent,omitempty"`   // minimum descent from initial raise
	SupportFootMoveLimit *float64 `json:"support_foot_move_limit,omitempty"` // support ankle displacement limit

	// Position validity params
	RaisedLegMinLift  *float64 `json:"raised_leg_min_lift,omitempty"`  // normalized height above support ankle
	ArmStyle          *string  `json:"arm_style,omitempty"`            // "tpose" or "hips"
	ArmDropTolerance  *float64 `json:"arm_drop_tolerance,omitempty"`   // wrist-to-shoulder Y tolerance for T-pose
	HandsOnHipsRadius *float64 `json:"hands_on_hips_radius,omitempty"` // wrist-to-hip distance for hands-on-hips

	// Calibration params
	ShoulderWidthCm        *float64 `json:"shoulder_width_cm,omitempty"`          // assumed real shoulder breadth
	FallbackScaleCmPerUnit *float64 `json:"fallback_scale_cm_per_unit,omitempty"` // used when shoulders never resolve

	// Metric params
	CorrectionThresholdCm *float64 `json:"correction_threshold_cm,omitempty"`
	WindowWidth           *string  `json:"window_width,omitempty"` // duration string like "5s"

	// Smoothing filter params
	FilterRate      *float64 `json:"filter_rate,omitempty"`
	FilterMinCutoff *float64 `json:"filter_min_cutoff,omitempty"`
	FilterBeta      *float64 `json:"filter_beta,omitempty"`
	FilterDCutoff   *float64 `json:"filter_dcutoff,omitempty"`
}

// EmptyTuning returns a Tuning with all fields unset; every accessor then
// returns its default.
func EmptyTuning() *Tuning {
	return &Tuning{}
}

// LoadTuning loads a Tuning from a JSON file. The file must have a .json
// extension and stay under the max file size; omitted fields retain defaults,
// so partial configs are safe.
func LoadTuning(path string) (*Tuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("tuning file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat tuning file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("tuning file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file: %w", err)
	}

	t := EmptyTuning()
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to parse tuning JSON: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}
	return t, nil
}

// Validate checks that the configured values are usable.
func (t *Tuning) Validate() error {
	for name, v := range map[string]*string{
		"target_hold":           t.TargetHold,
		"ready_buffer":          t.ReadyBuffer,
		"tracking_loss_timeout": t.TrackingLossTimeout,
		"window_width":          t.WindowWidth,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s %q: %w", name, *v, err)
			}
		}
	}

	if t.DebounceFrames != nil && *t.DebounceFrames < 1 {
		return fmt.Errorf("debounce_frames must be >= 1, got %d", *t.DebounceFrames)
	}
	if t.ArmStyle != nil && *t.ArmStyle != ArmStyleTPose && *t.ArmStyle != ArmStyleHandsOnHips {
		return fmt.Errorf("arm_style must be %q or %q, got %q", ArmStyleTPose, ArmStyleHandsOnHips, *t.ArmStyle)
	}
	if t.ShoulderWidthCm != nil && *t.ShoulderWidthCm <= 0 {
		return fmt.Errorf("shoulder_width_cm must be positive, got %f", *t.ShoulderWidthCm)
	}
	if t.FallbackScaleCmPerUnit != nil && *t.FallbackScaleCmPerUnit <= 0 {
		return fmt.Errorf("fallback_scale_cm_per_unit must be positive, got %f", *t.FallbackScaleCmPerUnit)
	}
	if t.CorrectionThresholdCm != nil && *t.CorrectionThresholdCm < 0 {
		return fmt.Errorf("correction_threshold_cm must be non-negative, got %f", *t.CorrectionThresholdCm)
	}
	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetTargetHold returns the hold duration required for a completed test.
func (t *Tuning) GetTargetHold() time.Duration {
	return durationOr(t.TargetHold, 30*time.Second)
}

// GetReadyBuffer returns how long the position must stay valid before holding starts.
func (t *Tuning) GetReadyBuffer() time.Duration {
	return durationOr(t.ReadyBuffer, time.Second)
}

// GetTrackingLossTimeout returns how long without a usable frame counts as tracking loss.
func (t *Tuning) GetTrackingLossTimeout() time.Duration {
	return durationOr(t.TrackingLossTimeout, 500*time.Millisecond)
}

// GetDebounceFrames returns the consecutive qualifying frames required before
// a failure condition triggers.
func (t *Tuning) GetDebounceFrames() int {
	if t.DebounceFrames == nil {
		return 6
	}
	return *t.DebounceFrames
}

// GetTouchdownProximity returns the touchdown_proximity value or the default.
func (t *Tuning) GetTouchdownProximity() float64 {
	if t.TouchdownProximity == nil {
		return 0.03
	}
	return *t.TouchdownProximity
}

// GetTouchdownMinDescent returns the touchdown_min_descent value or the default.
func (t *Tuning) GetTouchdownMinDescent() float64 {
	if t.TouchdownMinDescent == nil {
		return 0.06
	}
	return *t.TouchdownMinDescent
}

// GetSupportFootMoveLimit returns the support_foot_move_limit value or the default.
func (t *Tuning) GetSupportFootMoveLimit() float64 {
	if t.SupportFootMoveLimit == nil {
		return 0.04
	}
	return *t.SupportFootMoveLimit
}

// GetRaisedLegMinLift returns the raised_leg_min_lift value or the default.
func (t *Tuning) GetRaisedLegMinLift() float64 {
	if t.RaisedLegMinLift == nil {
		return 0.06
	}
	return *t.RaisedLegMinLift
}

// GetArmStyle returns the configured arm posture style or the default T-pose.
func (t *Tuning) GetArmStyle() string {
	if t.ArmStyle == nil || *t.ArmStyle == "" {
		return ArmStyleTPose
	}
	return *t.ArmStyle
}

// GetArmDropTolerance returns the arm_drop_tolerance value or the default.
func (t *Tuning) GetArmDropTolerance() float64 {
	if t.ArmDropTolerance == nil {
		return 0.10
	}
	return *t.ArmDropTolerance
}

// GetHandsOnHipsRadius returns the hands_on_hips_radius value or the default.
func (t *Tuning) GetHandsOnHipsRadius() float64 {
	if t.HandsOnHipsRadius == nil {
		return 0.15
	}
	return *t.HandsOnHipsRadius
}

// GetShoulderWidthCm returns the assumed shoulder breadth for the target age range.
func (t *Tuning) GetShoulderWidthCm() float64 {
	if t.ShoulderWidthCm == nil {
		return 40.0
	}
	return *t.ShoulderWidthCm
}

// GetFallbackScaleCmPerUnit returns the fixed scale used when the shoulders
// are never reliably visible, derived from an assumed 150cm reference.
func (t *Tuning) GetFallbackScaleCmPerUnit() float64 {
	if t.FallbackScaleCmPerUnit == nil {
		return 150.0
	}
	return *t.FallbackScaleCmPerUnit
}

// GetCorrectionThresholdCm returns the correction_threshold_cm value or the default.
func (t *Tuning) GetCorrectionThresholdCm() float64 {
	if t.CorrectionThresholdCm == nil {
		return 2.0
	}
	return *t.CorrectionThresholdCm
}

// GetWindowWidth returns the fixed segmentation window width.
func (t *Tuning) GetWindowWidth() time.Duration {
	return durationOr(t.WindowWidth, 5*time.Second)
}

// filterConfig assembles the smoothing filter parameters.
func (t *Tuning) filterConfig() filter.Config {
	cfg := filter.DefaultConfig()
	if t.FilterRate != nil && *t.FilterRate > 0 {
		cfg.Rate = *t.FilterRate
	}
	if t.FilterMinCutoff != nil && *t.FilterMinCutoff > 0 {
		cfg.MinCutoff = *t.FilterMinCutoff
	}
	if t.FilterBeta != nil && *t.FilterBeta >= 0 {
		cfg.Beta = *t.FilterBeta
	}
	if t.FilterDCutoff != nil && *t.FilterDCutoff > 0 {
		cfg.DCutoff = *t.FilterDCutoff
	}
	return cfg
}

// eventConfig assembles the event detector thresholds.
func (t *Tuning) eventConfig() metrics.EventConfig {
	cfg := metrics.DefaultEventConfig()
	cfg.CorrectionThresholdCm = t.GetCorrectionThresholdCm()
	return cfg
}
