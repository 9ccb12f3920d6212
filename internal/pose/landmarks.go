// Package pose defines the landmark data model consumed by the balance test
// engine: per-frame keypoints in both screen-normalized and world (metre)
// space, reduced to the eight joints the engine actually tracks.
package pose

import (
	"fmt"
	"time"
)

// LandmarkCount is the number of keypoints produced per frame by the external
// pose-estimation source (33-point full-body model).
const LandmarkCount = 33

// MinVisibility is the confidence below which a joint estimate is considered
// unreliable. Frames whose centre-of-mass joints fall under this threshold are
// retained but excluded from numeric calculations.
const MinVisibility = 0.7

// Source model landmark indices for the joints the engine retains.
const (
	srcLeftShoulder  = 11
	srcRightShoulder = 12
	srcLeftWrist     = 15
	srcRightWrist    = 16
	srcLeftHip       = 23
	srcRightHip      = 24
	srcLeftAnkle     = 27
	srcRightAnkle    = 28
)

// Joint identifies one of the eight keypoints retained per frame. All other
// source landmarks are discarded on ingest to bound memory.
type Joint int

const (
	LeftShoulder Joint = iota
	RightShoulder
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftAnkle
	RightAnkle

	// JointCount is the number of retained joints.
	JointCount
)

var sourceIndex = [JointCount]int{
	LeftShoulder:  srcLeftShoulder,
	RightShoulder: srcRightShoulder,
	LeftWrist:     srcLeftWrist,
	RightWrist:    srcRightWrist,
	LeftHip:       srcLeftHip,
	RightHip:      srcRightHip,
	LeftAnkle:     srcLeftAnkle,
	RightAnkle:    srcRightAnkle,
}

var jointNames = [JointCount]string{
	"left_shoulder", "right_shoulder",
	"left_wrist", "right_wrist",
	"left_hip", "right_hip",
	"left_ankle", "right_ankle",
}

// SourceIndex returns the source-model landmark index of a retained joint.
func SourceIndex(j Joint) int { return sourceIndex[j] }

func (j Joint) String() string {
	if j < 0 || j >= JointCount {
		return fmt.Sprintf("joint(%d)", int(j))
	}
	return jointNames[j]
}

// Point is one estimated keypoint position with its confidence score.
type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Frame is the per-timestamp keypoint set retained by the engine.
//
// Normalized coordinates are in [0,1] relative to the camera frame, Y
// increasing downward. World coordinates are camera-relative metres as
// produced by the source's 3D estimation mode. Both are immutable once
// captured.
type Frame struct {
	// Timestamp is the capture instant, relative to the start of the feed.
	Timestamp time.Duration `json:"timestamp"`

	Normalized [JointCount]Point `json:"normalized"`
	World      [JointCount]Point `json:"world"`

	// LowConfidence marks frames whose centre-of-mass joints fell below
	// MinVisibility. Such frames stay in the buffer for completeness but
	// are excluded from all downstream numeric work.
	LowConfidence bool `json:"low_confidence,omitempty"`
}

// NewFrame extracts the retained joints from a full capture of LandmarkCount
// landmarks in each representation.
func NewFrame(ts time.Duration, normalized, world []Point) (Frame, error) {
	if len(normalized) != LandmarkCount {
		return Frame{}, fmt.Errorf("pose: got %d normalized landmarks, want %d", len(normalized), LandmarkCount)
	}
	if len(world) != LandmarkCount {
		return Frame{}, fmt.Errorf("pose: got %d world landmarks, want %d", len(world), LandmarkCount)
	}

	f := Frame{Timestamp: ts}
	for j := Joint(0); j < JointCount; j++ {
		f.Normalized[j] = normalized[sourceIndex[j]]
		f.World[j] = world[sourceIndex[j]]
	}

	// The hips are the centre-of-mass proxy for every sway calculation.
	f.LowConfidence = f.Normalized[LeftHip].Visibility < MinVisibility ||
		f.Normalized[RightHip].Visibility < MinVisibility
	return f, nil
}

// Usable reports whether the frame participates in numeric calculations.
func (f Frame) Usable() bool { return !f.LowConfidence }

// HipMidpoint returns the normalized centre-of-mass proxy point.
func (f Frame) HipMidpoint() (x, y float64) {
	x = (f.Normalized[LeftHip].X + f.Normalized[RightHip].X) / 2
	y = (f.Normalized[LeftHip].Y + f.Normalized[RightHip].Y) / 2
	return x, y
}

// Leg identifies which leg the athlete stands on for the attempt.
type Leg string

const (
	LegLeft  Leg = "left"
	LegRight Leg = "right"
)

// Valid reports whether l names a known leg.
func (l Leg) Valid() bool { return l == LegLeft || l == LegRight }

// SupportAnkle returns the ankle joint of the standing leg.
func (l Leg) SupportAnkle() Joint {
	if l == LegLeft {
		return LeftAnkle
	}
	return RightAnkle
}

// RaisedAnkle returns the ankle joint of the lifted leg.
func (l Leg) RaisedAnkle() Joint {
	if l == LegLeft {
		return RightAnkle
	}
	return LeftAnkle
}
