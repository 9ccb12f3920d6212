// Package keypoints reads and writes raw landmark recordings: the complete
// per-frame keypoint dump captured alongside a live attempt, kept so tests can
// be reprocessed offline after tuning or algorithm changes.
package keypoints

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/finessevanes/ltad-coach-sub005/internal/pose"
)

// Recordings can get large (30fps for up to a minute, 33 landmarks per frame)
// but never this large.
const maxFileSize = 64 * 1024 * 1024

// FrameRecord is one captured frame. Landmarks are [x, y, z, visibility]
// quadruples in source order; world landmarks are optional and fall back to
// the normalized set when the capture pipeline did not produce them.
type FrameRecord struct {
	TimestampMs    float64      `json:"timestamp_ms"`
	Landmarks      [][4]float64 `json:"landmarks"`
	WorldLandmarks [][4]float64 `json:"world_landmarks,omitempty"`
}

// Recording is a full raw capture of one attempt.
type Recording struct {
	FPS             float64       `json:"fps,omitempty"`
	LegTested       string        `json:"leg_tested,omitempty"`
	DurationSeconds float64       `json:"duration_seconds,omitempty"`
	FailureReason   string        `json:"failure_reason,omitempty"`
	Frames          []FrameRecord `json:"frames"`
}

// Load reads and validates a recording from a JSON file.
func Load(path string) (*Recording, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("recording file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat recording file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("recording file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording file: %w", err)
	}

	var r Recording
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse recording JSON: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recording: %w", err)
	}
	return &r, nil
}

// Save writes the recording as indented JSON.
func Save(path string, r *Recording) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid recording: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal recording: %w", err)
	}
	if err := os.WriteFile(filepath.Clean(path), data, 0o644); err != nil {
		return fmt.Errorf("failed to write recording file: %w", err)
	}
	return nil
}

// Validate checks the structural invariants of the capture.
func (r *Recording) Validate() error {
	if len(r.Frames) == 0 {
		return fmt.Errorf("recording has no frames")
	}
	for i, f := range r.Frames {
		if len(f.Landmarks) != pose.LandmarkCount {
			return fmt.Errorf("frame %d has %d landmarks, want %d", i, len(f.Landmarks), pose.LandmarkCount)
		}
		if f.WorldLandmarks != nil && len(f.WorldLandmarks) != pose.LandmarkCount {
			return fmt.Errorf("frame %d has %d world landmarks, want %d", i, len(f.WorldLandmarks), pose.LandmarkCount)
		}
	}
	if r.LegTested != "" && !pose.Leg(r.LegTested).Valid() {
		return fmt.Errorf("unknown leg_tested %q", r.LegTested)
	}
	return nil
}

// PoseFrames converts the capture into engine frames. Frames without explicit
// timestamps are spaced at the recording FPS (default 30). Captures without
// world landmarks reuse the normalized set, which keeps arm angles meaningful
// since those depend only on relative positions.
func (r *Recording) PoseFrames() ([]pose.Frame, error) {
	fps := r.FPS
	if fps <= 0 {
		fps = 30
	}

	frames := make([]pose.Frame, 0, len(r.Frames))
	for i, rec := range r.Frames {
		ts := time.Duration(rec.TimestampMs * float64(time.Millisecond))
		if rec.TimestampMs == 0 && i > 0 {
			ts = time.Duration(float64(i) / fps * float64(time.Second))
		}

		normalized := toPoints(rec.Landmarks)
		world := normalized
		if rec.WorldLandmarks != nil {
			world = toPoints(rec.WorldLandmarks)
		}

		f, err := pose.NewFrame(ts, normalized, world)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func toPoints(landmarks [][4]float64) []pose.Point {
	pts := make([]pose.Point, len(landmarks))
	for i, l := range landmarks {
		pts[i] = pose.Point{X: l[0], Y: l[1], Z: l[2], Visibility: l[3]}
	}
	return pts
}

// FromFrames builds a recording from engine frames, expanding the retained
// joints back to full landmark rows. Unretained landmark slots are zero with
// zero visibility; replays ignore them.
func FromFrames(frames []pose.Frame, leg pose.Leg, fps float64) *Recording {
	r := &Recording{FPS: fps, LegTested: string(leg)}
	for _, f := range frames {
		rec := FrameRecord{
			TimestampMs:    float64(f.Timestamp) / float64(time.Millisecond),
			Landmarks:      make([][4]float64, pose.LandmarkCount),
			WorldLandmarks: make([][4]float64, pose.LandmarkCount),
		}
		for j := pose.Joint(0); j < pose.JointCount; j++ {
			n := f.Normalized[j]
			w := f.World[j]
			rec.Landmarks[pose.SourceIndex(j)] = [4]float64{n.X, n.Y, n.Z, n.Visibility}
			rec.WorldLandmarks[pose.SourceIndex(j)] = [4]float64{w.X, w.Y, w.Z, w.Visibility}
		}
		r.Frames = append(r.Frames, rec)
	}
	if n := len(frames); n > 0 {
		r.DurationSeconds = (frames[n-1].Timestamp - frames[0].Timestamp).Seconds()
	}
	return r
}
