package pose

import (
	"testing"
	"time"
)

// fullCapture builds a 33-landmark slice where each landmark encodes its own
// source index in X, so extraction can be verified positionally.
func fullCapture(visibility float64) []Point {
	pts := make([]Point, LandmarkCount)
	for i := range pts {
		pts[i] = Point{X: float64(i), Y: float64(i) / 100, Visibility: visibility}
	}
	return pts
}

func TestNewFrame_ExtractsRetainedJoints(t *testing.T) {
	frame, err := NewFrame(time.Second, fullCapture(1.0), fullCapture(1.0))
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}

	want := map[Joint]float64{
		LeftShoulder:  11,
		RightShoulder: 12,
		LeftWrist:     15,
		RightWrist:    16,
		LeftHip:       23,
		RightHip:      24,
		LeftAnkle:     27,
		RightAnkle:    28,
	}
	for j, x := range want {
		if frame.Normalized[j].X != x {
			t.Errorf("Normalized[%s].X = %v, want %v", j, frame.Normalized[j].X, x)
		}
		if frame.World[j].X != x {
			t.Errorf("World[%s].X = %v, want %v", j, frame.World[j].X, x)
		}
	}
	if frame.Timestamp != time.Second {
		t.Errorf("Timestamp = %v, want 1s", frame.Timestamp)
	}
}

func TestNewFrame_WrongLandmarkCount(t *testing.T) {
	if _, err := NewFrame(0, fullCapture(1)[:10], fullCapture(1)); err == nil {
		t.Error("expected error for short normalized slice")
	}
	if _, err := NewFrame(0, fullCapture(1), nil); err == nil {
		t.Error("expected error for missing world slice")
	}
}

func TestNewFrame_LowConfidenceTagging(t *testing.T) {
	norm := fullCapture(1.0)
	norm[srcLeftHip].Visibility = 0.5 // below MinVisibility

	frame, err := NewFrame(0, norm, fullCapture(1.0))
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	if frame.Usable() {
		t.Error("frame with occluded hip should not be usable")
	}

	// Low wrist visibility alone must not exclude the frame.
	norm = fullCapture(1.0)
	norm[srcLeftWrist].Visibility = 0.1
	frame, err = NewFrame(0, norm, fullCapture(1.0))
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	if !frame.Usable() {
		t.Error("frame with only a wrist occluded should stay usable")
	}
}

func TestHipMidpoint(t *testing.T) {
	norm := fullCapture(1.0)
	norm[srcLeftHip] = Point{X: 0.4, Y: 0.5, Visibility: 1}
	norm[srcRightHip] = Point{X: 0.6, Y: 0.7, Visibility: 1}

	frame, err := NewFrame(0, norm, fullCapture(1.0))
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	x, y := frame.HipMidpoint()
	if x != 0.5 || y != 0.6 {
		t.Errorf("HipMidpoint = (%v, %v), want (0.5, 0.6)", x, y)
	}
}

func TestLegAnkles(t *testing.T) {
	if LegLeft.SupportAnkle() != LeftAnkle || LegLeft.RaisedAnkle() != RightAnkle {
		t.Error("left leg ankle mapping wrong")
	}
	if LegRight.SupportAnkle() != RightAnkle || LegRight.RaisedAnkle() != LeftAnkle {
		t.Error("right leg ankle mapping wrong")
	}
	if !LegLeft.Valid() || Leg("both").Valid() {
		t.Error("leg validity wrong")
	}
}
