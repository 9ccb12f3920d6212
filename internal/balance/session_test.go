package balance

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finessevanes/ltad-coach-sub005/internal/pose"
	"github.com/finessevanes/ltad-coach-sub005/internal/timeutil"
)

const frameStep = 100 * time.Millisecond

func newTestSession(t *testing.T, tn *Tuning) *Session {
	t.Helper()
	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	s, err := NewSession(tn, pose.LegLeft, WithClock(clock))
	require.NoError(t, err)
	return s
}

// driveToHolding starts the session and pushes valid frames at frameStep
// intervals from t=0 until the ready buffer elapses. Returns the timestamp of
// the frame that entered holding.
func driveToHolding(t *testing.T, s *Session) time.Duration {
	t.Helper()
	require.NoError(t, s.Start())
	ts := time.Duration(0)
	for {
		require.NoError(t, s.PushFrame(validFrame(ts)))
		if s.State() == StateHolding {
			return ts
		}
		require.Equal(t, StateReady, s.State())
		ts += frameStep
		if ts > 5*time.Second {
			t.Fatal("never entered holding")
		}
	}
}

func TestNewSession_InvalidLeg(t *testing.T) {
	_, err := NewSession(EmptyTuning(), pose.Leg("both"))
	assert.Error(t, err)
}

func TestSession_StartOnlyFromIdle(t *testing.T) {
	s := newTestSession(t, nil)
	require.Equal(t, StateIdle, s.State())

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrNotIdle)
}

func TestSession_IdleBuffersWithoutEvaluating(t *testing.T) {
	s := newTestSession(t, nil)
	for ts := time.Duration(0); ts < 2*time.Second; ts += frameStep {
		require.NoError(t, s.PushFrame(validFrame(ts)))
	}
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 20, s.Snapshot().Frames)
}

func TestSession_ReadyBufferGatesHolding(t *testing.T) {
	s := newTestSession(t, nil)
	held := driveToHolding(t, s)
	// valid since t=0, 1s continuous buffer
	assert.Equal(t, time.Second, held)
}

func TestSession_ReadyBufferResetsOnInvalidFrame(t *testing.T) {
	s := newTestSession(t, nil)
	require.NoError(t, s.Start())

	for ts := time.Duration(0); ts <= 500*time.Millisecond; ts += frameStep {
		require.NoError(t, s.PushFrame(validFrame(ts)))
	}

	// dropped arm breaks the streak at 600ms
	bad := validFrame(600 * time.Millisecond)
	bad.Normalized[pose.LeftWrist].Y = 0.45
	require.NoError(t, s.PushFrame(bad))
	snap := s.Snapshot()
	assert.False(t, snap.InPosition)
	assert.Contains(t, snap.FailedChecks, "arms_tpose")

	// valid again from 700ms; the buffer restarts there
	for ts := 700 * time.Millisecond; ts <= 1600*time.Millisecond; ts += frameStep {
		require.NoError(t, s.PushFrame(validFrame(ts)))
		assert.Equal(t, StateReady, s.State(), "at %s", ts)
	}
	require.NoError(t, s.PushFrame(validFrame(1700*time.Millisecond)))
	assert.Equal(t, StateHolding, s.State())
}

func TestSession_ReadyBufferResetsOnUnusableFrame(t *testing.T) {
	s := newTestSession(t, nil)
	require.NoError(t, s.Start())

	for ts := time.Duration(0); ts <= 900*time.Millisecond; ts += frameStep {
		require.NoError(t, s.PushFrame(validFrame(ts)))
	}
	low := validFrame(950 * time.Millisecond)
	low.Normalized[pose.LeftHip].Visibility = 0.2
	low.LowConfidence = true
	require.NoError(t, s.PushFrame(low))

	require.NoError(t, s.PushFrame(validFrame(time.Second)))
	assert.Equal(t, StateReady, s.State(), "low-confidence frame must restart the buffer")
}

func TestSession_ShoulderCalibration(t *testing.T) {
	s := newTestSession(t, nil)
	require.NoError(t, s.Start())
	require.NoError(t, s.PushFrame(validFrame(0)))

	// shoulder width 0.30 units, assumed 40cm breadth
	assert.InDelta(t, 40.0/0.30, s.Snapshot().ScaleCmPerUnit, 1e-9)
}

func TestSession_FallbackCalibration(t *testing.T) {
	s := newTestSession(t, nil)
	require.NoError(t, s.Start())

	ts := time.Duration(0)
	for s.State() != StateHolding {
		f := validFrame(ts)
		f.Normalized[pose.LeftShoulder].Visibility = 0.3
		f.Normalized[pose.RightShoulder].Visibility = 0.3
		require.NoError(t, s.PushFrame(f))
		ts += frameStep
	}
	assert.Equal(t, 150.0, s.Snapshot().ScaleCmPerUnit)
}

func TestSession_TouchdownDebounce(t *testing.T) {
	s := newTestSession(t, nil)
	ts := driveToHolding(t, s)

	touchdown := func(at time.Duration) pose.Frame {
		f := validFrame(at)
		// raised ankle descended 0.09 and within 0.01 of the support level
		f.Normalized[pose.RightAnkle].Y = 0.89
		return f
	}

	// five qualifying frames are one short of the debounce
	for i := 0; i < 5; i++ {
		ts += frameStep
		require.NoError(t, s.PushFrame(touchdown(ts)))
	}
	require.Equal(t, StateHolding, s.State())

	// a clean frame resets the counter entirely
	ts += frameStep
	require.NoError(t, s.PushFrame(validFrame(ts)))

	for i := 0; i < 5; i++ {
		ts += frameStep
		require.NoError(t, s.PushFrame(touchdown(ts)))
		require.Equal(t, StateHolding, s.State(), "frame %d after reset", i+1)
	}
	ts += frameStep
	require.NoError(t, s.PushFrame(touchdown(ts)))
	require.Equal(t, StateFailed, s.State())

	res, err := s.Result()
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ReasonFootTouchdown, res.EndReason)
	assert.Equal(t, ts-time.Second, res.HoldDuration)
}

func TestSession_TouchdownRequiresDescent(t *testing.T) {
	// raised ankle near support level without ever having descended must not
	// trigger (the foot was simply never lifted far)
	tn := EmptyTuning()
	s := newTestSession(t, tn)
	ts := driveToHolding(t, s)

	for i := 0; i < 10; i++ {
		ts += frameStep
		f := validFrame(ts)
		f.Normalized[pose.RightAnkle].Y = 0.82 // descent only 0.02
		require.NoError(t, s.PushFrame(f))
	}
	assert.Equal(t, StateHolding, s.State())
}

func TestSession_SupportFootMoveFailure(t *testing.T) {
	s := newTestSession(t, nil)
	ts := driveToHolding(t, s)

	for i := 0; i < 6; i++ {
		ts += frameStep
		f := validFrame(ts)
		f.Normalized[pose.LeftAnkle].X = 0.53 // 0.05 from start, limit 0.04
		require.NoError(t, s.PushFrame(f))
	}
	require.Equal(t, StateFailed, s.State())

	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, ReasonSupportFootMoved, res.EndReason)
}

func TestSession_TrackingLossFailure(t *testing.T) {
	s := newTestSession(t, nil)
	ts := driveToHolding(t, s)
	holdStart := ts

	for s.State() == StateHolding {
		ts += frameStep
		f := validFrame(ts)
		f.Normalized[pose.LeftHip].Visibility = 0.2
		f.LowConfidence = true
		require.NoError(t, s.PushFrame(f))
		require.Less(t, ts, holdStart+5*time.Second, "tracking loss never triggered")
	}
	require.Equal(t, StateFailed, s.State())

	// loss condition true from 500ms after the last usable frame, plus the
	// six-frame debounce
	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, ReasonTrackingLost, res.EndReason)
	assert.Equal(t, time.Second, res.HoldDuration)
}

func TestSession_OcclusionDoesNotResetFootDebounce(t *testing.T) {
	s := newTestSession(t, nil)
	ts := driveToHolding(t, s)

	touchdown := func(at time.Duration, usable bool) pose.Frame {
		f := validFrame(at)
		f.Normalized[pose.RightAnkle].Y = 0.89
		if !usable {
			f.Normalized[pose.LeftHip].Visibility = 0.2
			f.LowConfidence = true
		}
		return f
	}

	for i := 0; i < 5; i++ {
		ts += frameStep
		require.NoError(t, s.PushFrame(touchdown(ts, true)))
	}
	// one occluded frame in the middle of the touchdown
	ts += frameStep
	require.NoError(t, s.PushFrame(touchdown(ts, false)))
	require.Equal(t, StateHolding, s.State())

	// the next usable qualifying frame completes the debounce
	ts += frameStep
	require.NoError(t, s.PushFrame(touchdown(ts, true)))
	assert.Equal(t, StateFailed, s.State())
}

func TestSession_Completion(t *testing.T) {
	hold := "3s"
	s := newTestSession(t, &Tuning{TargetHold: &hold})
	ts := driveToHolding(t, s)

	// 70ms steps so the triggering frame overshoots the target
	step := 70 * time.Millisecond
	for s.State() == StateHolding {
		ts += step
		require.NoError(t, s.PushFrame(validFrame(ts)))
	}
	require.Equal(t, StateCompleted, s.State())

	res, err := s.Result()
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, ReasonTimeComplete, res.EndReason)
	// duration clamps to the target even when the frame lands past it
	assert.Equal(t, 3*time.Second, res.HoldDuration)
	assert.Equal(t, pose.LegLeft, res.Leg)

	// a stationary hip produces zero sway
	assert.Zero(t, res.Sway.StdXCm)
	assert.Zero(t, res.Sway.PathLengthCm)
	assert.Zero(t, res.Sway.Corrections)

	// T-pose wrists at shoulder height are level arms
	assert.InDelta(t, 0.0, res.Arms.LeftDeg, 1e-9)
	assert.InDelta(t, 0.0, res.Arms.RightDeg, 1e-9)

	assert.Equal(t, 1, res.Score.Duration)
	assert.Equal(t, "Beginning", res.Score.DurationLabel)
	// score 1 with a sub-5s hold sits at the adjusted bottom-band percentile
	assert.Equal(t, 10, res.Score.Percentile)

	assert.Len(t, res.Thirds, 3)
	require.Len(t, res.Windows, 1) // 3s hold, 5s window width
	assert.Equal(t, "0-3s", res.Windows[0].Label)

	assert.Equal(t, len(res.Frames), len(res.HipTrajectory))
	assert.Zero(t, res.LowConfidenceFrames)
}

func TestSession_CalibratedDisplacement(t *testing.T) {
	hold := "4s"
	s := newTestSession(t, &Tuning{TargetHold: &hold})
	ts := driveToHolding(t, s)

	// hold still briefly, then shift the hip 0.015 normalized units sideways
	// and stay there until completion so the smoother converges
	for s.State() == StateHolding {
		ts += frameStep
		f := validFrame(ts)
		if ts > 1500*time.Millisecond {
			f.Normalized[pose.LeftHip].X += 0.015
			f.Normalized[pose.RightHip].X += 0.015
		}
		require.NoError(t, s.PushFrame(f))
	}
	require.Equal(t, StateCompleted, s.State())

	res, err := s.Result()
	require.NoError(t, err)
	assert.InDelta(t, 40.0/0.30, res.ScaleCmPerUnit, 1e-9)

	// 0.015 units at 133.3 cm/unit reads as a 2.0 cm displacement
	traj := res.HipTrajectory
	require.NotEmpty(t, traj)
	first, last := traj[0], traj[len(traj)-1]
	assert.InDelta(t, 2.0, math.Hypot(last.X-first.X, last.Y-first.Y), 0.02)
}

func TestSession_SnapshotCarriesCreationStamp(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(created)
	s, err := NewSession(nil, pose.LegRight, WithClock(clock))
	require.NoError(t, err)

	clock.Advance(time.Minute)
	assert.True(t, s.Snapshot().CreatedAt.Equal(created))
}

func TestSession_TerminalRejectsEverything(t *testing.T) {
	hold := "2s"
	s := newTestSession(t, &Tuning{TargetHold: &hold})
	ts := driveToHolding(t, s)
	for s.State() == StateHolding {
		ts += frameStep
		require.NoError(t, s.PushFrame(validFrame(ts)))
	}
	require.Equal(t, StateCompleted, s.State())

	assert.ErrorIs(t, s.PushFrame(validFrame(ts+frameStep)), ErrSessionTerminal)
	assert.ErrorIs(t, s.Start(), ErrSessionTerminal)
	assert.ErrorIs(t, s.Cancel(), ErrSessionTerminal)
}

func TestSession_CancelFromHolding(t *testing.T) {
	s := newTestSession(t, nil)
	ts := driveToHolding(t, s)
	for i := 0; i < 8; i++ {
		ts += frameStep
		require.NoError(t, s.PushFrame(validFrame(ts)))
	}

	require.NoError(t, s.Cancel())
	assert.Equal(t, StateAborted, s.State())
	assert.Equal(t, 800*time.Millisecond, s.Snapshot().HoldTime)

	// aborted attempts assemble no result
	_, err := s.Result()
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestSession_CancelFromIdle(t *testing.T) {
	s := newTestSession(t, nil)
	require.NoError(t, s.Cancel())
	assert.Equal(t, StateAborted, s.State())
	assert.Zero(t, s.Snapshot().HoldTime)
}

func TestSession_OutOfOrderFrame(t *testing.T) {
	s := newTestSession(t, nil)
	require.NoError(t, s.Start())
	require.NoError(t, s.PushFrame(validFrame(frameStep)))
	assert.ErrorIs(t, s.PushFrame(validFrame(frameStep)), ErrOutOfOrder)
}

func TestSession_ResultBeforeTerminal(t *testing.T) {
	s := newTestSession(t, nil)
	_, err := s.Result()
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestSession_Reset(t *testing.T) {
	s := newTestSession(t, nil)
	driveToHolding(t, s)
	require.NoError(t, s.Cancel())

	fresh, err := s.Reset()
	require.NoError(t, err)
	assert.Equal(t, StateIdle, fresh.State())
	assert.Zero(t, fresh.Snapshot().Frames)
}

// swayFrame shifts the hip midpoint sideways by dx normalized units.
func swayFrame(ts time.Duration, dx float64) pose.Frame {
	f := validFrame(ts)
	f.Normalized[pose.LeftHip].X += dx
	f.Normalized[pose.RightHip].X += dx
	return f
}

func runScripted(t *testing.T) *TestResult {
	t.Helper()
	hold := "4s"
	s := newTestSession(t, &Tuning{TargetHold: &hold})
	require.NoError(t, s.Start())

	ts := time.Duration(0)
	for s.State() != StateHolding {
		require.NoError(t, s.PushFrame(validFrame(ts)))
		ts += frameStep
	}
	for s.State() == StateHolding {
		dx := 0.02 * math.Sin(ts.Seconds()*2*math.Pi)
		require.NoError(t, s.PushFrame(swayFrame(ts, dx)))
		ts += frameStep
	}
	require.Equal(t, StateCompleted, s.State())
	res, err := s.Result()
	require.NoError(t, err)
	return res
}

func TestSession_DeterministicReassembly(t *testing.T) {
	first := runScripted(t)
	second := runScripted(t)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("same frame sequence produced different results:\n%s", diff)
	}
	// the swaying run actually exercised the calculators
	assert.Greater(t, first.Sway.PathLengthCm, 0.0)
}
