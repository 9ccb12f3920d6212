// Command balance replays a raw keypoint recording through the balance test
// engine and reports the result. Used to reprocess captured attempts offline
// after tuning or algorithm changes.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/finessevanes/ltad-coach-sub005/internal/balance"
	"github.com/finessevanes/ltad-coach-sub005/internal/keypoints"
	"github.com/finessevanes/ltad-coach-sub005/internal/pose"
	"github.com/finessevanes/ltad-coach-sub005/internal/scoring"
	"github.com/finessevanes/ltad-coach-sub005/internal/store"
	"github.com/finessevanes/ltad-coach-sub005/internal/version"
	"github.com/finessevanes/ltad-coach-sub005/internal/viz"
)

// Recordings far outside the plausible attempt length usually mean a broken
// capture; flag them but keep processing.
const (
	minPlausibleSeconds = 5.0
	maxPlausibleSeconds = 40.0
)

func main() {
	input := flag.String("input", "", "Raw keypoint recording (JSON)")
	leg := flag.String("leg", "", "Leg tested: left or right (default: from the recording)")
	tuningPath := flag.String("tuning", "", "Optional tuning overrides (JSON)")
	dbPath := flag.String("db", "", "Optional sqlite database to persist the result to")
	athleteID := flag.String("athlete", "", "Athlete id for persistence (required with -db)")
	chartPath := flag.String("chart", "", "Optional HTML chart output path")
	age := flag.Int("age", 0, "Athlete age, for the developmental expectation comparison")
	jsonOut := flag.Bool("json", false, "Print the full result as JSON instead of the summary")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *input == "" {
		flag.Usage()
		os.Exit(1)
	}
	if *dbPath != "" && *athleteID == "" {
		log.Fatal("-athlete is required when -db is set")
	}

	tuning := balance.EmptyTuning()
	if *tuningPath != "" {
		var err error
		tuning, err = balance.LoadTuning(*tuningPath)
		if err != nil {
			log.Fatalf("Failed to load tuning: %v", err)
		}
	}

	rec, err := keypoints.Load(*input)
	if err != nil {
		log.Fatalf("Failed to load recording: %v", err)
	}

	testLeg := pose.Leg(rec.LegTested)
	if *leg != "" {
		testLeg = pose.Leg(*leg)
	}
	if !testLeg.Valid() {
		log.Fatalf("No valid leg: recording says %q, -leg says %q", rec.LegTested, *leg)
	}

	frames, err := rec.PoseFrames()
	if err != nil {
		log.Fatalf("Failed to convert recording: %v", err)
	}
	if n := len(frames); n > 1 {
		seconds := (frames[n-1].Timestamp - frames[0].Timestamp).Seconds()
		if seconds < minPlausibleSeconds || seconds > maxPlausibleSeconds {
			log.Printf("Warning: recording spans %.1fs, outside the plausible %g-%gs attempt range",
				seconds, minPlausibleSeconds, maxPlausibleSeconds)
		}
	}

	res, err := replay(tuning, testLeg, frames)
	if err != nil {
		log.Fatalf("Replay failed: %v", err)
	}
	if res == nil {
		log.Println("Recording ended before the test finished; no result to report")
		return
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Fatalf("Failed to encode result: %v", err)
		}
	} else {
		printSummary(res)
		if *age > 0 {
			fmt.Println(ageExpectation(*age, res.Score.Duration))
		}
	}

	if *chartPath != "" {
		if err := viz.WriteFile(*chartPath, res); err != nil {
			log.Fatalf("Failed to write chart: %v", err)
		}
		log.Printf("Chart written to %s", *chartPath)
	}

	if *dbPath != "" {
		s, err := store.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer s.Close()

		id, err := s.SaveResult(context.Background(), *athleteID, res)
		if err != nil {
			log.Fatalf("Failed to save result: %v", err)
		}
		log.Printf("Result saved as %s", id)
	}
}

// replay drives the engine with the recorded frames. A feed that ends while
// the session is still live is cancelled, mirroring a camera cutting out.
func replay(tuning *balance.Tuning, leg pose.Leg, frames []pose.Frame) (*balance.TestResult, error) {
	session, err := balance.NewSession(tuning, leg)
	if err != nil {
		return nil, err
	}
	if err := session.Start(); err != nil {
		return nil, err
	}

	for _, f := range frames {
		err := session.PushFrame(f)
		if errors.Is(err, balance.ErrSessionTerminal) {
			break
		}
		if errors.Is(err, balance.ErrOutOfOrder) {
			log.Printf("Skipping out-of-order frame at %s", f.Timestamp)
			continue
		}
		if err != nil {
			return nil, err
		}
	}

	if !session.State().Terminal() {
		if err := session.Cancel(); err != nil {
			return nil, err
		}
	}

	res, err := session.Result()
	if errors.Is(err, balance.ErrNoResult) {
		return nil, nil
	}
	return res, err
}

func printSummary(res *balance.TestResult) {
	status := "FAILED"
	if res.Success {
		status = "COMPLETED"
	}
	fmt.Printf("%s  leg=%s  held=%.1fs  (%s)\n", status, res.Leg, res.HoldDuration.Seconds(), res.EndReason)
	fmt.Printf("score:     %d/5 %s, stability %.0f/100, ~%dth percentile\n",
		res.Score.Duration, res.Score.DurationLabel, res.Score.Stability, res.Score.Percentile)
	fmt.Printf("sway:      std %.2f/%.2f cm, path %.1f cm, velocity %.2f cm/s, %d corrections\n",
		res.Sway.StdXCm, res.Sway.StdYCm, res.Sway.PathLengthCm, res.Sway.VelocityCmPerSec, res.Sway.Corrections)
	fmt.Printf("arms:      left %.1f°, right %.1f°, asymmetry %.2f\n",
		res.Arms.LeftDeg, res.Arms.RightDeg, res.Arms.AsymmetryRatio)
	fmt.Printf("frames:    %d total, %d low-confidence, scale %.1f cm/unit",
		res.FrameCount, res.LowConfidenceFrames, res.ScaleCmPerUnit)
	if res.ScaleFallback {
		fmt.Print(" (fallback)")
	}
	fmt.Println()
	for _, seg := range res.Thirds {
		fmt.Printf("  %-6s velocity %.2f cm/s, %d corrections, arms %.1f°/%.1f°\n",
			seg.Label, seg.SwayVelocityCmPerSec, seg.Corrections, seg.ArmLeftDeg, seg.ArmRightDeg)
	}
	for _, ev := range res.Events {
		fmt.Printf("  event %-20s %-8s t=%-6s %s\n", ev.Type, ev.Severity, ev.Time, ev.Detail)
	}
}

// ageExpectation formats the developmental comparison line for an athlete age.
func ageExpectation(age, score int) string {
	expected, ok := scoring.AgeExpectedScore(age)
	if !ok {
		return fmt.Sprintf("age:       %d is outside the 5-13 benchmark range", age)
	}
	return fmt.Sprintf("age:       %d expects %d/5, result is %s expectation",
		age, expected, scoring.Expectation(age, score))
}
