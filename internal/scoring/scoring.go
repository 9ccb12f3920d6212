// Package scoring maps raw balance-test output onto the LTAD interpretation
// scale: a 1-5 duration score with labels, age-based expectations, and a
// composite 0-100 stability score.
package scoring

// Duration score bands in seconds, per the balance assessment benchmarks for
// the 5-13 target age range.
const (
	advancedMinSeconds   = 25.0
	proficientMinSeconds = 20.0
	competentMinSeconds  = 15.0
	developingMinSeconds = 10.0
)

// Score labels, indexed by score.
var labels = [6]string{"", "Beginning", "Developing", "Competent", "Proficient", "Advanced"}

// DurationScore maps a hold duration in seconds to the 1-5 LTAD score and its
// label.
func DurationScore(seconds float64) (int, string) {
	score := 1
	switch {
	case seconds >= advancedMinSeconds:
		score = 5
	case seconds >= proficientMinSeconds:
		score = 4
	case seconds >= competentMinSeconds:
		score = 3
	case seconds >= developingMinSeconds:
		score = 2
	}
	return score, labels[score]
}

// AgeExpectedScore returns the score expected for an athlete's age per the
// LTAD developmental stages. The second return is false for ages outside the
// 5-13 range the benchmarks cover.
func AgeExpectedScore(age int) (int, bool) {
	switch {
	case age >= 5 && age <= 6:
		return 1, true
	case age == 7:
		return 2, true
	case age >= 8 && age <= 9:
		return 3, true
	case age >= 10 && age <= 11:
		return 4, true
	case age >= 12 && age <= 13:
		return 5, true
	default:
		return 0, false
	}
}

// Expectation statuses.
const (
	ExpectationMeets = "meets"
	ExpectationAbove = "above"
	ExpectationBelow = "below"
)

// Expectation compares a score against the age expectation. Unknown ages
// report "meets".
func Expectation(age, score int) string {
	expected, ok := AgeExpectedScore(age)
	if !ok {
		return ExpectationMeets
	}
	switch {
	case score > expected:
		return ExpectationAbove
	case score < expected:
		return ExpectationBelow
	default:
		return ExpectationMeets
	}
}

// Reference ceilings used to normalise each metric to [0,1] for the stability
// score. Values at or beyond the ceiling saturate.
const (
	refSwayStdMaxCm       = 5.0
	refSwayVelocityMaxCmS = 10.0
	refArmExcursionMaxDeg = 30.0
	refCorrectionsMax     = 10.0
)

// Stability score weights; lower raw values are better for every input.
const (
	weightSwayStd      = 0.30
	weightSwayVelocity = 0.25
	weightArmExcursion = 0.25
	weightCorrections  = 0.20
)

// StabilityScore composites combined sway deviation (StdX+StdY, cm), sway
// velocity (cm/s), average absolute arm deviation (degrees) and correction
// count into a 0-100 score, higher is better.
func StabilityScore(combinedSwayStdCm, swayVelocityCmPerSec, avgAbsArmDeg float64, corrections int) float64 {
	weighted := weightSwayStd*saturate(combinedSwayStdCm/refSwayStdMaxCm) +
		weightSwayVelocity*saturate(swayVelocityCmPerSec/refSwayVelocityMaxCmS) +
		weightArmExcursion*saturate(avgAbsArmDeg/refArmExcursionMaxDeg) +
		weightCorrections*saturate(float64(corrections)/refCorrectionsMax)

	score := (1 - weighted) * 100
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func saturate(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Percentile approximates a national percentile from the score band,
// fine-tuned by duration within the band. Score-based approximation until
// aggregated population data exists.
func Percentile(score int, seconds float64) int {
	base := map[int]int{1: 15, 2: 35, 3: 55, 4: 75, 5: 90}
	p, ok := base[score]
	if !ok {
		return 50
	}
	if score == 5 && seconds > 30 {
		p = min(98, p+5)
	} else if score == 1 && seconds < 5 {
		p = max(5, p-5)
	}
	return p
}
