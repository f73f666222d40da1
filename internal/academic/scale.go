// Package academic holds the grading and eligibility rules. Every function is a pure
// computation over the data it is given; loading and persisting is the caller's job.
package academic

import (
	"math"

	"github.com/noah-isme/academic-engine/internal/models"
)

// GradeMark is the letter and quality point a percentage maps to.
type GradeMark struct {
	Letter       models.LetterGrade `json:"letter"`
	QualityPoint float64            `json:"quality_point"`
}

type gradeBand struct {
	min  float64
	mark GradeMark
}

// scale is ordered by descending lower bound; lower bounds are inclusive.
var scale = []gradeBand{
	{95, GradeMark{models.LetterAPlus, 4.00}},
	{90, GradeMark{models.LetterA, 3.75}},
	{85, GradeMark{models.LetterBPlus, 3.50}},
	{80, GradeMark{models.LetterB, 3.00}},
	{75, GradeMark{models.LetterCPlus, 2.50}},
	{70, GradeMark{models.LetterC, 2.00}},
	{65, GradeMark{models.LetterDPlus, 1.50}},
	{60, GradeMark{models.LetterD, 1.00}},
}

var failing = GradeMark{models.LetterF, 0.00}

// Grade maps a percentage onto the grade scale. It is total: values above 100 map to A+,
// negative values and NaN map to F.
func Grade(percentage float64) GradeMark {
	if math.IsNaN(percentage) {
		return failing
	}
	p := Round2(percentage)
	for _, band := range scale {
		if p >= band.min {
			return band.mark
		}
	}
	return failing
}

// QualityPointFor returns the quality point of a letter, and false for unknown letters.
func QualityPointFor(letter models.LetterGrade) (float64, bool) {
	if letter == models.LetterF {
		return 0, true
	}
	for _, band := range scale {
		if band.mark.Letter == letter {
			return band.mark.QualityPoint, true
		}
	}
	return 0, false
}

// IsPassing reports whether a letter counts as passed for prerequisites.
func IsPassing(letter models.LetterGrade) bool {
	qp, ok := QualityPointFor(letter)
	return ok && qp > 0
}

// Round2 rounds half to even on two decimals.
func Round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
