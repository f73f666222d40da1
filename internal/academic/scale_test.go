package academic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/academic-engine/internal/models"
)

func TestGradeBoundaries(t *testing.T) {
	cases := []struct {
		percentage float64
		letter     models.LetterGrade
		point      float64
	}{
		{100, models.LetterAPlus, 4.00},
		{95, models.LetterAPlus, 4.00},
		{94.99, models.LetterA, 3.75},
		{90, models.LetterA, 3.75},
		{85, models.LetterBPlus, 3.50},
		{80, models.LetterB, 3.00},
		{75, models.LetterCPlus, 2.50},
		{70, models.LetterC, 2.00},
		{65, models.LetterDPlus, 1.50},
		{60, models.LetterD, 1.00},
		{59.99, models.LetterF, 0},
		{0, models.LetterF, 0},
		{120, models.LetterAPlus, 4.00},
		{-5, models.LetterF, 0},
		{math.NaN(), models.LetterF, 0},
	}
	for _, tc := range cases {
		mark := Grade(tc.percentage)
		assert.Equal(t, tc.letter, mark.Letter, "percentage %v", tc.percentage)
		assert.Equal(t, tc.point, mark.QualityPoint, "percentage %v", tc.percentage)
	}
}

func TestGradeIsMonotonic(t *testing.T) {
	prev := Grade(0).QualityPoint
	for p := 0.0; p < 100; p += 0.25 {
		point := Grade(p).QualityPoint
		assert.GreaterOrEqual(t, point, prev, "percentage %v", p)
		assert.Equal(t, Grade(p), Grade(p))
		prev = point
	}
}

func TestGradeRoundsBeforeLookup(t *testing.T) {
	assert.Equal(t, models.LetterA, Grade(89.999).Letter)
	assert.Equal(t, models.LetterBPlus, Grade(89.994).Letter)
}

func TestQualityPointFor(t *testing.T) {
	qp, ok := QualityPointFor(models.LetterBPlus)
	assert.True(t, ok)
	assert.Equal(t, 3.5, qp)

	qp, ok = QualityPointFor(models.LetterF)
	assert.True(t, ok)
	assert.Zero(t, qp)

	_, ok = QualityPointFor("Z")
	assert.False(t, ok)

	assert.True(t, IsPassing(models.LetterD))
	assert.False(t, IsPassing(models.LetterF))
	assert.False(t, IsPassing(""))
}
