package academic

import (
	"sort"

	"github.com/noah-isme/academic-engine/internal/models"
)

type standingBand struct {
	min   float64
	label models.StandingLabel
}

var standingBands = []standingBand{
	{3.67, models.StandingExcellent},
	{3.00, models.StandingVeryGood},
	{2.33, models.StandingGood},
	{2.00, models.StandingAcceptable},
}

// ClassifyStanding maps a GPA onto its standing band; the first band whose lower bound is met wins.
func ClassifyStanding(gpa float64) models.StandingLabel {
	g := Round2(gpa)
	for _, band := range standingBands {
		if g >= band.min {
			return band.label
		}
	}
	return models.StandingProbation
}

// counts reports whether a course contributes to GPA: complete, published and not withdrawn.
func counts(c models.TermCourse) bool {
	return !c.Withdrawn && c.IsComplete() && c.IsPublished && c.Credits > 0
}

func weightedGPA(courses []models.TermCourse) (float64, int) {
	var points float64
	var credits int
	for _, c := range courses {
		if !counts(c) {
			continue
		}
		points += c.QualityPoint * float64(c.Credits)
		credits += c.Credits
	}
	if credits == 0 {
		return 0, 0
	}
	return Round2(points / float64(credits)), credits
}

// TermGPA fills GPA and TotalCredits of a term from its published, non-withdrawn courses.
// A term without qualifying credits has GPA 0.
func TermGPA(term models.TermRecord) models.TermRecord {
	term.GPA, term.TotalCredits = weightedGPA(term.Courses)
	return term
}

// CumulativeStanding computes every term's GPA and the cumulative standing across all terms.
// Terms are returned in display order (see SortTerms).
func CumulativeStanding(studentID string, terms []models.TermRecord) models.AcademicStanding {
	computed := make([]models.TermRecord, 0, len(terms))
	var all []models.TermCourse
	for _, term := range terms {
		computed = append(computed, TermGPA(term))
		all = append(all, term.Courses...)
	}
	SortTerms(computed)
	gpa, credits := weightedGPA(all)
	return models.AcademicStanding{
		StudentID:          studentID,
		CumulativeGPA:      gpa,
		TotalCreditsEarned: credits,
		Label:              ClassifyStanding(gpa),
		Terms:              computed,
	}
}

// SortTerms orders terms with the ACTIVE term first and the rest by descending name, then id.
func SortTerms(terms []models.TermRecord) {
	sort.SliceStable(terms, func(i, j int) bool {
		ai := terms[i].Status == models.TermStatusActive
		aj := terms[j].Status == models.TermStatusActive
		if ai != aj {
			return ai
		}
		if terms[i].Name != terms[j].Name {
			return terms[i].Name > terms[j].Name
		}
		return terms[i].TermID > terms[j].TermID
	})
}

// CurrentTerm returns the term treated as current for credit-load checks.
func CurrentTerm(terms []models.Term) (models.Term, bool) {
	records := make([]models.TermRecord, len(terms))
	for i, t := range terms {
		records[i] = models.TermRecord{TermID: t.ID, Name: t.Name, Status: t.Status}
	}
	SortTerms(records)
	if len(records) == 0 || records[0].Status != models.TermStatusActive {
		return models.Term{}, false
	}
	for _, t := range terms {
		if t.ID == records[0].TermID {
			return t, true
		}
	}
	return models.Term{}, false
}
