package academic

import (
	"fmt"

	"github.com/noah-isme/academic-engine/internal/models"
)

// CreditLoadInput is the data the credit ceiling is checked against.
type CreditLoadInput struct {
	StudentID string
	// CurrentCredits is the sum of credits of ENROLLED sections in the active term.
	CurrentCredits int
	Candidates     []models.Section
	MaxCredits     int
}

// CreditLoadResult is the outcome of a credit-load check.
type CreditLoadResult struct {
	StudentID          string `json:"student_id"`
	CurrentCredits     int    `json:"current_credits"`
	CandidateCredits   int    `json:"candidate_credits"`
	TotalWithCandidate int    `json:"total_with_candidate"`
	MaxCredits         int    `json:"max_credits"`
	Overage            int    `json:"overage"`
	Valid              bool   `json:"valid"`
	Message            string `json:"message,omitempty"`
}

// ValidateCreditLoad checks current plus candidate credits against the programme ceiling.
// The ceiling is hard: a total above MaxCredits is never valid.
func ValidateCreditLoad(in CreditLoadInput) CreditLoadResult {
	result := CreditLoadResult{
		StudentID:      in.StudentID,
		CurrentCredits: in.CurrentCredits,
		MaxCredits:     in.MaxCredits,
	}
	for _, s := range in.Candidates {
		result.CandidateCredits += s.Credits
	}
	result.TotalWithCandidate = in.CurrentCredits + result.CandidateCredits
	result.Valid = result.TotalWithCandidate <= in.MaxCredits
	if !result.Valid {
		result.Overage = result.TotalWithCandidate - in.MaxCredits
		result.Message = fmt.Sprintf("credit load of %d exceeds the maximum of %d by %d", result.TotalWithCandidate, in.MaxCredits, result.Overage)
	}
	return result
}

// EnrolledCredits sums credits of ENROLLED sections in the given term.
func EnrolledCredits(current []models.EnrolledSection, termID string) int {
	total := 0
	for _, es := range current {
		if es.Enrollment.Status != models.EnrollmentStatusEnrolled {
			continue
		}
		if termID != "" && es.Section.TermID != termID {
			continue
		}
		total += es.Section.Credits
	}
	return total
}
