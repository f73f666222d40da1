package academic

import "github.com/noah-isme/academic-engine/internal/models"

// DepartmentEligibilityInput is the resolved state for one student and one department.
type DepartmentEligibilityInput struct {
	Student               models.Student
	Department            models.Department
	Standing              models.AcademicStanding
	HasPendingApplication bool
}

// DepartmentEligibility evaluates all six department checks. None short-circuits.
func DepartmentEligibility(in DepartmentEligibilityInput) models.DepartmentEligibility {
	dept := in.Department
	year := in.Student.YearLevel
	checks := map[string]bool{
		models.CheckHasMinimumGPA:           Round2(in.Standing.CumulativeGPA) >= dept.MinGPA,
		models.CheckHasAvailableSeats:       dept.EnrolledCount < dept.Capacity,
		models.CheckIsCorrectYear:           (dept.MinYear == 0 || year >= dept.MinYear) && (dept.MaxYear == 0 || year <= dept.MaxYear),
		models.CheckHasNoExistingDepartment: !in.Student.HasDepartment(),
		models.CheckHasNoPendingApplication: !in.HasPendingApplication,
		models.CheckIsGoodAcademicStanding:  in.Standing.InGoodStanding(),
	}
	eligible := true
	for _, ok := range checks {
		eligible = eligible && ok
	}
	return models.DepartmentEligibility{
		DepartmentID:  dept.ID,
		MinGPA:        dept.MinGPA,
		Capacity:      dept.Capacity,
		EnrolledCount: dept.EnrolledCount,
		Checks:        checks,
		IsEligible:    eligible,
	}
}
