package academic

import (
	"fmt"
	"math"
	"sort"

	"github.com/noah-isme/academic-engine/internal/models"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
)

// AggregateInput carries the component definitions and recorded scores of one enrollment.
type AggregateInput struct {
	EnrollmentID string
	CourseID     string
	Scheme       models.GradeCalculationScheme
	Components   []models.GradeComponent
	Scores       []models.ComponentScore
}

// AggregateCourseGrade combines component scores into a course grade. A grade with an
// unscored component is returned PENDING with no letter; missing scores are never zero.
// Malformed input (unknown component, duplicate or out-of-range score) is a validation error.
func AggregateCourseGrade(in AggregateInput) (models.CourseGrade, error) {
	scheme := in.Scheme
	if scheme == "" {
		scheme = models.GradeSchemePoints
	}
	if scheme != models.GradeSchemePoints && scheme != models.GradeSchemeWeighted {
		return models.CourseGrade{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported grade scheme %q", scheme))
	}

	components := make(map[string]models.GradeComponent, len(in.Components))
	for _, comp := range in.Components {
		if _, dup := components[comp.ID]; dup {
			return models.CourseGrade{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("component %s defined twice", comp.ID))
		}
		if comp.MaxScore < 0 || comp.Weight < 0 || math.IsNaN(comp.MaxScore) || math.IsNaN(comp.Weight) {
			return models.CourseGrade{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("component %s has invalid max score or weight", comp.ID))
		}
		components[comp.ID] = comp
	}

	scored := make(map[string]float64, len(in.Scores))
	for _, s := range in.Scores {
		comp, ok := components[s.ComponentID]
		if !ok {
			return models.CourseGrade{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown component %s", s.ComponentID))
		}
		if _, dup := scored[s.ComponentID]; dup {
			return models.CourseGrade{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("component %s scored twice", s.ComponentID))
		}
		if err := ValidateScore(comp, s.Score); err != nil {
			return models.CourseGrade{}, err
		}
		scored[s.ComponentID] = s.Score
	}

	grade := models.CourseGrade{
		EnrollmentID: in.EnrollmentID,
		CourseID:     in.CourseID,
		Scheme:       scheme,
		Status:       models.CourseGradePending,
	}

	var missing []string
	for _, comp := range in.Components {
		score, ok := scored[comp.ID]
		if !ok {
			missing = append(missing, comp.ID)
		}
		switch scheme {
		case models.GradeSchemeWeighted:
			// a zero-max component has no ratio and carries no weight
			if comp.MaxScore == 0 {
				continue
			}
			grade.MaxTotal += comp.Weight
			if ok {
				grade.TotalScore += score / comp.MaxScore * comp.Weight
			}
		default:
			grade.MaxTotal += comp.MaxScore
			if ok {
				grade.TotalScore += score
			}
		}
	}
	sort.Strings(missing)
	grade.MissingComponents = missing
	grade.TotalScore = Round2(grade.TotalScore)
	grade.MaxTotal = Round2(grade.MaxTotal)

	if len(in.Components) == 0 || len(missing) > 0 || grade.MaxTotal == 0 {
		return grade, nil
	}

	grade.Percentage = Round2(grade.TotalScore / grade.MaxTotal * 100)
	mark := Grade(grade.Percentage)
	grade.Letter = mark.Letter
	grade.QualityPoint = mark.QualityPoint
	grade.Status = models.CourseGradeComplete
	return grade, nil
}

// Recompute refreshes an existing grade from its inputs. Published grades are locked.
func Recompute(existing *models.CourseGrade, in AggregateInput) (models.CourseGrade, error) {
	if existing != nil && existing.IsPublished {
		return *existing, appErrors.Clone(appErrors.ErrGradeLocked, fmt.Sprintf("grade for enrollment %s is published", existing.EnrollmentID))
	}
	return AggregateCourseGrade(in)
}

// ValidateScore checks 0 <= score <= component max.
func ValidateScore(comp models.GradeComponent, score float64) error {
	if math.IsNaN(score) || score < 0 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("score for component %s must not be negative", comp.ID))
	}
	if score > comp.MaxScore {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("score for component %s exceeds max %.2f", comp.ID, comp.MaxScore))
	}
	return nil
}
