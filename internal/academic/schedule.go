package academic

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/academic-engine/internal/models"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
)

// ScheduleConflict describes two overlapping meetings.
type ScheduleConflict struct {
	SectionID         string         `json:"section_id"`
	ConflictSectionID string         `json:"conflict_section_id"`
	Day               string         `json:"day"`
	Meeting           models.Meeting `json:"meeting"`
	ConflictMeeting   models.Meeting `json:"conflict_meeting"`
}

type slot struct {
	day        string
	start, end int
}

func minutes(clock string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(clock))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func parseMeeting(sectionID string, m models.Meeting) (slot, error) {
	day := strings.ToUpper(strings.TrimSpace(m.Day))
	if day == "" {
		return slot{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("section %s has a meeting without day", sectionID))
	}
	start, err := minutes(m.Start)
	if err != nil {
		return slot{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("section %s has invalid start time %q", sectionID, m.Start))
	}
	end, err := minutes(m.End)
	if err != nil {
		return slot{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("section %s has invalid end time %q", sectionID, m.End))
	}
	if end <= start {
		return slot{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("section %s has a meeting ending before it starts", sectionID))
	}
	return slot{day: day, start: start, end: end}, nil
}

// SchedulesOverlap lists every pair of overlapping meetings between candidate and other.
// Meetings that only touch (one ends when the other starts) do not overlap.
func SchedulesOverlap(candidate, other models.Section) ([]ScheduleConflict, error) {
	var conflicts []ScheduleConflict
	for _, cm := range candidate.Schedule {
		cs, err := parseMeeting(candidate.ID, cm)
		if err != nil {
			return nil, err
		}
		for _, om := range other.Schedule {
			os, err := parseMeeting(other.ID, om)
			if err != nil {
				return nil, err
			}
			if cs.day != os.day {
				continue
			}
			if cs.start < os.end && os.start < cs.end {
				conflicts = append(conflicts, ScheduleConflict{
					SectionID:         candidate.ID,
					ConflictSectionID: other.ID,
					Day:               cs.day,
					Meeting:           cm,
					ConflictMeeting:   om,
				})
			}
		}
	}
	return conflicts, nil
}
