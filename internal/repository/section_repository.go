package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-engine/internal/models"
)

// ErrNoCapacity is returned when a seat counter is already at capacity.
var ErrNoCapacity = errors.New("no remaining capacity")

// SectionRepository reads section offerings.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

const sectionColumns = `id, course_id, term_id, code, capacity, enrolled_count, credits, schedule, prerequisites`

// FindByID returns a section or sql.ErrNoRows.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	query := `SELECT ` + sectionColumns + ` FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// FindByIDs returns the sections found among ids, keyed by id.
func (r *SectionRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Section, error) {
	result := make(map[string]models.Section, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT `+sectionColumns+` FROM sections WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build sections query: %w", err)
	}
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find sections: %w", err)
	}
	for _, s := range sections {
		result[s.ID] = s
	}
	return result, nil
}
