package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-engine/internal/academic"
	"github.com/noah-isme/academic-engine/internal/models"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
	"github.com/noah-isme/academic-engine/pkg/jobs"
)

// JobTypeStandingRefresh recomputes and re-caches one student's standing.
const JobTypeStandingRefresh = "standing.refresh"

type termCourseLister interface {
	ListTermCourses(ctx context.Context, studentID string) ([]models.TermCourse, error)
}

type studentTermLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Term, error)
}

type studentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// StandingService computes term GPAs and cumulative standing, backed by a read cache.
type StandingService struct {
	courses  termCourseLister
	terms    studentTermLister
	students studentFinder
	cache    *CacheService
	queue    jobDispatcher
	logger   *zap.Logger
	now      func() time.Time
}

// NewStandingService constructs the standing service. cache and queue may be nil.
func NewStandingService(courses termCourseLister, terms studentTermLister, students studentFinder, cache *CacheService, queue jobDispatcher, logger *zap.Logger) *StandingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StandingService{
		courses:  courses,
		terms:    terms,
		students: students,
		cache:    cache,
		queue:    queue,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// StandingCacheKey is the cache key of a student's standing.
func StandingCacheKey(studentID string) string {
	return "standing:" + studentID
}

// Standing returns the student's standing, from cache when possible.
func (s *StandingService) Standing(ctx context.Context, studentID string) (*models.AcademicStanding, error) {
	var cached models.AcademicStanding
	hit, err := s.cache.Get(ctx, StandingCacheKey(studentID), &cached)
	if err != nil {
		s.logger.Debug("standing cache read skipped", zap.String("student_id", studentID), zap.Error(err))
	}
	if hit {
		return &cached, nil
	}
	standing, err := s.Compute(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, StandingCacheKey(studentID), standing, 0); err != nil {
		s.logger.Debug("standing cache write skipped", zap.String("student_id", studentID), zap.Error(err))
	}
	return standing, nil
}

// Compute loads the student's graded attempts and computes standing without the cache.
func (s *StandingService) Compute(ctx context.Context, studentID string) (*models.AcademicStanding, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, wrapInternal(err, "failed to load student")
	}
	terms, err := s.terms.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, wrapInternal(err, "failed to load terms")
	}
	courses, err := s.courses.ListTermCourses(ctx, studentID)
	if err != nil {
		return nil, wrapInternal(err, "failed to load course grades")
	}

	standing := academic.CumulativeStanding(studentID, buildTermRecords(terms, courses))
	standing.CalculatedAt = s.now()
	return &standing, nil
}

func buildTermRecords(terms []models.Term, courses []models.TermCourse) []models.TermRecord {
	index := make(map[string]int, len(terms))
	records := make([]models.TermRecord, 0, len(terms))
	for _, t := range terms {
		index[t.ID] = len(records)
		records = append(records, models.TermRecord{TermID: t.ID, Name: t.Name, Status: t.Status, Courses: []models.TermCourse{}})
	}
	for _, c := range courses {
		i, ok := index[c.TermID]
		if !ok {
			i = len(records)
			index[c.TermID] = i
			records = append(records, models.TermRecord{TermID: c.TermID, Name: c.TermID})
		}
		records[i].Courses = append(records[i].Courses, c)
	}
	return records
}

// RequestRefresh drops the cached standing and schedules a background recompute to
// repopulate it. Reads between the two recompute on demand.
func (s *StandingService) RequestRefresh(ctx context.Context, studentID string) {
	if err := s.cache.Invalidate(ctx, StandingCacheKey(studentID)); err != nil {
		s.logger.Warn("standing cache invalidation failed", zap.String("student_id", studentID), zap.Error(err))
	}
	if s.queue == nil {
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      fmt.Sprintf("%s:%s:%d", JobTypeStandingRefresh, studentID, s.now().UnixNano()),
		Type:    JobTypeStandingRefresh,
		Key:     StandingCacheKey(studentID),
		Payload: studentID,
	})
	if err != nil {
		s.logger.Warn("standing refresh not queued", zap.String("student_id", studentID), zap.Error(err))
	}
}

// StandingWorker bridges queue jobs to StandingService.
type StandingWorker struct {
	standing *StandingService
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewStandingWorker constructs a worker.
func NewStandingWorker(standing *StandingService, metrics *MetricsService, logger *zap.Logger) *StandingWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StandingWorker{standing: standing, metrics: metrics, logger: logger}
}

// Handle recomputes the standing named by the job payload and replaces the cached copy.
func (w *StandingWorker) Handle(ctx context.Context, job jobs.Job) error {
	studentID, ok := job.Payload.(string)
	if !ok || studentID == "" {
		w.logger.Error("invalid standing refresh payload", zap.String("job_id", job.ID))
		return nil
	}
	key := StandingCacheKey(studentID)
	if err := w.standing.cache.Invalidate(ctx, key); err != nil {
		w.logger.Warn("standing cache invalidation failed", zap.String("student_id", studentID), zap.Error(err))
	}

	standing, err := w.standing.Compute(ctx, studentID)
	w.metrics.RecordStandingRefresh(err)
	if err != nil {
		if errorCode(err) == appErrors.ErrNotFound.Code {
			return nil
		}
		return err
	}
	if err := w.standing.cache.Set(ctx, key, standing, 0); err != nil {
		w.logger.Warn("standing cache write failed", zap.String("student_id", studentID), zap.Error(err))
	}
	w.logger.Debug("standing refreshed", zap.String("student_id", studentID), zap.Float64("gpa", standing.CumulativeGPA))
	return nil
}
