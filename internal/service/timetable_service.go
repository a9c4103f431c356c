package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sekolahku/roster-api/internal/models"
	appErrors "github.com/sekolahku/roster-api/pkg/errors"
)

type timetableRepository interface {
	ListForClassTimetable(ctx context.Context, termID, classID string) ([]models.TimetableLesson, error)
	ListForTeacherTimetable(ctx context.Context, termID, teacherID string) ([]models.TimetableLesson, error)
}

// weekdayOrder fixes the rendering order of timetable days.
var weekdayOrder = []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

// TimetableService assembles weekly schedule views with read-through caching.
type TimetableService struct {
	repo   timetableRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewTimetableService instantiates TimetableService.
func NewTimetableService(repo timetableRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// ClassTimetable returns the weekly schedule of one class.
func (s *TimetableService) ClassTimetable(ctx context.Context, termID, classID string) (*models.Timetable, error) {
	key := classTimetableKey(termID, classID)
	if s.cache != nil {
		var cached models.Timetable
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	lessons, err := s.repo.ListForClassTimetable(ctx, termID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class timetable")
	}

	timetable := buildTimetable(termID, lessons)
	timetable.ClassID = classID
	s.store(ctx, key, timetable)
	return timetable, nil
}

// TeacherTimetable returns the weekly schedule of one teacher.
func (s *TimetableService) TeacherTimetable(ctx context.Context, termID, teacherID string) (*models.Timetable, error) {
	key := teacherTimetableKey(termID, teacherID)
	if s.cache != nil {
		var cached models.Timetable
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	lessons, err := s.repo.ListForTeacherTimetable(ctx, termID, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher timetable")
	}

	timetable := buildTimetable(termID, lessons)
	timetable.TeacherID = teacherID
	s.store(ctx, key, timetable)
	return timetable, nil
}

func (s *TimetableService) store(ctx context.Context, key string, timetable *models.Timetable) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, timetable, s.ttl); err != nil {
		s.logger.Warn("timetable cache store failed", zap.String("key", key), zap.Error(err))
	}
}

// buildTimetable groups lessons by weekday. Days without lessons are omitted.
// Lessons arrive pre-sorted by day and start time from the repository.
func buildTimetable(termID string, lessons []models.TimetableLesson) *models.Timetable {
	byDay := make(map[string][]models.TimetableLesson)
	for _, lesson := range lessons {
		byDay[lesson.DayOfWeek] = append(byDay[lesson.DayOfWeek], lesson)
	}

	timetable := &models.Timetable{TermID: termID}
	for _, day := range weekdayOrder {
		if entries, ok := byDay[day]; ok {
			timetable.Days = append(timetable.Days, models.TimetableDay{Day: day, Lessons: entries})
		}
	}
	return timetable
}

func classTimetableKey(termID, classID string) string {
	return fmt.Sprintf("timetable:%s:class:%s", termID, classID)
}

func teacherTimetableKey(termID, teacherID string) string {
	return fmt.Sprintf("timetable:%s:teacher:%s", termID, teacherID)
}

func timetableKeyPattern(termID string) string {
	return fmt.Sprintf("timetable:%s:*", termID)
}
