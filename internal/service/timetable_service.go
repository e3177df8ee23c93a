package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shiksha-labs/shiksha-api/internal/models"
	appErrors "github.com/shiksha-labs/shiksha-api/pkg/errors"
	"github.com/shiksha-labs/shiksha-api/pkg/export"
)

type entryLister interface {
	ListByClass(ctx context.Context, classID string) ([]models.TimetableEntry, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.TimetableEntry, error)
}

type subjectResolver interface {
	MapByIDs(ctx context.Context, ids []string) (map[string]models.Subject, error)
}

// TimetableService answers timetable reads with a Redis cache in front of the
// store and renders CSV/PDF exports. A nil Redis client disables caching.
type TimetableService struct {
	entries  entryLister
	subjects subjectResolver
	redis    *redis.Client
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	ttl      time.Duration
	logger   *zap.Logger
}

// NewTimetableService wires the read side of the timetable module.
func NewTimetableService(entries entryLister, subjects subjectResolver, redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		entries:  entries,
		subjects: subjects,
		redis:    redisClient,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		ttl:      ttl,
		logger:   logger,
	}
}

func classCacheKey(classID string) string     { return "timetable:class:" + classID }
func teacherCacheKey(teacherID string) string { return "timetable:teacher:" + teacherID }

// GetClassTimetable returns a class's entries in calendar order.
func (s *TimetableService) GetClassTimetable(ctx context.Context, classID string) ([]models.TimetableEntry, error) {
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class id is required")
	}
	if cached, ok := s.fromCache(ctx, classCacheKey(classID)); ok {
		return cached, nil
	}
	entries, err := s.entries.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class timetable")
	}
	s.toCache(ctx, classCacheKey(classID), entries)
	return entries, nil
}

// GetTeacherTimetable returns a teacher's entries in calendar order.
func (s *TimetableService) GetTeacherTimetable(ctx context.Context, teacherID string) ([]models.TimetableEntry, error) {
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher id is required")
	}
	if cached, ok := s.fromCache(ctx, teacherCacheKey(teacherID)); ok {
		return cached, nil
	}
	entries, err := s.entries.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher timetable")
	}
	s.toCache(ctx, teacherCacheKey(teacherID), entries)
	return entries, nil
}

// ExportClassTimetable renders a class's timetable as "csv" or "pdf" bytes.
func (s *TimetableService) ExportClassTimetable(ctx context.Context, classID, format string) ([]byte, string, error) {
	entries, err := s.GetClassTimetable(ctx, classID)
	if err != nil {
		return nil, "", err
	}
	dataset, err := s.toDataset(ctx, entries)
	if err != nil {
		return nil, "", err
	}

	switch format {
	case "csv", "":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return data, "text/csv", nil
	case "pdf":
		data, err := s.pdf.Render(dataset, fmt.Sprintf("Class %s timetable", classID))
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return data, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func (s *TimetableService) toDataset(ctx context.Context, entries []models.TimetableEntry) (export.Dataset, error) {
	subjectIDs := make([]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if !seen[entry.SubjectID] {
			seen[entry.SubjectID] = true
			subjectIDs = append(subjectIDs, entry.SubjectID)
		}
	}
	subjects := map[string]models.Subject{}
	if len(subjectIDs) > 0 {
		var err error
		subjects, err = s.subjects.MapByIDs(ctx, subjectIDs)
		if err != nil {
			return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve subjects for export")
		}
	}

	dataset := export.Dataset{
		Headers: []string{"Day", "Start", "End", "Subject", "Teacher", "Room", "Status"},
		Rows:    make([]map[string]string, 0, len(entries)),
	}
	for _, entry := range entries {
		subjectName := entry.SubjectID
		if subject, ok := subjects[entry.SubjectID]; ok {
			subjectName = subject.Name
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Day":     entry.DayOfWeek,
			"Start":   entry.StartTime,
			"End":     entry.EndTime,
			"Subject": subjectName,
			"Teacher": entry.TeacherID,
			"Room":    entry.Room,
			"Status":  string(entry.Status),
		})
	}
	return dataset, nil
}

// InvalidateTimetables drops cached views touched by a generation or import
// run. Cache errors are logged and swallowed.
func (s *TimetableService) InvalidateTimetables(ctx context.Context, classID string, teacherIDs []string) {
	if s.redis == nil {
		return
	}
	keys := make([]string, 0, len(teacherIDs)+1)
	if classID != "" {
		keys = append(keys, classCacheKey(classID))
	}
	for _, teacherID := range teacherIDs {
		keys = append(keys, teacherCacheKey(teacherID))
	}
	if len(keys) == 0 {
		return
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("failed to invalidate timetable cache", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (s *TimetableService) fromCache(ctx context.Context, key string) ([]models.TimetableEntry, bool) {
	if s.redis == nil {
		return nil, false
	}
	raw, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("timetable cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var entries []models.TimetableEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.logger.Warn("timetable cache payload corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return entries, true
}

func (s *TimetableService) toCache(ctx context.Context, key string, entries []models.TimetableEntry) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.logger.Warn("timetable cache write failed", zap.String("key", key), zap.Error(err))
	}
}
