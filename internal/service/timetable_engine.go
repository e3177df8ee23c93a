package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/shiksha-labs/shiksha-api/internal/dto"
	"github.com/shiksha-labs/shiksha-api/internal/models"
	"github.com/shiksha-labs/shiksha-api/pkg/config"
	appErrors "github.com/shiksha-labs/shiksha-api/pkg/errors"
)

type staffingFetcher interface {
	ListByClassAndSession(ctx context.Context, classID, sessionID string) ([]models.StaffingAssignment, error)
}

type subjectCatalog interface {
	MapByIDs(ctx context.Context, ids []string) (map[string]models.Subject, error)
}

type classIDLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// entryLedger is the read-and-append surface the engine needs from the
// timetable store. Predicates take a sqlx.ExtContext so that, inside the
// class transaction, the run's own inserts are visible to later checks.
type entryLedger interface {
	TeacherBusy(ctx context.Context, exec sqlx.ExtContext, teacherID, dayOfWeek, startTime, endTime string) (bool, error)
	Insert(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error
	HasDrafts(ctx context.Context, exec sqlx.ExtContext, classID, sessionID string) (bool, error)
	DeleteDrafts(ctx context.Context, exec sqlx.ExtContext, classID, sessionID string) error
	LockTeachers(ctx context.Context, tx *sqlx.Tx, teacherIDs []string) error
}

type engineTxProvider interface {
	BeginTxx(ctx context.Context) (*sqlx.Tx, error)
}

type auditRecorder interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

type timetableInvalidator interface {
	InvalidateTimetables(ctx context.Context, classID string, teacherIDs []string)
}

type generationObserver interface {
	ObserveGeneration(slotsCreated, unresolved int, duration time.Duration)
}

// TimetableEngine builds weekly timetables for classes from staffing
// assignments. Each class run is one transaction: the run takes advisory
// locks on every teacher it may book, so two classes sharing a teacher are
// serialized while disjoint classes schedule concurrently, and entries are
// inserted incrementally so conflict checks see the run's own placements.
type TimetableEngine struct {
	assignments staffingFetcher
	subjects    subjectCatalog
	classes     classIDLister
	ledger      entryLedger
	tx          engineTxProvider
	audits      auditRecorder
	invalidator timetableInvalidator
	metrics     generationObserver
	validator   *validator.Validate
	logger      *zap.Logger
	defaults    config.SchedulingConfig
}

// NewTimetableEngine wires the scheduling dependencies.
func NewTimetableEngine(
	assignments staffingFetcher,
	subjects subjectCatalog,
	classes classIDLister,
	ledger entryLedger,
	tx engineTxProvider,
	audits auditRecorder,
	invalidator timetableInvalidator,
	metrics generationObserver,
	validate *validator.Validate,
	logger *zap.Logger,
	defaults config.SchedulingConfig,
) *TimetableEngine {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableEngine{
		assignments: assignments,
		subjects:    subjects,
		classes:     classes,
		ledger:      ledger,
		tx:          tx,
		audits:      audits,
		invalidator: invalidator,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		defaults:    defaults,
	}
}

// --- Period grid ---

// periodSlot is one schedulable cell of the weekly grid.
type periodSlot struct {
	Day       string
	Period    int
	StartTime string
	EndTime   string
}

// gridConfig is a fully resolved grid description in minutes.
type gridConfig struct {
	PeriodsPerDay int
	DaysPerWeek   int
	BreakSlot     int
	PeriodMin     int
	BreakMin      int
	DayStartMin   int
	SubjectDayCap int
}

func (e *TimetableEngine) resolveGrid(overrides *dto.ScheduleOverrides) (gridConfig, error) {
	cfg := gridConfig{
		PeriodsPerDay: e.defaults.PeriodsPerDay,
		DaysPerWeek:   e.defaults.DaysPerWeek,
		BreakSlot:     e.defaults.BreakSlot,
		PeriodMin:     int(e.defaults.PeriodDuration.Minutes()),
		BreakMin:      int(e.defaults.BreakDuration.Minutes()),
		SubjectDayCap: e.defaults.SubjectDayCap,
	}

	dayStart := e.defaults.DayStart
	if overrides != nil {
		if overrides.PeriodsPerDay > 0 {
			cfg.PeriodsPerDay = overrides.PeriodsPerDay
		}
		if overrides.DaysPerWeek > 0 {
			cfg.DaysPerWeek = overrides.DaysPerWeek
		}
		if overrides.BreakSlot > 0 {
			cfg.BreakSlot = overrides.BreakSlot
		}
		if overrides.PeriodDurationMin > 0 {
			cfg.PeriodMin = overrides.PeriodDurationMin
		}
		if overrides.BreakDurationMin > 0 {
			cfg.BreakMin = overrides.BreakDurationMin
		}
		if overrides.SubjectDayCap > 0 {
			cfg.SubjectDayCap = overrides.SubjectDayCap
		}
		if overrides.DayStart != "" {
			dayStart = overrides.DayStart
		}
	}

	if cfg.DaysPerWeek > len(models.Weekdays) {
		cfg.DaysPerWeek = len(models.Weekdays)
	}
	if cfg.DaysPerWeek < 1 {
		cfg.DaysPerWeek = 1
	}
	if cfg.PeriodsPerDay < 1 {
		return cfg, appErrors.Clone(appErrors.ErrValidation, "periodsPerDay must be at least 1")
	}
	if cfg.SubjectDayCap < 1 {
		cfg.SubjectDayCap = 1
	}

	startMin, err := parseClock(dayStart)
	if err != nil {
		return cfg, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid day start %q", dayStart))
	}
	cfg.DayStartMin = startMin
	return cfg, nil
}

// buildPeriodGrid derives the weekly slot sequence. Period p starts at
// dayStart + (p-1)*(period+break); the slot immediately after the break
// index is skipped, leaving a longer gap before the following period. The result is deterministic for a given config.
func buildPeriodGrid(cfg gridConfig) []periodSlot {
	slots := make([]periodSlot, 0, cfg.DaysPerWeek*cfg.PeriodsPerDay)
	for d := 0; d < cfg.DaysPerWeek; d++ {
		day := models.Weekdays[d]
		for p := 1; p <= cfg.PeriodsPerDay; p++ {
			if p == cfg.BreakSlot+1 {
				continue
			}
			start := cfg.DayStartMin + (p-1)*(cfg.PeriodMin+cfg.BreakMin)
			slots = append(slots, periodSlot{
				Day:       day,
				Period:    p,
				StartTime: formatClock(start),
				EndTime:   formatClock(start + cfg.PeriodMin),
			})
		}
	}
	return slots
}

// --- Prioritization ---

// prioritizeAssignments partitions core subjects ahead of electives while
// preserving input order within each group. Assignments whose subject is
// unknown classify as elective.
func prioritizeAssignments(assignments []models.StaffingAssignment, subjects map[string]models.Subject) []models.StaffingAssignment {
	sorted := make([]models.StaffingAssignment, len(assignments))
	copy(sorted, assignments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return isCore(subjects, sorted[i].SubjectID) && !isCore(subjects, sorted[j].SubjectID)
	})
	return sorted
}

func isCore(subjects map[string]models.Subject, subjectID string) bool {
	subject, ok := subjects[subjectID]
	if !ok {
		return false
	}
	return subject.Category == models.SubjectCategoryCore
}

// --- Class generation ---

// GenerateForClass runs the full scheduling pipeline for one class and
// returns the per-assignment outcome. A class without staffing assignments
// yields a zero outcome without touching the store.
func (e *TimetableEngine) GenerateForClass(ctx context.Context, req dto.GenerateClassRequest) (*dto.GenerationOutcome, error) {
	if err := e.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}
	mode := req.Mode
	if mode == "" {
		mode = dto.ModeRejectIfExists
	}
	grid, err := e.resolveGrid(req.Overrides)
	if err != nil {
		return nil, err
	}

	started := time.Now()

	assignments, err := e.assignments.ListByClassAndSession(ctx, req.ClassID, req.SessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staffing assignments")
	}
	if len(assignments) == 0 {
		return &dto.GenerationOutcome{ClassID: req.ClassID, SessionID: req.SessionID, Unresolved: []string{}, Results: []models.AssignmentResult{}}, nil
	}

	subjectIDs := make([]string, 0, len(assignments))
	seenSubjects := make(map[string]bool, len(assignments))
	for _, assignment := range assignments {
		if !seenSubjects[assignment.SubjectID] {
			seenSubjects[assignment.SubjectID] = true
			subjectIDs = append(subjectIDs, assignment.SubjectID)
		}
	}
	subjects, err := e.subjects.MapByIDs(ctx, subjectIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}

	prioritized := prioritizeAssignments(assignments, subjects)

	teacherSet := make(map[string]struct{}, len(assignments))
	teacherIDs := make([]string, 0, len(assignments))
	for _, assignment := range assignments {
		if _, ok := teacherSet[assignment.TeacherID]; !ok {
			teacherSet[assignment.TeacherID] = struct{}{}
			teacherIDs = append(teacherIDs, assignment.TeacherID)
		}
	}

	tx, err := e.tx.BeginTxx(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin class transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Serializes against sibling class runs that share any of these teachers.
	if err = e.ledger.LockTeachers(ctx, tx, teacherIDs); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock teachers")
		return nil, err
	}

	if err = e.applyMode(ctx, tx, mode, req.ClassID, req.SessionID); err != nil {
		return nil, err
	}

	slotsWon := make(map[string]int, len(assignments))
	counters := make(map[string]map[string]int, grid.DaysPerWeek)
	slotsCreated := 0

	for _, slot := range buildPeriodGrid(grid) {
		if counters[slot.Day] == nil {
			counters[slot.Day] = make(map[string]int)
		}
		var placed *models.StaffingAssignment
		placed, err = e.placeSlot(ctx, tx, slot, prioritized, counters[slot.Day], grid.SubjectDayCap, req.ClassID, req.SessionID)
		if err != nil {
			return nil, err
		}
		if placed != nil {
			counters[slot.Day][placed.SubjectID]++
			slotsWon[placed.ID]++
			slotsCreated++
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit class timetable")
	}

	outcome := buildOutcome(req.ClassID, req.SessionID, assignments, slotsWon, slotsCreated)
	e.recordAudit(ctx, outcome)
	if e.metrics != nil {
		e.metrics.ObserveGeneration(outcome.SlotsCreated, len(outcome.Unresolved), time.Since(started))
	}
	if e.invalidator != nil {
		e.invalidator.InvalidateTimetables(ctx, req.ClassID, teacherIDs)
	}

	e.logger.Info("class timetable generated",
		zap.String("class_id", req.ClassID),
		zap.String("session_id", req.SessionID),
		zap.Int("slots_created", outcome.SlotsCreated),
		zap.Int("unresolved", len(outcome.Unresolved)),
	)
	return outcome, nil
}

func (e *TimetableEngine) applyMode(ctx context.Context, tx *sqlx.Tx, mode, classID, sessionID string) error {
	switch mode {
	case dto.ModeAppend:
		return nil
	case dto.ModeReplace:
		if err := e.ledger.DeleteDrafts(ctx, tx, classID, sessionID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear draft entries")
		}
		return nil
	case dto.ModeRejectIfExists:
		exists, err := e.ledger.HasDrafts(ctx, tx, classID, sessionID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check draft entries")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrScheduleExists, fmt.Sprintf("class %s already has draft entries for this session", classID))
		}
		return nil
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown generation mode %q", mode))
	}
}

// placeSlot commits the first assignment that passes the per-day subject cap
// and the teacher-busy check. At most one entry is created per slot; a slot
// nobody can fill stays empty without error.
func (e *TimetableEngine) placeSlot(
	ctx context.Context,
	tx *sqlx.Tx,
	slot periodSlot,
	prioritized []models.StaffingAssignment,
	dayCounters map[string]int,
	subjectDayCap int,
	classID, sessionID string,
) (*models.StaffingAssignment, error) {
	for i := range prioritized {
		assignment := &prioritized[i]
		if dayCounters[assignment.SubjectID] >= subjectDayCap {
			continue
		}
		busy, err := e.ledger.TeacherBusy(ctx, tx, assignment.TeacherID, slot.Day, slot.StartTime, slot.EndTime)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher availability")
		}
		if busy {
			continue
		}

		entry := models.TimetableEntry{
			ClassID:   classID,
			SubjectID: assignment.SubjectID,
			TeacherID: assignment.TeacherID,
			DayOfWeek: slot.Day,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
			SessionID: sessionID,
			Status:    models.EntryStatusDraft,
		}
		if err := e.ledger.Insert(ctx, tx, &entry); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert timetable entry")
		}
		return assignment, nil
	}
	return nil, nil
}

func buildOutcome(classID, sessionID string, assignments []models.StaffingAssignment, slotsWon map[string]int, slotsCreated int) *dto.GenerationOutcome {
	results := make([]models.AssignmentResult, 0, len(assignments))
	placedSubjects := make(map[string]bool)
	for _, assignment := range assignments {
		won := slotsWon[assignment.ID]
		status := models.PlacementUnresolved
		if won > 0 {
			status = models.PlacementPlaced
			placedSubjects[assignment.SubjectID] = true
		}
		results = append(results, models.AssignmentResult{Assignment: assignment, Status: status, SlotsWon: won})
	}

	unresolved := make([]string, 0)
	seen := make(map[string]bool)
	for _, assignment := range assignments {
		if !placedSubjects[assignment.SubjectID] && !seen[assignment.SubjectID] {
			seen[assignment.SubjectID] = true
			unresolved = append(unresolved, assignment.SubjectID)
		}
	}

	return &dto.GenerationOutcome{
		ClassID:      classID,
		SessionID:    sessionID,
		SlotsCreated: slotsCreated,
		Unresolved:   unresolved,
		Results:      results,
	}
}

func (e *TimetableEngine) recordAudit(ctx context.Context, outcome *dto.GenerationOutcome) {
	if e.audits == nil {
		return
	}
	entry := &models.AuditLog{
		ActorID:  models.AuditActorSystem,
		TargetID: outcome.ClassID,
		Action:   models.AuditActionTimetableGenerate,
		Message:  fmt.Sprintf("slots_created=%d unresolved=%d", outcome.SlotsCreated, len(outcome.Unresolved)),
	}
	if err := e.audits.Create(ctx, entry); err != nil {
		e.logger.Warn("failed to record generation audit", zap.String("class_id", outcome.ClassID), zap.Error(err))
	}
}

// --- Session fan-out ---

// GenerateForSession schedules every class concurrently. Class failures are
// audited and logged but never abort sibling classes; the whole run is
// bounded by the configured session timeout.
func (e *TimetableEngine) GenerateForSession(ctx context.Context, req dto.GenerateSessionRequest) error {
	if err := e.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session generation payload")
	}

	classIDs, err := e.classes.ListIDs(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}

	runCtx := ctx
	cancel := func() {}
	if e.defaults.SessionTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.defaults.SessionTimeout)
	}
	defer cancel()

	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	for _, classID := range classIDs {
		wg.Add(1)
		go func(classID string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.recordClassFailure(ctx, classID, fmt.Errorf("panic: %v", r))
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}()
			_, err := e.GenerateForClass(runCtx, dto.GenerateClassRequest{
				ClassID:   classID,
				SessionID: req.SessionID,
				Mode:      req.Mode,
				Overrides: req.Overrides,
			})
			if err != nil {
				e.recordClassFailure(ctx, classID, err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(classID)
	}
	wg.Wait()

	e.logger.Info("session timetable generation finished",
		zap.String("session_id", req.SessionID),
		zap.Int("classes", len(classIDs)),
		zap.Int("failed", failed),
	)
	return nil
}

// recordClassFailure audits a failed class run using the parent context, not
// the possibly expired run context.
func (e *TimetableEngine) recordClassFailure(ctx context.Context, classID string, cause error) {
	e.logger.Error("class timetable generation failed", zap.String("class_id", classID), zap.Error(cause))
	if e.audits == nil {
		return
	}
	entry := &models.AuditLog{
		ActorID:  models.AuditActorSystem,
		TargetID: classID,
		Action:   models.AuditActionTimetableGenerate,
		Message:  "generation failed: " + cause.Error(),
	}
	if err := e.audits.Create(ctx, entry); err != nil {
		e.logger.Warn("failed to record failure audit", zap.String("class_id", classID), zap.Error(err))
	}
}

// --- Clock helpers ---

// parseClock converts "HH:MM" to minutes from midnight.
func parseClock(raw string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return hours*60 + minutes, nil
}

// formatClock renders minutes from midnight as zero-padded "HH:MM".
func formatClock(total int) string {
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
