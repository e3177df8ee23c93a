package dto

import "github.com/shiksha-labs/shiksha-api/internal/models"

// Regeneration modes for classes that already hold draft entries.
const (
	ModeReplace        = "REPLACE"
	ModeAppend         = "APPEND"
	ModeRejectIfExists = "REJECT_IF_EXISTS"
)

// ScheduleOverrides optionally replaces the configured grid defaults for one
// generation request. Zero values fall back to configuration.
type ScheduleOverrides struct {
	PeriodsPerDay     int    `json:"periodsPerDay" validate:"omitempty,min=1,max=16"`
	DaysPerWeek       int    `json:"daysPerWeek" validate:"omitempty,min=1,max=7"`
	BreakSlot         int    `json:"breakSlot" validate:"omitempty,min=0,max=15"`
	PeriodDurationMin int    `json:"periodDurationMin" validate:"omitempty,min=5,max=240"`
	BreakDurationMin  int    `json:"breakDurationMin" validate:"omitempty,min=0,max=120"`
	DayStart          string `json:"dayStart" validate:"omitempty,len=5"`
	SubjectDayCap     int    `json:"subjectDayCap" validate:"omitempty,min=1,max=8"`
}

// GenerateClassRequest triggers timetable generation for a single class.
type GenerateClassRequest struct {
	ClassID   string             `json:"classId" validate:"required"`
	SessionID string             `json:"sessionId" validate:"required"`
	Mode      string             `json:"mode" validate:"omitempty,oneof=REPLACE APPEND REJECT_IF_EXISTS"`
	Overrides *ScheduleOverrides `json:"overrides" validate:"omitempty"`
}

// GenerateSessionRequest triggers generation for every class in a session.
type GenerateSessionRequest struct {
	SessionID string             `json:"sessionId" validate:"required"`
	Mode      string             `json:"mode" validate:"omitempty,oneof=REPLACE APPEND REJECT_IF_EXISTS"`
	Overrides *ScheduleOverrides `json:"overrides" validate:"omitempty"`
}

// GenerationOutcome reports how one class's generation run went.
type GenerationOutcome struct {
	ClassID      string                    `json:"classId"`
	SessionID    string                    `json:"sessionId"`
	SlotsCreated int                       `json:"slotsCreated"`
	Unresolved   []string                  `json:"unresolvedSubjectIds"`
	Results      []models.AssignmentResult `json:"results"`
}

// ImportResult reports the outcome of a manual timetable import. On failure
// ErrorReport carries the original rows annotated with a reason column.
type ImportResult struct {
	Success      bool   `json:"success"`
	RowsImported int    `json:"rowsImported"`
	ErrorReport  string `json:"errorReport,omitempty"`
}

// CreateSubjectRequest creates a subject; category is derived from the name
// when omitted.
type CreateSubjectRequest struct {
	Code     string `json:"code" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Category string `json:"category" validate:"omitempty,oneof=CORE ELECTIVE"`
}

// CreateClassRequest creates a school class.
type CreateClassRequest struct {
	Name    string `json:"name" validate:"required"`
	Grade   string `json:"grade" validate:"required"`
	Section string `json:"section" validate:"required"`
}

// CreateSessionRequest creates an academic session.
type CreateSessionRequest struct {
	Name      string `json:"name" validate:"required"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Active    bool   `json:"active"`
}

// CreateAssignmentRequest creates a staffing assignment.
type CreateAssignmentRequest struct {
	TeacherID string `json:"teacherId" validate:"required"`
	SubjectID string `json:"subjectId" validate:"required"`
	ClassID   string `json:"classId" validate:"required"`
	SessionID string `json:"sessionId" validate:"required"`
}
