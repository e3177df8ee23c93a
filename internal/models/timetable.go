package models

import "time"

// EntryStatus is the lifecycle state of a timetable entry.
type EntryStatus string

const (
	EntryStatusDraft     EntryStatus = "DRAFT"
	EntryStatusPublished EntryStatus = "PUBLISHED"
)

// TimetableEntry is one scheduled occurrence of a subject for a class.
// Times are zero-padded HH:MM strings so interval comparisons work both in
// SQL and in memory.
type TimetableEntry struct {
	ID        string      `db:"id" json:"id"`
	ClassID   string      `db:"class_id" json:"class_id"`
	SubjectID string      `db:"subject_id" json:"subject_id"`
	TeacherID string      `db:"teacher_id" json:"teacher_id"`
	DayOfWeek string      `db:"day_of_week" json:"day_of_week"`
	StartTime string      `db:"start_time" json:"start_time"`
	EndTime   string      `db:"end_time" json:"end_time"`
	Room      string      `db:"room" json:"room"`
	SessionID string      `db:"session_id" json:"session_id"`
	Status    EntryStatus `db:"status" json:"status"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// Weekdays is the fixed scheduling day order, Monday first. DaysPerWeek
// configuration values are clamped to this list.
var Weekdays = []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}
