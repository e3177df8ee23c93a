package models

import "time"

// StaffingAssignment links a teacher to a class/subject/session tuple. It is
// read-only input to the scheduling engine.
type StaffingAssignment struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	SessionID string    `db:"session_id" json:"session_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PlacementStatus tags how an assignment fared in a generation run.
type PlacementStatus string

const (
	PlacementPlaced     PlacementStatus = "PLACED"
	PlacementUnresolved PlacementStatus = "UNRESOLVED"
)

// AssignmentResult pairs an input assignment with its placement outcome so
// callers do not have to infer failures by set difference.
type AssignmentResult struct {
	Assignment StaffingAssignment `json:"assignment"`
	Status     PlacementStatus    `json:"status"`
	SlotsWon   int                `json:"slots_won"`
}
