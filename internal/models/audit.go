package models

import "time"

// Audit actor and action constants.
const (
	AuditActorSystem = "SYSTEM"

	AuditActionTimetableGenerate = "TIMETABLE_GENERATE"
	AuditActionTimetableImport   = "TIMETABLE_IMPORT"
	AuditActionEntityCreate      = "ENTITY_CREATE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID        string    `db:"id" json:"id"`
	ActorID   string    `db:"actor_id" json:"actor_id"`
	TargetID  string    `db:"target_id" json:"target_id"`
	Action    string    `db:"action" json:"action"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
