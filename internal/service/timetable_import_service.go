package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/shiksha-labs/shiksha-api/internal/dto"
	"github.com/shiksha-labs/shiksha-api/internal/models"
	appErrors "github.com/shiksha-labs/shiksha-api/pkg/errors"
	"github.com/shiksha-labs/shiksha-api/pkg/export"
)

// importHeaders is the exact column set a timetable CSV must carry.
var importHeaders = []string{"class_id", "subject_id", "teacher_id", "day_of_week", "start_time", "end_time", "room"}

const importReasonHeader = "import_error_reason"

type importLedger interface {
	TeacherBusy(ctx context.Context, exec sqlx.ExtContext, teacherID, dayOfWeek, startTime, endTime string) (bool, error)
	RoomBusy(ctx context.Context, exec sqlx.ExtContext, room, dayOfWeek, startTime, endTime string) (bool, error)
	ClassBusy(ctx context.Context, exec sqlx.ExtContext, classID, dayOfWeek, startTime, endTime string) (bool, error)
	Insert(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error
}

type importTxProvider interface {
	BeginTxx(ctx context.Context) (*sqlx.Tx, error)
}

// TimetableImportService loads manually authored timetables from CSV. The
// batch is all-or-nothing: rows are validated and inserted sequentially
// inside one transaction, and any row failure rolls the whole batch back and
// yields an annotated error report instead.
type TimetableImportService struct {
	ledger      importLedger
	tx          importTxProvider
	audits      auditRecorder
	invalidator timetableInvalidator
	csv         *export.CSVExporter
	logger      *zap.Logger
}

// NewTimetableImportService wires the import dependencies.
func NewTimetableImportService(ledger importLedger, tx importTxProvider, audits auditRecorder, invalidator timetableInvalidator, csvExporter *export.CSVExporter, logger *zap.Logger) *TimetableImportService {
	if csvExporter == nil {
		csvExporter = export.NewCSVExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableImportService{ledger: ledger, tx: tx, audits: audits, invalidator: invalidator, csv: csvExporter, logger: logger}
}

// Import reads a timetable CSV for the session and either commits every row
// or rejects the batch with a row-by-row error report.
func (s *TimetableImportService) Import(ctx context.Context, sessionID string, reader io.Reader) (*dto.ImportResult, error) {
	if sessionID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session id is required")
	}

	rows, err := parseImportCSV(reader)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "import file has no data rows")
	}

	tx, err := s.tx.BeginTxx(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin import transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	reasons := make([]string, len(rows))
	failures := 0
	for i, row := range rows {
		reason, err := s.checkAndInsert(ctx, tx, sessionID, row)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			reasons[i] = reason
			failures++
		}
	}

	if failures > 0 {
		report, err := s.buildErrorReport(rows, reasons)
		if err != nil {
			return nil, err
		}
		s.logger.Warn("timetable import rejected",
			zap.String("session_id", sessionID),
			zap.Int("rows", len(rows)),
			zap.Int("failed", failures),
		)
		s.recordImportAudit(ctx, sessionID, fmt.Sprintf("import rejected: %d of %d rows failed", failures, len(rows)))
		return &dto.ImportResult{Success: false, ErrorReport: report}, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit import batch")
	}
	committed = true

	s.logger.Info("timetable import committed", zap.String("session_id", sessionID), zap.Int("rows", len(rows)))
	s.recordImportAudit(ctx, sessionID, fmt.Sprintf("imported %d rows", len(rows)))
	s.invalidateCaches(ctx, rows)
	return &dto.ImportResult{Success: true, RowsImported: len(rows)}, nil
}

// invalidateCaches drops the cached views of every class and teacher touched
// by the committed batch.
func (s *TimetableImportService) invalidateCaches(ctx context.Context, rows []map[string]string) {
	if s.invalidator == nil {
		return
	}
	classSeen := make(map[string]struct{})
	teacherSeen := make(map[string]struct{})
	var teacherIDs []string
	for _, row := range rows {
		if _, ok := teacherSeen[row["teacher_id"]]; !ok {
			teacherSeen[row["teacher_id"]] = struct{}{}
			teacherIDs = append(teacherIDs, row["teacher_id"])
		}
		classSeen[row["class_id"]] = struct{}{}
	}
	for classID := range classSeen {
		s.invalidator.InvalidateTimetables(ctx, classID, nil)
	}
	s.invalidator.InvalidateTimetables(ctx, "", teacherIDs)
}

// checkAndInsert validates one row against the entries visible to the import
// transaction, including rows inserted earlier in this batch. A non-empty
// reason marks the row as failed; the insert of a failed row is skipped.
func (s *TimetableImportService) checkAndInsert(ctx context.Context, tx *sqlx.Tx, sessionID string, row map[string]string) (string, error) {
	if reason := validateImportRow(row); reason != "" {
		return reason, nil
	}

	day := strings.ToUpper(row["day_of_week"])
	start, end := row["start_time"], row["end_time"]

	busy, err := s.ledger.TeacherBusy(ctx, tx, row["teacher_id"], day, start, end)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher conflict")
	}
	if busy {
		return fmt.Sprintf("teacher %s is busy on %s %s-%s", row["teacher_id"], day, start, end), nil
	}

	if room := row["room"]; room != "" {
		busy, err = s.ledger.RoomBusy(ctx, tx, room, day, start, end)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room conflict")
		}
		if busy {
			return fmt.Sprintf("room %s is occupied on %s %s-%s", room, day, start, end), nil
		}
	}

	busy, err = s.ledger.ClassBusy(ctx, tx, row["class_id"], day, start, end)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class conflict")
	}
	if busy {
		return fmt.Sprintf("class %s already has an entry on %s %s-%s", row["class_id"], day, start, end), nil
	}

	entry := models.TimetableEntry{
		ClassID:   row["class_id"],
		SubjectID: row["subject_id"],
		TeacherID: row["teacher_id"],
		DayOfWeek: day,
		StartTime: start,
		EndTime:   end,
		Room:      row["room"],
		SessionID: sessionID,
		Status:    models.EntryStatusDraft,
	}
	if err := s.ledger.Insert(ctx, tx, &entry); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert imported entry")
	}
	return "", nil
}

func validateImportRow(row map[string]string) string {
	for _, field := range []string{"class_id", "subject_id", "teacher_id"} {
		if row[field] == "" {
			return field + " is required"
		}
	}

	day := strings.ToUpper(row["day_of_week"])
	known := false
	for _, weekday := range models.Weekdays {
		if day == weekday {
			known = true
			break
		}
	}
	if !known {
		return fmt.Sprintf("unknown day_of_week %q", row["day_of_week"])
	}

	start, err := parseClock(row["start_time"])
	if err != nil {
		return fmt.Sprintf("invalid start_time %q", row["start_time"])
	}
	end, err := parseClock(row["end_time"])
	if err != nil {
		return fmt.Sprintf("invalid end_time %q", row["end_time"])
	}
	if start >= end {
		return "start_time must be before end_time"
	}
	return ""
}

// parseImportCSV reads the file into header-keyed rows, rejecting files whose
// header row differs from the expected column set.
func parseImportCSV(reader io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(reader)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "import file is empty")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read csv header")
	}
	if len(header) != len(importHeaders) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("expected columns %s", strings.Join(importHeaders, ", ")))
	}
	for i, want := range importHeaders {
		if strings.TrimSpace(strings.ToLower(header[i])) != want {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("expected column %d to be %q, got %q", i+1, want, header[i]))
		}
	}

	var rows []map[string]string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read csv row")
		}
		row := make(map[string]string, len(importHeaders))
		for i, field := range importHeaders {
			row[field] = strings.TrimSpace(record[i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// buildErrorReport echoes every input row with a trailing reason column so
// the caller can fix and resubmit the same file.
func (s *TimetableImportService) buildErrorReport(rows []map[string]string, reasons []string) (string, error) {
	headers := append(append([]string{}, importHeaders...), importReasonHeader)
	reportRows := make([]map[string]string, len(rows))
	for i, row := range rows {
		annotated := make(map[string]string, len(row)+1)
		for k, v := range row {
			annotated[k] = v
		}
		annotated[importReasonHeader] = reasons[i]
		reportRows[i] = annotated
	}
	data, err := s.csv.Render(export.Dataset{Headers: headers, Rows: reportRows})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render error report")
	}
	return string(data), nil
}

func (s *TimetableImportService) recordImportAudit(ctx context.Context, sessionID, message string) {
	if s.audits == nil {
		return
	}
	entry := &models.AuditLog{
		ActorID:  models.AuditActorSystem,
		TargetID: sessionID,
		Action:   models.AuditActionTimetableImport,
		Message:  message,
	}
	if err := s.audits.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record import audit", zap.String("session_id", sessionID), zap.Error(err))
	}
}
