package service

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shiksha-labs/shiksha-api/internal/models"
	appErrors "github.com/shiksha-labs/shiksha-api/pkg/errors"
)

const importCSVHeader = "class_id,subject_id,teacher_id,day_of_week,start_time,end_time,room"

type invalidatorStub struct {
	classIDs   []string
	teacherIDs []string
}

func (s *invalidatorStub) InvalidateTimetables(ctx context.Context, classID string, teacherIDs []string) {
	if classID != "" {
		s.classIDs = append(s.classIDs, classID)
	}
	s.teacherIDs = append(s.teacherIDs, teacherIDs...)
}

func TestImportCommitsCleanBatch(t *testing.T) {
	ledger := &ledgerStub{}
	tx, mock := newEngineTxProviderMock(t)
	audits := &auditRecorderStub{}
	svc := NewTimetableImportService(ledger, tx, audits, nil, nil, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectCommit()

	file := importCSVHeader + "\n" +
		"class-1,math,t-1,MONDAY,08:00,08:45,R1\n" +
		"class-1,art,t-2,MONDAY,08:55,09:40,R1\n"

	result, err := svc.Import(context.Background(), "session-1", strings.NewReader(file))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.RowsImported)
	assert.Empty(t, result.ErrorReport)

	require.Len(t, ledger.entries, 2)
	assert.Equal(t, "session-1", ledger.entries[0].SessionID)
	assert.Equal(t, models.EntryStatusDraft, ledger.entries[0].Status)
	assert.Equal(t, "R1", ledger.entries[0].Room)

	require.Len(t, audits.entries, 1)
	assert.Equal(t, models.AuditActionTimetableImport, audits.entries[0].Action)
	assert.Equal(t, "imported 2 rows", audits.entries[0].Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportInvalidatesCachedViews(t *testing.T) {
	ledger := &ledgerStub{}
	tx, mock := newEngineTxProviderMock(t)
	invalidator := &invalidatorStub{}
	svc := NewTimetableImportService(ledger, tx, nil, invalidator, nil, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectCommit()

	file := importCSVHeader + "\n" +
		"class-1,math,t-1,MONDAY,08:00,08:45,\n" +
		"class-1,art,t-2,MONDAY,08:55,09:40,\n" +
		"class-2,math,t-1,MONDAY,09:50,10:35,\n"

	result, err := svc.Import(context.Background(), "session-1", strings.NewReader(file))
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.ElementsMatch(t, []string{"class-1", "class-2"}, invalidator.classIDs)
	assert.ElementsMatch(t, []string{"t-1", "t-2"}, invalidator.teacherIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportRejectedBatchKeepsCache(t *testing.T) {
	ledger := &ledgerStub{entries: []models.TimetableEntry{
		{TeacherID: "t-1", ClassID: "class-9", DayOfWeek: "MONDAY", StartTime: "08:00", EndTime: "08:45"},
	}}
	tx, mock := newEngineTxProviderMock(t)
	invalidator := &invalidatorStub{}
	svc := NewTimetableImportService(ledger, tx, nil, invalidator, nil, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectRollback()

	file := importCSVHeader + "\n" +
		"class-1,math,t-1,MONDAY,08:00,08:45,\n"

	result, err := svc.Import(context.Background(), "session-1", strings.NewReader(file))
	require.NoError(t, err)
	require.False(t, result.Success)

	assert.Empty(t, invalidator.classIDs)
	assert.Empty(t, invalidator.teacherIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportRejectsBatchWithConflict(t *testing.T) {
	// Teacher t-1 is already booked Monday 08:00.
	ledger := &ledgerStub{entries: []models.TimetableEntry{
		{TeacherID: "t-1", ClassID: "class-9", DayOfWeek: "MONDAY", StartTime: "08:00", EndTime: "08:45"},
	}}
	tx, mock := newEngineTxProviderMock(t)
	audits := &auditRecorderStub{}
	svc := NewTimetableImportService(ledger, tx, audits, nil, nil, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectRollback()

	file := importCSVHeader + "\n" +
		"class-1,math,t-1,MONDAY,08:00,08:45,\n" +
		"class-1,art,t-2,MONDAY,08:55,09:40,\n" +
		"class-1,music,t-3,TUESDAY,08:00,08:45,\n" +
		"class-1,physics,t-4,TUESDAY,08:55,09:40,\n"

	result, err := svc.Import(context.Background(), "session-1", strings.NewReader(file))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.RowsImported)

	records, err := csv.NewReader(strings.NewReader(result.ErrorReport)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5) // header plus all four rows

	header := records[0]
	assert.Equal(t, "import_error_reason", header[len(header)-1])

	nonEmpty := 0
	for _, record := range records[1:] {
		if record[len(record)-1] != "" {
			nonEmpty++
			assert.Contains(t, record[len(record)-1], "teacher t-1 is busy")
		}
	}
	assert.Equal(t, 1, nonEmpty)

	require.Len(t, audits.entries, 1)
	assert.Equal(t, "import rejected: 1 of 4 rows failed", audits.entries[0].Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportFlagsInBatchClassOverlap(t *testing.T) {
	ledger := &ledgerStub{}
	tx, mock := newEngineTxProviderMock(t)
	svc := NewTimetableImportService(ledger, tx, nil, nil, nil, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectRollback()

	// Second row overlaps the first for the same class.
	file := importCSVHeader + "\n" +
		"class-1,math,t-1,MONDAY,08:00,08:45,\n" +
		"class-1,art,t-2,MONDAY,08:30,09:15,\n"

	result, err := svc.Import(context.Background(), "session-1", strings.NewReader(file))
	require.NoError(t, err)
	assert.False(t, result.Success)

	records, parseErr := csv.NewReader(strings.NewReader(result.ErrorReport)).ReadAll()
	require.NoError(t, parseErr)
	assert.Empty(t, records[1][len(records[1])-1])
	assert.Contains(t, records[2][len(records[2])-1], "class class-1 already has an entry")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportRejectsMalformedRows(t *testing.T) {
	ledger := &ledgerStub{}
	tx, mock := newEngineTxProviderMock(t)
	svc := NewTimetableImportService(ledger, tx, nil, nil, nil, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectRollback()

	file := importCSVHeader + "\n" +
		"class-1,math,t-1,FUNDAY,08:00,08:45,\n" +
		"class-1,art,t-2,MONDAY,09:00,08:00,\n" +
		",science,t-3,MONDAY,10:00,10:45,\n"

	result, err := svc.Import(context.Background(), "session-1", strings.NewReader(file))
	require.NoError(t, err)
	assert.False(t, result.Success)

	records, parseErr := csv.NewReader(strings.NewReader(result.ErrorReport)).ReadAll()
	require.NoError(t, parseErr)
	assert.Contains(t, records[1][len(records[1])-1], `unknown day_of_week "FUNDAY"`)
	assert.Contains(t, records[2][len(records[2])-1], "start_time must be before end_time")
	assert.Contains(t, records[3][len(records[3])-1], "class_id is required")
}

func TestImportRejectsWrongHeader(t *testing.T) {
	tx, _ := newEngineTxProviderMock(t)
	svc := NewTimetableImportService(&ledgerStub{}, tx, nil, nil, nil, zap.NewNop())

	file := "class,subject,teacher,day,start,end,room\nclass-1,math,t-1,MONDAY,08:00,08:45,\n"
	_, err := svc.Import(context.Background(), "session-1", strings.NewReader(file))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestImportRejectsEmptyFile(t *testing.T) {
	tx, _ := newEngineTxProviderMock(t)
	svc := NewTimetableImportService(&ledgerStub{}, tx, nil, nil, nil, zap.NewNop())

	_, err := svc.Import(context.Background(), "session-1", strings.NewReader(""))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Import(context.Background(), "session-1", strings.NewReader(importCSVHeader+"\n"))
	require.Error(t, err)

	_, err = svc.Import(context.Background(), "", strings.NewReader(importCSVHeader+"\n"))
	require.Error(t, err)
}
