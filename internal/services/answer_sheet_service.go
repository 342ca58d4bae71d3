package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	answersSheet = "Answers"
	summarySheet = "Summary"
)

// AnswerSheetService renders a live session's answers as an XLSX workbook.
type AnswerSheetService interface {
	ExportAnswerSheet(ctx context.Context, sessionID, userID string) ([]byte, error)
}

type answerSheetService struct {
	sessions SessionService
	logger   *slog.Logger
	now      func() time.Time
}

func NewAnswerSheetService(sessions SessionService, logger *slog.Logger) AnswerSheetService {
	return &answerSheetService{
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *answerSheetService) ExportAnswerSheet(ctx context.Context, sessionID, userID string) ([]byte, error) {
	rows, err := s.sessions.Sheet(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	progress, err := s.sessions.Progress(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	// Rename the default sheet so the workbook has no empty tab
	if err := f.SetSheetName("Sheet1", answersSheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	headers := []string{
		"#", "Question ID", "Type", "Prompt", "Answer (JSON)", "Answered", "Units", "Marked For Review",
	}
	if err := writeRow(f, answersSheet, 1, toCells(headers)); err != nil {
		return nil, err
	}

	for i, row := range rows {
		answer, err := json.Marshal(row.Answer)
		if err != nil {
			return nil, fmt.Errorf("failed to encode answer for question %d: %w", row.QuestionID, err)
		}
		values := []interface{}{
			row.Index,
			row.QuestionID,
			string(row.Type),
			row.Prompt,
			string(answer),
			row.Answered,
			row.Units,
			yesNo(row.MarkedForReview),
		}
		if err := writeRow(f, answersSheet, i+2, values); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	summary := [][]interface{}{
		{"Session ID", sessionID},
		{"Status", string(progress.Status)},
		{"Answered", progress.Progress.Answered},
		{"Total", progress.Progress.Total},
		{"Skipped", progress.Progress.Skipped},
		{"Time Left", progress.FormattedTimeLeft},
		{"Exported At", s.now().UTC().Format("2006-01-02 15:04:05")},
	}
	for i, values := range summary {
		if err := writeRow(f, summarySheet, i+1, values); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("Answer sheet exported",
		"session_id", sessionID,
		"questions", len(rows),
		"status", progress.Status)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("failed to resolve cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("failed to write cell %s: %w", cell, err)
		}
	}
	return nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
