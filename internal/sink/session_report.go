package sink

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"wisefido-behavior/internal/models"
)

// SessionReport 会话结束时生成的 Excel 报表
type SessionReport struct {
	logger *zap.Logger
}

// NewSessionReport 创建报表生成器
func NewSessionReport(logger *zap.Logger) *SessionReport {
	return &SessionReport{logger: logger}
}

// Generate 生成会话报表，返回文件路径
//
// 工作簿包含 Summary、Alerts、Attendance 三个工作表
func (r *SessionReport) Generate(outputDir string, session *models.Session,
	alerts []models.Alert, attendance []models.AttendanceRecord) (string, error) {

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:  true,
			Color: "FFFFFF",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"4472C4"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create header style: %w", err)
	}

	if err := r.writeSummarySheet(f, headerStyle, session, alerts, attendance); err != nil {
		return "", err
	}
	if err := r.writeAlertsSheet(f, headerStyle, alerts); err != nil {
		return "", err
	}
	if err := r.writeAttendanceSheet(f, headerStyle, attendance); err != nil {
		return "", err
	}

	// 删除默认工作表
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("failed to delete default sheet: %w", err)
	}

	path := filepath.Join(outputDir, fmt.Sprintf("session_report_%s.xlsx", session.SessionID))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}

	r.logger.Info("Session report generated",
		zap.String("session_id", session.SessionID),
		zap.String("path", path),
		zap.Int("alert_count", len(alerts)),
	)
	return path, nil
}

func (r *SessionReport) writeSummarySheet(f *excelize.File, headerStyle int,
	session *models.Session, alerts []models.Alert, attendance []models.AttendanceRecord) error {

	const sheet = "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	critical := 0
	for _, a := range alerts {
		if a.AlertLevel == models.AlertCritical {
			critical++
		}
	}

	endTime := ""
	if session.EndTime != nil {
		endTime = session.EndTime.Format("2006-01-02 15:04:05")
	}

	rows := [][]any{
		{"Session ID", session.SessionID},
		{"Start Time", session.StartTime.Format("2006-01-02 15:04:05")},
		{"End Time", endTime},
		{"Duration (seconds)", session.Duration},
		{"Total Frames", session.TotalFrames},
		{"Total Tracks", session.TotalTracks},
		{"Total Alerts", len(alerts)},
		{"Critical Alerts", critical},
		{"Attendance Records", len(attendance)},
	}
	for i, row := range rows {
		for col, value := range row {
			if err := setCellValue(f, sheet, col+1, i+1, value); err != nil {
				return err
			}
		}
	}

	if err := f.SetCellStyle(sheet, "A1", "A9", headerStyle); err != nil {
		return fmt.Errorf("failed to style sheet %s: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "A", "A", 22); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	return f.SetColWidth(sheet, "B", "B", 30)
}

func (r *SessionReport) writeAlertsSheet(f *excelize.File, headerStyle int, alerts []models.Alert) error {
	const sheet = "Alerts"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	headers := []string{"Time", "Track", "Identity", "Type", "Level", "Message", "Recommended Action"}
	if err := writeHeaderRow(f, sheet, headerStyle, headers); err != nil {
		return err
	}

	for i, alert := range alerts {
		row := i + 2
		values := []any{
			alert.Timestamp.Format(time.RFC3339),
			alert.TrackID,
			alert.Identity,
			string(alert.AlertType),
			string(alert.AlertLevel),
			alert.Message,
			alert.RecommendedAction,
		}
		for col, value := range values {
			if err := setCellValue(f, sheet, col+1, row, value); err != nil {
				return err
			}
		}
	}
	return f.SetColWidth(sheet, "F", "G", 48)
}

func (r *SessionReport) writeAttendanceSheet(f *excelize.File, headerStyle int, records []models.AttendanceRecord) error {
	const sheet = "Attendance"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	headers := []string{"Track", "Identity", "Check In", "Check Out", "Duration (s)", "Status"}
	if err := writeHeaderRow(f, sheet, headerStyle, headers); err != nil {
		return err
	}

	for i, rec := range records {
		row := i + 2
		checkOut := ""
		if rec.CheckOutTime != nil {
			checkOut = rec.CheckOutTime.Format("2006-01-02 15:04:05")
		}
		values := []any{
			rec.TrackID,
			rec.Identity,
			rec.CheckInTime.Format("2006-01-02 15:04:05"),
			checkOut,
			rec.Duration,
			string(rec.Status),
		}
		for col, value := range values {
			if err := setCellValue(f, sheet, col+1, row, value); err != nil {
				return err
			}
		}
	}
	return f.SetColWidth(sheet, "C", "D", 20)
}

func writeHeaderRow(f *excelize.File, sheet string, style int, headers []string) error {
	for col, header := range headers {
		if err := setCellValue(f, sheet, col+1, 1, header); err != nil {
			return err
		}
	}
	first, err := excelize.CoordinatesToCellName(1, 1)
	if err != nil {
		return fmt.Errorf("failed to build cell name: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return fmt.Errorf("failed to build cell name: %w", err)
	}
	if err := f.SetCellStyle(sheet, first, last, style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	return nil
}

func setCellValue(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to build cell name: %w", err)
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("failed to set cell value: %w", err)
	}
	return nil
}
