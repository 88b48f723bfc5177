package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"wisefido-behavior/internal/models"
)

// AttendanceRepository 出勤记录仓库
type AttendanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAttendanceRepository 创建出勤记录仓库
func NewAttendanceRepository(db *sql.DB, logger *zap.Logger) *AttendanceRepository {
	return &AttendanceRepository{
		db:     db,
		logger: logger,
	}
}

// CheckIn 目标首次出现时签到，已签到则忽略
func (r *AttendanceRepository) CheckIn(ctx context.Context, sessionID, trackID, identity string) error {
	if sessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if trackID == "" {
		return fmt.Errorf("track_id is required")
	}

	checkQuery := `
		SELECT attendance_id FROM attendance
		WHERE session_id = $1 AND track_id = $2 AND status = 'present'
	`
	var attendanceID int64
	err := r.db.QueryRowContext(ctx, checkQuery, sessionID, trackID).Scan(&attendanceID)
	if err == nil {
		return nil // 已签到
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to query attendance: %w", err)
	}

	var identityVal sql.NullString
	if identity != "" {
		identityVal = sql.NullString{String: identity, Valid: true}
	}

	insertQuery := `
		INSERT INTO attendance (session_id, track_id, identity_name, check_in_time, status)
		VALUES ($1, $2, $3, NOW(), 'present')
	`
	if _, err := r.db.ExecContext(ctx, insertQuery, sessionID, trackID, identityVal); err != nil {
		return fmt.Errorf("failed to insert attendance: %w", err)
	}

	r.logger.Info("Track checked in",
		zap.String("session_id", sessionID),
		zap.String("track_id", trackID),
		zap.String("identity", identity),
	)
	return nil
}

// UpdateIdentity 识别出身份后回填出勤记录
func (r *AttendanceRepository) UpdateIdentity(ctx context.Context, sessionID, trackID, identity string) error {
	if sessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if trackID == "" {
		return fmt.Errorf("track_id is required")
	}
	if identity == "" {
		return nil
	}

	query := `
		UPDATE attendance
		SET identity_name = $1
		WHERE session_id = $2 AND track_id = $3 AND status = 'present'
	`
	if _, err := r.db.ExecContext(ctx, query, identity, sessionID, trackID); err != nil {
		return fmt.Errorf("failed to update attendance identity: %w", err)
	}
	return nil
}

// CheckOut 目标被清理时签退并记录停留时长
func (r *AttendanceRepository) CheckOut(ctx context.Context, sessionID, trackID string) error {
	if sessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if trackID == "" {
		return fmt.Errorf("track_id is required")
	}

	query := `
		UPDATE attendance
		SET check_out_time = NOW(),
		    duration_seconds = EXTRACT(EPOCH FROM (NOW() - check_in_time))::bigint,
		    status = 'left'
		WHERE session_id = $1 AND track_id = $2 AND status = 'present'
	`
	if _, err := r.db.ExecContext(ctx, query, sessionID, trackID); err != nil {
		return fmt.Errorf("failed to check out track: %w", err)
	}

	r.logger.Info("Track checked out",
		zap.String("session_id", sessionID),
		zap.String("track_id", trackID),
	)
	return nil
}

// FinalizeAll 会话结束时将所有在场记录统一签退
func (r *AttendanceRepository) FinalizeAll(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session_id is required")
	}

	query := `
		UPDATE attendance
		SET check_out_time = NOW(),
		    duration_seconds = EXTRACT(EPOCH FROM (NOW() - check_in_time))::bigint,
		    status = 'left'
		WHERE session_id = $1 AND status = 'present'
	`
	if _, err := r.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to finalize attendance: %w", err)
	}

	r.logger.Info("Attendance finalized", zap.String("session_id", sessionID))
	return nil
}

// GetSummary 读取会话出勤汇总（按签到时间排序）
func (r *AttendanceRepository) GetSummary(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	query := `
		SELECT track_id, identity_name, check_in_time, check_out_time, duration_seconds, status
		FROM attendance
		WHERE session_id = $1
		ORDER BY check_in_time
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var records []models.AttendanceRecord
	for rows.Next() {
		var rec models.AttendanceRecord
		var identity sql.NullString
		var checkOut sql.NullTime
		var duration sql.NullInt64

		if err := rows.Scan(
			&rec.TrackID,
			&identity,
			&rec.CheckInTime,
			&checkOut,
			&duration,
			&rec.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attendance record: %w", err)
		}

		if identity.Valid {
			rec.Identity = identity.String
		}
		if checkOut.Valid {
			rec.CheckOutTime = &checkOut.Time
		}
		if duration.Valid {
			rec.Duration = duration.Int64
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance records: %w", err)
	}
	return records, nil
}
