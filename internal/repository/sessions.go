// Package repository 行为分析数据的 PostgreSQL 持久化层
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"wisefido-behavior/internal/models"
)

// SessionsRepository 会话仓库
type SessionsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSessionsRepository 创建会话仓库
func NewSessionsRepository(db *sql.DB, logger *zap.Logger) *SessionsRepository {
	return &SessionsRepository{
		db:     db,
		logger: logger,
	}
}

// InsertSession 创建会话记录
func (r *SessionsRepository) InsertSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session_id is required")
	}

	query := `
		INSERT INTO sessions (session_id, start_time)
		VALUES ($1, NOW())
	`
	if _, err := r.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	r.logger.Info("Session inserted", zap.String("session_id", sessionID))
	return nil
}

// SessionExists 检查会话是否存在
func (r *SessionsRepository) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, fmt.Errorf("session_id is required")
	}

	query := `SELECT session_id FROM sessions WHERE session_id = $1`

	var id string
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to query session: %w", err)
	}
	return true, nil
}

// FinalizeSession 写入会话的最终统计
func (r *SessionsRepository) FinalizeSession(ctx context.Context, sessionID string, duration float64, frameCount int64, trackCount int) error {
	if sessionID == "" {
		return fmt.Errorf("session_id is required")
	}

	query := `
		UPDATE sessions
		SET end_time = NOW(),
		    duration_seconds = $1,
		    total_frames = $2,
		    total_tracks = $3
		WHERE session_id = $4
	`
	if _, err := r.db.ExecContext(ctx, query, duration, frameCount, trackCount, sessionID); err != nil {
		return fmt.Errorf("failed to finalize session: %w", err)
	}

	r.logger.Info("Session finalized",
		zap.String("session_id", sessionID),
		zap.Float64("duration_seconds", duration),
		zap.Int64("total_frames", frameCount),
		zap.Int("total_tracks", trackCount),
	)
	return nil
}

// GetSession 读取会话记录
func (r *SessionsRepository) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	query := `
		SELECT session_id, start_time, end_time, duration_seconds, total_frames, total_tracks
		FROM sessions
		WHERE session_id = $1
	`

	var session models.Session
	var endTime sql.NullTime
	var duration sql.NullFloat64
	var totalFrames sql.NullInt64
	var totalTracks sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&session.SessionID,
		&session.StartTime,
		&endTime,
		&duration,
		&totalFrames,
		&totalTracks,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session not found: %s", sessionID)
		}
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	if endTime.Valid {
		session.EndTime = &endTime.Time
	}
	if duration.Valid {
		session.Duration = duration.Float64
	}
	if totalFrames.Valid {
		session.TotalFrames = totalFrames.Int64
	}
	if totalTracks.Valid {
		session.TotalTracks = int(totalTracks.Int64)
	}
	return &session, nil
}
