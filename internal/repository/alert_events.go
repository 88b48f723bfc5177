package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wisefido-behavior/internal/models"
)

// AlertEventsRepository 行为告警仓库
type AlertEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertEventsRepository 创建行为告警仓库
func NewAlertEventsRepository(db *sql.DB, logger *zap.Logger) *AlertEventsRepository {
	return &AlertEventsRepository{
		db:     db,
		logger: logger,
	}
}

// InsertAlert 写入一条行为告警
func (r *AlertEventsRepository) InsertAlert(ctx context.Context, sessionID string, frameID int64, alert models.Alert) error {
	if sessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if alert.AlertID == "" {
		return fmt.Errorf("alert_id is required")
	}
	if alert.TrackID == "" {
		return fmt.Errorf("track_id is required")
	}

	metricsJSON, err := json.Marshal(alert.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal alert metrics: %w", err)
	}

	query := `
		INSERT INTO behavior_alerts
			(alert_id, session_id, track_id, identity_name, timestamp, frame_id,
			 alert_type, alert_level, message, metrics, recommended_action)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	var identity sql.NullString
	if alert.Identity != "" {
		identity = sql.NullString{String: alert.Identity, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, query,
		alert.AlertID,
		sessionID,
		alert.TrackID,
		identity,
		alert.Timestamp,
		frameID,
		string(alert.AlertType),
		string(alert.AlertLevel),
		alert.Message,
		metricsJSON,
		alert.RecommendedAction,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	r.logger.Debug("Alert inserted",
		zap.String("alert_id", alert.AlertID),
		zap.String("track_id", alert.TrackID),
		zap.String("alert_type", string(alert.AlertType)),
		zap.String("alert_level", string(alert.AlertLevel)),
	)
	return nil
}

// HasRecentAlert 检查指定目标在 since 之后是否已有同类告警（入库去重）
func (r *AlertEventsRepository) HasRecentAlert(ctx context.Context, sessionID, trackID string, alertType models.AlertType, since time.Time) (bool, error) {
	if sessionID == "" {
		return false, fmt.Errorf("session_id is required")
	}
	if trackID == "" {
		return false, fmt.Errorf("track_id is required")
	}

	query := `
		SELECT alert_id
		FROM behavior_alerts
		WHERE session_id = $1
		  AND track_id = $2
		  AND alert_type = $3
		  AND created_at >= $4
		LIMIT 1
	`

	var alertID string
	err := r.db.QueryRowContext(ctx, query, sessionID, trackID, string(alertType), since).Scan(&alertID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to query recent alerts: %w", err)
	}
	return true, nil
}

// GetSessionAlerts 读取会话内的全部告警（按时间排序）
func (r *AlertEventsRepository) GetSessionAlerts(ctx context.Context, sessionID string) ([]models.Alert, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	query := `
		SELECT alert_id, track_id, identity_name, timestamp,
		       alert_type, alert_level, message, metrics, recommended_action
		FROM behavior_alerts
		WHERE session_id = $1
		ORDER BY timestamp
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var alert models.Alert
		var identity sql.NullString
		var metricsJSON []byte

		if err := rows.Scan(
			&alert.AlertID,
			&alert.TrackID,
			&identity,
			&alert.Timestamp,
			&alert.AlertType,
			&alert.AlertLevel,
			&alert.Message,
			&metricsJSON,
			&alert.RecommendedAction,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		if identity.Valid {
			alert.Identity = identity.String
		}
		if len(metricsJSON) > 0 {
			if err := json.Unmarshal(metricsJSON, &alert.Metrics); err != nil {
				return nil, fmt.Errorf("failed to unmarshal alert metrics: %w", err)
			}
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}
