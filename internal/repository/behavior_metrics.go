package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"wisefido-behavior/internal/models"
)

// BehaviorMetricsRepository 行为指标仓库
type BehaviorMetricsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBehaviorMetricsRepository 创建行为指标仓库
func NewBehaviorMetricsRepository(db *sql.DB, logger *zap.Logger) *BehaviorMetricsRepository {
	return &BehaviorMetricsRepository{
		db:     db,
		logger: logger,
	}
}

// InsertMetrics 写入单目标的一次聚合指标
func (r *BehaviorMetricsRepository) InsertMetrics(ctx context.Context, sessionID string, frameID int64, m models.BehavioralMetrics) error {
	if sessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if m.TrackID == "" {
		return fmt.Errorf("track_id is required")
	}

	query := `
		INSERT INTO behavior_metrics
			(session_id, track_id, identity_name, timestamp, frame_id,
			 sample_count, observation_duration,
			 attention_score, looking_away_rate, direction_stability,
			 phone_risk_score, phone_detection_rate, phone_trend,
			 engagement_risk_score, engagement_risk_level, primary_behavior,
			 avg_confidence, data_quality)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	var identity sql.NullString
	if m.Identity != "" {
		identity = sql.NullString{String: m.Identity, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		sessionID,
		m.TrackID,
		identity,
		m.Timestamp,
		frameID,
		m.SampleCount,
		m.ObservationDuration,
		m.AttentionScore,
		m.LookingAwayRate,
		m.DirectionStability,
		m.PhoneRiskScore,
		m.PhoneDetectionRate,
		string(m.PhoneTrend),
		m.EngagementRiskScore,
		string(m.EngagementRiskLevel),
		string(m.PrimaryBehavior),
		m.AvgConfidence,
		string(m.DataQuality),
	)
	if err != nil {
		return fmt.Errorf("failed to insert metrics: %w", err)
	}

	r.logger.Debug("Metrics inserted",
		zap.String("session_id", sessionID),
		zap.String("track_id", m.TrackID),
		zap.String("risk_level", string(m.EngagementRiskLevel)),
	)
	return nil
}
