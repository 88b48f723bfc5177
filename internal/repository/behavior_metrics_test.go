package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-behavior/internal/models"
)

func TestInsertMetrics_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewBehaviorMetricsRepository(db, zap.NewNop())

	m := models.BehavioralMetrics{
		TrackID:             "t1",
		Timestamp:           time.Now(),
		Identity:            "Alice",
		ObservationDuration: 18.5,
		SampleCount:         22,
		AttentionScore:      1.0,
		LookingAwayRate:     0.0,
		DirectionStability:  0.8,
		PhoneRiskScore:      0.2,
		PhoneDetectionRate:  0.1,
		PhoneTrend:          models.TrendStable,
		EngagementRiskScore: 0.07,
		EngagementRiskLevel: models.RiskLow,
		PrimaryBehavior:     models.BehaviorAttentive,
		AvgConfidence:       0.88,
		DataQuality:         models.QualityHigh,
	}

	mock.ExpectExec(`INSERT INTO behavior_metrics`).
		WithArgs(
			"session-1", "t1", "Alice", m.Timestamp, int64(100),
			22, 18.5,
			1.0, 0.0, 0.8,
			0.2, 0.1, "stable",
			0.07, "low", "attentive",
			0.88, "high",
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.InsertMetrics(context.Background(), "session-1", 100, m)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMetrics_Validation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewBehaviorMetricsRepository(db, zap.NewNop())

	err = repo.InsertMetrics(context.Background(), "", 1, models.BehavioralMetrics{TrackID: "t1"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "session_id is required")

	err = repo.InsertMetrics(context.Background(), "session-1", 1, models.BehavioralMetrics{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "track_id is required")
}
