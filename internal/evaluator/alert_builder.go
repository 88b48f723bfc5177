package evaluator

import (
	"fmt"

	"github.com/google/uuid"

	"wisefido-behavior/internal/models"
)

// subjectRef 告警文案中的目标称呼，优先使用识别出的身份
func subjectRef(m models.BehavioralMetrics) string {
	if m.Identity != "" {
		return m.Identity
	}
	return fmt.Sprintf("Subject #%s", m.TrackID)
}

func newAlert(m models.BehavioralMetrics, alertType models.AlertType, level models.AlertLevel,
	message, action string, metrics map[string]any) models.Alert {
	return models.Alert{
		AlertID:           uuid.New().String(),
		TrackID:           m.TrackID,
		Timestamp:         m.Timestamp,
		AlertType:         alertType,
		AlertLevel:        level,
		Message:           message,
		Metrics:           metrics,
		RecommendedAction: action,
		Identity:          m.Identity,
	}
}

func (e *RuleEngine) buildQualityWarning(m models.BehavioralMetrics) models.Alert {
	return newAlert(m, models.AlertQualityWarning, models.AlertInfo,
		fmt.Sprintf("Low data quality for %s", subjectRef(m)),
		"Wait for more samples before making decisions",
		map[string]any{"sample_count": m.SampleCount})
}

func (e *RuleEngine) buildHighRisk(m models.BehavioralMetrics) models.Alert {
	return newAlert(m, models.AlertHighRiskBehavior, models.AlertCritical,
		fmt.Sprintf("%s shows high-risk behavior pattern", subjectRef(m)),
		"Immediate intervention recommended - check on subject",
		map[string]any{
			"engagement_risk_score": m.EngagementRiskScore,
			"primary_behavior":      string(m.PrimaryBehavior),
			"attention_score":       m.AttentionScore,
			"phone_risk_score":      m.PhoneRiskScore,
		})
}

func (e *RuleEngine) buildSustainedInattention(m models.BehavioralMetrics) models.Alert {
	level := models.AlertWarning
	if m.AttentionScore < e.cfg.CriticalAttention {
		level = models.AlertCritical
	}
	return newAlert(m, models.AlertSustainedInattention, level,
		fmt.Sprintf("%s showing sustained inattention (%.1f%%)", subjectRef(m), m.AttentionScore*100),
		"Monitor closely or provide gentle reminder to focus",
		map[string]any{
			"attention_score":   m.AttentionScore,
			"looking_away_rate": m.LookingAwayRate,
			"duration":          m.ObservationDuration,
			"sample_count":      m.SampleCount,
		})
}

func (e *RuleEngine) buildPhoneUsage(m models.BehavioralMetrics) models.Alert {
	level := models.AlertWarning
	if m.PhoneRiskScore > e.cfg.CriticalPhoneRisk {
		level = models.AlertCritical
	}
	return newAlert(m, models.AlertPhoneUsage, level,
		fmt.Sprintf("%s likely using phone (risk: %.1f%%)", subjectRef(m), m.PhoneRiskScore*100),
		"Politely ask subject to put away phone",
		map[string]any{
			"phone_risk_score":     m.PhoneRiskScore,
			"phone_detection_rate": m.PhoneDetectionRate,
			"phone_trend":          string(m.PhoneTrend),
		})
}

func (e *RuleEngine) buildPhoneIncreasing(m models.BehavioralMetrics) models.Alert {
	return newAlert(m, models.AlertPhoneUsageIncreasing, models.AlertWarning,
		fmt.Sprintf("%s phone usage trend is increasing", subjectRef(m)),
		"Watch closely - may need intervention soon",
		map[string]any{
			"phone_trend":          string(m.PhoneTrend),
			"phone_detection_rate": m.PhoneDetectionRate,
			"phone_risk_score":     m.PhoneRiskScore,
		})
}

func (e *RuleEngine) buildCombinedDistraction(m models.BehavioralMetrics) models.Alert {
	return newAlert(m, models.AlertCombinedDistraction, models.AlertCritical,
		fmt.Sprintf("%s showing combined distraction (phone + looking away)", subjectRef(m)),
		"Immediate intervention - subject is significantly distracted",
		map[string]any{
			"phone_risk_score":  m.PhoneRiskScore,
			"looking_away_rate": m.LookingAwayRate,
			"attention_score":   m.AttentionScore,
		})
}

func (e *RuleEngine) buildAttentionDrop(m models.BehavioralMetrics, previous, change float64) models.Alert {
	return newAlert(m, models.AlertAttentionDrop, models.AlertWarning,
		fmt.Sprintf("%s attention dropped significantly", subjectRef(m)),
		"Check if subject needs help or is confused",
		map[string]any{
			"previous_attention": previous,
			"current_attention":  m.AttentionScore,
			"change":             change,
		})
}
