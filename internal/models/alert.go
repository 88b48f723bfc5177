package models

import "time"

// AlertLevel 告警级别
type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// AlertType 行为告警类型
type AlertType string

const (
	AlertSustainedInattention  AlertType = "sustained_inattention"
	AlertPhoneUsage            AlertType = "phone_usage"
	AlertPhoneUsageIncreasing  AlertType = "phone_usage_increasing"
	AlertCombinedDistraction   AlertType = "combined_distraction"
	AlertHighRiskBehavior      AlertType = "high_risk_behavior"
	AlertAttentionDrop         AlertType = "attention_drop"
	AlertQualityWarning        AlertType = "quality_warning"
)

// Alert 行为告警（由规则引擎产生，创建后不可变）
type Alert struct {
	AlertID           string             `json:"alert_id"`
	TrackID           string             `json:"track_id"`
	Timestamp         time.Time          `json:"timestamp"`
	AlertType         AlertType          `json:"alert_type"`
	AlertLevel        AlertLevel         `json:"alert_level"`
	Message           string             `json:"message"`
	Metrics           map[string]any     `json:"metrics"` // 触发该告警的支撑指标
	RecommendedAction string             `json:"recommended_action"`
	Identity          string             `json:"identity_name,omitempty"`
}
