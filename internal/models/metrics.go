package models

import "time"

// PhoneTrend 手机使用趋势分类
type PhoneTrend string

const (
	TrendIncreasing PhoneTrend = "increasing"
	TrendDecreasing PhoneTrend = "decreasing"
	TrendStable     PhoneTrend = "stable"
)

// RiskLevel 综合风险等级
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// DataQuality 数据质量等级（样本数 + 平均置信度）
type DataQuality string

const (
	QualityLow    DataQuality = "low"
	QualityMedium DataQuality = "medium"
	QualityHigh   DataQuality = "high"
)

// PrimaryBehavior 主行为分类
type PrimaryBehavior string

const (
	BehaviorAttentive       PrimaryBehavior = "attentive"
	BehaviorDistractedPhone PrimaryBehavior = "distracted_phone"
	BehaviorDistractedOther PrimaryBehavior = "distracted_other"
	BehaviorUnknown         PrimaryBehavior = "unknown"
)

// BehavioralMetrics 单个目标在一个聚合周期的行为指标快照
//
// 每个周期重新创建，创建后不可变，可直接序列化为扁平 JSON 字段
// 供缓存、数据库和云端 API 使用
type BehavioralMetrics struct {
	TrackID   string    `json:"track_id"`
	Timestamp time.Time `json:"timestamp"`
	Identity  string    `json:"identity_name,omitempty"`

	// 时间维度
	ObservationDuration float64 `json:"observation_duration"` // 窗口跨度（秒）
	SampleCount         int     `json:"sample_count"`

	// 注意力维度
	AttentionScore     float64 `json:"attention_score"`      // 0 或 1，取最近一帧（刻意不做平滑）
	LookingAwayRate    float64 `json:"looking_away_rate"`    // 1 - attention_score
	DirectionStability float64 `json:"direction_stability"`  // 朝向分布中的最大占比

	// 手机维度
	PhoneRiskScore     float64    `json:"phone_risk_score"`     // 0.0-1.0
	PhoneDetectionRate float64    `json:"phone_detection_rate"` // 窗口内接触帧占比
	PhoneTrend         PhoneTrend `json:"phone_trend"`

	// 综合维度
	EngagementRiskScore float64         `json:"engagement_risk_score"` // 0.0-1.0
	EngagementRiskLevel RiskLevel       `json:"engagement_risk_level"`
	PrimaryBehavior     PrimaryBehavior `json:"primary_behavior"`

	// 置信维度
	AvgConfidence float64     `json:"avg_confidence"`
	DataQuality   DataQuality `json:"data_quality"`
}
