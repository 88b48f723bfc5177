// Package evaluator 基于规则的行为告警推理引擎
package evaluator

import (
	"go.uber.org/zap"

	"wisefido-behavior/internal/models"
)

// Config 规则阈值，零值回落到默认值
type Config struct {
	AttentionThreshold      float64 // 持续不专注阈值
	PhoneRiskThreshold      float64 // 手机使用告警阈值
	EngagementRiskThreshold float64 // 高风险分数阈值
	MinSamplesForAlert      int     // 告警所需最少样本数
	CriticalAttention       float64 // 不专注升级为 critical 的阈值
	CriticalPhoneRisk       float64 // 手机风险升级为 critical 的阈值
	TrendDetectionRate      float64 // 趋势告警所需最低检出率
	CombinedPhoneRisk       float64 // 组合分心的手机风险阈值
	CombinedLookingAway     float64 // 组合分心的偏头率阈值
	AttentionDropDelta      float64 // 注意力骤降幅度阈值（正值）
}

// DefaultConfig 默认规则阈值
func DefaultConfig() Config {
	return Config{
		AttentionThreshold:      0.5,
		PhoneRiskThreshold:      0.4,
		EngagementRiskThreshold: 0.6,
		MinSamplesForAlert:      5,
		CriticalAttention:       0.3,
		CriticalPhoneRisk:       0.6,
		TrendDetectionRate:      0.2,
		CombinedPhoneRisk:       0.3,
		CombinedLookingAway:     0.6,
		AttentionDropDelta:      0.3,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.AttentionThreshold <= 0 {
		c.AttentionThreshold = def.AttentionThreshold
	}
	if c.PhoneRiskThreshold <= 0 {
		c.PhoneRiskThreshold = def.PhoneRiskThreshold
	}
	if c.EngagementRiskThreshold <= 0 {
		c.EngagementRiskThreshold = def.EngagementRiskThreshold
	}
	if c.MinSamplesForAlert <= 0 {
		c.MinSamplesForAlert = def.MinSamplesForAlert
	}
	if c.CriticalAttention <= 0 {
		c.CriticalAttention = def.CriticalAttention
	}
	if c.CriticalPhoneRisk <= 0 {
		c.CriticalPhoneRisk = def.CriticalPhoneRisk
	}
	if c.TrendDetectionRate <= 0 {
		c.TrendDetectionRate = def.TrendDetectionRate
	}
	if c.CombinedPhoneRisk <= 0 {
		c.CombinedPhoneRisk = def.CombinedPhoneRisk
	}
	if c.CombinedLookingAway <= 0 {
		c.CombinedLookingAway = def.CombinedLookingAway
	}
	if c.AttentionDropDelta <= 0 {
		c.AttentionDropDelta = def.AttentionDropDelta
	}
	return c
}

// RuleEngine 按固定顺序评估规则并生成告警
//
// 引擎为每个目标保留上一次完整评估的指标快照，用于注意力骤降判定。
// 低质量短路路径不更新快照。
type RuleEngine struct {
	cfg      Config
	previous map[string]models.BehavioralMetrics
	logger   *zap.Logger
}

// NewRuleEngine 创建规则引擎
func NewRuleEngine(cfg Config, logger *zap.Logger) *RuleEngine {
	return &RuleEngine{
		cfg:      cfg.withDefaults(),
		previous: make(map[string]models.BehavioralMetrics),
		logger:   logger,
	}
}

// Evaluate 评估单目标指标，按规则顺序返回告警
func (e *RuleEngine) Evaluate(m models.BehavioralMetrics) []models.Alert {
	var alerts []models.Alert

	// 数据质量过低且样本不足时短路，避免误报
	if m.DataQuality == models.QualityLow && m.SampleCount < 3 {
		if m.SampleCount > 0 {
			alerts = append(alerts, e.buildQualityWarning(m))
		}
		return alerts
	}

	if e.isHighRisk(m) {
		alerts = append(alerts, e.buildHighRisk(m))
	}
	if m.AttentionScore < e.cfg.AttentionThreshold && m.SampleCount >= e.cfg.MinSamplesForAlert {
		alerts = append(alerts, e.buildSustainedInattention(m))
	}
	if m.PhoneRiskScore > e.cfg.PhoneRiskThreshold {
		alerts = append(alerts, e.buildPhoneUsage(m))
	}
	if m.PhoneTrend == models.TrendIncreasing && m.PhoneDetectionRate > e.cfg.TrendDetectionRate {
		alerts = append(alerts, e.buildPhoneIncreasing(m))
	}
	if m.PhoneRiskScore > e.cfg.CombinedPhoneRisk && m.LookingAwayRate > e.cfg.CombinedLookingAway {
		alerts = append(alerts, e.buildCombinedDistraction(m))
	}
	if alert, ok := e.attentionDrop(m); ok {
		alerts = append(alerts, alert)
	}

	e.previous[m.TrackID] = m

	if len(alerts) > 0 && e.logger != nil {
		e.logger.Debug("Rule evaluation produced alerts",
			zap.String("track_id", m.TrackID),
			zap.Int("alert_count", len(alerts)))
	}
	return alerts
}

func (e *RuleEngine) isHighRisk(m models.BehavioralMetrics) bool {
	return m.EngagementRiskLevel == models.RiskHigh ||
		m.EngagementRiskScore >= e.cfg.EngagementRiskThreshold
}

func (e *RuleEngine) attentionDrop(m models.BehavioralMetrics) (models.Alert, bool) {
	prev, ok := e.previous[m.TrackID]
	if !ok {
		return models.Alert{}, false
	}
	change := m.AttentionScore - prev.AttentionScore
	if change < -e.cfg.AttentionDropDelta && m.SampleCount >= e.cfg.MinSamplesForAlert {
		return e.buildAttentionDrop(m, prev.AttentionScore, change), true
	}
	return models.Alert{}, false
}

// EvaluateAll 评估全部目标，仅保留产生告警的目标
func (e *RuleEngine) EvaluateAll(all map[string]models.BehavioralMetrics) map[string][]models.Alert {
	out := make(map[string][]models.Alert)
	for trackID, m := range all {
		if alerts := e.Evaluate(m); len(alerts) > 0 {
			out[trackID] = alerts
		}
	}
	return out
}

// Remove 清除目标的历史快照
func (e *RuleEngine) Remove(trackID string) {
	delete(e.previous, trackID)
}
