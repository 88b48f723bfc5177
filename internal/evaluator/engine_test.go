package evaluator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-behavior/internal/models"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// attentiveMetrics 不触发任何规则的基线指标
func attentiveMetrics(trackID string) models.BehavioralMetrics {
	return models.BehavioralMetrics{
		TrackID:             trackID,
		Timestamp:           testNow,
		SampleCount:         25,
		ObservationDuration: 20.0,
		AttentionScore:      1.0,
		LookingAwayRate:     0.0,
		DirectionStability:  1.0,
		PhoneTrend:          models.TrendStable,
		EngagementRiskLevel: models.RiskLow,
		PrimaryBehavior:     models.BehaviorAttentive,
		AvgConfidence:       0.9,
		DataQuality:         models.QualityHigh,
	}
}

func TestEvaluateNoAlerts(t *testing.T) {
	e := NewRuleEngine(DefaultConfig(), zap.NewNop())
	alerts := e.Evaluate(attentiveMetrics("t1"))
	assert.Empty(t, alerts)
}

// 测试低质量短路：样本不足时只产出 INFO 级质量告警，不再评估其余规则
func TestEvaluateLowQualityShortCircuit(t *testing.T) {
	e := NewRuleEngine(DefaultConfig(), zap.NewNop())

	m := attentiveMetrics("t1")
	m.DataQuality = models.QualityLow
	m.SampleCount = 2
	m.AttentionScore = 0.0 // 本应触发多条规则
	m.LookingAwayRate = 1.0
	m.PhoneRiskScore = 1.0
	m.EngagementRiskLevel = models.RiskHigh

	alerts := e.Evaluate(m)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertQualityWarning, alerts[0].AlertType)
	assert.Equal(t, models.AlertInfo, alerts[0].AlertLevel)
	assert.Equal(t, 2, alerts[0].Metrics["sample_count"])

	// 零样本时不产出任何告警
	m.SampleCount = 0
	assert.Empty(t, e.Evaluate(m))

	// 短路路径不更新快照：下一次完整评估不应触发注意力骤降
	full := attentiveMetrics("t1")
	full.AttentionScore = 0.4
	full.LookingAwayRate = 0.6
	alerts = e.Evaluate(full)
	for _, a := range alerts {
		assert.NotEqual(t, models.AlertAttentionDrop, a.AlertType)
	}
}

// 测试全规则并发触发及评估顺序
func TestEvaluateAllRulesFire(t *testing.T) {
	e := NewRuleEngine(DefaultConfig(), zap.NewNop())

	m := attentiveMetrics("t7")
	m.AttentionScore = 0.0
	m.LookingAwayRate = 1.0
	m.PhoneRiskScore = 0.7
	m.PhoneDetectionRate = 0.5
	m.PhoneTrend = models.TrendIncreasing
	m.EngagementRiskScore = 0.9
	m.EngagementRiskLevel = models.RiskHigh
	m.PrimaryBehavior = models.BehaviorDistractedPhone

	alerts := e.Evaluate(m)
	require.Len(t, alerts, 5)
	assert.Equal(t, models.AlertHighRiskBehavior, alerts[0].AlertType)
	assert.Equal(t, models.AlertCritical, alerts[0].AlertLevel)
	assert.Equal(t, models.AlertSustainedInattention, alerts[1].AlertType)
	assert.Equal(t, models.AlertCritical, alerts[1].AlertLevel) // 注意力 < 0.3 升级
	assert.Equal(t, models.AlertPhoneUsage, alerts[2].AlertType)
	assert.Equal(t, models.AlertCritical, alerts[2].AlertLevel) // 风险 > 0.6 升级
	assert.Equal(t, models.AlertPhoneUsageIncreasing, alerts[3].AlertType)
	assert.Equal(t, models.AlertWarning, alerts[3].AlertLevel)
	assert.Equal(t, models.AlertCombinedDistraction, alerts[4].AlertType)
	assert.Equal(t, models.AlertCritical, alerts[4].AlertLevel)

	for _, a := range alerts {
		assert.NotEmpty(t, a.AlertID)
		assert.Equal(t, "t7", a.TrackID)
		assert.Contains(t, a.Message, "Subject #t7")
	}
}

// 测试高风险规则也可由风险分数触发（等级未达 high 时）
func TestHighRiskByScoreThreshold(t *testing.T) {
	e := NewRuleEngine(DefaultConfig(), zap.NewNop())

	m := attentiveMetrics("t1")
	m.EngagementRiskScore = 0.62
	m.EngagementRiskLevel = models.RiskMedium

	alerts := e.Evaluate(m)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertHighRiskBehavior, alerts[0].AlertType)
}

// 测试告警升级边界：阈值之下保持 warning
func TestSeverityBoundaries(t *testing.T) {
	e := NewRuleEngine(DefaultConfig(), zap.NewNop())

	m := attentiveMetrics("t1")
	m.AttentionScore = 0.4
	m.LookingAwayRate = 0.6
	m.PhoneRiskScore = 0.5

	alerts := e.Evaluate(m)
	require.Len(t, alerts, 2)
	assert.Equal(t, models.AlertSustainedInattention, alerts[0].AlertType)
	assert.Equal(t, models.AlertWarning, alerts[0].AlertLevel)
	assert.Equal(t, models.AlertPhoneUsage, alerts[1].AlertType)
	assert.Equal(t, models.AlertWarning, alerts[1].AlertLevel)
}

// 测试注意力骤降：对比上一次快照，降幅超阈值且样本充足时告警
func TestAttentionDrop(t *testing.T) {
	e := NewRuleEngine(DefaultConfig(), zap.NewNop())

	// 首次评估建立快照
	assert.Empty(t, e.Evaluate(attentiveMetrics("t1")))

	m := attentiveMetrics("t1")
	m.AttentionScore = 0.0
	m.LookingAwayRate = 1.0
	m.EngagementRiskScore = 0.65
	m.EngagementRiskLevel = models.RiskMedium

	alerts := e.Evaluate(m)
	var drop *models.Alert
	for i := range alerts {
		if alerts[i].AlertType == models.AlertAttentionDrop {
			drop = &alerts[i]
		}
	}
	require.NotNil(t, drop)
	assert.Equal(t, models.AlertWarning, drop.AlertLevel)
	assert.Equal(t, 1.0, drop.Metrics["previous_attention"])
	assert.Equal(t, 0.0, drop.Metrics["current_attention"])
	assert.Equal(t, -1.0, drop.Metrics["change"])

	// Remove 后快照清空，骤降不再触发
	e.Remove("t1")
	alerts = e.Evaluate(m)
	for _, a := range alerts {
		assert.NotEqual(t, models.AlertAttentionDrop, a.AlertType)
	}
}

func TestIdentityInMessage(t *testing.T) {
	e := NewRuleEngine(DefaultConfig(), zap.NewNop())

	m := attentiveMetrics("t1")
	m.Identity = "Alice"
	m.PhoneRiskScore = 0.5

	alerts := e.Evaluate(m)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Message, "Alice")
	assert.Equal(t, "Alice", alerts[0].Identity)
}

func TestEvaluateAllAndSummary(t *testing.T) {
	e := NewRuleEngine(DefaultConfig(), zap.NewNop())

	highRisk := attentiveMetrics("t2")
	highRisk.AttentionScore = 0.0
	highRisk.LookingAwayRate = 1.0
	highRisk.PhoneRiskScore = 0.7
	highRisk.EngagementRiskScore = 0.9
	highRisk.EngagementRiskLevel = models.RiskHigh

	all := e.EvaluateAll(map[string]models.BehavioralMetrics{
		"t1": attentiveMetrics("t1"),
		"t2": highRisk,
	})
	// 无告警的目标不出现在结果中
	require.Len(t, all, 1)
	require.Contains(t, all, "t2")

	s := Summarize(all)
	assert.Equal(t, 4, s.TotalAlerts)
	assert.Equal(t, 4, s.CriticalAlerts)
	assert.Equal(t, 0, s.WarningAlerts)
	assert.Equal(t, 1, s.TracksWithAlerts)

	critical := CriticalAlerts(all)
	assert.Len(t, critical, 4)

	phone := AlertsByType(all, models.AlertPhoneUsage)
	require.Len(t, phone, 1)
	assert.Equal(t, models.AlertCritical, phone[0].AlertLevel)
}
