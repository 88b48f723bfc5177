// Package aggregator 将窗口统计量聚合为可供规则推理的行为指标
package aggregator

import (
	"time"

	"wisefido-behavior/internal/buffer"
	"wisefido-behavior/internal/models"
)

// Config 聚合参数
type Config struct {
	TrendTolerance    float64 // 趋势判定容差
	PhoneBehaviorRate float64 // 判定 distracted_phone 的检出率阈值
	LowAttention      float64 // 判定 distracted_other 的注意力阈值
}

// DefaultConfig 默认聚合参数
func DefaultConfig() Config {
	return Config{
		TrendTolerance:    0.1,
		PhoneBehaviorRate: 0.3,
		LowAttention:      0.5,
	}
}

// Aggregator 无状态的指标聚合器
//
// 趋势历史由调用方持有并在每个聚合周期追加一次，
// 传入的 history 末位即本周期的风险样本。
type Aggregator struct {
	cfg Config
}

// NewAggregator 创建聚合器，零值参数回落到默认值
func NewAggregator(cfg Config) *Aggregator {
	def := DefaultConfig()
	if cfg.TrendTolerance <= 0 {
		cfg.TrendTolerance = def.TrendTolerance
	}
	if cfg.PhoneBehaviorRate <= 0 {
		cfg.PhoneBehaviorRate = def.PhoneBehaviorRate
	}
	if cfg.LowAttention <= 0 {
		cfg.LowAttention = def.LowAttention
	}
	return &Aggregator{cfg: cfg}
}

// Aggregate 将单目标的窗口统计聚合为行为指标
//
// fusedRisk 为融合层给出的即时风险，nil 时回落到窗口接触率；
// history 为趋势样本序列，由调用方在聚合前追加本周期样本。
func (a *Aggregator) Aggregate(trackID string, now time.Time, stats buffer.WindowStats,
	fusedRisk *float64, history []float64) models.BehavioralMetrics {

	if stats.SampleCount == 0 {
		return a.emptyMetrics(trackID, now)
	}

	// 注意力取最近一帧朝向，保证即时响应
	attention := 0.0
	if stats.MostRecentDirection == models.HeadForward {
		attention = 1.0
	}
	lookingAway := 1.0 - attention

	stability := stats.DominantDirectionRatio()
	if len(stats.DirectionDist) == 0 {
		stability = 0.5
	}

	phoneRisk := clamp01(stats.ContactRate)
	if fusedRisk != nil {
		phoneRisk = clamp01(*fusedRisk)
	}

	risk := clamp01((1.0-attention)*0.4 + phoneRisk*0.35 + lookingAway*0.25)

	return models.BehavioralMetrics{
		TrackID:             trackID,
		Timestamp:           now,
		Identity:            stats.Identity,
		ObservationDuration: stats.TimeSpan,
		SampleCount:         stats.SampleCount,
		AttentionScore:      attention,
		LookingAwayRate:     lookingAway,
		DirectionStability:  stability,
		PhoneRiskScore:      phoneRisk,
		PhoneDetectionRate:  stats.ContactRate,
		PhoneTrend:          classifyTrend(history, a.cfg.TrendTolerance),
		EngagementRiskScore: risk,
		EngagementRiskLevel: classifyRiskLevel(risk),
		PrimaryBehavior:     a.classifyBehavior(attention, stats.ContactRate),
		AvgConfidence:       stats.AvgConfidence,
		DataQuality:         classifyQuality(stats.SampleCount, stats.AvgConfidence),
	}
}

func (a *Aggregator) classifyBehavior(attention, phoneRate float64) models.PrimaryBehavior {
	switch {
	case phoneRate > a.cfg.PhoneBehaviorRate:
		return models.BehaviorDistractedPhone
	case attention < a.cfg.LowAttention:
		return models.BehaviorDistractedOther
	default:
		return models.BehaviorAttentive
	}
}

// classifyTrend 比较近期均值与历史均值，带容差判定趋势
func classifyTrend(history []float64, tolerance float64) models.PhoneTrend {
	if len(history) < 2 {
		return models.TrendStable
	}

	var recent, older float64
	if len(history) >= 3 {
		recent = mean(history[len(history)-3:])
		if len(history) > 3 {
			older = mean(history[:len(history)-3])
		} else {
			older = history[0]
		}
	} else {
		recent = history[len(history)-1]
		older = history[0]
	}

	switch {
	case recent > older+tolerance:
		return models.TrendIncreasing
	case recent < older-tolerance:
		return models.TrendDecreasing
	default:
		return models.TrendStable
	}
}

func classifyRiskLevel(risk float64) models.RiskLevel {
	switch {
	case risk < 0.33:
		return models.RiskLow
	case risk < 0.67:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

func classifyQuality(sampleCount int, avgConfidence float64) models.DataQuality {
	switch {
	case sampleCount < 5 || avgConfidence < 0.6:
		return models.QualityLow
	case sampleCount < 20 || avgConfidence < 0.75:
		return models.QualityMedium
	default:
		return models.QualityHigh
	}
}

// emptyMetrics 无数据时的保守默认指标
func (a *Aggregator) emptyMetrics(trackID string, now time.Time) models.BehavioralMetrics {
	return models.BehavioralMetrics{
		TrackID:             trackID,
		Timestamp:           now,
		AttentionScore:      0.5,
		LookingAwayRate:     0.5,
		DirectionStability:  0.0,
		PhoneRiskScore:      0.0,
		PhoneDetectionRate:  0.0,
		PhoneTrend:          models.TrendStable,
		EngagementRiskScore: 0.5,
		EngagementRiskLevel: models.RiskLow,
		PrimaryBehavior:     models.BehaviorUnknown,
		AvgConfidence:       0.0,
		DataQuality:         models.QualityLow,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
