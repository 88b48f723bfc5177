package aggregator

import (
	"time"

	"wisefido-behavior/internal/buffer"
	"wisefido-behavior/internal/fusion"
	"wisefido-behavior/internal/models"
)

// Summary 全体目标的指标概览
type Summary struct {
	TotalTracks       int     `json:"total_tracks"`
	AvgEngagementRisk float64 `json:"avg_engagement_risk"`
	HighRiskTracks    int     `json:"high_risk_tracks"`
	AvgAttention      float64 `json:"avg_attention"`
	AvgPhoneRisk      float64 `json:"avg_phone_risk"`
}

// Pipeline 批量聚合所有目标，并负责趋势历史的推进
type Pipeline struct {
	aggregator *Aggregator
	fusion     *fusion.PhoneFusion
}

// NewPipeline 创建聚合流水线
func NewPipeline(cfg Config, f *fusion.PhoneFusion) *Pipeline {
	return &Pipeline{
		aggregator: NewAggregator(cfg),
		fusion:     f,
	}
}

// AggregateAll 聚合所有目标的窗口统计
//
// 每个目标先追加一个趋势样本（融合风险优先，缺失时用窗口接触率），
// 再基于含新样本的完整历史聚合指标。每个聚合周期只应调用一次。
func (p *Pipeline) AggregateAll(now time.Time, allStats map[string]buffer.WindowStats) map[string]models.BehavioralMetrics {
	out := make(map[string]models.BehavioralMetrics, len(allStats))
	for trackID, stats := range allStats {
		var fusedRisk *float64
		if r, ok := p.fusion.Risk(trackID); ok {
			fusedRisk = &r
		}

		if stats.SampleCount > 0 {
			sample := stats.ContactRate
			if fusedRisk != nil {
				sample = *fusedRisk
			}
			p.fusion.AppendTrendSample(trackID, sample)
		}

		out[trackID] = p.aggregator.Aggregate(trackID, now, stats, fusedRisk, p.fusion.TrendHistory(trackID))
	}
	return out
}

// HighRiskTracks 返回高风险目标的 track_id
func (p *Pipeline) HighRiskTracks(metrics map[string]models.BehavioralMetrics) []string {
	var out []string
	for trackID, m := range metrics {
		if m.EngagementRiskLevel == models.RiskHigh {
			out = append(out, trackID)
		}
	}
	return out
}

// Summarize 计算全体目标的指标概览
func (p *Pipeline) Summarize(metrics map[string]models.BehavioralMetrics) Summary {
	s := Summary{TotalTracks: len(metrics)}
	if len(metrics) == 0 {
		return s
	}

	for _, m := range metrics {
		s.AvgEngagementRisk += m.EngagementRiskScore
		s.AvgAttention += m.AttentionScore
		s.AvgPhoneRisk += m.PhoneRiskScore
		if m.EngagementRiskLevel == models.RiskHigh {
			s.HighRiskTracks++
		}
	}
	n := float64(len(metrics))
	s.AvgEngagementRisk /= n
	s.AvgAttention /= n
	s.AvgPhoneRisk /= n
	return s
}
