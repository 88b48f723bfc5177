// Package fusion 实现手机检测框与目标框的空间关联及风险融合
package fusion

import (
	"fmt"

	"go.uber.org/zap"

	"wisefido-behavior/internal/models"
)

// OverlapMode 空间关联策略
type OverlapMode string

const (
	// OverlapIoU 交并比策略
	OverlapIoU OverlapMode = "iou"
	// OverlapRatio 交集占手机框面积比策略（默认）
	OverlapRatio OverlapMode = "ratio"
	// OverlapCenter 手机框中心点落入目标框策略
	OverlapCenter OverlapMode = "center"
)

// Config 融合参数
type Config struct {
	Mode             OverlapMode
	IoUThreshold     float64 // iou 模式阈值
	OverlapThreshold float64 // ratio 模式阈值
	DecayFactor      float64 // 未接触帧的风险衰减系数
}

// DefaultConfig 默认融合参数
func DefaultConfig() Config {
	return Config{
		Mode:             OverlapRatio,
		IoUThreshold:     0.5,
		OverlapThreshold: 0.5,
		DecayFactor:      0.85,
	}
}

// PhoneFusion 维护每个目标的手机风险状态
//
// 风险值在接触帧置 1.0，其余帧按 DecayFactor 指数衰减，始终保持在 [0,1]。
// 趋势样本由聚合层在每个聚合周期追加一次。
type PhoneFusion struct {
	cfg     Config
	risk    map[string]float64
	history map[string][]float64
	logger  *zap.Logger
}

// NewPhoneFusion 创建融合器
func NewPhoneFusion(cfg Config, logger *zap.Logger) (*PhoneFusion, error) {
	switch cfg.Mode {
	case OverlapIoU, OverlapRatio, OverlapCenter:
	default:
		return nil, fmt.Errorf("unknown overlap mode: %q", cfg.Mode)
	}
	if cfg.DecayFactor <= 0 || cfg.DecayFactor >= 1 {
		return nil, fmt.Errorf("decay factor must be in (0,1), got %v", cfg.DecayFactor)
	}
	return &PhoneFusion{
		cfg:     cfg,
		risk:    make(map[string]float64),
		history: make(map[string][]float64),
		logger:  logger,
	}, nil
}

// Associate 判断任一手机框是否按当前策略关联到目标框
func (f *PhoneFusion) Associate(subject models.Rect, phones []models.Rect) bool {
	for _, phone := range phones {
		if f.matches(subject, phone) {
			return true
		}
	}
	return false
}

func (f *PhoneFusion) matches(subject, phone models.Rect) bool {
	switch f.cfg.Mode {
	case OverlapIoU:
		inter := subject.Intersection(phone)
		union := subject.Area() + phone.Area() - inter
		if union <= 0 {
			return false
		}
		// iou 模式为严格大于，恰好等于阈值不判定接触
		return inter/union > f.cfg.IoUThreshold
	case OverlapCenter:
		cx := (phone.X1 + phone.X2) / 2
		cy := (phone.Y1 + phone.Y2) / 2
		return subject.Contains(cx, cy)
	default: // ratio
		area := phone.Area()
		if area <= 0 {
			return false
		}
		return subject.Intersection(phone)/area >= f.cfg.OverlapThreshold
	}
}

// Update 用当前帧的检测结果刷新目标风险，返回本帧是否判定为接触
func (f *PhoneFusion) Update(trackID string, subject models.Rect, phones []models.Rect) bool {
	contact := f.Associate(subject, phones)
	if contact {
		f.risk[trackID] = 1.0
	} else if r, ok := f.risk[trackID]; ok {
		r *= f.cfg.DecayFactor
		if r < 0 {
			r = 0
		}
		f.risk[trackID] = r
	}
	return contact
}

// Risk 返回目标当前融合风险值，目标无状态时 ok 为 false
func (f *PhoneFusion) Risk(trackID string) (float64, bool) {
	r, ok := f.risk[trackID]
	return r, ok
}

// AppendTrendSample 追加一个趋势样本（每个聚合周期调用一次）
func (f *PhoneFusion) AppendTrendSample(trackID string, risk float64) {
	if risk < 0 {
		risk = 0
	} else if risk > 1 {
		risk = 1
	}
	f.history[trackID] = append(f.history[trackID], risk)
}

// TrendHistory 返回目标的趋势样本序列
func (f *PhoneFusion) TrendHistory(trackID string) []float64 {
	return f.history[trackID]
}

// Remove 清除目标的全部融合状态
func (f *PhoneFusion) Remove(trackID string) {
	delete(f.risk, trackID)
	delete(f.history, trackID)
	if f.logger != nil {
		f.logger.Debug("Removed fusion state", zap.String("track_id", trackID))
	}
}
