package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-behavior/internal/models"
)

func newFusion(t *testing.T, cfg Config) *PhoneFusion {
	t.Helper()
	f, err := NewPhoneFusion(cfg, zap.NewNop())
	require.NoError(t, err)
	return f
}

func TestNewPhoneFusionValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "nearest"
	_, err := NewPhoneFusion(cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.DecayFactor = 1.0
	_, err = NewPhoneFusion(cfg, zap.NewNop())
	assert.Error(t, err)
}

// 测试 ratio 策略：交集占手机框面积的比例超阈值才关联
func TestAssociateRatio(t *testing.T) {
	f := newFusion(t, DefaultConfig())
	subject := models.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}

	// 手机框完全落入目标框
	assert.True(t, f.Associate(subject, []models.Rect{{X1: 10, Y1: 10, X2: 30, Y2: 30}}))
	// 仅 25% 落入目标框
	assert.False(t, f.Associate(subject, []models.Rect{{X1: 90, Y1: 90, X2: 110, Y2: 110}}))
	// 无手机框
	assert.False(t, f.Associate(subject, nil))
}

func TestAssociateIoU(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = OverlapIoU
	cfg.IoUThreshold = 0.5
	f := newFusion(t, cfg)

	subject := models.Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
	// 完全重合 IoU=1
	assert.True(t, f.Associate(subject, []models.Rect{subject}))
	// 小框嵌入大框 IoU=0.04
	assert.False(t, f.Associate(subject, []models.Rect{{X1: 4, Y1: 4, X2: 6, Y2: 6}}))
	// 恰好等于阈值不关联：10×5 半覆盖框 IoU=50/100=0.5
	assert.False(t, f.Associate(subject, []models.Rect{{X1: 0, Y1: 0, X2: 10, Y2: 5}}))
	// 略超过阈值才关联：10×7 覆盖框 IoU=70/100=0.7
	assert.True(t, f.Associate(subject, []models.Rect{{X1: 0, Y1: 0, X2: 10, Y2: 7}}))
}

func TestAssociateCenter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = OverlapCenter
	f := newFusion(t, cfg)

	subject := models.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	// 中心点 (95,95) 在目标框内
	assert.True(t, f.Associate(subject, []models.Rect{{X1: 90, Y1: 90, X2: 100, Y2: 100}}))
	// 中心点 (105,105) 在目标框外
	assert.False(t, f.Associate(subject, []models.Rect{{X1: 100, Y1: 100, X2: 110, Y2: 110}}))
}

// 测试风险融合：接触帧置 1.0，随后按衰减系数单调下降且不越界
func TestRiskDecay(t *testing.T) {
	f := newFusion(t, DefaultConfig())
	subject := models.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	phone := []models.Rect{{X1: 10, Y1: 10, X2: 30, Y2: 30}}

	// 未接触且无历史状态时不应创建状态
	f.Update("t1", subject, nil)
	_, ok := f.Risk("t1")
	assert.False(t, ok)

	contact := f.Update("t1", subject, phone)
	assert.True(t, contact)
	r, ok := f.Risk("t1")
	require.True(t, ok)
	assert.Equal(t, 1.0, r)

	prev := r
	for i := 0; i < 50; i++ {
		f.Update("t1", subject, nil)
		r, _ = f.Risk("t1")
		assert.LessOrEqual(t, r, prev)
		assert.GreaterOrEqual(t, r, 0.0)
		prev = r
	}
	assert.InDelta(t, 0.85, func() float64 {
		f2 := newFusion(t, DefaultConfig())
		f2.Update("x", subject, phone)
		f2.Update("x", subject, nil)
		v, _ := f2.Risk("x")
		return v
	}(), 1e-9)
}

func TestTrendHistoryAndRemove(t *testing.T) {
	f := newFusion(t, DefaultConfig())

	f.AppendTrendSample("t1", 0.2)
	f.AppendTrendSample("t1", 1.5)  // 截断到 1.0
	f.AppendTrendSample("t1", -0.3) // 截断到 0.0
	assert.Equal(t, []float64{0.2, 1.0, 0.0}, f.TrendHistory("t1"))

	subject := models.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	f.Update("t1", subject, []models.Rect{{X1: 10, Y1: 10, X2: 30, Y2: 30}})

	f.Remove("t1")
	assert.Empty(t, f.TrendHistory("t1"))
	_, ok := f.Risk("t1")
	assert.False(t, ok)
}
