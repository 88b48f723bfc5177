package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-behavior/internal/buffer"
	"wisefido-behavior/internal/evaluator"
	"wisefido-behavior/internal/fusion"
	"wisefido-behavior/internal/models"
)

// 测试清理级联：目标超时后缓冲、融合状态和规则快照同时清空
func TestSweepCascade(t *testing.T) {
	buffers := buffer.NewBufferSet(20 * time.Second)
	f, err := fusion.NewPhoneFusion(fusion.DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	engine := evaluator.NewRuleEngine(evaluator.DefaultConfig(), zap.NewNop())

	mgr := NewManager(buffers, 50*time.Millisecond, zap.NewNop())
	mgr.Register(f.Remove)
	mgr.Register(engine.Remove)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	subject := models.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	phone := []models.Rect{{X1: 10, Y1: 10, X2: 30, Y2: 30}}

	buffers.Add("t1", models.Observation{Timestamp: base, HeadDirection: models.HeadForward, Confidence: 0.9})
	f.Update("t1", subject, phone)
	f.AppendTrendSample("t1", 1.0)

	// 未超时不清理
	assert.Empty(t, mgr.Sweep(time.Now()))
	assert.Equal(t, 1, buffers.Len())

	evicted := mgr.Sweep(time.Now().Add(time.Second))
	require.Equal(t, []string{"t1"}, evicted)

	_, ok := buffers.Statistics("t1")
	assert.False(t, ok)
	_, ok = f.Risk("t1")
	assert.False(t, ok)
	assert.Empty(t, f.TrendHistory("t1"))
}

func TestSweepOnlyInactive(t *testing.T) {
	buffers := buffer.NewBufferSet(20 * time.Second)
	mgr := NewManager(buffers, 30*time.Millisecond, zap.NewNop())

	var removed []string
	mgr.Register(func(trackID string) { removed = append(removed, trackID) })

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	buffers.Add("stale", models.Observation{Timestamp: base, HeadDirection: models.HeadForward})
	time.Sleep(50 * time.Millisecond)
	buffers.Add("fresh", models.Observation{Timestamp: base, HeadDirection: models.HeadForward})

	evicted := mgr.Sweep(time.Now())
	assert.Equal(t, []string{"stale"}, evicted)
	assert.Equal(t, []string{"stale"}, removed)

	_, ok := buffers.Statistics("fresh")
	assert.True(t, ok)
}
