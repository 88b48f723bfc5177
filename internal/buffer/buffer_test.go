package buffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisefido-behavior/internal/models"
)

func obsAt(ts time.Time, dir models.HeadDirection, contact bool, conf float64) models.Observation {
	return models.Observation{
		Timestamp:       ts,
		HeadDirection:   dir,
		ContactDetected: contact,
		Confidence:      conf,
	}
}

// 测试窗口裁剪：晚于窗口长度的旧观测必须被丢弃
func TestTrackBufferWindowEviction(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	buf := NewTrackBuffer("t1", 20*time.Second)

	for i := 0; i < 10; i++ {
		buf.Add(obsAt(base.Add(time.Duration(i)*time.Second), models.HeadForward, false, 0.9))
	}
	assert.Equal(t, 10, buf.Len())

	// 推进到 base+30s，早于 base+10s 的观测应被裁剪
	buf.Add(obsAt(base.Add(30*time.Second), models.HeadLeft, false, 0.9))
	stats := buf.Statistics()
	assert.Equal(t, 1, stats.SampleCount)
	assert.Equal(t, models.HeadLeft, stats.MostRecentDirection)
	assert.LessOrEqual(t, stats.TimeSpan, 20.0)
}

// 测试乱序写入后窗口仍按时间戳保序
func TestTrackBufferOutOfOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	buf := NewTrackBuffer("t1", 20*time.Second)

	buf.Add(obsAt(base.Add(5*time.Second), models.HeadForward, false, 0.9))
	buf.Add(obsAt(base.Add(2*time.Second), models.HeadLeft, false, 0.8))
	buf.Add(obsAt(base.Add(8*time.Second), models.HeadRight, false, 0.7))

	stats := buf.Statistics()
	assert.Equal(t, 3, stats.SampleCount)
	assert.Equal(t, models.HeadRight, stats.MostRecentDirection)
	assert.InDelta(t, 6.0, stats.TimeSpan, 1e-9)
}

func TestTrackBufferStatistics(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	buf := NewTrackBuffer("t1", 20*time.Second)

	buf.Add(obsAt(base, models.HeadForward, true, 0.8))
	buf.Add(obsAt(base.Add(time.Second), models.HeadForward, false, 0.9))
	buf.Add(obsAt(base.Add(2*time.Second), models.HeadLeft, true, 1.0))
	o := obsAt(base.Add(3*time.Second), models.HeadForward, false, 0.9)
	o.Identity = "Alice"
	buf.Add(o)

	stats := buf.Statistics()
	require.Equal(t, 4, stats.SampleCount)
	assert.Equal(t, 2, stats.ContactCount)
	assert.InDelta(t, 0.5, stats.ContactRate, 1e-9)
	assert.InDelta(t, 0.9, stats.AvgConfidence, 1e-9)
	assert.InDelta(t, 0.75, stats.DirectionDist[models.HeadForward], 1e-9)
	assert.InDelta(t, 0.25, stats.DirectionDist[models.HeadLeft], 1e-9)
	assert.InDelta(t, 0.75, stats.DominantDirectionRatio(), 1e-9)
	assert.Equal(t, "Alice", stats.Identity)
}

func TestEmptyBufferStatistics(t *testing.T) {
	buf := NewTrackBuffer("t1", 20*time.Second)
	stats := buf.Statistics()
	assert.Equal(t, 0, stats.SampleCount)
	assert.Equal(t, 0.0, stats.TimeSpan)
	assert.Equal(t, 0.0, stats.DominantDirectionRatio())
}

func TestBufferSetAddAndStatistics(t *testing.T) {
	set := NewBufferSet(20 * time.Second)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	set.Add("t1", obsAt(base, models.HeadForward, false, 0.9))
	set.Add("t2", obsAt(base, models.HeadLeft, true, 0.8))
	assert.Equal(t, 2, set.Len())

	stats, ok := set.Statistics("t1")
	require.True(t, ok)
	assert.Equal(t, "t1", stats.TrackID)

	_, ok = set.Statistics("missing")
	assert.False(t, ok)

	all := set.AllStatistics()
	assert.Len(t, all, 2)
	assert.Equal(t, 1, all["t2"].ContactCount)
}

// 测试不活跃目标清理：超时目标被移除且不再出现在统计中
func TestBufferSetEvictInactive(t *testing.T) {
	set := NewBufferSet(20 * time.Second)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	set.Add("stale", obsAt(base, models.HeadForward, false, 0.9))
	time.Sleep(10 * time.Millisecond)
	set.Add("fresh", obsAt(base, models.HeadForward, false, 0.9))

	evicted := set.EvictInactive(time.Now(), 5*time.Millisecond)
	require.Len(t, evicted, 1)
	assert.Equal(t, "stale", evicted[0])
	assert.Equal(t, 1, set.Len())

	_, ok := set.Statistics("stale")
	assert.False(t, ok)
	_, ok = set.Statistics("fresh")
	assert.True(t, ok)
}
