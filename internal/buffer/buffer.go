// Package buffer 维护每个目标的滑动时间窗口观测缓冲
package buffer

import (
	"sort"
	"time"

	"wisefido-behavior/internal/models"
)

// WindowStats 单个目标在当前时间窗口内的统计量
type WindowStats struct {
	TrackID             string
	Identity            string
	SampleCount         int
	TimeSpan            float64 // 窗口内首末观测间隔（秒）
	AvgConfidence       float64
	ContactCount        int
	ContactRate         float64
	DirectionDist       map[models.HeadDirection]float64
	MostRecentDirection models.HeadDirection
	LastUpdate          time.Time
}

// DominantDirectionRatio 返回占比最高的头部朝向比例，无数据时为 0
func (s WindowStats) DominantDirectionRatio() float64 {
	max := 0.0
	for _, ratio := range s.DirectionDist {
		if ratio > max {
			max = ratio
		}
	}
	return max
}

// TrackBuffer 单个目标的滑动窗口缓冲，按观测时间戳保序
type TrackBuffer struct {
	trackID    string
	window     time.Duration
	obs        []models.Observation
	lastUpdate time.Time
}

// NewTrackBuffer 创建指定窗口长度的目标缓冲
func NewTrackBuffer(trackID string, window time.Duration) *TrackBuffer {
	return &TrackBuffer{
		trackID: trackID,
		window:  window,
	}
}

// Add 追加一条观测并裁剪窗口外的旧数据
//
// 以最新观测的时间戳为窗口右沿，早于 (最新-窗口) 的观测被丢弃
func (b *TrackBuffer) Add(obs models.Observation) {
	b.obs = append(b.obs, obs)
	// 上游重放或乱序时按时间戳归位
	if n := len(b.obs); n > 1 && b.obs[n-1].Timestamp.Before(b.obs[n-2].Timestamp) {
		sort.SliceStable(b.obs, func(i, j int) bool {
			return b.obs[i].Timestamp.Before(b.obs[j].Timestamp)
		})
	}

	cutoff := b.obs[len(b.obs)-1].Timestamp.Add(-b.window)
	start := 0
	for start < len(b.obs) && b.obs[start].Timestamp.Before(cutoff) {
		start++
	}
	if start > 0 {
		b.obs = append(b.obs[:0], b.obs[start:]...)
	}
	// 活跃度以到达时刻的本地时钟计，与 EvictInactive 的墙钟扫描同基准；
	// 重放滞后的流不会因观测时间戳偏旧而被提前清理
	b.lastUpdate = time.Now()
}

// Len 当前窗口内观测数
func (b *TrackBuffer) Len() int {
	return len(b.obs)
}

// LastUpdate 最近一次写入的本地时间
func (b *TrackBuffer) LastUpdate() time.Time {
	return b.lastUpdate
}

// Statistics 汇总当前窗口内的观测统计
func (b *TrackBuffer) Statistics() WindowStats {
	stats := WindowStats{
		TrackID:       b.trackID,
		SampleCount:   len(b.obs),
		DirectionDist: make(map[models.HeadDirection]float64),
		LastUpdate:    b.lastUpdate,
	}
	if len(b.obs) == 0 {
		return stats
	}

	first := b.obs[0]
	last := b.obs[len(b.obs)-1]
	stats.TimeSpan = last.Timestamp.Sub(first.Timestamp).Seconds()
	stats.MostRecentDirection = last.HeadDirection

	sumConf := 0.0
	counts := make(map[models.HeadDirection]int)
	for _, o := range b.obs {
		sumConf += o.Confidence
		counts[o.HeadDirection]++
		if o.ContactDetected {
			stats.ContactCount++
		}
		if o.Identity != "" {
			stats.Identity = o.Identity
		}
	}

	n := float64(len(b.obs))
	stats.AvgConfidence = sumConf / n
	stats.ContactRate = float64(stats.ContactCount) / n
	for dir, c := range counts {
		stats.DirectionDist[dir] = float64(c) / n
	}
	return stats
}

// BufferSet 按 track_id 管理所有目标缓冲
type BufferSet struct {
	window  time.Duration
	buffers map[string]*TrackBuffer
}

// NewBufferSet 创建缓冲集合，window 为滑动窗口长度
func NewBufferSet(window time.Duration) *BufferSet {
	return &BufferSet{
		window:  window,
		buffers: make(map[string]*TrackBuffer),
	}
}

// Add 向指定目标追加观测，目标不存在时自动创建缓冲
func (s *BufferSet) Add(trackID string, obs models.Observation) {
	buf, ok := s.buffers[trackID]
	if !ok {
		buf = NewTrackBuffer(trackID, s.window)
		s.buffers[trackID] = buf
	}
	buf.Add(obs)
}

// Len 当前跟踪的目标数
func (s *BufferSet) Len() int {
	return len(s.buffers)
}

// Statistics 返回指定目标的窗口统计，目标不存在时 ok 为 false
func (s *BufferSet) Statistics(trackID string) (WindowStats, bool) {
	buf, ok := s.buffers[trackID]
	if !ok {
		return WindowStats{}, false
	}
	return buf.Statistics(), true
}

// AllStatistics 返回所有目标的窗口统计
func (s *BufferSet) AllStatistics() map[string]WindowStats {
	out := make(map[string]WindowStats, len(s.buffers))
	for id, buf := range s.buffers {
		out[id] = buf.Statistics()
	}
	return out
}

// EvictInactive 移除超过 timeout 未更新的目标缓冲，返回被移除的 track_id
func (s *BufferSet) EvictInactive(now time.Time, timeout time.Duration) []string {
	var evicted []string
	for id, buf := range s.buffers {
		if now.Sub(buf.LastUpdate()) > timeout {
			delete(s.buffers, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}
