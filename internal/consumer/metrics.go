package consumer

import (
	"sync"
	"time"
)

// Metrics 消费端监控指标
type Metrics struct {
	mu sync.RWMutex

	// 消息处理统计
	FramesProcessed int64 // 处理的帧总数
	FramesSucceeded int64 // 成功处理的帧数
	FramesFailed    int64 // 处理失败的帧数

	// 错误分类统计
	ErrorsParse   int64 // 解析错误
	ErrorsHandler int64 // 业务处理错误

	// 性能指标
	TotalProcessingTime time.Duration // 总处理时间
	LastProcessTime     time.Time     // 最后处理时间

	// 启动时间
	StartTime time.Time
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		FramesProcessed:     m.FramesProcessed,
		FramesSucceeded:     m.FramesSucceeded,
		FramesFailed:        m.FramesFailed,
		ErrorsParse:         m.ErrorsParse,
		ErrorsHandler:       m.ErrorsHandler,
		TotalProcessingTime: m.TotalProcessingTime,
		LastProcessTime:     m.LastProcessTime,
		StartTime:           m.StartTime,
	}
}

// IncrementProcessed 增加处理计数
func (m *Metrics) IncrementProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FramesProcessed++
}

// IncrementSucceeded 增加成功计数
func (m *Metrics) IncrementSucceeded(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FramesSucceeded++
	m.TotalProcessingTime += duration
	m.LastProcessTime = time.Now()
}

// IncrementFailed 增加失败计数
func (m *Metrics) IncrementFailed(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FramesFailed++
	switch errorType {
	case "parse":
		m.ErrorsParse++
	case "handler":
		m.ErrorsHandler++
	}
}
