// Package lifecycle 负责不活跃目标的统一清理
package lifecycle

import (
	"time"

	"go.uber.org/zap"

	"wisefido-behavior/internal/buffer"
)

// Manager 周期性清除超时目标，并将清理事件扇出到各有状态组件
//
// 缓冲集合是目标存活的唯一事实来源，融合状态与规则快照
// 通过注册的监听器跟随清理，避免状态泄漏。
type Manager struct {
	buffers   *buffer.BufferSet
	timeout   time.Duration
	listeners []func(trackID string)
	logger    *zap.Logger
}

// NewManager 创建生命周期管理器，timeout 为目标不活跃判定时长
func NewManager(buffers *buffer.BufferSet, timeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		buffers: buffers,
		timeout: timeout,
		logger:  logger,
	}
}

// Register 注册清理监听器，目标被清除时按注册顺序回调
func (m *Manager) Register(fn func(trackID string)) {
	m.listeners = append(m.listeners, fn)
}

// Sweep 清除所有超时目标并通知监听器，返回被清除的 track_id
func (m *Manager) Sweep(now time.Time) []string {
	evicted := m.buffers.EvictInactive(now, m.timeout)
	for _, trackID := range evicted {
		for _, fn := range m.listeners {
			fn(trackID)
		}
		if m.logger != nil {
			m.logger.Info("Evicted inactive track",
				zap.String("track_id", trackID),
				zap.Duration("timeout", m.timeout))
		}
	}
	return evicted
}
