package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wisefido-behavior/internal/aggregator"
	"wisefido-behavior/internal/config"
	"wisefido-behavior/internal/models"
)

// CacheManager Redis 缓存管理器（行为指标与告警的下游读取入口）
type CacheManager struct {
	config *config.Config
	store  KVStore
	logger *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	store KVStore,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config: cfg,
		store:  store,
		logger: logger,
	}
}

func (c *CacheManager) metricsKey(trackID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Behavior.Cache.TrackKeyPrefix,
		trackID,
		c.config.Behavior.Cache.MetricsSuffix,
	)
}

func (c *CacheManager) alertsKey(trackID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Behavior.Cache.TrackKeyPrefix,
		trackID,
		c.config.Behavior.Cache.AlertsSuffix,
	)
}

func (c *CacheManager) ttl() time.Duration {
	return time.Duration(c.config.Behavior.Cache.TTL) * time.Second
}

// UpdateTrackMetrics 写入目标的最新行为指标
func (c *CacheManager) UpdateTrackMetrics(ctx context.Context, metrics models.BehavioralMetrics) error {
	jsonData, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := c.store.Set(ctx, c.metricsKey(metrics.TrackID), jsonData, c.ttl()); err != nil {
		return fmt.Errorf("failed to set metrics cache: %w", err)
	}

	c.logger.Debug("Updated metrics cache",
		zap.String("track_id", metrics.TrackID),
		zap.String("risk_level", string(metrics.EngagementRiskLevel)),
	)
	return nil
}

// GetTrackMetrics 读取目标的最新行为指标
func (c *CacheManager) GetTrackMetrics(ctx context.Context, trackID string) (*models.BehavioralMetrics, error) {
	val, err := c.store.Get(ctx, c.metricsKey(trackID))
	if err != nil {
		if err == ErrCacheMiss {
			return nil, fmt.Errorf("metrics not found for track: %s", trackID)
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	var metrics models.BehavioralMetrics
	if err := json.Unmarshal(val, &metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	return &metrics, nil
}

// UpdateTrackAlerts 写入目标本轮评估的告警列表
func (c *CacheManager) UpdateTrackAlerts(ctx context.Context, trackID string, alerts []models.Alert) error {
	jsonData, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("failed to marshal alerts: %w", err)
	}

	if err := c.store.Set(ctx, c.alertsKey(trackID), jsonData, c.ttl()); err != nil {
		return fmt.Errorf("failed to set alerts cache: %w", err)
	}

	c.logger.Debug("Updated alerts cache",
		zap.String("track_id", trackID),
		zap.Int("alert_count", len(alerts)),
	)
	return nil
}

// GetTrackAlerts 读取目标的告警列表
func (c *CacheManager) GetTrackAlerts(ctx context.Context, trackID string) ([]models.Alert, error) {
	val, err := c.store.Get(ctx, c.alertsKey(trackID))
	if err != nil {
		if err == ErrCacheMiss {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	var alerts []models.Alert
	if err := json.Unmarshal(val, &alerts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alerts: %w", err)
	}
	return alerts, nil
}

// UpdateFrameSummary 写入最近一帧的概要统计
func (c *CacheManager) UpdateFrameSummary(ctx context.Context, summary models.FrameSummary) error {
	jsonData, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal frame summary: %w", err)
	}

	if err := c.store.Set(ctx, c.config.Behavior.Cache.FrameSummaryKey, jsonData, c.ttl()); err != nil {
		return fmt.Errorf("failed to set frame summary cache: %w", err)
	}
	return nil
}

// UpdateMetricsSummary 写入全体目标的聚合概览
func (c *CacheManager) UpdateMetricsSummary(ctx context.Context, summary aggregator.Summary) error {
	jsonData, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics summary: %w", err)
	}

	key := c.config.Behavior.Cache.TrackKeyPrefix + "summary"
	if err := c.store.Set(ctx, key, jsonData, c.ttl()); err != nil {
		return fmt.Errorf("failed to set metrics summary cache: %w", err)
	}
	return nil
}
