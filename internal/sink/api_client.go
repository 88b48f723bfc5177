// Package sink 行为分析结果的下游输出（云端 API、会话日志、报表）
package sink

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"wisefido-behavior/internal/models"
)

// APIClient 云端行为数据上报客户端
//
// 上报失败不影响主流水线，调用方只记录日志。
// 指标上报按目标限流，避免高频聚合打满远端接口。
type APIClient struct {
	httpClient      *resty.Client
	logger          *zap.Logger
	metricsInterval time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time // track_id -> 最近一次指标上报时间
}

// NewAPIClient 创建上报客户端
func NewAPIClient(baseURL string, timeout time.Duration, metricsInterval time.Duration, logger *zap.Logger) *APIClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &APIClient{
		httpClient:      client,
		logger:          logger,
		metricsInterval: metricsInterval,
		lastSent:        make(map[string]time.Time),
	}
}

func (c *APIClient) post(payload map[string]any) error {
	resp, err := c.httpClient.R().
		SetBody(payload).
		Post("")
	if err != nil {
		return fmt.Errorf("api request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("api returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// SendSessionStart 上报会话开始
func (c *APIClient) SendSessionStart(sessionID string) error {
	return c.post(map[string]any{
		"event_type": "session_start",
		"session_id": sessionID,
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}

// SendMetrics 上报单目标指标，限流间隔内的重复上报被丢弃
func (c *APIClient) SendMetrics(sessionID string, frameID int64, m models.BehavioralMetrics) error {
	c.mu.Lock()
	last, ok := c.lastSent[m.TrackID]
	now := time.Now()
	if ok && now.Sub(last) < c.metricsInterval {
		c.mu.Unlock()
		return nil
	}
	c.lastSent[m.TrackID] = now
	c.mu.Unlock()

	err := c.post(map[string]any{
		"event_type":            "metrics",
		"session_id":            sessionID,
		"track_id":              m.TrackID,
		"frame_id":              frameID,
		"timestamp":             m.Timestamp.Format(time.RFC3339),
		"identity_name":         m.Identity,
		"attention_score":       m.AttentionScore,
		"looking_away_rate":     m.LookingAwayRate,
		"direction_stability":   m.DirectionStability,
		"phone_risk_score":      m.PhoneRiskScore,
		"phone_detection_rate":  m.PhoneDetectionRate,
		"phone_trend":           string(m.PhoneTrend),
		"engagement_risk_score": m.EngagementRiskScore,
		"engagement_risk_level": string(m.EngagementRiskLevel),
		"primary_behavior":      string(m.PrimaryBehavior),
		"avg_confidence":        m.AvgConfidence,
		"data_quality":          string(m.DataQuality),
	})
	if err != nil {
		// 失败后允许下个周期重试
		c.mu.Lock()
		delete(c.lastSent, m.TrackID)
		c.mu.Unlock()
		return err
	}

	c.logger.Debug("Metrics sent to API",
		zap.String("session_id", sessionID),
		zap.String("track_id", m.TrackID),
	)
	return nil
}

// SendAlert 上报行为告警
func (c *APIClient) SendAlert(sessionID string, frameID int64, alert models.Alert) error {
	return c.post(map[string]any{
		"event_type":    "alert",
		"session_id":    sessionID,
		"track_id":      alert.TrackID,
		"frame_id":      frameID,
		"timestamp":     alert.Timestamp.Format(time.RFC3339),
		"alert_id":      alert.AlertID,
		"alert_type":    string(alert.AlertType),
		"alert_level":   string(alert.AlertLevel),
		"message":       alert.Message,
		"identity_name": alert.Identity,
	})
}

// SendCheckIn 上报目标签到
func (c *APIClient) SendCheckIn(sessionID, trackID, identity string) error {
	return c.post(map[string]any{
		"event_type":    "check_in",
		"session_id":    sessionID,
		"track_id":      trackID,
		"identity_name": identity,
		"timestamp":     time.Now().Format(time.RFC3339),
	})
}

// SendCheckOut 上报目标签退
func (c *APIClient) SendCheckOut(sessionID, trackID string) error {
	return c.post(map[string]any{
		"event_type": "check_out",
		"session_id": sessionID,
		"track_id":   trackID,
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}

// SendSessionEnd 上报会话结束
func (c *APIClient) SendSessionEnd(sessionID string, duration float64, frameCount int64, trackCount int) error {
	return c.post(map[string]any{
		"event_type":       "session_end",
		"session_id":       sessionID,
		"duration_seconds": duration,
		"total_frames":     frameCount,
		"total_tracks":     trackCount,
		"timestamp":        time.Now().Format(time.RFC3339),
	})
}
