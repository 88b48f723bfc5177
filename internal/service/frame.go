package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"wisefido-behavior/internal/models"
)

// HandleFrame 处理单帧感知信号（consumer.FrameHandler 实现）
func (s *BehaviorService) HandleFrame(ctx context.Context, frame *models.FrameSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}

	ts := frame.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	s.frameCount++

	for i := range frame.Tracks {
		track := &frame.Tracks[i]

		// 手机融合：关联手机框并回填接触标志
		track.ContactDetected = s.phoneFusion.Update(track.TrackID, track.Region, frame.PhoneRegions)

		s.buffers.Add(track.TrackID, models.Observation{
			Timestamp:       ts,
			HeadDirection:   track.HeadDirection,
			ContactDetected: track.ContactDetected,
			Confidence:      track.Confidence,
			Region:          track.Region,
			Identity:        track.Identity,
		})

		s.registerTrack(ctx, track)
	}

	if err := s.cacheManager.UpdateFrameSummary(ctx, frame.Summary()); err != nil {
		s.logger.Warn("Failed to cache frame summary", zap.Error(err))
	}
	if s.sessionLog != nil {
		s.sessionLog.IncrementFrame()
	}

	if s.frameCount%int64(s.config.Behavior.AggregateEvery) == 0 {
		s.aggregate(ctx, frame.FrameID, ts)
	}

	s.sweepIfDue(ctx)
	return nil
}

// registerTrack 目标首次出现时签到，身份识别结果延迟到位时补登
func (s *BehaviorService) registerTrack(ctx context.Context, track *models.TrackSignal) {
	if !s.knownTracks[track.TrackID] {
		s.knownTracks[track.TrackID] = true
		s.totalTracks++

		if s.attendanceRepo != nil {
			if err := s.attendanceRepo.CheckIn(ctx, s.sessionID, track.TrackID, track.Identity); err != nil {
				s.logger.Warn("Failed to record check-in",
					zap.String("track_id", track.TrackID),
					zap.Error(err),
				)
			}
		}
		if s.apiClient != nil {
			if err := s.apiClient.SendCheckIn(s.sessionID, track.TrackID, track.Identity); err != nil {
				s.logger.Warn("Failed to report check-in",
					zap.String("track_id", track.TrackID),
					zap.Error(err),
				)
			}
		}
		if track.Identity != "" {
			s.identified[track.TrackID] = true
		}
		return
	}

	if track.Identity != "" && !s.identified[track.TrackID] {
		s.identified[track.TrackID] = true
		if s.attendanceRepo != nil {
			if err := s.attendanceRepo.UpdateIdentity(ctx, s.sessionID, track.TrackID, track.Identity); err != nil {
				s.logger.Warn("Failed to update attendance identity",
					zap.String("track_id", track.TrackID),
					zap.Error(err),
				)
			}
		}
	}
}

// aggregate 聚合全部目标的窗口统计并做规则推理
func (s *BehaviorService) aggregate(ctx context.Context, frameID int64, now time.Time) {
	stats := s.buffers.AllStatistics()
	metrics := s.pipeline.AggregateAll(now, stats)
	if len(metrics) == 0 {
		return
	}

	for _, m := range metrics {
		if err := s.cacheManager.UpdateTrackMetrics(ctx, m); err != nil {
			s.logger.Warn("Failed to cache metrics",
				zap.String("track_id", m.TrackID),
				zap.Error(err),
			)
		}
		if s.metricsRepo != nil {
			if err := s.metricsRepo.InsertMetrics(ctx, s.sessionID, frameID, m); err != nil {
				s.logger.Warn("Failed to persist metrics",
					zap.String("track_id", m.TrackID),
					zap.Error(err),
				)
			}
		}
		if s.apiClient != nil {
			if err := s.apiClient.SendMetrics(s.sessionID, frameID, m); err != nil {
				s.logger.Warn("Failed to report metrics",
					zap.String("track_id", m.TrackID),
					zap.Error(err),
				)
			}
		}
	}

	if err := s.cacheManager.UpdateMetricsSummary(ctx, s.pipeline.Summarize(metrics)); err != nil {
		s.logger.Warn("Failed to cache metrics summary", zap.Error(err))
	}

	alerts := s.engine.EvaluateAll(metrics)
	for trackID, list := range alerts {
		if err := s.cacheManager.UpdateTrackAlerts(ctx, trackID, list); err != nil {
			s.logger.Warn("Failed to cache alerts",
				zap.String("track_id", trackID),
				zap.Error(err),
			)
		}
		for _, alert := range list {
			s.persistAlert(ctx, frameID, alert)
		}
	}

	if s.sessionLog != nil {
		if err := s.sessionLog.LogMetrics(frameID, metrics); err != nil {
			s.logger.Warn("Failed to write metrics log", zap.Error(err))
		}
		if err := s.sessionLog.LogAlerts(frameID, alerts); err != nil {
			s.logger.Warn("Failed to write alerts log", zap.Error(err))
		}
	}
}

// persistAlert 告警入库（同类告警在去重窗口内只落一条）并上报云端
func (s *BehaviorService) persistAlert(ctx context.Context, frameID int64, alert models.Alert) {
	if s.alertsRepo != nil {
		dedup := time.Duration(s.config.Behavior.Rules.DedupMinutes) * time.Minute
		recent, err := s.alertsRepo.HasRecentAlert(ctx, s.sessionID, alert.TrackID,
			alert.AlertType, alert.Timestamp.Add(-dedup))
		if err != nil {
			s.logger.Warn("Failed to check alert dedup",
				zap.String("track_id", alert.TrackID),
				zap.Error(err),
			)
		}
		if err == nil && !recent {
			if err := s.alertsRepo.InsertAlert(ctx, s.sessionID, frameID, alert); err != nil {
				s.logger.Warn("Failed to persist alert",
					zap.String("track_id", alert.TrackID),
					zap.Error(err),
				)
			}
		}
	}

	if s.apiClient != nil {
		if err := s.apiClient.SendAlert(s.sessionID, frameID, alert); err != nil {
			s.logger.Warn("Failed to report alert",
				zap.String("track_id", alert.TrackID),
				zap.Error(err),
			)
		}
	}
}

// sweepIfDue 按墙钟周期清理不活跃目标并为其签退
func (s *BehaviorService) sweepIfDue(ctx context.Context) {
	now := time.Now()
	interval := time.Duration(s.config.Behavior.Eviction.SweepSeconds) * time.Second
	if now.Sub(s.lastSweep) < interval {
		return
	}
	s.lastSweep = now

	for _, trackID := range s.lifecycle.Sweep(now) {
		delete(s.knownTracks, trackID)
		delete(s.identified, trackID)

		if s.attendanceRepo != nil {
			if err := s.attendanceRepo.CheckOut(ctx, s.sessionID, trackID); err != nil {
				s.logger.Warn("Failed to record check-out",
					zap.String("track_id", trackID),
					zap.Error(err),
				)
			}
		}
		if s.apiClient != nil {
			if err := s.apiClient.SendCheckOut(s.sessionID, trackID); err != nil {
				s.logger.Warn("Failed to report check-out",
					zap.String("track_id", trackID),
					zap.Error(err),
				)
			}
		}
	}
}
