package sink

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"wisefido-behavior/internal/models"
)

// SessionLogger 会话级文件日志
//
// 在 <output_dir>/<session_id>/ 下产出四类文件：
//   alerts.jsonl         逐条告警（JSON Lines）
//   metrics.csv          逐周期指标
//   session_summary.txt  人读摘要
//   session_data.json    机器可读的会话全量数据
type SessionLogger struct {
	sessionID  string
	sessionDir string
	startTime  time.Time
	logger     *zap.Logger

	mu            sync.Mutex
	alertFile     *os.File
	metricsFile   *os.File
	metricsWriter *csv.Writer

	frameCount     int64
	totalAlerts    int
	criticalAlerts int
	tracksSeen     map[string]bool
	alertRecords   []alertRecord
}

type alertRecord struct {
	Timestamp time.Time    `json:"timestamp"`
	FrameID   int64        `json:"frame_id"`
	Alert     models.Alert `json:"alert"`
}

// NewSessionLogger 创建会话日志器并初始化输出目录
func NewSessionLogger(outputDir, sessionID string, logger *zap.Logger) (*SessionLogger, error) {
	sessionDir := filepath.Join(outputDir, sessionID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}

	alertFile, err := os.OpenFile(filepath.Join(sessionDir, "alerts.jsonl"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open alert log: %w", err)
	}

	metricsFile, err := os.OpenFile(filepath.Join(sessionDir, "metrics.csv"),
		os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		alertFile.Close()
		return nil, fmt.Errorf("failed to open metrics csv: %w", err)
	}

	s := &SessionLogger{
		sessionID:     sessionID,
		sessionDir:    sessionDir,
		startTime:     time.Now(),
		logger:        logger,
		alertFile:     alertFile,
		metricsFile:   metricsFile,
		metricsWriter: csv.NewWriter(metricsFile),
		tracksSeen:    make(map[string]bool),
	}

	if err := s.writeMetricsHeader(); err != nil {
		s.Close()
		return nil, err
	}

	logger.Info("Session logger initialized",
		zap.String("session_id", sessionID),
		zap.String("session_dir", sessionDir),
	)
	return s, nil
}

// SessionDir 会话输出目录
func (s *SessionLogger) SessionDir() string {
	return s.sessionDir
}

func (s *SessionLogger) writeMetricsHeader() error {
	header := []string{
		"timestamp", "frame_id", "track_id", "behavior", "engagement_risk_level",
		"engagement_risk_score", "attention_score", "looking_away_rate",
		"phone_risk_score", "phone_detection_rate", "phone_trend",
		"direction_stability", "sample_count", "observation_duration",
		"avg_confidence", "data_quality",
	}
	if err := s.metricsWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write metrics header: %w", err)
	}
	s.metricsWriter.Flush()
	return s.metricsWriter.Error()
}

// IncrementFrame 记录一帧处理完成
func (s *SessionLogger) IncrementFrame() {
	s.mu.Lock()
	s.frameCount++
	s.mu.Unlock()
}

// LogMetrics 追加一个聚合周期的全部目标指标
func (s *SessionLogger) LogMetrics(frameID int64, all map[string]models.BehavioralMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for trackID, m := range all {
		s.tracksSeen[trackID] = true
		row := []string{
			m.Timestamp.Format(time.RFC3339),
			strconv.FormatInt(frameID, 10),
			trackID,
			string(m.PrimaryBehavior),
			string(m.EngagementRiskLevel),
			formatFloat(m.EngagementRiskScore),
			formatFloat(m.AttentionScore),
			formatFloat(m.LookingAwayRate),
			formatFloat(m.PhoneRiskScore),
			formatFloat(m.PhoneDetectionRate),
			string(m.PhoneTrend),
			formatFloat(m.DirectionStability),
			strconv.Itoa(m.SampleCount),
			formatFloat(m.ObservationDuration),
			formatFloat(m.AvgConfidence),
			string(m.DataQuality),
		}
		if err := s.metricsWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write metrics row: %w", err)
		}
	}
	s.metricsWriter.Flush()
	return s.metricsWriter.Error()
}

// LogAlerts 追加一个评估周期的全部告警
func (s *SessionLogger) LogAlerts(frameID int64, all map[string][]models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, alerts := range all {
		for _, alert := range alerts {
			rec := alertRecord{
				Timestamp: time.Now(),
				FrameID:   frameID,
				Alert:     alert,
			}
			line, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to marshal alert record: %w", err)
			}
			if _, err := s.alertFile.Write(append(line, '\n')); err != nil {
				return fmt.Errorf("failed to write alert record: %w", err)
			}

			s.alertRecords = append(s.alertRecords, rec)
			s.totalAlerts++
			if alert.AlertLevel == models.AlertCritical {
				s.criticalAlerts++
			}
		}
	}
	return nil
}

// Finalize 生成摘要文件并关闭所有句柄
func (s *SessionLogger) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	duration := time.Since(s.startTime).Seconds()

	if err := s.writeTextSummary(duration); err != nil {
		return err
	}
	if err := s.writeJSONSummary(duration); err != nil {
		return err
	}

	s.logger.Info("Session log finalized",
		zap.String("session_id", s.sessionID),
		zap.Int64("frame_count", s.frameCount),
		zap.Int("total_alerts", s.totalAlerts),
	)
	return s.closeLocked()
}

func (s *SessionLogger) writeTextSummary(duration float64) error {
	f, err := os.Create(filepath.Join(s.sessionDir, "session_summary.txt"))
	if err != nil {
		return fmt.Errorf("failed to create summary: %w", err)
	}
	defer f.Close()

	sep := "======================================================================\n"
	fmt.Fprint(f, sep)
	fmt.Fprint(f, "BEHAVIOR ANALYSIS SESSION SUMMARY\n")
	fmt.Fprint(f, sep)
	fmt.Fprintf(f, "\nSession: %s\n", s.sessionID)
	fmt.Fprintf(f, "Start Time: %s\n", s.startTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(f, "End Time: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(f, "Duration: %.1f seconds (%.1f minutes)\n\n", duration, duration/60)

	fmt.Fprintf(f, "Total Frames Processed: %d\n", s.frameCount)
	fmt.Fprintf(f, "Tracks Seen: %d\n", len(s.tracksSeen))
	fmt.Fprintf(f, "Total Alerts: %d\n", s.totalAlerts)
	fmt.Fprintf(f, "Critical Alerts: %d\n", s.criticalAlerts)
	fmt.Fprintf(f, "Warning/Info Alerts: %d\n", s.totalAlerts-s.criticalAlerts)

	if len(s.alertRecords) > 0 {
		byTrack := make(map[string][]alertRecord)
		for _, rec := range s.alertRecords {
			byTrack[rec.Alert.TrackID] = append(byTrack[rec.Alert.TrackID], rec)
		}
		trackIDs := make([]string, 0, len(byTrack))
		for id := range byTrack {
			trackIDs = append(trackIDs, id)
		}
		sort.Strings(trackIDs)

		fmt.Fprintf(f, "\nALERT SUMMARY BY TRACK\n")
		for _, trackID := range trackIDs {
			recs := byTrack[trackID]
			critical := 0
			for _, rec := range recs {
				if rec.Alert.AlertLevel == models.AlertCritical {
					critical++
				}
			}
			fmt.Fprintf(f, "\nTrack %s:\n", trackID)
			fmt.Fprintf(f, "  Total Alerts: %d\n", len(recs))
			fmt.Fprintf(f, "  Critical: %d\n", critical)
			fmt.Fprintf(f, "  Warnings: %d\n", len(recs)-critical)
		}
	}
	return nil
}

func (s *SessionLogger) writeJSONSummary(duration float64) error {
	trackIDs := make([]string, 0, len(s.tracksSeen))
	for id := range s.tracksSeen {
		trackIDs = append(trackIDs, id)
	}
	sort.Strings(trackIDs)

	data := map[string]any{
		"session_id":       s.sessionID,
		"start_time":       s.startTime,
		"end_time":         time.Now(),
		"duration_seconds": duration,
		"frame_count":      s.frameCount,
		"tracks":           trackIDs,
		"total_alerts":     s.totalAlerts,
		"critical_alerts":  s.criticalAlerts,
		"alerts":           s.alertRecords,
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.sessionDir, "session_data.json"), jsonData, 0o644); err != nil {
		return fmt.Errorf("failed to write session data: %w", err)
	}
	return nil
}

// Close 关闭文件句柄（不生成摘要）
func (s *SessionLogger) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *SessionLogger) closeLocked() error {
	var firstErr error
	if s.metricsWriter != nil {
		s.metricsWriter.Flush()
		if err := s.metricsWriter.Error(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.metricsFile != nil {
		if err := s.metricsFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.metricsFile = nil
	}
	if s.alertFile != nil {
		if err := s.alertFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.alertFile = nil
	}
	return firstErr
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
