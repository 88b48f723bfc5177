package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wisefido-behavior/internal/aggregator"
	"wisefido-behavior/internal/buffer"
	"wisefido-behavior/internal/config"
	"wisefido-behavior/internal/consumer"
	"wisefido-behavior/internal/database"
	"wisefido-behavior/internal/evaluator"
	"wisefido-behavior/internal/fusion"
	"wisefido-behavior/internal/lifecycle"
	"wisefido-behavior/internal/mqttutil"
	"wisefido-behavior/internal/redisutil"
	"wisefido-behavior/internal/repository"
	"wisefido-behavior/internal/sink"
)

// BehaviorService 行为分析服务（整合各层）
//
// 每帧流程：手机融合 → 观测入窗 → 签到登记，每 AggregateEvery 帧
// 触发一次聚合与规则推理，按 SweepSeconds 周期清理不活跃目标。
type BehaviorService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
	sessionID   string

	// 各层组件
	buffers      *buffer.BufferSet
	phoneFusion  *fusion.PhoneFusion
	pipeline     *aggregator.Pipeline
	engine       *evaluator.RuleEngine
	lifecycle    *lifecycle.Manager
	cacheManager *consumer.CacheManager

	sessionsRepo   *repository.SessionsRepository
	metricsRepo    *repository.BehaviorMetricsRepository
	alertsRepo     *repository.AlertEventsRepository
	attendanceRepo *repository.AttendanceRepository

	apiClient  *sink.APIClient
	sessionLog *sink.SessionLogger
	report     *sink.SessionReport

	// 帧处理状态（HandleFrame 串行调用，锁保护 Stop 并发）
	mu          sync.Mutex
	startTime   time.Time
	frameCount  int64
	totalTracks int
	knownTracks map[string]bool
	identified  map[string]bool
	lastSweep   time.Time
	stopped     bool
}

// NewBehaviorService 创建行为分析服务
func NewBehaviorService(cfg *config.Config, logger *zap.Logger) (*BehaviorService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 2. 连接 Redis
	redisClient, err := redisutil.NewRedisClient(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	sessionID := uuid.New().String()

	// 3. 创建 Repository 层
	sessionsRepo := repository.NewSessionsRepository(db, logger)
	metricsRepo := repository.NewBehaviorMetricsRepository(db, logger)
	alertsRepo := repository.NewAlertEventsRepository(db, logger)
	attendanceRepo := repository.NewAttendanceRepository(db, logger)

	// 4. 创建缓存层
	cacheManager := consumer.NewCacheManager(cfg, consumer.NewRedisKVStore(redisClient), logger)

	// 5. 创建云端上报与会话日志
	var apiClient *sink.APIClient
	if cfg.Behavior.API.Enabled {
		apiClient = sink.NewAPIClient(
			cfg.Behavior.API.URL,
			time.Duration(cfg.Behavior.API.TimeoutSeconds)*time.Second,
			time.Duration(cfg.Behavior.API.MetricsIntervalSeconds)*time.Second,
			logger,
		)
	}

	sessionLog, err := sink.NewSessionLogger(cfg.Behavior.LogDir, sessionID, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create session logger: %w", err)
	}

	svc, err := assemble(cfg, logger, sessionID, cacheManager,
		sessionsRepo, metricsRepo, alertsRepo, attendanceRepo,
		apiClient, sessionLog)
	if err != nil {
		return nil, err
	}
	svc.db = db
	svc.redisClient = redisClient
	return svc, nil
}

// assemble 组装核心组件（测试直接调用，仓储与上报层可为 nil）
func assemble(
	cfg *config.Config,
	logger *zap.Logger,
	sessionID string,
	cacheManager *consumer.CacheManager,
	sessionsRepo *repository.SessionsRepository,
	metricsRepo *repository.BehaviorMetricsRepository,
	alertsRepo *repository.AlertEventsRepository,
	attendanceRepo *repository.AttendanceRepository,
	apiClient *sink.APIClient,
	sessionLog *sink.SessionLogger,
) (*BehaviorService, error) {
	// 聚合周期必须为正，零值回落到默认值
	if cfg.Behavior.AggregateEvery <= 0 {
		cfg.Behavior.AggregateEvery = 10
	}

	buffers := buffer.NewBufferSet(time.Duration(cfg.Behavior.WindowSeconds) * time.Second)

	phoneFusion, err := fusion.NewPhoneFusion(fusion.Config{
		Mode:             fusion.OverlapMode(cfg.Behavior.Fusion.OverlapMode),
		IoUThreshold:     cfg.Behavior.Fusion.IoUThreshold,
		OverlapThreshold: cfg.Behavior.Fusion.OverlapThreshold,
		DecayFactor:      cfg.Behavior.Fusion.DecayFactor,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create phone fusion: %w", err)
	}

	pipeline := aggregator.NewPipeline(aggregator.Config{
		TrendTolerance:    cfg.Behavior.Aggregation.TrendTolerance,
		PhoneBehaviorRate: cfg.Behavior.Aggregation.PhoneBehaviorRate,
		LowAttention:      cfg.Behavior.Aggregation.LowAttention,
	}, phoneFusion)

	engine := evaluator.NewRuleEngine(evaluator.Config{
		AttentionThreshold:      cfg.Behavior.Rules.AttentionThreshold,
		PhoneRiskThreshold:      cfg.Behavior.Rules.PhoneRiskThreshold,
		EngagementRiskThreshold: cfg.Behavior.Rules.EngagementRiskThreshold,
		MinSamplesForAlert:      cfg.Behavior.Rules.MinSamplesForAlert,
		CriticalAttention:       cfg.Behavior.Rules.CriticalAttention,
		CriticalPhoneRisk:       cfg.Behavior.Rules.CriticalPhoneRisk,
		TrendDetectionRate:      cfg.Behavior.Rules.TrendDetectionRate,
		CombinedPhoneRisk:       cfg.Behavior.Rules.CombinedPhoneRisk,
		CombinedLookingAway:     cfg.Behavior.Rules.CombinedLookingAway,
		AttentionDropDelta:      cfg.Behavior.Rules.AttentionDropDelta,
	}, logger)

	lm := lifecycle.NewManager(buffers,
		time.Duration(cfg.Behavior.Eviction.TimeoutSeconds)*time.Second, logger)
	lm.Register(phoneFusion.Remove)
	lm.Register(engine.Remove)

	return &BehaviorService{
		config:         cfg,
		logger:         logger,
		sessionID:      sessionID,
		buffers:        buffers,
		phoneFusion:    phoneFusion,
		pipeline:       pipeline,
		engine:         engine,
		lifecycle:      lm,
		cacheManager:   cacheManager,
		sessionsRepo:   sessionsRepo,
		metricsRepo:    metricsRepo,
		alertsRepo:     alertsRepo,
		attendanceRepo: attendanceRepo,
		apiClient:      apiClient,
		sessionLog:     sessionLog,
		report:         sink.NewSessionReport(logger),
		knownTracks:    make(map[string]bool),
		identified:     make(map[string]bool),
		startTime:      time.Now(),
		lastSweep:      time.Now(),
	}, nil
}

// SessionID 当前会话 ID
func (s *BehaviorService) SessionID() string {
	return s.sessionID
}

// Start 登记会话并启动帧消费，阻塞直到 ctx 取消
func (s *BehaviorService) Start(ctx context.Context) error {
	s.logger.Info("Starting behavior service",
		zap.String("session_id", s.sessionID),
		zap.String("ingest_mode", s.config.Behavior.Ingest.Mode),
	)

	if s.sessionsRepo != nil {
		if err := s.sessionsRepo.InsertSession(ctx, s.sessionID); err != nil {
			return fmt.Errorf("failed to register session: %w", err)
		}
	}
	if s.apiClient != nil {
		if err := s.apiClient.SendSessionStart(s.sessionID); err != nil {
			s.logger.Warn("Failed to report session start", zap.Error(err))
		}
	}

	switch s.config.Behavior.Ingest.Mode {
	case "mqtt":
		client, err := mqttutil.NewClient(&s.config.Behavior.Ingest.MQTT, s.logger)
		if err != nil {
			return fmt.Errorf("failed to connect mqtt broker: %w", err)
		}
		return consumer.NewMQTTConsumer(s.config, client, s.HandleFrame, s.logger).Start(ctx)
	default:
		return consumer.NewStreamConsumer(s.config, s.redisClient, s.HandleFrame, s.logger).Start(ctx)
	}
}

// Stop 结算会话并关闭连接
func (s *BehaviorService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true

	s.logger.Info("Stopping behavior service",
		zap.String("session_id", s.sessionID),
		zap.Int64("frames", s.frameCount),
		zap.Int("tracks", s.totalTracks),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.finalize(ctx)

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database", zap.Error(err))
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis", zap.Error(err))
		}
	}
	return nil
}

// finalize 写出会话结果：考勤结算、会话结束记录、文件汇总与 Excel 报表
func (s *BehaviorService) finalize(ctx context.Context) {
	duration := time.Since(s.startTime).Seconds()

	if s.attendanceRepo != nil {
		if err := s.attendanceRepo.FinalizeAll(ctx, s.sessionID); err != nil {
			s.logger.Error("Failed to finalize attendance", zap.Error(err))
		}
	}
	if s.sessionsRepo != nil {
		if err := s.sessionsRepo.FinalizeSession(ctx, s.sessionID, duration, s.frameCount, s.totalTracks); err != nil {
			s.logger.Error("Failed to finalize session", zap.Error(err))
		}
	}
	if s.apiClient != nil {
		if err := s.apiClient.SendSessionEnd(s.sessionID, duration, s.frameCount, s.totalTracks); err != nil {
			s.logger.Warn("Failed to report session end", zap.Error(err))
		}
	}
	if s.sessionLog != nil {
		if err := s.sessionLog.Finalize(); err != nil {
			s.logger.Error("Failed to finalize session log", zap.Error(err))
		}
	}
	s.generateReport(ctx)
}

// generateReport 从数据库取回会话数据并生成 Excel 报表
func (s *BehaviorService) generateReport(ctx context.Context) {
	if s.sessionsRepo == nil || s.alertsRepo == nil || s.attendanceRepo == nil || s.sessionLog == nil {
		return
	}

	session, err := s.sessionsRepo.GetSession(ctx, s.sessionID)
	if err != nil {
		s.logger.Error("Failed to load session for report", zap.Error(err))
		return
	}
	alerts, err := s.alertsRepo.GetSessionAlerts(ctx, s.sessionID)
	if err != nil {
		s.logger.Error("Failed to load alerts for report", zap.Error(err))
		return
	}
	records, err := s.attendanceRepo.GetSummary(ctx, s.sessionID)
	if err != nil {
		s.logger.Error("Failed to load attendance for report", zap.Error(err))
		return
	}

	path, err := s.report.Generate(s.sessionLog.SessionDir(), session, alerts, records)
	if err != nil {
		s.logger.Error("Failed to generate session report", zap.Error(err))
		return
	}
	s.logger.Info("Session report generated", zap.String("path", path))
}
