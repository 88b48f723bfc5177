package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wisefido-behavior/internal/config"
	"wisefido-behavior/internal/models"
	"wisefido-behavior/internal/redisutil"
)

// FrameHandler 帧信号处理函数类型（由 service 层实现）
type FrameHandler func(ctx context.Context, frame *models.FrameSignal) error

// StreamConsumer Redis Streams 帧信号消费者
type StreamConsumer struct {
	config      *config.Config
	redisClient *redis.Client
	handler     FrameHandler
	logger      *zap.Logger
	metrics     *Metrics
}

// NewStreamConsumer 创建 Streams 消费者
func NewStreamConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	handler FrameHandler,
	logger *zap.Logger,
) *StreamConsumer {
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		handler:     handler,
		logger:      logger,
		metrics: &Metrics{
			StartTime: time.Now(),
		},
	}
}

// Start 启动消费者，阻塞直到 ctx 取消
func (c *StreamConsumer) Start(ctx context.Context) error {
	// 创建消费者组
	stream := c.config.Behavior.Ingest.Stream
	group := c.config.Behavior.Ingest.ConsumerGroup
	if err := redisutil.CreateConsumerGroup(ctx, c.redisClient, stream, group); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
	}

	c.logger.Info("Stream consumer started",
		zap.String("consumer_group", group),
		zap.String("consumer_name", c.config.Behavior.Ingest.ConsumerName),
		zap.String("stream", stream),
	)

	// 启动指标报告协程
	metricsCtx, metricsCancel := context.WithCancel(ctx)
	defer metricsCancel()
	go c.reportMetrics(metricsCtx)

	// 消费循环，失败时指数退避
	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.consumeStream(ctx, stream); err != nil {
				c.logger.Error("Failed to consume stream",
					zap.Error(err),
					zap.Duration("backoff", backoffDuration),
				)

				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoffDuration):
					backoffDuration *= 2
					if backoffDuration > maxBackoff {
						backoffDuration = maxBackoff
					}
				}
			} else {
				// 成功时重置退避时间
				backoffDuration = time.Second
			}
		}
	}
}

// consumeStream 读取并处理一批消息
func (c *StreamConsumer) consumeStream(ctx context.Context, stream string) error {
	messages, err := redisutil.ReadFromStream(
		ctx,
		c.redisClient,
		stream,
		c.config.Behavior.Ingest.ConsumerGroup,
		c.config.Behavior.Ingest.ConsumerName,
		c.config.Behavior.Ingest.BatchSize,
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, msg := range messages {
		c.metrics.IncrementProcessed()
		if err := c.processMessage(ctx, msg); err != nil {
			c.logger.Error("Failed to process message",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
			// 继续处理下一条消息，不中断
		}
		// 无论成败都 ACK，失败帧不重放（窗口语义下旧帧重放价值有限）
		if err := c.redisClient.XAck(ctx, stream, c.config.Behavior.Ingest.ConsumerGroup, msg.ID).Err(); err != nil {
			c.logger.Warn("Failed to ack message",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// processMessage 处理单条帧信号消息
func (c *StreamConsumer) processMessage(ctx context.Context, msg redisutil.StreamMessage) error {
	startTime := time.Now()

	var dataStr string
	if val, ok := msg.Values["data"]; ok {
		if str, ok := val.(string); ok {
			dataStr = str
		} else {
			c.metrics.IncrementFailed("parse")
			return fmt.Errorf("invalid data format in message")
		}
	} else {
		c.metrics.IncrementFailed("parse")
		return fmt.Errorf("missing data field in message")
	}

	var frame models.FrameSignal
	if err := json.Unmarshal([]byte(dataStr), &frame); err != nil {
		c.metrics.IncrementFailed("parse")
		return fmt.Errorf("failed to unmarshal frame signal: %w", err)
	}

	if err := c.handler(ctx, &frame); err != nil {
		c.metrics.IncrementFailed("handler")
		return fmt.Errorf("failed to handle frame: %w", err)
	}

	c.metrics.IncrementSucceeded(time.Since(startTime))

	c.logger.Debug("Processed frame signal",
		zap.Int64("frame_id", frame.FrameID),
		zap.Int("track_count", len(frame.Tracks)),
		zap.Int("phone_count", len(frame.PhoneRegions)),
	)

	return nil
}

// reportMetrics 定期报告指标（每60秒）
func (c *StreamConsumer) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := c.metrics.GetSnapshot()
			uptime := time.Since(snapshot.StartTime)

			var avgProcessingTime time.Duration
			if snapshot.FramesSucceeded > 0 {
				avgProcessingTime = snapshot.TotalProcessingTime / time.Duration(snapshot.FramesSucceeded)
			}

			successRate := float64(0)
			if snapshot.FramesProcessed > 0 {
				successRate = float64(snapshot.FramesSucceeded) / float64(snapshot.FramesProcessed) * 100
			}

			c.logger.Info("Metrics report",
				zap.Int64("frames_processed", snapshot.FramesProcessed),
				zap.Int64("frames_succeeded", snapshot.FramesSucceeded),
				zap.Int64("frames_failed", snapshot.FramesFailed),
				zap.Float64("success_rate", successRate),
				zap.Int64("errors_parse", snapshot.ErrorsParse),
				zap.Int64("errors_handler", snapshot.ErrorsHandler),
				zap.Duration("avg_processing_time", avgProcessingTime),
				zap.Duration("uptime", uptime),
			)
		}
	}
}
