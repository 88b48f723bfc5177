package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wisefido-behavior/internal/config"
	"wisefido-behavior/internal/models"
	"wisefido-behavior/internal/mqttutil"
)

// MQTTConsumer MQTT 帧信号消费者（边缘部署时的备选接入方式）
type MQTTConsumer struct {
	config  *config.Config
	client  *mqttutil.Client
	handler FrameHandler
	logger  *zap.Logger
	metrics *Metrics
}

// NewMQTTConsumer 创建 MQTT 消费者
func NewMQTTConsumer(
	cfg *config.Config,
	client *mqttutil.Client,
	handler FrameHandler,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:  cfg,
		client:  client,
		handler: handler,
		logger:  logger,
		metrics: &Metrics{
			StartTime: time.Now(),
		},
	}
}

// Start 订阅帧主题，阻塞直到 ctx 取消
func (c *MQTTConsumer) Start(ctx context.Context) error {
	mqttCfg := c.config.Behavior.Ingest.MQTT

	err := c.client.Subscribe(mqttCfg.Topic, mqttCfg.QoS, func(topic string, payload []byte) error {
		return c.handleMessage(ctx, payload)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to frame topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("broker", mqttCfg.Broker),
		zap.String("topic", mqttCfg.Topic),
	)

	<-ctx.Done()
	c.client.Disconnect()
	return nil
}

// handleMessage 处理单条帧信号消息
func (c *MQTTConsumer) handleMessage(ctx context.Context, payload []byte) error {
	startTime := time.Now()
	c.metrics.IncrementProcessed()

	var frame models.FrameSignal
	if err := json.Unmarshal(payload, &frame); err != nil {
		c.metrics.IncrementFailed("parse")
		return fmt.Errorf("failed to unmarshal frame signal: %w", err)
	}

	if err := c.handler(ctx, &frame); err != nil {
		c.metrics.IncrementFailed("handler")
		return fmt.Errorf("failed to handle frame: %w", err)
	}

	c.metrics.IncrementSucceeded(time.Since(startTime))
	return nil
}
