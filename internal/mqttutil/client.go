package mqttutil

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"wisefido-behavior/internal/config"
)

const connectTimeout = 10 * time.Second

// MessageHandler 消息处理函数，返回错误时仅记录日志，不中断订阅
type MessageHandler func(topic string, payload []byte) error

// Client MQTT 订阅端封装
type Client struct {
	client mqtt.Client
	logger *zap.Logger
}

// NewClient 连接到 MQTT broker
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger) (*Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetKeepAlive(30 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("MQTT connection lost", zap.Error(err))
		}).
		SetOnConnectHandler(func(_ mqtt.Client) {
			logger.Info("MQTT connected", zap.String("broker", cfg.Broker))
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("timed out connecting to mqtt broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", cfg.Broker, err)
	}

	return &Client{client: client, logger: logger}, nil
}

// Subscribe 订阅主题，处理函数在 paho 的回调协程中执行
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	callback := func(_ mqtt.Client, msg mqtt.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Error("Failed to handle MQTT message",
				zap.String("topic", msg.Topic()),
				zap.Error(err))
		}
	}

	token := c.client.Subscribe(topic, qos, callback)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, token.Error())
	}
	return nil
}

// Disconnect 断开连接，等待在途消息送达
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}
