package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-behavior/internal/config"
	"wisefido-behavior/internal/models"
	"wisefido-behavior/internal/redisutil"
)

func streamTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Behavior.Ingest.Mode = "stream"
	cfg.Behavior.Ingest.Stream = "behavior:frames"
	cfg.Behavior.Ingest.ConsumerGroup = "behavior-service"
	cfg.Behavior.Ingest.ConsumerName = "consumer-test"
	cfg.Behavior.Ingest.BatchSize = 10
	return cfg
}

// 测试帧信号从 Streams 发布到 handler 的完整链路
func TestStreamConsumer_ConsumesFrames(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	received := make(chan *models.FrameSignal, 8)
	handler := func(ctx context.Context, frame *models.FrameSignal) error {
		received <- frame
		return nil
	}

	cfg := streamTestConfig()
	sc := NewStreamConsumer(cfg, client, handler, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sc.Start(ctx)

	frame := models.FrameSignal{
		FrameID:   42,
		Timestamp: time.Now().UTC(),
		Tracks: []models.TrackSignal{
			{TrackID: "t7", HeadDirection: models.HeadForward, Confidence: 0.88,
				Region: models.Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}},
		},
	}
	_, err := redisutil.PublishJSONToStream(ctx, client, cfg.Behavior.Ingest.Stream, frame)
	require.NoError(t, err)

	select {
	case got := <-received:
		assert.Equal(t, int64(42), got.FrameID)
		require.Len(t, got.Tracks, 1)
		assert.Equal(t, "t7", got.Tracks[0].TrackID)
		assert.Equal(t, models.HeadForward, got.Tracks[0].HeadDirection)
	case <-time.After(3 * time.Second):
		t.Fatal("frame was not consumed")
	}

	require.Eventually(t, func() bool {
		snap := sc.metrics.GetSnapshot()
		return snap.FramesProcessed == 1 && snap.FramesSucceeded == 1
	}, time.Second, 10*time.Millisecond)
}

// 测试坏消息不中断消费：解析失败计入错误，后续消息正常处理
func TestStreamConsumer_SkipsMalformedMessages(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	received := make(chan *models.FrameSignal, 8)
	handler := func(ctx context.Context, frame *models.FrameSignal) error {
		received <- frame
		return nil
	}

	cfg := streamTestConfig()
	sc := NewStreamConsumer(cfg, client, handler, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 坏消息在前
	err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: cfg.Behavior.Ingest.Stream,
		Values: map[string]interface{}{"data": "{not json"},
	}).Err()
	require.NoError(t, err)

	_, err = redisutil.PublishJSONToStream(ctx, client, cfg.Behavior.Ingest.Stream,
		models.FrameSignal{FrameID: 2, Timestamp: time.Now().UTC()})
	require.NoError(t, err)

	go sc.Start(ctx)

	select {
	case got := <-received:
		assert.Equal(t, int64(2), got.FrameID)
	case <-time.After(3 * time.Second):
		t.Fatal("valid frame was not consumed")
	}

	snap := sc.metrics.GetSnapshot()
	assert.Equal(t, int64(1), snap.ErrorsParse)
	assert.Equal(t, int64(1), snap.FramesSucceeded)
}
