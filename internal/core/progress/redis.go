package progress

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/agenthands/canon/internal/config"
	"github.com/agenthands/canon/internal/core/model"
	"github.com/agenthands/canon/internal/logger"
)

type publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Close() error
}

type redisPublisher struct {
	rdb *goredis.Client
}

func (p redisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.rdb.Publish(ctx, channel, payload).Err()
}

func (p redisPublisher) Close() error {
	return p.rdb.Close()
}

// RedisSink publishes events as JSON on a Redis channel from a background
// worker. Events are dropped when the queue is full.
type RedisSink struct {
	pub     publisher
	channel string
	log     *logger.Logger
	queue   chan model.ProgressEvent
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewRedisSink(cfg config.RedisConfig, log *logger.Logger) (*RedisSink, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: missing addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis ping")
	}

	return newRedisSink(redisPublisher{rdb: rdb}, cfg.Channel, log), nil
}

func newRedisSink(pub publisher, channel string, log *logger.Logger) *RedisSink {
	if channel == "" {
		channel = "canon.progress"
	}
	s := &RedisSink{
		pub:     pub,
		channel: channel,
		log:     log.With("service", "RedisProgressSink"),
		queue:   make(chan model.ProgressEvent, 256),
	}
	s.wg.Add(1)
	go s.forward()
	return s
}

// Emit queues an event. Events emitted after Close are dropped.
func (s *RedisSink) Emit(ev model.ProgressEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- ev:
	default:
		s.log.Warn("dropping progress event; redis queue full", "run_id", ev.RunID)
	}
}

func (s *RedisSink) forward() {
	defer s.wg.Done()
	for ev := range s.queue {
		raw, err := json.Marshal(ev)
		if err != nil {
			s.log.Warn("failed to marshal progress event", "error", err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.pub.Publish(ctx, s.channel, raw); err != nil {
			s.log.Warn("failed to publish progress event", "run_id", ev.RunID, "error", err)
		}
		cancel()
	}
}

// Close drains queued events and closes the connection.
func (s *RedisSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	return s.pub.Close()
}
