package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pixybot/internal/logger"
	"pixybot/internal/types"
)

const (
	robotHash       = "robot"
	robotChannel    = "robot"
	robotCommandKey = "robot:command"
)

type Callbacks struct {
	StartCallback func() error // "start": same as pressing S3
}

type RedisClient struct {
	client    *redis.Client
	callbacks Callbacks
	session   string
	logger    *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewRedisClient(addr, session string, l *logger.Logger, callbacks Callbacks) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   0,
		}),
		callbacks: callbacks,
		session:   session,
		logger:    l.WithTag("redis"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")

	// Drop commands queued for a previous run.
	if err := r.client.Del(r.ctx, robotCommandKey).Err(); err != nil {
		r.logger.Warnf("Failed to clear stale commands: %v", err)
	}
	return nil
}

// Ping checks the connection without touching any controller state.
func (r *RedisClient) Ping() error {
	if err := r.client.Ping(r.ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// StartListening starts the command list listener.
func (r *RedisClient) StartListening() error {
	r.logger.Infof("Starting Redis listeners")
	r.wg.Add(1)
	go r.listCommandListener(robotCommandKey, r.handleCommand)
	return nil
}

func (r *RedisClient) listCommandListener(key string, handler func(string) error) {
	defer r.wg.Done()
	r.logger.Infof("Starting list command listener for %s", key)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting %s listener", key)
			return
		default:
			// Short timeout so cancellation is noticed.
			result, err := r.client.BRPop(r.ctx, 5*time.Second, key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if errors.Is(err, context.Canceled) {
					return
				}
				r.logger.Warnf("Error reading %s: %v", key, err)
				time.Sleep(time.Second)
				continue
			}
			// result is [key, value]
			if len(result) != 2 {
				continue
			}
			if err := handler(result[1]); err != nil {
				r.logger.Warnf("Error handling %s command %q: %v", key, result[1], err)
			}
		}
	}
}

func (r *RedisClient) handleCommand(value string) error {
	switch strings.TrimSpace(value) {
	case "start":
		if r.callbacks.StartCallback == nil {
			return nil
		}
		r.logger.Debugf("Start command received")
		return r.callbacks.StartCallback()
	default:
		return fmt.Errorf("invalid command: %s", value)
	}
}

// PublishAction stores the dispatched action in the robot hash and
// notifies subscribers.
func (r *RedisClient) PublishAction(a types.MotorAction) error {
	report := NewActionReport(r.session, a, time.Now())

	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, robotHash, report.hashFields())
	pipe.Publish(r.ctx, robotChannel, "action")
	if _, err := pipe.Exec(r.ctx); err != nil {
		return fmt.Errorf("publish action: %w", err)
	}
	r.logger.Debugf("Published action %s", a)
	return nil
}

// PublishLifecycle records the controller lifecycle state.
func (r *RedisClient) PublishLifecycle(state string) error {
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, robotHash, "lifecycle", state, "session", r.session)
	pipe.Publish(r.ctx, robotChannel, "lifecycle")
	if _, err := pipe.Exec(r.ctx); err != nil {
		return fmt.Errorf("publish lifecycle: %w", err)
	}
	return nil
}

// SendCommand queues a command for a running controller.
func (r *RedisClient) SendCommand(command string) error {
	if err := r.client.LPush(r.ctx, robotCommandKey, command).Err(); err != nil {
		return fmt.Errorf("send command %q: %w", command, err)
	}
	return nil
}

// GetReport reads the last published robot telemetry.
func (r *RedisClient) GetReport() (ActionReport, error) {
	h, err := r.client.HGetAll(r.ctx, robotHash).Result()
	if err != nil {
		return ActionReport{}, fmt.Errorf("read robot hash: %w", err)
	}
	return reportFromHash(h)
}

// WatchReports emits a fresh report every time the controller publishes.
// The channel closes when ctx is done or the subscription ends.
func (r *RedisClient) WatchReports(ctx context.Context) <-chan ActionReport {
	out := make(chan ActionReport, 16)
	pubsub := r.client.Subscribe(ctx, robotChannel)

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					r.logger.Warnf("Redis subscription closed")
					return
				}
				r.logger.Debugf("Received Redis message: channel=%s payload=%s", msg.Channel, msg.Payload)
				report, err := r.GetReport()
				if err != nil {
					r.logger.Warnf("Failed to read report: %v", err)
					continue
				}
				select {
				case out <- report:
				default:
				}
			}
		}
	}()
	return out
}

func (r *RedisClient) Close() error {
	r.logger.Infof("Closing Redis client")
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Infof("All Redis goroutines finished")
	case <-time.After(5 * time.Second):
		r.logger.Warnf("Timeout waiting for Redis goroutines to finish")
	}

	return r.client.Close()
}
