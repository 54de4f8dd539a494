package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultInvalidationChannel is the Pub/Sub channel for registry cache invalidation
const DefaultInvalidationChannel = "uniorder:registry:invalidate"

const defaultCloseTimeout = 5 * time.Second

// InvalidationMessage tells every instance to drop a cached key.
// An empty Key means drop everything.
type InvalidationMessage struct {
	Key       string `json:"key,omitempty"`
	Source    string `json:"source,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Invalidator broadcasts cache invalidations between instances
type Invalidator interface {
	Publish(ctx context.Context, msg InvalidationMessage) error
	// Subscribe blocks, invoking callback for every message, until ctx is done or Close is called
	Subscribe(ctx context.Context, callback func(msg InvalidationMessage)) error
	Close() error
}

// ---------------------------------------------------------------------------
// Local
// ---------------------------------------------------------------------------

// LocalInvalidator fans messages out to in-process subscribers only
type LocalInvalidator struct {
	mu        sync.RWMutex
	callbacks map[int]func(InvalidationMessage)
	nextID    int
}

// NewLocalInvalidator creates an in-process invalidator
func NewLocalInvalidator() *LocalInvalidator {
	return &LocalInvalidator{callbacks: make(map[int]func(InvalidationMessage))}
}

// Publish delivers msg synchronously to every subscriber
func (l *LocalInvalidator) Publish(ctx context.Context, msg InvalidationMessage) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixNano()
	}
	l.mu.RLock()
	callbacks := make([]func(InvalidationMessage), 0, len(l.callbacks))
	for _, cb := range l.callbacks {
		callbacks = append(callbacks, cb)
	}
	l.mu.RUnlock()

	for _, cb := range callbacks {
		cb(msg)
	}
	return nil
}

// Subscribe registers callback until ctx is done
func (l *LocalInvalidator) Subscribe(ctx context.Context, callback func(msg InvalidationMessage)) error {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.callbacks[id] = callback
	l.mu.Unlock()

	<-ctx.Done()

	l.mu.Lock()
	delete(l.callbacks, id)
	l.mu.Unlock()
	return ctx.Err()
}

// Close is a no-op
func (l *LocalInvalidator) Close() error { return nil }

// ---------------------------------------------------------------------------
// Redis Pub/Sub
// ---------------------------------------------------------------------------

// RedisInvalidator broadcasts invalidations over Redis Pub/Sub
type RedisInvalidator struct {
	client    redis.UniversalClient
	channel   string
	logger    *zap.Logger
	cancelFn  context.CancelFunc
	doneCh    chan struct{}
	doneOnce  sync.Once
	mu        sync.Mutex
	isRunning bool
}

// RedisInvalidatorOption configures a RedisInvalidator
type RedisInvalidatorOption func(*RedisInvalidator)

// WithInvalidatorChannel sets the Pub/Sub channel name
func WithInvalidatorChannel(channel string) RedisInvalidatorOption {
	return func(i *RedisInvalidator) {
		i.channel = channel
	}
}

// WithInvalidatorLogger sets the logger
func WithInvalidatorLogger(logger *zap.Logger) RedisInvalidatorOption {
	return func(i *RedisInvalidator) {
		i.logger = logger
	}
}

// NewRedisInvalidator creates an invalidator on a shared client.
// The caller keeps ownership of the client.
func NewRedisInvalidator(client redis.UniversalClient, opts ...RedisInvalidatorOption) *RedisInvalidator {
	i := &RedisInvalidator{
		client:  client,
		channel: DefaultInvalidationChannel,
		logger:  zap.NewNop(),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Publish sends msg to every subscribed instance, this one included
func (i *RedisInvalidator) Publish(ctx context.Context, msg InvalidationMessage) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixNano()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation message: %w", err)
	}

	if err := i.client.Publish(ctx, i.channel, data).Err(); err != nil {
		i.logger.Error("Failed to publish cache invalidation",
			zap.String("channel", i.channel),
			zap.String("key", msg.Key),
			zap.Error(err))
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}

	i.logger.Debug("Published cache invalidation",
		zap.String("channel", i.channel),
		zap.String("key", msg.Key))
	return nil
}

// Subscribe listens on the channel until ctx is done or Close is called
func (i *RedisInvalidator) Subscribe(ctx context.Context, callback func(msg InvalidationMessage)) error {
	i.mu.Lock()
	if i.isRunning {
		i.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	i.isRunning = true
	subCtx, cancel := context.WithCancel(ctx)
	i.cancelFn = cancel
	i.mu.Unlock()

	defer func() {
		i.mu.Lock()
		i.isRunning = false
		i.mu.Unlock()
		i.markDone()
	}()

	pubsub := i.client.Subscribe(subCtx, i.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", i.channel, err)
	}

	i.logger.Info("Subscribed to cache invalidation channel", zap.String("channel", i.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			i.logger.Info("Cache invalidation subscription stopped")
			return subCtx.Err()
		case m, ok := <-ch:
			if !ok {
				i.logger.Warn("Cache invalidation channel closed")
				return nil
			}

			var msg InvalidationMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				i.logger.Error("Failed to unmarshal cache invalidation",
					zap.String("payload", m.Payload),
					zap.Error(err))
				continue
			}
			i.dispatch(callback, msg)
		}
	}
}

func (i *RedisInvalidator) dispatch(callback func(InvalidationMessage), msg InvalidationMessage) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("Panic in cache invalidation callback", zap.Any("panic", r))
		}
	}()
	callback(msg)
}

func (i *RedisInvalidator) markDone() {
	i.doneOnce.Do(func() {
		close(i.doneCh)
	})
}

// Close stops a running subscription and waits for it to exit
func (i *RedisInvalidator) Close() error {
	i.mu.Lock()
	cancelFn := i.cancelFn
	i.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-i.doneCh:
		case <-time.After(defaultCloseTimeout):
			i.logger.Warn("Timeout waiting for invalidation subscription to stop")
		}
	}
	return nil
}

var (
	_ Invalidator = (*LocalInvalidator)(nil)
	_ Invalidator = (*RedisInvalidator)(nil)
)
