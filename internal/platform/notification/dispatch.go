package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Dispatcher accepts a message for eventual delivery. It has no error
// result: whatever happens to the message cannot reach the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message)
}

// Deliverer sends one message synchronously. Manager implements it.
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// Discard drops every message.
type Discard struct{}

func (Discard) Dispatch(context.Context, Message) {}

func stamp(msg *Message) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
}

// Worker delivers messages from a buffered queue on a background goroutine.
// Dispatch never blocks; when the queue is full the message is dropped.
type Worker struct {
	deliverer Deliverer
	logger    zerolog.Logger
	timeout   time.Duration
	queue     chan Message

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewWorker creates a Worker with the given queue capacity. Call Start to
// begin delivering.
func NewWorker(d Deliverer, buffer int, logger zerolog.Logger) *Worker {
	if buffer <= 0 {
		buffer = 1
	}
	return &Worker{
		deliverer: d,
		logger:    logger.With().Str("component", "notify-worker").Logger(),
		timeout:   10 * time.Second,
		queue:     make(chan Message, buffer),
		done:      make(chan struct{}),
	}
}

// Start launches the delivery goroutine.
func (w *Worker) Start() {
	go func() {
		defer close(w.done)
		for msg := range w.queue {
			ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
			if err := w.deliverer.Deliver(ctx, msg); err != nil {
				w.logger.Warn().Err(err).Str("notification_id", msg.ID).Msg("notification dropped after failed delivery")
			}
			cancel()
		}
	}()
}

// Dispatch enqueues msg without blocking.
func (w *Worker) Dispatch(_ context.Context, msg Message) {
	stamp(&msg)

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.logger.Warn().Str("notification_id", msg.ID).Msg("worker stopped, notification dropped")
		return
	}
	select {
	case w.queue <- msg:
	default:
		w.logger.Warn().Str("notification_id", msg.ID).Int("capacity", cap(w.queue)).Msg("notification queue full, dropping message")
	}
}

// Stop closes the queue and waits for queued messages to drain or ctx to
// expire.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("notification queue not drained"), ctx.Err())
	}
}
