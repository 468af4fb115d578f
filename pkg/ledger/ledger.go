package ledger

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultBufferSize is the number of records held before Log starts dropping
	DefaultBufferSize = 1024

	// DefaultWriteTimeout bounds a single sink write
	DefaultWriteTimeout = 2 * time.Second
)

// Sink persists records and counts them.
type Sink interface {
	Append(ctx context.Context, rec Record) error
	Counts(ctx context.Context) (total, hits int64, err error)
}

// Ledger writes records asynchronously so logging never delays or fails the
// request that triggered it.
type Ledger struct {
	sink         Sink
	logger       zerolog.Logger
	now          func() time.Time
	writeTimeout time.Duration

	queue   chan item
	closing chan struct{}
	stopped chan struct{}

	// mu orders enqueues against Close: once closed is set under the write
	// lock, no Log can add to the queue the writer is draining.
	mu     sync.RWMutex
	closed bool
}

type item struct {
	rec     Record
	barrier chan struct{}
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithBufferSize sets the queue capacity.
func WithBufferSize(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.queue = make(chan item, n)
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger used for write failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithWriteTimeout bounds each sink write.
func WithWriteTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.writeTimeout = d
		}
	}
}

// New starts a ledger writing to sink. Close must be called to flush and
// stop the background writer.
func New(sink Sink, opts ...Option) *Ledger {
	if sink == nil {
		panic("ledger sink cannot be nil")
	}
	l := &Ledger{
		sink:         sink,
		logger:       log.With().Str("component", "ledger").Logger(),
		now:          time.Now,
		writeTimeout: DefaultWriteTimeout,
		queue:        make(chan item, DefaultBufferSize),
		closing:      make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.run()
	return l
}

// Log enqueues a record. It never blocks: when the queue is full or the
// ledger is closed the record is dropped and counted.
func (l *Ledger) Log(endpoint, actor string, cacheHit bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		RecordsDropped.WithLabelValues("closed").Inc()
		return
	}

	rec := Record{
		ID:        uuid.New(),
		Endpoint:  endpoint,
		Actor:     actor,
		CacheHit:  cacheHit,
		Timestamp: l.now(),
	}

	QueueDepth.Inc()
	select {
	case l.queue <- item{rec: rec}:
	default:
		QueueDepth.Dec()
		RecordsDropped.WithLabelValues("queue_full").Inc()
		l.logger.Warn().
			Str("endpoint", endpoint).
			Msg("Ledger queue full, dropping record")
	}
}

// Flush waits until every record logged before the call has been handed to
// the sink.
func (l *Ledger) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	select {
	case l.queue <- item{barrier: barrier}:
	case <-l.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-barrier:
		return nil
	case <-l.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats flushes pending records and returns totals from the sink.
func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	if err := l.Flush(ctx); err != nil {
		return Stats{}, fmt.Errorf("flush ledger: %w", err)
	}
	total, hits, err := l.sink.Counts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count ledger: %w", err)
	}
	return NewStats(total, hits), nil
}

// Close drains the queue and stops the writer.
func (l *Ledger) Close() error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.closing)
	}
	l.mu.Unlock()
	<-l.stopped
	return nil
}

func (l *Ledger) run() {
	defer close(l.stopped)
	for {
		select {
		case it := <-l.queue:
			l.handle(it)
		case <-l.closing:
			for {
				select {
				case it := <-l.queue:
					l.handle(it)
				default:
					return
				}
			}
		}
	}
}

func (l *Ledger) handle(it item) {
	if it.barrier != nil {
		close(it.barrier)
		return
	}
	QueueDepth.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), l.writeTimeout)
	defer cancel()

	if err := l.sink.Append(ctx, it.rec); err != nil {
		RecordsDropped.WithLabelValues("sink_error").Inc()
		l.logger.Warn().
			Err(err).
			Str("endpoint", it.rec.Endpoint).
			Msg("Failed to write ledger record")
		return
	}
	RecordsWritten.WithLabelValues(strconv.FormatBool(it.rec.CacheHit)).Inc()
}
