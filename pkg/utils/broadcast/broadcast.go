package broadcast

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/fieldapp-client/log"
)

const DefaultBufferSize = 16

type BroadcastServer[T any] interface {
	// Subscribe returns a channel receiving all values published after the call.
	// The channel is closed on CancelSubscription or Close.
	Subscribe() <-chan T
	CancelSubscription(<-chan T)
	Close()
}

type broadcastServer[T any] struct {
	name           string
	eventKey       string
	bufSize        int
	source         <-chan T
	listeners      []chan T
	addListener    chan chan T
	removeListener chan (<-chan T)
	ctx            context.Context
	cancel         context.CancelFunc
	done           chan struct{}
	log            *log.Logger
	numRcv         atomic.Int64
	numSnd         atomic.Int64
	numSkip        atomic.Int64
	numListener    atomic.Int64
}

type Option[T any] func(*broadcastServer[T])

func WithTelemetry[T any](eventKey string) Option[T] {
	return func(b *broadcastServer[T]) {
		b.eventKey = eventKey
	}
}

// WithBufferSize sets the number of values queued per listener.
// A slow listener loses its oldest queued values, never the newest one.
func WithBufferSize[T any](n int) Option[T] {
	return func(b *broadcastServer[T]) {
		if n > 0 {
			b.bufSize = n
		}
	}
}

//nolint:whitespace // false positive
func NewBroadcastServer[T any](
	name string,
	source <-chan T,
	opts ...Option[T],
) BroadcastServer[T] {
	ctx, cancel := context.WithCancel(context.Background())
	b := &broadcastServer[T]{
		name:           name,
		bufSize:        DefaultBufferSize,
		source:         source,
		addListener:    make(chan chan T),
		removeListener: make(chan (<-chan T)),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
		log:            log.Default().Named("broadcast"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.eventKey != "" {
		b.setupMetrics()
	}
	go b.serve()
	return b
}

func (b *broadcastServer[T]) Subscribe() <-chan T {
	ch := make(chan T, b.bufSize)
	select {
	case b.addListener <- ch:
	case <-b.done:
		close(ch)
	}
	return ch
}

func (b *broadcastServer[T]) CancelSubscription(ch <-chan T) {
	select {
	case b.removeListener <- ch:
	case <-b.done:
	}
}

// Close stops the server and closes all listener channels.
// It returns after the listeners are closed.
func (b *broadcastServer[T]) Close() {
	b.cancel()
	<-b.done
	b.log.Debug("broadcast server closed",
		log.String("name", b.name),
		log.Int64("rcv", b.numRcv.Load()),
		log.Int64("snd", b.numSnd.Load()),
		log.Int64("skip", b.numSkip.Load()))
}

func (b *broadcastServer[T]) setupMetrics() {
	meter := otel.GetMeterProvider().Meter(fmt.Sprintf("fac.broadcast.%s", b.name))
	register := func(metricName, desc string, value *atomic.Int64) {
		if _, err := meter.Int64ObservableGauge(
			metricName,
			metric.WithDescription(desc),
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(value.Load(),
					metric.WithAttributes(
						attribute.String("name", b.name),
						attribute.String("event", b.eventKey),
					),
				)
				return nil
			})); err != nil {
			b.log.Error("failed to register metric",
				log.String("metric", metricName),
				log.ErrorField(err))
		}
	}
	register("fac.broadcast.rcv", "Number of received messages", &b.numRcv)
	register("fac.broadcast.snd", "Number of sent messages", &b.numSnd)
	register("fac.broadcast.skip", "Number of dropped messages", &b.numSkip)
	register("fac.broadcast.listener", "Number of listeners", &b.numListener)
}

func (b *broadcastServer[T]) serve() {
	defer func() {
		for _, listener := range b.listeners {
			close(listener)
		}
		b.listeners = nil
		b.numListener.Store(0)
		close(b.done)
	}()
	for {
		select {
		case <-b.ctx.Done():
			return
		case ch := <-b.addListener:
			b.listeners = append(b.listeners, ch)
			b.numListener.Store(int64(len(b.listeners)))
		case ch := <-b.removeListener:
			for i, listener := range b.listeners {
				if listener == ch {
					b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
					close(listener)
					break
				}
			}
			b.numListener.Store(int64(len(b.listeners)))
		case msg, ok := <-b.source:
			if !ok {
				return
			}
			b.numRcv.Add(1)
			for _, listener := range b.listeners {
				b.deliver(listener, msg)
			}
		}
	}
}

func (b *broadcastServer[T]) deliver(listener chan T, msg T) {
	select {
	case listener <- msg:
		b.numSnd.Add(1)
		return
	default:
	}
	// queue is full: drop the oldest value to make room
	select {
	case <-listener:
		b.numSkip.Add(1)
	default:
	}
	select {
	case listener <- msg:
		b.numSnd.Add(1)
	default:
		b.numSkip.Add(1)
	}
}
