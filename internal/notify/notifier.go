// Package notify pushes qualifying events to operators asynchronously.
// Delivery is at-least-once per event and always off the commit path: a
// slow or unavailable broker never blocks or fails an ingestion.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hivewatch/honeynet-analytics/internal/alerts"
)

// Publisher delivers one alert to the outside world.
type Publisher interface {
	Publish(alert alerts.Alert) error
}

// Notifier queues alerts and drains them on a background goroutine with
// bounded retries.
type Notifier struct {
	pub      Publisher
	queue    chan alerts.Alert
	stop     chan struct{}
	done     chan struct{}
	overflow sync.WaitGroup
	retries  int
	backoff  time.Duration
	logger   zerolog.Logger
}

// NewNotifier starts the drain goroutine. A nil publisher yields a disabled
// notifier whose Notify is a no-op.
func NewNotifier(pub Publisher, logger zerolog.Logger) *Notifier {
	n := &Notifier{
		pub:     pub,
		queue:   make(chan alerts.Alert, 1024),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		retries: 3,
		backoff: 500 * time.Millisecond,
		logger:  logger.With().Str("component", "notifier").Logger(),
	}

	if pub != nil {
		go n.drain()
	}

	return n
}

// Notify enqueues an alert without blocking the caller. When the queue is
// full, delivery happens on a dedicated goroutine instead of dropping:
// ordering is not guaranteed, delivery is. Close waits for these in-flight
// sends, so a shutdown racing an overflow loses nothing.
func (n *Notifier) Notify(alert alerts.Alert) {
	if n.pub == nil {
		return
	}

	select {
	case n.queue <- alert:
	default:
		n.overflow.Add(1)
		go func() {
			defer n.overflow.Done()
			n.deliver(alert)
		}()
	}
}

// Close stops the drain loop after flushing already-queued alerts and waits
// for any overflow deliveries still in flight.
func (n *Notifier) Close() {
	if n.pub == nil {
		return
	}
	close(n.stop)
	<-n.done
	n.overflow.Wait()
}

func (n *Notifier) drain() {
	defer close(n.done)

	for {
		select {
		case alert := <-n.queue:
			n.deliver(alert)
		case <-n.stop:
			// Flush whatever is still buffered, then exit.
			for {
				select {
				case alert := <-n.queue:
					n.deliver(alert)
				default:
					return
				}
			}
		}
	}
}

func (n *Notifier) deliver(alert alerts.Alert) {
	var err error
	for attempt := 0; attempt <= n.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(n.backoff * time.Duration(attempt))
		}
		if err = n.pub.Publish(alert); err == nil {
			return
		}
	}

	n.logger.Error().Err(err).
		Int64("event_id", alert.ID).
		Str("source_address", alert.SourceAddress).
		Msg("giving up on alert delivery")
}
