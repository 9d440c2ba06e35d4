package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/inovacc/pagewright/internal/publishlog"
)

const sendTimeout = 30 * time.Second

// Dispatcher routes events to registered senders.
type Dispatcher struct {
	senders []Sender
	siteURL string
	async   bool
	mu      sync.RWMutex
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// NewDispatcher creates a new notification dispatcher.
// If async is true, notifications are sent in goroutines; Wait blocks until
// they are done.
func NewDispatcher(async bool, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{async: async, logger: logger}
}

// WithSiteURL links notifications to the live site.
func (d *Dispatcher) WithSiteURL(url string) *Dispatcher {
	d.siteURL = url

	return d
}

// Register adds a sender to the dispatcher.
func (d *Dispatcher) Register(sender Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.senders = append(d.senders, sender)
}

// HasSenders returns true if any senders are registered.
func (d *Dispatcher) HasSenders() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.senders) > 0
}

// Dispatch sends an event to all registered senders. Send failures are
// logged, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) {
	d.mu.RLock()
	senders := make([]Sender, len(d.senders))
	copy(senders, d.senders)
	d.mu.RUnlock()

	if event.SiteURL == "" {
		event.SiteURL = d.siteURL
	}

	for _, sender := range senders {
		if !d.async {
			d.send(ctx, sender, event)

			continue
		}

		d.wg.Add(1)

		go func() {
			defer d.wg.Done()

			d.send(context.WithoutCancel(ctx), sender, event)
		}()
	}
}

// Record notifies about a finished publish run. It lets the dispatcher sit
// next to the publish history as a recorder.
func (d *Dispatcher) Record(ctx context.Context, run *publishlog.Run) error {
	d.Dispatch(ctx, FromRun(run))

	return nil
}

// Wait blocks until asynchronous sends have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// send delivers one event and recovers from panics in the sender.
func (d *Dispatcher) send(ctx context.Context, sender Sender, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("notify: sender panicked", "sender", sender.Name(), "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := sender.Send(ctx, event); err != nil {
		d.logger.Warn("notify: send failed", "sender", sender.Name(), "event", event.Type, "error", err)

		return
	}

	d.logger.Debug("notify: sent", "sender", sender.Name(), "event", event.Type)
}
