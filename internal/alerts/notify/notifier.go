package notify

import (
	"context"
	"log"
	"sync"
	"time"

	alertapp "dvrwatch/internal/alerts/application"
	alerts "dvrwatch/internal/alerts/domain"
	"dvrwatch/internal/observability/metrics"
)

// Notifier delivers alert events to its channels from a background
// worker. Publish never blocks the caller; events are dropped with a
// logged warning when the queue is full.
type Notifier struct {
	channels    []Channel
	template    *Template
	logger      *log.Logger
	queue       chan alertapp.Event
	done        chan struct{}
	sendTimeout time.Duration
	closeOnce   sync.Once
	mu          sync.Mutex
	closed      bool
}

// Option configures the notifier.
type Option func(*Notifier)

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithQueueSize overrides the default queue capacity.
func WithQueueSize(size int) Option {
	return func(n *Notifier) {
		if size > 0 {
			n.queue = make(chan alertapp.Event, size)
		}
	}
}

// WithSendTimeout overrides the per-delivery timeout.
func WithSendTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.sendTimeout = timeout
		}
	}
}

// WithTemplate overrides the default notification template.
func WithTemplate(template *Template) Option {
	return func(n *Notifier) {
		if template != nil {
			n.template = template
		}
	}
}

// NewNotifier constructs a notifier and starts its delivery worker.
// Running without channels is allowed; events are then consumed and
// discarded so alert storage keeps working when no channel is
// configured.
func NewNotifier(channels []Channel, opts ...Option) (*Notifier, error) {
	template, err := NewTemplate("")
	if err != nil {
		return nil, err
	}
	n := &Notifier{
		channels:    channels,
		template:    template,
		logger:      log.Default(),
		queue:       make(chan alertapp.Event, 64),
		done:        make(chan struct{}),
		sendTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	if len(n.channels) == 0 {
		n.logger.Printf("alert notifier: no channels configured, notifications disabled")
	}
	go n.run()
	return n, nil
}

// Publish implements application.Publisher.
func (n *Notifier) Publish(_ context.Context, event alertapp.Event) {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- event:
	default:
		n.logger.Printf("alert notifier: queue full, dropping %s event for device %s", event.Type, event.Device.ID)
	}
}

// Close stops the delivery worker after draining queued events.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		n.mu.Unlock()
		close(n.queue)
		<-n.done
	})
}

func (n *Notifier) run() {
	defer close(n.done)
	for event := range n.queue {
		n.deliver(event)
	}
}

func (n *Notifier) deliver(event alertapp.Event) {
	if len(n.channels) == 0 {
		return
	}
	msg, err := n.render(event)
	if err != nil {
		n.logger.Printf("alert notifier: render failed for alert %s: %v", event.Alert.ID, err)
		return
	}
	for _, channel := range n.channels {
		if channel == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), n.sendTimeout)
		err := channel.Send(ctx, msg)
		cancel()
		if err != nil {
			metrics.IncNotification(channel.Name(), metrics.ResultError)
			n.logger.Printf("alert notifier: %s delivery failed for alert %s: %v", channel.Name(), event.Alert.ID, err)
			continue
		}
		metrics.IncNotification(channel.Name(), metrics.ResultSuccess)
	}
}

func (n *Notifier) render(event alertapp.Event) (Message, error) {
	body, err := n.template.Render(buildTemplateData(event))
	if err != nil {
		return Message{}, err
	}
	msg := Message{
		Subject: subjectFor(event),
		Body:    body,
	}
	if event.Device.ContactEmail != "" {
		msg.To = []string{event.Device.ContactEmail}
	}
	return msg, nil
}

func buildTemplateData(event alertapp.Event) TemplateData {
	name := event.Device.Name
	if name == "" {
		name = event.Device.ID
	}
	return TemplateData{
		Device:     name,
		DeviceID:   event.Device.ID,
		Kind:       event.Device.Kind,
		Address:    event.Device.Address,
		Message:    event.Alert.Message,
		Timestamp:  event.Alert.Timestamp.UTC().Format(time.RFC3339),
		Event:      event.Type,
		EventLabel: eventLabel(event.Type),
	}
}

func subjectFor(event alertapp.Event) string {
	name := event.Device.Name
	if name == "" {
		name = event.Device.ID
	}
	switch event.Type {
	case alerts.KindRecovered:
		return "Équipement de retour en ligne : " + name
	default:
		return "Alerte équipement hors ligne : " + name
	}
}

func eventLabel(event string) string {
	switch event {
	case alerts.KindWentOffline:
		return "Hors ligne"
	case alerts.KindRecovered:
		return "Retour en ligne"
	default:
		return event
	}
}

var _ alertapp.Publisher = (*Notifier)(nil)
