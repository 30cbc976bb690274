package notify

import "context"

// Message is a rendered notification. To carries per-device recipients
// and may be empty, in which case channels fall back to their defaults.
type Message struct {
	Subject string
	Body    string
	To      []string
}

// Channel delivers rendered notifications.
type Channel interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}
