// Package nats delivers earthquake alerts as JSON messages on a NATS subject.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/couchcryptid/quake-alert-service/internal/alert"
)

// DefaultSubject is where alerts are published unless overridden.
const DefaultSubject = "quake.alerts"

// FlushTimeout bounds the flush when the caller's context has no deadline.
const FlushTimeout = 5 * time.Second

// Notifier publishes one message per alert. It implements alert.Notifier.
type Notifier struct {
	conn    *natsgo.Conn
	subject string
}

// NewNotifier connects to url with automatic reconnection. An empty subject
// means DefaultSubject.
func NewNotifier(url, subject string, opts ...natsgo.Option) (*Notifier, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	defaults := []natsgo.Option{
		natsgo.Name("quakectl"),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
	}
	nc, err := natsgo.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &Notifier{conn: nc, subject: subject}, nil
}

// Notify publishes every alert and flushes, so a nil return means the server
// received them. A ctx without a deadline gets FlushTimeout.
func (n *Notifier) Notify(ctx context.Context, alerts []alert.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	for _, a := range alerts {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshaling alert %s: %w", a.ID, err)
		}
		if err := n.conn.Publish(n.subject, data); err != nil {
			return fmt.Errorf("publishing alert %s: %w", a.ID, err)
		}
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, FlushTimeout)
		defer cancel()
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flushing alerts: %w", err)
	}
	return nil
}

// Close closes the connection.
func (n *Notifier) Close() error {
	n.conn.Close()
	return nil
}
