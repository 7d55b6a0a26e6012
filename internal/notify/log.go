package notify

import (
	"context"
	"log/slog"
)

// LogSink writes notifications to the structured log instead of
// delivering them.
type LogSink struct{}

// Send logs n at Info.
func (LogSink) Send(_ context.Context, n Notification) error {
	slog.Info("notification",
		"kind", n.Kind,
		"destination", n.Destination,
		"entity", n.EntityID,
		"name", n.Name,
		"previous", n.Previous,
		"current", n.Current,
	)
	return nil
}
