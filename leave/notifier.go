package leave

import (
	"context"
	"log/slog"
)

// Notification describes a lifecycle event that people should hear about:
// the supervisor on submit and cancellation requests, the owner on decisions.
type Notification struct {
	Event   Event
	Request LeaveRequest
	Owner   User
	Actor   Actor
}

// Notifier delivers notifications. Delivery failures never roll back the
// transition that caused them.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recipient := n.Owner.ID
	if n.Event == EventSubmit || n.Event == EventRequestCancel {
		recipient = n.Owner.SupervisorID
	}
	logger.InfoContext(ctx, "leave notification",
		"event", n.Event,
		"request_id", n.Request.ID,
		"status", n.Request.Status,
		"owner", n.Owner.ID,
		"recipient", recipient,
		"actor", n.Actor.UserID,
	)
	return nil
}

// NopNotifier discards everything.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) error { return nil }
