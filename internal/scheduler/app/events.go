package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// NATS subjects for scheduled-post lifecycle events. Downstream consumers
// (notification senders, analytics) subscribe to these; nothing in this
// subsystem depends on them being delivered.
const (
	SubjectPostScheduled     = "posts.scheduled"
	SubjectPostCancelled     = "posts.cancelled"
	SubjectPostPublished     = "posts.published"
	SubjectPostPublishFailed = "posts.publish_failed"
)

// EventPublisher is satisfied by messagebroker.NATSClient.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// PostEvent is the payload emitted on every lifecycle subject.
type PostEvent struct {
	PostID        uuid.UUID `json:"post_id"`
	UserID        uuid.UUID `json:"user_id"`
	Status        string    `json:"status"`
	PostedPostIDs []string  `json:"posted_post_ids,omitempty"`
	Error         string    `json:"error,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// emitEvent publishes a lifecycle event best-effort. Event loss is logged
// and never affects the primary operation.
func emitEvent(ctx context.Context, events EventPublisher, logger *slog.Logger, subject string, evt PostEvent) {
	if events == nil {
		return
	}
	evt.OccurredAt = time.Now().UTC()
	data, err := json.Marshal(evt)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to marshal lifecycle event", "error", err, "subject", subject)
		return
	}
	if err := events.Publish(ctx, subject, data); err != nil {
		logger.WarnContext(ctx, "Failed to publish lifecycle event", "error", err, "subject", subject, "post_id", evt.PostID)
	}
}
