// Package service hosts collaborators that sit between handlers and the
// outside world: the best-effort notification emitter and the RabbitMQ
// publisher.
package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/queue"
	"github.com/iliyamo/room-reservation/internal/repository"
	"github.com/iliyamo/room-reservation/internal/service/queuepub"
)

// Notifier emits notifications for booking, approval and incident events.
// Emission is strictly best-effort: a persisted notification row plus a
// broker publish, with every failure logged and swallowed.  A notification
// problem must never fail or roll back the operation that triggered it, so
// no method here returns an error.
type Notifier struct {
	Notifications *repository.NotificationRepo
}

// NewNotifier constructs a Notifier.  The repository must be non-nil.
func NewNotifier(repo *repository.NotificationRepo) *Notifier {
	if repo == nil {
		panic("nil repository passed to NewNotifier")
	}
	return &Notifier{Notifications: repo}
}

// TryEmit persists a notification for one recipient and publishes the
// matching event to the broker.  data is marshalled into the structured
// payload column; pass nil when there is nothing structured to attach.
func (n *Notifier) TryEmit(ctx context.Context, recipientID uint64, eventType, title, message string, data map[string]any) {
	record := &model.Notification{
		UserID:  recipientID,
		Type:    eventType,
		Title:   title,
		Message: message,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			log.Printf("notifier: marshal payload failed: %v", err)
		} else {
			s := string(raw)
			record.Data = &s
		}
	}
	if err := n.Notifications.Create(ctx, record); err != nil {
		log.Printf("notifier: persist notification failed (recipient=%d type=%s): %v", recipientID, eventType, err)
		return
	}
	ev := queue.NotificationEvent{
		NotificationID: record.ID,
		RecipientID:    recipientID,
		Type:           eventType,
		Title:          title,
		Message:        message,
		EmittedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	if record.Data != nil {
		ev.Data = *record.Data
	}
	// The publisher already logs its own failures; ignore the error so the
	// primary transaction's result is unaffected.
	_ = queuepub.PublishNotification(context.WithoutCancel(ctx), ev)
}

// TryEmitAll fans one event out to multiple recipients, typically the
// administrator set for "reservation created" events.
func (n *Notifier) TryEmitAll(ctx context.Context, recipientIDs []uint64, eventType, title, message string, data map[string]any) {
	for _, id := range recipientIDs {
		n.TryEmit(ctx, id, eventType, title, message, data)
	}
}
