package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
	"github.com/jamsheerpanat/madrasatonaa-sub000/pkg/config"
	"github.com/jamsheerpanat/madrasatonaa-sub000/pkg/jobs"
)

// Notifier receives the resolved recipient set after a publish. Actual
// delivery (push/SMS/mail) is the collaborator's concern; this service's
// responsibility ends at "who should see this".
type Notifier interface {
	BroadcastPublished(ctx context.Context, broadcast *models.Broadcast, targets []FanOutTarget) error
}

// BroadcastNotification is the hand-off payload.
type BroadcastNotification struct {
	BroadcastID string               `json:"broadcast_id"`
	Kind        models.BroadcastKind `json:"kind"`
	TitleAr     string               `json:"title_ar"`
	TitleEn     string               `json:"title_en"`
	Targets     []FanOutTarget       `json:"targets"`
}

// Handoff delivers one notification payload to the external channel
// dispatcher.
type Handoff func(ctx context.Context, notification BroadcastNotification) error

// QueueNotifier decouples publishing from delivery hand-off via the
// in-memory job queue, retrying transient hand-off failures.
type QueueNotifier struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewQueueNotifier builds the notifier. A nil handoff logs the recipient
// set, which is the default wiring until a delivery collaborator is
// attached.
func NewQueueNotifier(cfg config.NotificationsConfig, handoff Handoff, logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if handoff == nil {
		handoff = func(ctx context.Context, n BroadcastNotification) error {
			logger.Info("broadcast recipients resolved",
				zap.String("broadcast_id", n.BroadcastID),
				zap.String("kind", string(n.Kind)),
				zap.Int("targets", len(n.Targets)))
			return nil
		}
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		notification, ok := job.Payload.(BroadcastNotification)
		if !ok {
			logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
			return nil
		}
		return handoff(ctx, notification)
	}
	queue := jobs.NewQueue("broadcast-notifications", handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return &QueueNotifier{queue: queue, logger: logger}
}

// Start launches the queue workers.
func (n *QueueNotifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the workers.
func (n *QueueNotifier) Stop() {
	n.queue.Stop()
}

// BroadcastPublished enqueues the hand-off. Failures do not fail the
// publish; delivery is at-least-once via queue retries.
func (n *QueueNotifier) BroadcastPublished(ctx context.Context, broadcast *models.Broadcast, targets []FanOutTarget) error {
	return n.queue.Enqueue(jobs.Job{
		ID:   broadcast.ID,
		Type: "broadcast_published",
		Payload: BroadcastNotification{
			BroadcastID: broadcast.ID,
			Kind:        broadcast.Kind,
			TitleAr:     broadcast.TitleAr,
			TitleEn:     broadcast.TitleEn,
			Targets:     targets,
		},
	})
}
