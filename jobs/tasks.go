package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockgate/stockgate/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAdjustmentEvent dispatches one adjustment lifecycle event to
	// notification subscribers.
	TaskTypeAdjustmentEvent = "adjustment:event"
	// TaskTypeIdempotencySweep removes expired idempotency keys.
	TaskTypeIdempotencySweep = "idempotency:sweep"
)

// AdjustmentEventPayload carries a serialized adjustment lifecycle event.
type AdjustmentEventPayload struct {
	Kind             string    `json:"kind"`
	RequestID        string    `json:"request_id"`
	AdjustmentNumber string    `json:"adjustment_number"`
	SKUID            string    `json:"sku_id"`
	LocationID       string    `json:"location_id"`
	Type             string    `json:"type"`
	Quantity         float64   `json:"quantity"`
	Amount           float64   `json:"amount"`
	Status           string    `json:"status"`
	ActorID          string    `json:"actor_id"`
	OccurredAt       time.Time `json:"occurred_at"`
	Message          string    `json:"message"`
}

// NewAdjustmentEventTask constructs an Asynq task for the event.
func NewAdjustmentEventTask(payload AdjustmentEventPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAdjustmentEvent, data), nil
}

// NewIdempotencySweepTask constructs the periodic cleanup task.
func NewIdempotencySweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeIdempotencySweep, nil)
}

// NotificationSink persists dispatched notifications for subscribers to pull.
type NotificationSink struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewNotificationSink constructs NotificationSink.
func NewNotificationSink(pool *pgxpool.Pool, logger *slog.Logger) *NotificationSink {
	return &NotificationSink{pool: pool, logger: logger}
}

// HandleAdjustmentEvent stores the event as a notification row. The insert is
// keyed on (request_id, kind) so a redelivered task cannot produce a second
// notification.
func (s *NotificationSink) HandleAdjustmentEvent(ctx context.Context, t *asynq.Task) error {
	var payload AdjustmentEventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO notifications (request_id, kind, adjustment_number, message, occurred_at, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (request_id, kind) DO NOTHING`,
		payload.RequestID, payload.Kind, payload.AdjustmentNumber, payload.Message, payload.OccurredAt)
	if err != nil {
		s.logger.Error("store notification", slog.Any("error", err))
		return err
	}
	s.logger.Info("adjustment event dispatched",
		slog.String("number", payload.AdjustmentNumber),
		slog.String("kind", payload.Kind))
	return nil
}

// IdempotencySweeper clears expired idempotency keys on a schedule.
type IdempotencySweeper struct {
	store     *shared.IdempotencyStore
	retention time.Duration
	logger    *slog.Logger
}

// NewIdempotencySweeper constructs IdempotencySweeper.
func NewIdempotencySweeper(store *shared.IdempotencyStore, retention time.Duration, logger *slog.Logger) *IdempotencySweeper {
	return &IdempotencySweeper{store: store, retention: retention, logger: logger}
}

// HandleSweep removes keys older than the retention window.
func (s *IdempotencySweeper) HandleSweep(ctx context.Context, _ *asynq.Task) error {
	if err := s.store.Cleanup(ctx, s.retention); err != nil {
		s.logger.Error("idempotency sweep", slog.Any("error", err))
		return err
	}
	return nil
}
