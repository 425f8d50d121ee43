// Package notify turns adjustment domain events into queued notification
// tasks. Delivery itself (mail, webhooks) happens in the worker; this package
// only guarantees each transition is enqueued exactly once.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/stockgate/stockgate/internal/adjustment"
	"github.com/stockgate/stockgate/jobs"
)

// Enqueuer is the asynq client surface the emitter needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Emitter implements adjustment.EmitterPort on top of asynq. The task id is
// derived from (request id, event kind), so a transition enqueued twice is
// deduplicated by the queue.
type Emitter struct {
	client  Enqueuer
	logger  *slog.Logger
	printer *message.Printer
}

// NewEmitter constructs Emitter.
func NewEmitter(client Enqueuer, logger *slog.Logger) *Emitter {
	return &Emitter{
		client:  client,
		logger:  logger,
		printer: message.NewPrinter(language.English),
	}
}

// Emit enqueues one notification task for the event.
func (e *Emitter) Emit(ctx context.Context, evt adjustment.Event) error {
	task, err := jobs.NewAdjustmentEventTask(jobs.AdjustmentEventPayload{
		Kind:             string(evt.Kind),
		RequestID:        evt.RequestID.String(),
		AdjustmentNumber: evt.AdjustmentNumber,
		SKUID:            evt.SKUID,
		LocationID:       evt.LocationID,
		Type:             string(evt.Type),
		Quantity:         evt.Quantity,
		Amount:           evt.Amount,
		Status:           string(evt.Status),
		ActorID:          evt.ActorID,
		OccurredAt:       evt.OccurredAt,
		Message:          e.describe(evt),
	})
	if err != nil {
		return err
	}

	_, err = e.client.EnqueueContext(ctx, task,
		asynq.Queue(jobs.QueueDefault),
		asynq.TaskID(fmt.Sprintf("adjustment:%s:%s", evt.RequestID, evt.Kind)))
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			// Already emitted for this transition.
			return nil
		}
		e.logger.Error("enqueue adjustment event",
			slog.String("request_id", evt.RequestID.String()),
			slog.String("kind", string(evt.Kind)),
			slog.Any("error", err))
		return err
	}
	return nil
}

func (e *Emitter) describe(evt adjustment.Event) string {
	return e.printer.Sprintf("Adjustment %s (%s %s @ %s) %s: quantity %v, amount %v",
		evt.AdjustmentNumber, evt.Type, evt.SKUID, evt.LocationID, evt.Kind, evt.Quantity, evt.Amount)
}
