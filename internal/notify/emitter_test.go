package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/stockgate/stockgate/internal/adjustment"
	"github.com/stockgate/stockgate/jobs"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func sampleEvent() adjustment.Event {
	return adjustment.Event{
		Kind:             adjustment.EventApproved,
		RequestID:        uuid.New(),
		AdjustmentNumber: "ADJ20260115001",
		SKUID:            "SKU-1001",
		LocationID:       "WH-A",
		Type:             adjustment.TypeSurplus,
		Quantity:         10,
		Amount:           1500,
		Status:           adjustment.StatusApproved,
		ActorID:          "ap-001",
		OccurredAt:       time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestEmitterEnqueuesEvent(t *testing.T) {
	client := &fakeEnqueuer{}
	emitter := NewEmitter(client, slog.New(slog.NewTextHandler(io.Discard, nil)))

	evt := sampleEvent()
	require.NoError(t, emitter.Emit(context.Background(), evt))
	require.Len(t, client.tasks, 1)

	task := client.tasks[0]
	require.Equal(t, jobs.TaskTypeAdjustmentEvent, task.Type())

	var payload jobs.AdjustmentEventPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, "approved", payload.Kind)
	require.Equal(t, evt.RequestID.String(), payload.RequestID)
	require.Equal(t, "ADJ20260115001", payload.AdjustmentNumber)
	require.Equal(t, 1500.0, payload.Amount)
	require.Contains(t, payload.Message, "ADJ20260115001")
	require.Contains(t, payload.Message, "approved")
}

func TestEmitterSwallowsDuplicateTaskID(t *testing.T) {
	client := &fakeEnqueuer{err: asynq.ErrTaskIDConflict}
	emitter := NewEmitter(client, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// A second emission for the same transition is not an error.
	require.NoError(t, emitter.Emit(context.Background(), sampleEvent()))
}

func TestEmitterPropagatesQueueFailure(t *testing.T) {
	queueDown := errors.New("queue unavailable")
	client := &fakeEnqueuer{err: queueDown}
	emitter := NewEmitter(client, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.ErrorIs(t, emitter.Emit(context.Background(), sampleEvent()), queueDown)
}
