package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cmotel "github.com/Strob0t/CareMesh/internal/adapter/otel"
	"github.com/Strob0t/CareMesh/internal/domain"
	"github.com/Strob0t/CareMesh/internal/domain/a2a"
	"github.com/Strob0t/CareMesh/internal/port/skill"
	"github.com/Strob0t/CareMesh/internal/taskstore"
)

// TaskService implements the task protocol operations for one agent process.
// Every role runs its own instance wrapping its own store and skill invoker.
type TaskService struct {
	store   *taskstore.Store
	invoker skill.Invoker
	metrics *cmotel.Metrics
	agent   string
	now     func() time.Time
}

// TaskOption configures a TaskService.
type TaskOption func(*TaskService)

// WithTaskClock overrides the time source used for status timestamps.
func WithTaskClock(now func() time.Time) TaskOption {
	return func(s *TaskService) { s.now = now }
}

// WithTaskAgent sets the agent name attached to task spans.
func WithTaskAgent(name string) TaskOption {
	return func(s *TaskService) { s.agent = name }
}

// WithTaskMetrics attaches task throughput instruments.
func WithTaskMetrics(m *cmotel.Metrics) TaskOption {
	return func(s *TaskService) { s.metrics = m }
}

// NewTaskService creates a new TaskService.
func NewTaskService(store *taskstore.Store, invoker skill.Invoker, opts ...TaskOption) *TaskService {
	s := &TaskService{store: store, invoker: invoker, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StreamItem is one frame of a streaming response: a status-update event, or
// the terminal error when the skill invocation failed. When Err is set no
// further frames follow and no task was stored.
type StreamItem struct {
	Event a2a.TaskStatusUpdateEvent
	Err   error
}

// Send handles message/send: allocate task identity, run the skill
// synchronously, and store the finished task in one step. On skill failure
// nothing is stored and the caller gets an invocation error, never a
// partially built task.
func (s *TaskService) Send(ctx context.Context, msg a2a.Message) (a2a.Task, error) {
	taskID, contextID := taskstore.NewIDs()
	msg.TaskID = taskID
	msg.ContextID = contextID

	ctx, span := cmotel.StartTaskSpan(ctx, taskID, s.agent)
	defer span.End()
	start := s.now()
	if s.metrics != nil {
		s.metrics.TasksStarted.Add(ctx, 1)
	}

	reply, err := s.invoker.Invoke(ctx, msg)
	s.observe(ctx, start, err)
	if err != nil {
		return a2a.Task{}, fmt.Errorf("invoke skill: %w", err)
	}
	reply.TaskID = taskID
	reply.ContextID = contextID

	t := a2a.Task{
		ID:        taskID,
		ContextID: contextID,
		Status: a2a.TaskStatus{
			State:     a2a.StateCompleted,
			Message:   &reply,
			Timestamp: s.now(),
		},
		History: []a2a.Message{msg, reply},
	}
	s.store.Put(t)

	slog.Debug("task completed", "task_id", taskID)
	return t, nil
}

// SendStream handles message/send_stream. The returned channel yields a
// running event, then either the completed event or a terminal error, and is
// then closed. The channel buffer holds every frame the stream can produce,
// so the worker goroutine finishes even when the reader is gone.
func (s *TaskService) SendStream(ctx context.Context, msg a2a.Message) <-chan StreamItem {
	taskID, contextID := taskstore.NewIDs()
	msg.TaskID = taskID
	msg.ContextID = contextID

	ch := make(chan StreamItem, 2)
	go func() {
		defer close(ch)

		ctx, span := cmotel.StartTaskSpan(ctx, taskID, s.agent)
		defer span.End()
		start := s.now()
		if s.metrics != nil {
			s.metrics.TasksStarted.Add(ctx, 1)
		}

		ch <- StreamItem{Event: a2a.TaskStatusUpdateEvent{
			TaskID:    taskID,
			ContextID: contextID,
			Status:    a2a.TaskStatus{State: a2a.StateRunning, Timestamp: s.now()},
		}}

		reply, err := s.invoker.Invoke(ctx, msg)
		s.observe(ctx, start, err)
		if err != nil {
			slog.Error("streaming skill invocation failed", "task_id", taskID, "error", err)
			ch <- StreamItem{Err: fmt.Errorf("invoke skill: %w", err)}
			return
		}
		reply.TaskID = taskID
		reply.ContextID = contextID

		status := a2a.TaskStatus{
			State:     a2a.StateCompleted,
			Message:   &reply,
			Timestamp: s.now(),
		}
		s.store.Put(a2a.Task{
			ID:        taskID,
			ContextID: contextID,
			Status:    status,
			History:   []a2a.Message{msg, reply},
		})

		ch <- StreamItem{Event: a2a.TaskStatusUpdateEvent{
			TaskID:    taskID,
			ContextID: contextID,
			Status:    status,
			Final:     true,
		}}
	}()
	return ch
}

// Get handles task/get.
func (s *TaskService) Get(ctx context.Context, id string) (a2a.Task, error) {
	t, ok := s.store.Get(id)
	if !ok {
		return a2a.Task{}, fmt.Errorf("task %q: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

// Cancel handles task/cancel. Cancellation is advisory: the stored status is
// overwritten to canceled, but a skill invocation already in flight keeps
// running and its completion may still land in history. Canceling an already
// canceled task writes the same status again and succeeds.
func (s *TaskService) Cancel(ctx context.Context, id string) (a2a.Task, error) {
	t, ok := s.store.SetStatus(id, a2a.TaskStatus{
		State:     a2a.StateCanceled,
		Timestamp: s.now(),
	})
	if !ok {
		return a2a.Task{}, fmt.Errorf("task %q: %w", id, domain.ErrNotFound)
	}
	if s.metrics != nil {
		s.metrics.TasksCanceled.Add(ctx, 1)
	}
	slog.Info("task canceled", "task_id", id)
	return t, nil
}

// observe records task throughput once the skill invocation settles.
func (s *TaskService) observe(ctx context.Context, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	if err != nil {
		s.metrics.TasksFailed.Add(ctx, 1)
		return
	}
	s.metrics.TasksCompleted.Add(ctx, 1)
	s.metrics.TaskDuration.Record(ctx, s.now().Sub(start).Seconds())
}

// Resubscribe handles task/resubscribe. Tasks only exist in terminal states
// here, so the caller gets exactly one event carrying the current status,
// marked final.
func (s *TaskService) Resubscribe(ctx context.Context, id string) (<-chan StreamItem, error) {
	t, ok := s.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("task %q: %w", id, domain.ErrNotFound)
	}
	ch := make(chan StreamItem, 1)
	ch <- StreamItem{Event: a2a.TaskStatusUpdateEvent{
		TaskID:    t.ID,
		ContextID: t.ContextID,
		Status:    t.Status,
		Final:     true,
	}}
	close(ch)
	return ch, nil
}

// Push notification configs are accepted but never acted on; replies travel
// in-band only. The four operations keep the protocol surface complete for
// clients that probe them.

// SetPushConfig echoes the submitted config without storing it.
func (s *TaskService) SetPushConfig(ctx context.Context, cfg a2a.TaskPushConfig) (a2a.TaskPushConfig, error) {
	return cfg, nil
}

// GetPushConfig reports an empty config for any task.
func (s *TaskService) GetPushConfig(ctx context.Context, taskID string) (a2a.TaskPushConfig, error) {
	return a2a.TaskPushConfig{TaskID: taskID}, nil
}

// ListPushConfigs reports no stored configs.
func (s *TaskService) ListPushConfigs(ctx context.Context, taskID string) ([]a2a.TaskPushConfig, error) {
	return nil, nil
}

// DeletePushConfig succeeds without effect.
func (s *TaskService) DeletePushConfig(ctx context.Context, taskID string) error {
	return nil
}
