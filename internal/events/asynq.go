package events

import (
	"context"
	"errors"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/unimart-ng/backend-unimart/internal/store"
)

// TaskTypePrefix namespaces domain-event tasks on the queue.
const TaskTypePrefix = "event:"

// TaskType maps a topic to its asynq task type.
func TaskType(topic string) string {
	return TaskTypePrefix + topic
}

// TopicFromTaskType recovers the topic from a task type.
func TopicFromTaskType(taskType string) string {
	return strings.TrimPrefix(taskType, TaskTypePrefix)
}

// TaskNotifier hands emitted events to the background worker.
type TaskNotifier struct {
	Client *asynq.Client
	Queue  string
}

// Notify enqueues the event payload as an asynq task.
func (n TaskNotifier) Notify(_ context.Context, event store.DomainEvent) error {
	if n.Client == nil {
		return errors.New("events: task client not configured")
	}
	opts := []asynq.Option{asynq.MaxRetry(5)}
	if n.Queue != "" {
		opts = append(opts, asynq.Queue(n.Queue))
	}
	_, err := n.Client.Enqueue(asynq.NewTask(TaskType(event.Topic), event.Payload), opts...)
	return err
}
