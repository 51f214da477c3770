package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskTypeDeliver = "notification:deliver"

type deliverPayload struct {
	RecipientID  uuid.UUID    `json:"recipient_id"`
	Notification Notification `json:"notification"`
}

// AsynqNotifier enqueues notification deliveries onto a Redis-backed task
// queue; a worker owned by the notification subsystem drains it.
type AsynqNotifier struct {
	client *asynq.Client
	queue  string
}

func NewAsynqNotifier(redisURL, queue string) (*AsynqNotifier, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	return &AsynqNotifier{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

var _ Notifier = (*AsynqNotifier)(nil)

func (a *AsynqNotifier) Notify(ctx context.Context, recipientID uuid.UUID, n Notification) error {
	payload, err := json.Marshal(deliverPayload{RecipientID: recipientID, Notification: n})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskTypeDeliver, payload)
	_, err = a.client.EnqueueContext(ctx, task, asynq.Queue(a.queue))
	return err
}

func (a *AsynqNotifier) Close() error {
	return a.client.Close()
}
