package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/audiobookai/internal/config"
)

// generateTimeout bounds a whole job: script, every chapter and retries.
const generateTimeout = 30 * time.Minute

func redisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt(cfg)),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueAudiobookGenerate schedules a generation job. The job ID doubles
// as the task ID, so a job is never queued twice.
func (c *Client) EnqueueAudiobookGenerate(ctx context.Context, payload AudiobookGeneratePayload) error {
	return c.enqueue(ctx, TypeAudiobookGenerate, payload,
		asynq.TaskID(payload.JobID),
		asynq.MaxRetry(2),
		asynq.Timeout(generateTimeout),
	)
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	if _, err := c.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
