package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueReports is the Redis list key for report export jobs.
	QueueReports = "worker:reports"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// StatusTTL is how long a job status stays readable after its last update.
	StatusTTL = 24 * time.Hour

	statusPrefix = "export:"
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeReport JobType = "report"
)

// ReportPayload is the payload for report export jobs.
type ReportPayload struct {
	Kind     string     `json:"kind"`
	TargetID uuid.UUID  `json:"target_id"`
	Format   string     `json:"format"`
	Query    string     `json:"query,omitempty"`
	RegionID *uuid.UUID `json:"region_id,omitempty"`
	Today    string     `json:"today"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Job states recorded in the status hash.
const (
	StateQueued  = "queued"
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
)

// Status is the progress of one job as seen by the API.
type Status struct {
	ID          string    `json:"id"`
	State       string    `json:"state"`
	Format      string    `json:"format"`
	Key         string    `json:"key,omitempty"`
	Name        string    `json:"name,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Error       string    `json:"error,omitempty"`
	Attempt     int       `json:"attempt"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client redis.UniversalClient, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueReport enqueues a report export job and records it as queued.
func (q *Queue) EnqueueReport(ctx context.Context, payload ReportPayload) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	job := &Job{
		ID:        uuid.New().String(),
		Type:      JobTypeReport,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	if err := q.SetStatus(ctx, Status{ID: job.ID, State: StateQueued, Format: payload.Format}); err != nil {
		return nil, err
	}
	if err := q.client.RPush(ctx, QueueReports, raw).Err(); err != nil {
		return nil, fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued report job", zap.String("job_id", job.ID), zap.String("kind", payload.Kind), zap.String("format", payload.Format))
	return job, nil
}

// Dequeue blocks until a job is available or ctx is done. Returns job and key (queue name).
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, 0, QueueReports).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ
// instead and marks the job failed with cause.
func (q *Queue) Retry(ctx context.Context, job *Job, cause error) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return q.UpdateStatus(ctx, job.ID, StateFailed, map[string]any{"error": errText(cause), "attempt": job.Attempt})
	}
	if err := q.client.RPush(ctx, QueueReports, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return q.UpdateStatus(ctx, job.ID, StateQueued, map[string]any{"error": errText(cause), "attempt": job.Attempt})
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func statusKey(id string) string { return statusPrefix + id }

// SetStatus writes the full status hash of a job.
func (q *Queue) SetStatus(ctx context.Context, s Status) error {
	s.UpdatedAt = time.Now().UTC()
	return q.writeStatus(ctx, s.ID, map[string]any{
		"id":           s.ID,
		"state":        s.State,
		"format":       s.Format,
		"key":          s.Key,
		"name":         s.Name,
		"content_type": s.ContentType,
		"error":        s.Error,
		"attempt":      s.Attempt,
		"updated_at":   s.UpdatedAt.Format(time.RFC3339Nano),
	})
}

// UpdateStatus changes the state of a job and merges fields into its status hash.
func (q *Queue) UpdateStatus(ctx context.Context, id, state string, fields map[string]any) error {
	values := map[string]any{"state": state, "updated_at": time.Now().UTC().Format(time.RFC3339Nano)}
	for k, v := range fields {
		values[k] = v
	}
	return q.writeStatus(ctx, id, values)
}

func (q *Queue) writeStatus(ctx context.Context, id string, values map[string]any) error {
	key := statusKey(id)
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, key, values)
	pipe.Expire(ctx, key, StatusTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return nil
}

// Status returns the status of a job, or nil when unknown or expired.
func (q *Queue) Status(ctx context.Context, id string) (*Status, error) {
	values, err := q.client.HGetAll(ctx, statusKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	s := &Status{
		ID:          values["id"],
		State:       values["state"],
		Format:      values["format"],
		Key:         values["key"],
		Name:        values["name"],
		ContentType: values["content_type"],
		Error:       values["error"],
	}
	s.Attempt, _ = strconv.Atoi(values["attempt"])
	s.UpdatedAt, _ = time.Parse(time.RFC3339Nano, values["updated_at"])
	return s, nil
}
