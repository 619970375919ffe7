package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"github.com/presenca/backend/internal/analytics"
	"github.com/presenca/backend/internal/reports"
	"github.com/presenca/backend/pkg/apperr"
	"github.com/presenca/backend/pkg/queue"
	"github.com/presenca/backend/pkg/storage"
)

const retryTimeout = 5 * time.Second

// Exporter renders a report; satisfied by *reports.Service.
type Exporter interface {
	Export(ctx context.Context, req reports.Request, format string) (*reports.Document, error)
}

// Uploader stores a rendered report; satisfied by *storage.S3.
type Uploader interface {
	PutReport(ctx context.Context, key, name, contentType string, body []byte) error
}

// JobQueue is the part of *queue.Queue the processor uses.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job, cause error) error
	UpdateStatus(ctx context.Context, id, state string, fields map[string]any) error
}

// ExportProcessor processes report jobs: render, upload to S3, record the object key.
type ExportProcessor struct {
	exporter Exporter
	uploader Uploader
	queue    JobQueue
	backoff  time.Duration
	logger   *zap.Logger
}

// NewExportProcessor creates a report export processor.
func NewExportProcessor(exporter Exporter, uploader Uploader, q JobQueue, logger *zap.Logger) *ExportProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportProcessor{exporter: exporter, uploader: uploader, queue: q, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one report job. Jobs that can never succeed (unknown kind or format,
// missing event) are marked failed and return nil so they are not retried.
func (p *ExportProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeReport {
		return p.fail(ctx, job, fmt.Errorf("unknown job type: %s", job.Type))
	}
	var payload queue.ReportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return p.fail(ctx, job, fmt.Errorf("unmarshal payload: %w", err))
	}
	today, err := civil.ParseDate(payload.Today)
	if err != nil {
		return p.fail(ctx, job, fmt.Errorf("invalid today %q: %w", payload.Today, err))
	}

	if err := p.queue.UpdateStatus(ctx, job.ID, queue.StateRunning, nil); err != nil {
		p.logger.Warn("mark job running failed", zap.String("job_id", job.ID), zap.Error(err))
	}

	doc, err := p.exporter.Export(ctx, reports.Request{
		Kind:   payload.Kind,
		ID:     payload.TargetID,
		Filter: analytics.Filter{Query: payload.Query, RegionID: payload.RegionID},
		Today:  today,
	}, payload.Format)
	if err != nil {
		if apperr.IsAny(err, apperr.ErrValidation, apperr.ErrNotFound) {
			return p.fail(ctx, job, err)
		}
		return fmt.Errorf("export: %w", err)
	}

	key := storage.ReportKey(job.ID, doc.Extension)
	if err := p.uploader.PutReport(ctx, key, doc.Name, doc.ContentType, doc.Body); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	if err := p.queue.UpdateStatus(ctx, job.ID, queue.StateDone, map[string]any{
		"key":          key,
		"name":         doc.Name,
		"content_type": doc.ContentType,
		"error":        "",
	}); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	p.logger.Info("report export completed", zap.String("job_id", job.ID), zap.String("kind", payload.Kind), zap.String("s3_key", key))
	return nil
}

// fail marks a job that can never succeed. It always returns nil: a status write error must not
// turn the rejection into a retry.
func (p *ExportProcessor) fail(ctx context.Context, job *queue.Job, cause error) error {
	p.logger.Warn("report job rejected", zap.String("job_id", job.ID), zap.Error(cause))
	if err := p.queue.UpdateStatus(ctx, job.ID, queue.StateFailed, map[string]any{"error": cause.Error()}); err != nil {
		p.logger.Error("mark job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ExportProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("export worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			// Back off before requeueing so no worker picks the job up again right away.
			p.sleep(ctx)
			p.retry(ctx, job, err)
		}
	}
}

// retry requeues even when shutdown has begun, so a failed job is not lost.
func (p *ExportProcessor) retry(ctx context.Context, job *queue.Job, cause error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), retryTimeout)
	defer cancel()
	if err := p.queue.Retry(rctx, job, cause); err != nil {
		p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (p *ExportProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
