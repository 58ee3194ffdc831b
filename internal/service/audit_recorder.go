package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/pkg/jobs"
)

// AuditJobType tags audit records on the job queue.
const AuditJobType = "audit.record"

type activityWriter interface {
	Create(ctx context.Context, log *models.ActivityLog) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// AuditWorker persists queued audit records.
type AuditWorker struct {
	repo    activityWriter
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuditWorker constructs the queue consumer.
func NewAuditWorker(repo activityWriter, metrics *MetricsService, logger *zap.Logger) *AuditWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditWorker{repo: repo, metrics: metrics, logger: logger}
}

// Handle writes one record. Returned errors are retried by the queue; the insert ignores a
// replayed id so a retry after an ambiguous failure cannot duplicate the record.
func (w *AuditWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, ok := job.Payload.(models.ActivityLog)
	if !ok {
		w.logger.Error("unexpected audit payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}
	if err := w.repo.Create(ctx, &record); err != nil {
		return err
	}
	w.metrics.RecordAudit(AuditResultWritten)
	return nil
}

// Dropped is the queue's drop hook.
func (w *AuditWorker) Dropped(job jobs.Job, err error) {
	w.metrics.RecordAudit(AuditResultDropped)
	fields := []zap.Field{zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err)}
	if record, ok := job.Payload.(models.ActivityLog); ok {
		fields = append(fields, zap.String("actor_id", record.ActorID), zap.String("action", string(record.Action)))
	}
	w.logger.Error("audit record dropped", fields...)
}

// AuditRecorder appends activity records without ever failing the caller.
type AuditRecorder struct {
	queue  jobDispatcher
	worker *AuditWorker
	logger *zap.Logger
	now    func() time.Time
}

// NewAuditRecorder builds a recorder. With a nil queue records are written inline and any
// failure is logged and discarded.
func NewAuditRecorder(queue jobDispatcher, worker *AuditWorker, logger *zap.Logger) *AuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditRecorder{queue: queue, worker: worker, logger: logger, now: time.Now}
}

// Record stamps and hands off one record. Call it once per completed action.
func (r *AuditRecorder) Record(ctx context.Context, actorID string, action models.ActivityAction, details, sourceAddress string) {
	if r == nil {
		return
	}
	record := models.ActivityLog{
		ID:            uuid.NewString(),
		ActorID:       actorID,
		Action:        action,
		Details:       details,
		SourceAddress: sourceAddress,
		CreatedAt:     r.now().UTC(),
	}
	job := jobs.Job{ID: record.ID, Type: AuditJobType, Payload: record}

	if r.queue != nil {
		if err := r.queue.Enqueue(job); err != nil {
			r.logger.Warn("audit enqueue failed", zap.String("action", string(action)), zap.Error(err))
		}
		return
	}
	if r.worker == nil {
		return
	}
	if err := r.worker.Handle(context.WithoutCancel(ctx), job); err != nil {
		r.worker.Dropped(job, err)
	}
}
