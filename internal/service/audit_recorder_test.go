package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/repository/memory"
	"github.com/noah-isme/learnhub-api/pkg/jobs"
)

type flakyWriter struct {
	mu       sync.Mutex
	failures int
	calls    int
	written  []models.ActivityLog
}

func (w *flakyWriter) Create(ctx context.Context, log *models.ActivityLog) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.failures > 0 {
		w.failures--
		return errors.New("store unavailable")
	}
	w.written = append(w.written, *log)
	return nil
}

func TestAuditRecorderThroughQueue(t *testing.T) {
	store := memory.NewStore()
	metrics := NewMetricsService()
	worker := NewAuditWorker(store.Activities(), metrics, nil)
	queue := jobs.NewQueue("audit", worker.Handle, jobs.QueueConfig{Workers: 2, BufferSize: 16, OnDrop: worker.Dropped})
	queue.Start(context.Background())

	recorder := NewAuditRecorder(queue, worker, nil)
	for i := 0; i < 10; i++ {
		recorder.Record(context.Background(), "t1", models.ActionCreateCourse, "Created course: Go", "127.0.0.1")
	}
	queue.Stop()

	entries, err := store.Activities().ListWithActors(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 10)
	assert.Equal(t, uint64(10), metrics.Snapshot().AuditWritten)
}

func TestAuditRecorderRetryDoesNotDuplicate(t *testing.T) {
	writer := &flakyWriter{failures: 2}
	worker := NewAuditWorker(writer, nil, nil)
	queue := jobs.NewQueue("audit", worker.Handle, jobs.QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond, OnDrop: worker.Dropped})
	queue.Start(context.Background())

	NewAuditRecorder(queue, worker, nil).Record(context.Background(), "s1", models.ActionEnrollCourse, "Enrolled in course: Go", "")
	queue.Stop()

	assert.Equal(t, 3, writer.calls)
	require.Len(t, writer.written, 1)
	assert.Equal(t, models.ActionEnrollCourse, writer.written[0].Action)
}

func TestAuditRecorderSwallowsFailures(t *testing.T) {
	writer := &flakyWriter{failures: 1}
	metrics := NewMetricsService()
	recorder := NewAuditRecorder(nil, NewAuditWorker(writer, metrics, nil), nil)

	assert.NotPanics(t, func() {
		recorder.Record(context.Background(), "s1", models.ActionEnrollCourse, "Enrolled in course: Go", "")
	})
	assert.Empty(t, writer.written)
	assert.Equal(t, uint64(1), metrics.Snapshot().AuditDropped)

	var nilRecorder *AuditRecorder
	assert.NotPanics(t, func() {
		nilRecorder.Record(context.Background(), "s1", models.ActionEnrollCourse, "", "")
	})
}

func TestAuditRecorderStampsAtRecordTime(t *testing.T) {
	writer := &flakyWriter{}
	recorder := NewAuditRecorder(nil, NewAuditWorker(writer, nil, nil), nil)
	fixed := time.Date(2025, 3, 14, 9, 5, 0, 0, time.UTC)
	recorder.now = func() time.Time { return fixed }

	recorder.Record(context.Background(), "s1", models.ActionEnrollCourse, "d", "10.0.0.1")
	require.Len(t, writer.written, 1)
	assert.Equal(t, fixed, writer.written[0].CreatedAt)
	assert.Equal(t, "10.0.0.1", writer.written[0].SourceAddress)
	assert.NotEmpty(t, writer.written[0].ID)
}

func TestAuditRecorderStoppedQueueDoesNotFailCaller(t *testing.T) {
	writer := &flakyWriter{}
	metrics := NewMetricsService()
	worker := NewAuditWorker(writer, metrics, nil)
	queue := jobs.NewQueue("audit", worker.Handle, jobs.QueueConfig{OnDrop: worker.Dropped})

	NewAuditRecorder(queue, worker, nil).Record(context.Background(), "s1", models.ActionEnrollCourse, "", "")
	assert.Empty(t, writer.written)
	assert.Equal(t, uint64(1), metrics.Snapshot().AuditDropped)
}
