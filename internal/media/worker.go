// internal/media/worker.go
package media

import (
	"context"
	"errors"
	"log"
	"time"

	"social-service/pkg/models"

	"gorm.io/gorm"
)

// objectChecker is the one storage capability the worker needs, kept narrow
// so tests can stub it.
type objectChecker interface {
	Head(ctx context.Context, key string) error
}

// Worker drives ProcessingJobs: it claims the oldest pending job on each
// tick, verifies the stored object and flips the attachment to ready.
// Failures retry up to the job's MaxAttempts, then the attachment is marked
// failed.
type Worker struct {
	db       *gorm.DB
	store    objectChecker
	interval time.Duration
	done     chan struct{}
}

func NewWorker(db *gorm.DB, store objectChecker, interval time.Duration) *Worker {
	return &Worker{
		db:       db,
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs the processing loop until ctx is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	log.Printf("🚀 [WORKER] Media processing worker started (interval: %v)", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("🛑 [WORKER] Stopped (context cancelled)")
			return
		case <-w.done:
			log.Println("🛑 [WORKER] Stopped")
			return
		case <-ticker.C:
			for w.ProcessNext(ctx) {
				// drain the backlog before sleeping again
			}
		}
	}
}

// Stop terminates the loop. Safe to call once.
func (w *Worker) Stop() {
	close(w.done)
}

// ProcessNext claims and runs one pending job. It reports whether a job was
// found, so callers can drain the queue.
func (w *Worker) ProcessNext(ctx context.Context) bool {
	job, err := w.claim(ctx)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("❌ [WORKER] Claim failed: %v", err)
		}
		return false
	}

	if err := w.run(ctx, job); err != nil {
		w.fail(ctx, job, err)
		return true
	}

	if err := job.Transition(models.JobStateCompleted); err != nil {
		log.Printf("❌ [WORKER] Job %s: %v", job.ID, err)
		return true
	}
	if err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(job).Error; err != nil {
			return err
		}
		return tx.Model(&models.MediaAttachment{}).
			Where("id = ?", job.AttachmentID).
			Update("status", models.MediaStatusReady).Error
	}); err != nil {
		log.Printf("❌ [WORKER] Completing job %s failed: %v", job.ID, err)
		return true
	}
	log.Printf("✅ [WORKER] Job %s completed (attempt %d)", job.ID, job.Attempts)
	return true
}

// claim moves the oldest pending job through queued into processing.
func (w *Worker) claim(ctx context.Context) (*models.ProcessingJob, error) {
	var job models.ProcessingJob
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("state = ?", models.JobStatePending).
			Order("created_at ASC").
			First(&job).Error; err != nil {
			return err
		}
		if err := job.Transition(models.JobStateQueued); err != nil {
			return err
		}
		if err := job.Transition(models.JobStateProcessing); err != nil {
			return err
		}
		return tx.Save(&job).Error
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// run performs the actual processing: confirm the object landed in storage.
func (w *Worker) run(ctx context.Context, job *models.ProcessingJob) error {
	var attachment models.MediaAttachment
	if err := w.db.WithContext(ctx).First(&attachment, "id = ?", job.AttachmentID).Error; err != nil {
		return err
	}
	return w.store.Head(ctx, attachment.StorageKey)
}

// fail records the error. Below MaxAttempts the job re-queues as pending;
// at the limit it fails for good and the attachment goes with it.
func (w *Worker) fail(ctx context.Context, job *models.ProcessingJob, cause error) {
	msg := cause.Error()
	job.LastError = &msg

	target := models.JobStatePending
	if job.Attempts >= job.MaxAttempts {
		target = models.JobStateFailed
	}
	if err := job.Transition(target); err != nil {
		log.Printf("❌ [WORKER] Job %s: %v", job.ID, err)
		return
	}

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(job).Error; err != nil {
			return err
		}
		if target == models.JobStateFailed {
			return tx.Model(&models.MediaAttachment{}).
				Where("id = ?", job.AttachmentID).
				Update("status", models.MediaStatusFailed).Error
		}
		return nil
	})
	if err != nil {
		log.Printf("❌ [WORKER] Recording failure for job %s failed: %v", job.ID, err)
		return
	}
	log.Printf("⚠️ [WORKER] Job %s attempt %d/%d failed: %v (state → %s)",
		job.ID, job.Attempts, job.MaxAttempts, cause, target)
}
