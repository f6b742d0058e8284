package workers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Tih000/max/internal/logger"
	"github.com/Tih000/max/internal/queue"
)

// Worker routes queued jobs to their processors and owns the ack/nack
// decision for each message.
type Worker struct {
	extractor *TaskExtractor
	answerer  *QuestionAnswerer
	logger    *zap.Logger
}

// NewWorker creates a new worker
func NewWorker(extractor *TaskExtractor, answerer *QuestionAnswerer, log *zap.Logger) *Worker {
	return &Worker{
		extractor: extractor,
		answerer:  answerer,
		logger:    log,
	}
}

// Run consumes jobs from the queue until ctx is cancelled
func (w *Worker) Run(ctx context.Context, jobQueue queue.JobQueue, prefetch int) error {
	messages, errs, err := jobQueue.Consume(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("worker_started", zap.Int("prefetch", prefetch))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker_stopped")
			return ctx.Err()
		case consumeErr, ok := <-errs:
			if ok && consumeErr != nil {
				return fmt.Errorf("queue consumer failed: %w", consumeErr)
			}
		case msg, ok := <-messages:
			if !ok {
				w.logger.Info("worker_queue_closed")
				return nil
			}
			w.handle(ctx, msg)
		}
	}
}

// handle processes one message. Failed jobs are requeued until their
// retry budget runs out, then dead-lettered.
func (w *Worker) handle(ctx context.Context, msg queue.MessageInterface) {
	job := msg.GetJob()

	var err error
	switch job.Type {
	case queue.JobTypeExtractTasks:
		err = w.extractor.ProcessExtractJob(ctx, job)
	case queue.JobTypeAnswerQuestion:
		err = w.answerer.ProcessAnswerJob(ctx, job)
	default:
		w.logger.Error("unknown_job_type",
			zap.String("job_id", job.ID.String()),
			zap.String("type", string(job.Type)),
		)
		w.nack(msg, false)
		return
	}

	if err == nil {
		if ackErr := msg.Ack(); ackErr != nil {
			w.logger.Error("job_ack_failed",
				zap.String("job_id", job.ID.String()),
				zap.String("error", logger.SanitizeError(ackErr)),
			)
		}
		return
	}

	if job.CanRetry() {
		job.IncrementRetry()
		w.logger.Warn("job_failed_will_retry",
			zap.String("job_id", job.ID.String()),
			zap.String("type", string(job.Type)),
			zap.Int("attempt", job.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.String("error", logger.SanitizeError(err)),
		)
		w.nack(msg, true)
		return
	}

	w.logger.Error("job_failed_dead_lettered",
		zap.String("job_id", job.ID.String()),
		zap.String("type", string(job.Type)),
		zap.String("error", logger.SanitizeError(err)),
	)
	w.nack(msg, false)
}

func (w *Worker) nack(msg queue.MessageInterface, requeue bool) {
	if err := msg.Nack(requeue); err != nil {
		w.logger.Error("job_nack_failed",
			zap.Bool("requeue", requeue),
			zap.String("error", logger.SanitizeError(err)),
		)
	}
}
