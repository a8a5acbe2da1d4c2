package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"alfredoptarigan/idoneidad-checker/internal/repositories"
)

type Worker interface {
	Start(ctx context.Context)
	Stop()
	EnqueueJob(evalID uuid.UUID) bool
}

type WorkerOptions struct {
	Concurrency  int
	QueueSize    int
	PollInterval time.Duration
}

type worker struct {
	evalRepo         repositories.EvaluationRepository
	evaluatorService EvaluatorService
	jobQueue         chan uuid.UUID
	concurrency      int
	pollInterval     time.Duration
	wg               sync.WaitGroup
	stopChan         chan struct{}
	stopOnce         sync.Once

	mu      sync.Mutex
	pending map[uuid.UUID]struct{}
}

func NewWorker(
	evalRepo repositories.EvaluationRepository,
	evaluatorService EvaluatorService,
	opts WorkerOptions,
) Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 100
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}

	return &worker{
		evalRepo:         evalRepo,
		evaluatorService: evaluatorService,
		jobQueue:         make(chan uuid.UUID, opts.QueueSize),
		concurrency:      opts.Concurrency,
		pollInterval:     opts.PollInterval,
		stopChan:         make(chan struct{}),
		pending:          make(map[uuid.UUID]struct{}),
	}
}

// Start implements Worker.
func (w *worker) Start(ctx context.Context) {
	log.WithField("concurrency", w.concurrency).Info("Starting worker")

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(ctx, i+1)
	}

	w.wg.Add(1)
	go w.pollPendingJobs(ctx)
}

// Stop implements Worker.
func (w *worker) Stop() {
	w.stopOnce.Do(func() {
		log.Info("Stopping worker")
		close(w.stopChan)
		w.wg.Wait()
		log.Info("Worker stopped")
	})
}

// EnqueueJob implements Worker. A job that is already queued or running is
// not queued twice. It returns false when the job was not queued.
func (w *worker) EnqueueJob(evalID uuid.UUID) bool {
	w.mu.Lock()
	if _, ok := w.pending[evalID]; ok {
		w.mu.Unlock()
		return false
	}
	w.pending[evalID] = struct{}{}
	w.mu.Unlock()

	select {
	case w.jobQueue <- evalID:
		log.WithField("evaluation_id", evalID).Debug("Job enqueued")
		return true
	case <-w.stopChan:
		w.done(evalID)
		log.WithField("evaluation_id", evalID).Warn("Worker stopped, cannot enqueue job")
		return false
	}
}

func (w *worker) done(evalID uuid.UUID) {
	w.mu.Lock()
	delete(w.pending, evalID)
	w.mu.Unlock()
}

func (w *worker) processJobs(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case evalID := <-w.jobQueue:
			logger := log.WithFields(log.Fields{"worker": workerID, "evaluation_id": evalID})
			logger.Info("Processing job")

			if err := w.evaluatorService.EvaluateCandidate(ctx, evalID); err != nil {
				logger.WithError(err).Error("Job failed")
			} else {
				logger.Info("Job completed")
			}
			w.done(evalID)
		}
	}
}

func (w *worker) pollPendingJobs(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			pendingJobs, err := w.evalRepo.FindPendingJobs(10)
			if err != nil {
				log.WithError(err).Warn("Failed to fetch pending jobs")
				continue
			}

			if len(pendingJobs) > 0 {
				log.WithField("count", len(pendingJobs)).Info("Found pending jobs")
			}

			for _, job := range pendingJobs {
				w.EnqueueJob(job.ID)
			}
		}
	}
}
