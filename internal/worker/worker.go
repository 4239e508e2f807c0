package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

type JobType string

// JobTypeWarmTaskList re-populates a cached list page after mutations.
const JobTypeWarmTaskList JobType = "warm_task_list"

type Job struct {
	ID        string                 `json:"id"`
	Type      JobType                `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Attempts  int                    `json:"attempts"`
	MaxTries  int                    `json:"max_tries"`
	CreatedAt time.Time              `json:"created_at"`
	ProcessAt time.Time              `json:"process_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

type WorkerConfig struct {
	RedisClient  *redis.Client
	Concurrency  int
	PollInterval time.Duration
	Queue        string
	// RetryDelay is doubled for each failed attempt.
	RetryDelay time.Duration
	JobTimeout time.Duration
	Logger     *log.Logger
}

func (c WorkerConfig) deadQueue() string {
	return c.Queue + ":dead"
}

type Worker struct {
	client   *redis.Client
	config   WorkerConfig
	handlers map[JobType]JobHandler
	logger   *log.Logger
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	now      func() time.Time
}

func NewWorker(config WorkerConfig) *Worker {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.Queue == "" {
		config.Queue = "todo_jobs"
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 10 * time.Second
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 30 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		client:   config.RedisClient,
		config:   config,
		handlers: make(map[JobType]JobHandler),
		logger:   logger.WithPrefix("worker"),
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

func (w *Worker) Start() {
	w.logger.Info("starting worker", "goroutines", w.config.Concurrency, "queue", w.config.Queue)

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop()
	}
}

// Stop cancels in-flight jobs and waits for every goroutine to exit or ctx
// to expire.
func (w *Worker) Stop(ctx context.Context) error {
	w.logger.Info("stopping worker")
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) workerLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		if err := w.processNextJob(); err != nil {
			if w.ctx.Err() != nil {
				return
			}
			w.logger.Error("error processing job", "err", err)
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (w *Worker) processNextJob() error {
	result, err := w.client.BLPop(w.ctx, w.config.PollInterval, w.config.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to pop job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}

	if w.now().Before(job.ProcessAt) {
		// Not due yet; put it back and give other jobs a turn.
		if err := w.push(w.config.Queue, &job); err != nil {
			return err
		}
		select {
		case <-w.ctx.Done():
		case <-time.After(w.requeuePause(job.ProcessAt)):
		}
		return nil
	}

	return w.executeJob(&job)
}

func (w *Worker) requeuePause(processAt time.Time) time.Duration {
	wait := processAt.Sub(w.now())
	if wait > w.config.PollInterval {
		wait = w.config.PollInterval
	}
	if wait < 10*time.Millisecond {
		wait = 10 * time.Millisecond
	}
	return wait
}

func (w *Worker) executeJob(job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	if !exists {
		return w.moveToDeadQueue(job, fmt.Errorf("no handler registered for job type: %s", job.Type))
	}

	w.logger.Debug("processing job", "id", job.ID, "type", job.Type)

	ctx, cancel := context.WithTimeout(w.ctx, w.config.JobTimeout)
	defer cancel()

	err := handler(ctx, job)
	if err == nil {
		w.logger.Debug("job completed", "id", job.ID)
		return nil
	}

	job.Attempts++
	if job.Attempts < job.MaxTries {
		w.logger.Warn("job failed, retrying", "id", job.ID, "attempt", job.Attempts, "max", job.MaxTries, "err", err)
		return w.retryJob(job)
	}

	w.logger.Error("job failed permanently", "id", job.ID, "attempts", job.Attempts, "err", err)
	return w.moveToDeadQueue(job, err)
}

func (w *Worker) retryJob(job *Job) error {
	delay := w.config.RetryDelay * time.Duration(1<<(job.Attempts-1))
	job.ProcessAt = w.now().Add(delay)
	return w.push(w.config.Queue, job)
}

func (w *Worker) push(queue string, job *Job) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return w.client.RPush(w.ctx, queue, jobData).Err()
}

type DeadJob struct {
	Job      *Job      `json:"original_job"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

func (w *Worker) moveToDeadQueue(job *Job, jobErr error) error {
	data, err := json.Marshal(DeadJob{Job: job, Error: jobErr.Error(), FailedAt: w.now()})
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}
	return w.client.RPush(w.ctx, w.config.deadQueue(), data).Err()
}

// JobQueue is the producer side of the worker queue.
type JobQueue struct {
	client   *redis.Client
	queue    string
	maxTries int
}

func NewJobQueue(client *redis.Client, queue string, maxTries int) *JobQueue {
	if queue == "" {
		queue = "todo_jobs"
	}
	if maxTries <= 0 {
		maxTries = 3
	}
	return &JobQueue{client: client, queue: queue, maxTries: maxTries}
}

func (q *JobQueue) Enqueue(ctx context.Context, jobType JobType, payload map[string]interface{}) error {
	return q.EnqueueAt(ctx, jobType, payload, time.Now())
}

func (q *JobQueue) EnqueueAt(ctx context.Context, jobType JobType, payload map[string]interface{}, processAt time.Time) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("failed to generate job id: %w", err)
	}

	job := &Job{
		ID:        id.String(),
		Type:      jobType,
		Payload:   payload,
		MaxTries:  q.maxTries,
		CreatedAt: time.Now(),
		ProcessAt: processAt,
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return q.client.RPush(ctx, q.queue, jobData).Err()
}

func (q *JobQueue) Size(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queue).Result()
}

func (q *JobQueue) DeadSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queue+":dead").Result()
}
