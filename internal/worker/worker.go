// Package worker runs background jobs from Redis lists. Jobs due in the
// future wait in a sorted set scored by their due time and are moved onto
// their list when due.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type JobType string

const (
	JobTypeTaskReminder JobType = "task_reminder"
)

const (
	DefaultQueue   = "default"
	ReminderQueue  = "reminders"
	ScheduledSet   = "scheduled_jobs"
	DeadQueue      = "dead_queue"
	defaultRetries = 3
)

type Job struct {
	ID        string                 `json:"id"`
	Type      JobType                `json:"type"`
	Queue     string                 `json:"queue"`
	Payload   map[string]interface{} `json:"payload"`
	Attempts  int                    `json:"attempts"`
	MaxTries  int                    `json:"max_tries"`
	CreatedAt time.Time              `json:"created_at"`
	ProcessAt time.Time              `json:"process_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

type Worker struct {
	client       *redis.Client
	handlers     map[JobType]JobHandler
	queues       []string
	concurrency  int
	pollInterval time.Duration
	retryBase    time.Duration
	logger       zerolog.Logger
	now          func() time.Time

	mu     sync.RWMutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type WorkerConfig struct {
	RedisClient  *redis.Client
	Concurrency  int
	PollInterval time.Duration
	Queues       []string
	RetryBase    time.Duration
	Logger       zerolog.Logger
}

func NewWorker(config WorkerConfig) *Worker {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.RetryBase <= 0 {
		config.RetryBase = time.Minute
	}
	if len(config.Queues) == 0 {
		config.Queues = []string{DefaultQueue}
	}

	return &Worker{
		client:       config.RedisClient,
		handlers:     make(map[JobType]JobHandler),
		queues:       config.Queues,
		concurrency:  config.Concurrency,
		pollInterval: config.PollInterval,
		retryBase:    config.RetryBase,
		logger:       config.Logger.With().Str("component", "worker").Logger(),
		now:          time.Now,
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

// Start launches the consumers and the scheduler. It returns immediately;
// call Stop to drain.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.logger.Info().Int("concurrency", w.concurrency).Strs("queues", w.queues).Msg("starting worker")

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx)
	}

	w.wg.Add(1)
	go w.schedulerLoop(ctx)
}

func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.logger.Info().Msg("stopping worker")
	w.cancel()
	w.wg.Wait()
	w.logger.Info().Msg("worker stopped")
}

func (w *Worker) workerLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.processNextJob(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error().Err(err).Msg("error processing job")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (w *Worker) schedulerLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.promoteDue(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error().Err(err).Msg("failed to promote scheduled jobs")
			}
		}
	}
}

// promoteDue moves every scheduled job whose time has come onto its queue.
// ZREM decides which instance wins a job, so each job is pushed once.
func (w *Worker) promoteDue(ctx context.Context) (int, error) {
	upper := strconv.FormatInt(w.now().UnixMilli(), 10)
	members, err := w.client.ZRangeByScore(ctx, ScheduledSet, &redis.ZRangeBy{Min: "-inf", Max: upper}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read scheduled jobs: %w", err)
	}

	promoted := 0
	for _, member := range members {
		removed, err := w.client.ZRem(ctx, ScheduledSet, member).Result()
		if err != nil {
			return promoted, fmt.Errorf("failed to claim scheduled job: %w", err)
		}
		if removed == 0 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			w.logger.Error().Err(err).Msg("dropping malformed scheduled job")
			continue
		}
		queue := job.Queue
		if queue == "" {
			queue = DefaultQueue
		}
		if err := w.client.RPush(ctx, queue, member).Err(); err != nil {
			return promoted, fmt.Errorf("failed to enqueue scheduled job: %w", err)
		}
		promoted++
	}
	return promoted, nil
}

func (w *Worker) processNextJob(ctx context.Context) error {
	result, err := w.client.BLPop(ctx, w.pollInterval, w.queues...).Result()
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
	if job.Queue == "" {
		job.Queue = result[0]
	}

	return w.executeJob(ctx, &job)
}

func (w *Worker) executeJob(ctx context.Context, job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	log := w.logger.With().Str("job_id", job.ID).Str("job_type", string(job.Type)).Logger()

	if !exists {
		log.Error().Msg("no handler registered")
		return w.moveToDeadQueue(ctx, job, fmt.Errorf("no handler registered for job type: %s", job.Type))
	}

	jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := handler(jobCtx, job); err != nil {
		job.Attempts++
		if job.Attempts < job.MaxTries {
			log.Warn().Err(err).Int("attempt", job.Attempts).Int("max_tries", job.MaxTries).Msg("job failed, retrying")
			return w.retryJob(ctx, job)
		}

		log.Error().Err(err).Int("attempts", job.Attempts).Msg("job failed permanently")
		return w.moveToDeadQueue(ctx, job, err)
	}

	log.Debug().Msg("job completed")
	return nil
}

func (w *Worker) retryJob(ctx context.Context, job *Job) error {
	delay := time.Duration(1<<job.Attempts) * w.retryBase
	job.ProcessAt = w.now().Add(delay)
	return schedule(ctx, w.client, job)
}

func (w *Worker) moveToDeadQueue(ctx context.Context, job *Job, jobErr error) error {
	deadJob := map[string]interface{}{
		"original_job": job,
		"error":        jobErr.Error(),
		"failed_at":    w.now().UTC(),
	}

	data, err := json.Marshal(deadJob)
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}

	return w.client.RPush(ctx, DeadQueue, data).Err()
}

func schedule(ctx context.Context, client *redis.Client, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return client.ZAdd(ctx, ScheduledSet, redis.Z{
		Score:  float64(job.ProcessAt.UnixMilli()),
		Member: data,
	}).Err()
}

// JobQueue is the producer side.
type JobQueue struct {
	client   *redis.Client
	maxTries int
	now      func() time.Time
}

func NewJobQueue(client *redis.Client) *JobQueue {
	return &JobQueue{client: client, maxTries: defaultRetries, now: time.Now}
}

// WithMaxTries sets how many attempts new jobs get before the dead queue.
func (q *JobQueue) WithMaxTries(n int) *JobQueue {
	if n > 0 {
		q.maxTries = n
	}
	return q
}

func (q *JobQueue) Enqueue(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}) error {
	return q.EnqueueAt(ctx, queue, jobType, payload, q.now())
}

// EnqueueAt pushes the job straight onto queue when processAt has passed and
// schedules it otherwise.
func (q *JobQueue) EnqueueAt(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}, processAt time.Time) error {
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}

	now := q.now()
	job := &Job{
		ID:        id.String(),
		Type:      jobType,
		Queue:     queue,
		Payload:   payload,
		MaxTries:  q.maxTries,
		CreatedAt: now.UTC(),
		ProcessAt: processAt.UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if processAt.After(now) {
		return schedule(ctx, q.client, job)
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.client.RPush(ctx, queue, data).Err()
}

func (q *JobQueue) GetQueueSize(ctx context.Context, queue string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return q.client.LLen(ctx, queue).Result()
}

func (q *JobQueue) ScheduledCount(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, ScheduledSet).Result()
}
