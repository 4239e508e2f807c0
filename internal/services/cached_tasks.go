package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"todo-tracker/internal/cache"
	"todo-tracker/internal/models"
	"todo-tracker/internal/worker"

	"github.com/charmbracelet/log"
	"github.com/gofrs/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	taskKeyPrefix     = "task:"
	listKeyPrefix     = "tasks_list:"
	listKeyPattern    = listKeyPrefix + "*"
	defaultTaskTTL    = 30 * time.Minute
	defaultListTTL    = 5 * time.Minute
	invalidateTimeout = 3 * time.Second
)

// JobEnqueuer is satisfied by *worker.JobQueue.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, jobType worker.JobType, payload map[string]interface{}) error
}

type CacheOptions struct {
	TaskTTL time.Duration
	ListTTL time.Duration
	Limits  ListLimits
	// Jobs receives a warm job after each mutation; nil disables warming.
	Jobs   JobEnqueuer
	Logger *log.Logger
}

// CachedTaskService serves reads from cache and drops affected entries on
// every successful write. Cache failures are logged and never surface to
// callers.
type CachedTaskService struct {
	next  TaskService
	cache cache.Cache
	group singleflight.Group
	// gen advances on every invalidation; reads that started under an older
	// generation do not fill the cache.
	gen     atomic.Uint64
	taskTTL time.Duration
	listTTL time.Duration
	limits  ListLimits
	jobs    JobEnqueuer
	logger  *log.Logger
}

var _ TaskService = (*CachedTaskService)(nil)

func NewCachedTaskService(next TaskService, c cache.Cache, opts CacheOptions) *CachedTaskService {
	if opts.TaskTTL <= 0 {
		opts.TaskTTL = defaultTaskTTL
	}
	if opts.ListTTL <= 0 {
		opts.ListTTL = defaultListTTL
	}
	if opts.Limits.Default <= 0 {
		opts.Limits.Default = DefaultLimit
	}
	if opts.Limits.Max <= 0 {
		opts.Limits.Max = MaxLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &CachedTaskService{
		next:    next,
		cache:   c,
		taskTTL: opts.TaskTTL,
		listTTL: opts.ListTTL,
		limits:  opts.Limits,
		jobs:    opts.Jobs,
		logger:  logger.WithPrefix("cache"),
	}
}

func taskKey(id string) string {
	return taskKeyPrefix + id
}

func listKey(p ListParams) string {
	return fmt.Sprintf("%s%d:%d:%s", listKeyPrefix, p.Page, p.Limit, p.Search)
}

// cacheID returns the canonical form of a task id so that every spelling
// of the same uuid shares one cache entry.
func cacheID(id string) string {
	u, err := uuid.FromString(strings.TrimSpace(id))
	if err != nil {
		return id
	}
	return u.String()
}

func (s *CachedTaskService) ListTasks(ctx context.Context, params ListParams) (models.ListTasksResponse, error) {
	params = params.Normalize(s.limits)
	key := listKey(params)

	var cached models.ListTasksResponse
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		if cached.Tasks == nil {
			cached.Tasks = []models.Task{}
		}
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("cache read failed", "key", key, "err", err)
	}

	gen := s.gen.Load()
	v, err, _ := s.group.Do(fmt.Sprintf("%s@%d", key, gen), func() (interface{}, error) {
		resp, err := s.next.ListTasks(ctx, params)
		if err != nil {
			return nil, err
		}
		s.fill(ctx, gen, key, resp, s.listTTL)
		return resp, nil
	})
	if err != nil {
		return models.ListTasksResponse{}, err
	}
	return v.(models.ListTasksResponse), nil
}

func (s *CachedTaskService) GetTask(ctx context.Context, id string) (models.Task, error) {
	key := taskKey(cacheID(id))

	var cached models.Task
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("cache read failed", "key", key, "err", err)
	}

	gen := s.gen.Load()
	task, err := s.next.GetTask(ctx, id)
	if err != nil {
		return task, err
	}
	s.fill(ctx, gen, taskKey(task.ID.String()), task, s.taskTTL)
	return task, nil
}

func (s *CachedTaskService) CreateTask(ctx context.Context, req models.CreateTaskRequest) (models.Task, error) {
	task, err := s.next.CreateTask(ctx, req)
	if err != nil {
		return task, err
	}
	s.invalidate(ctx, task.ID.String())
	s.store(ctx, taskKey(task.ID.String()), task, s.taskTTL)
	return task, nil
}

func (s *CachedTaskService) UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (models.Task, error) {
	task, err := s.next.UpdateTask(ctx, id, req)
	if err != nil {
		return task, err
	}
	s.invalidate(ctx, task.ID.String())
	return task, nil
}

func (s *CachedTaskService) DeleteTask(ctx context.Context, id string) error {
	if err := s.next.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, cacheID(id))
	return nil
}

// WarmList loads a list page into the cache. It is the handler behind
// worker.JobTypeWarmTaskList.
func (s *CachedTaskService) WarmList(ctx context.Context, params ListParams) error {
	params = params.Normalize(s.limits)
	gen := s.gen.Load()
	resp, err := s.next.ListTasks(ctx, params)
	if err != nil {
		return err
	}
	key := listKey(params)
	if s.gen.Load() != gen {
		return nil
	}
	if err := s.cache.Set(ctx, key, resp, s.listTTL); err != nil {
		return err
	}
	s.dropIfStale(ctx, gen, key)
	return nil
}

// HandleWarmJob adapts WarmList to the worker's handler signature.
func (s *CachedTaskService) HandleWarmJob(ctx context.Context, job *worker.Job) error {
	params := ListParams{Page: 1}
	if v, ok := job.Payload["limit"].(float64); ok {
		params.Limit = int(v)
	}
	if v, ok := job.Payload["search"].(string); ok {
		params.Search = v
	}
	return s.WarmList(ctx, params)
}

func (s *CachedTaskService) Stats() map[string]interface{} {
	return s.cache.Stats()
}

func (s *CachedTaskService) store(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("cache write failed", "key", key, "err", err)
	}
}

// fill stores a value read under generation gen. A write that lands while
// the value is being stored takes it back out.
func (s *CachedTaskService) fill(ctx context.Context, gen uint64, key string, value interface{}, ttl time.Duration) {
	if s.gen.Load() != gen {
		return
	}
	s.store(ctx, key, value, ttl)
	s.dropIfStale(ctx, gen, key)
}

func (s *CachedTaskService) dropIfStale(ctx context.Context, gen uint64, key string) {
	if s.gen.Load() == gen {
		return
	}
	if err := s.cache.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("cache invalidation failed", "key", key, "err", err)
	}
}

// invalidate runs on a detached context so a client disconnect right after
// a write cannot leave stale pages behind.
func (s *CachedTaskService) invalidate(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()

	s.gen.Add(1)
	if err := s.cache.Delete(ctx, taskKey(id)); err != nil {
		s.logger.Warn("cache invalidation failed", "key", taskKey(id), "err", err)
	}
	if err := s.cache.DeletePattern(ctx, listKeyPattern); err != nil {
		s.logger.Warn("cache invalidation failed", "pattern", listKeyPattern, "err", err)
	}

	if s.jobs == nil {
		return
	}
	payload := map[string]interface{}{"limit": s.limits.Default}
	if err := s.jobs.Enqueue(ctx, worker.JobTypeWarmTaskList, payload); err != nil {
		s.logger.Warn("failed to enqueue warm job", "err", err)
	}
}
