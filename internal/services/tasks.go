package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"todo-tracker/internal/models"
	"todo-tracker/internal/repositories"

	"github.com/gofrs/uuid"
)

const (
	DefaultPage  = 1
	DefaultLimit = 6
	MaxLimit     = 100
)

// ListParams are the raw list inputs. Zero or negative values fall back to
// the defaults.
type ListParams struct {
	Page   int
	Limit  int
	Search string
}

type TaskService interface {
	ListTasks(ctx context.Context, params ListParams) (models.ListTasksResponse, error)
	GetTask(ctx context.Context, id string) (models.Task, error)
	CreateTask(ctx context.Context, req models.CreateTaskRequest) (models.Task, error)
	UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (models.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

type ListLimits struct {
	Default int
	Max     int
}

type taskService struct {
	store  repositories.TaskStore
	limits ListLimits
	now    func() time.Time
}

func NewTaskService(store repositories.TaskStore, limits ListLimits) TaskService {
	return newTaskService(store, limits, time.Now)
}

// NewTaskServiceWithClock is NewTaskService with a replaceable time source.
func NewTaskServiceWithClock(store repositories.TaskStore, limits ListLimits, now func() time.Time) TaskService {
	return newTaskService(store, limits, now)
}

func newTaskService(store repositories.TaskStore, limits ListLimits, now func() time.Time) *taskService {
	if limits.Default <= 0 {
		limits.Default = DefaultLimit
	}
	if limits.Max <= 0 {
		limits.Max = MaxLimit
	}
	if limits.Default > limits.Max {
		limits.Default = limits.Max
	}
	return &taskService{store: store, limits: limits, now: now}
}

// Normalize applies defaults and the limit ceiling. Search is matched as
// given, surrounding whitespace included.
func (p ListParams) Normalize(limits ListLimits) ListParams {
	if p.Page <= 0 {
		p.Page = DefaultPage
	}
	if p.Limit <= 0 {
		p.Limit = limits.Default
	}
	if limits.Max > 0 && p.Limit > limits.Max {
		p.Limit = limits.Max
	}
	return p
}

func (s *taskService) ListTasks(ctx context.Context, params ListParams) (models.ListTasksResponse, error) {
	params = params.Normalize(s.limits)

	tasks, total, err := s.store.List(ctx, repositories.ListQuery{
		Page:   params.Page,
		Limit:  params.Limit,
		Search: params.Search,
	})
	if err != nil {
		return models.ListTasksResponse{}, err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}

	return models.ListTasksResponse{Tasks: tasks, Total: total}, nil
}

func (s *taskService) GetTask(ctx context.Context, id string) (models.Task, error) {
	taskID, err := parseID(id)
	if err != nil {
		return models.Task{}, err
	}

	task, err := s.store.FindByID(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}
	return *task, nil
}

func (s *taskService) CreateTask(ctx context.Context, req models.CreateTaskRequest) (models.Task, error) {
	status := req.Status
	if status == "" {
		status = models.StatusPending
	}

	task := models.Task{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Status:      status,
	}
	if err := validateTask(&task); err != nil {
		return models.Task{}, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to generate task id: %w", err)
	}
	task.ID = id

	now := s.timestamp()
	task.CreatedAt = now
	task.UpdatedAt = now

	if err := s.store.Create(ctx, &task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (s *taskService) UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (models.Task, error) {
	taskID, err := parseID(id)
	if err != nil {
		return models.Task{}, err
	}

	existing, err := s.store.FindByID(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}

	task := *existing
	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil && *req.Status != "" {
		task.Status = *req.Status
	}
	task.Title = strings.TrimSpace(task.Title)
	task.Description = strings.TrimSpace(task.Description)

	if err := validateTask(&task); err != nil {
		return models.Task{}, err
	}

	task.UpdatedAt = s.timestamp()
	if !task.UpdatedAt.After(existing.UpdatedAt) {
		task.UpdatedAt = existing.UpdatedAt.Add(time.Millisecond)
	}

	if err := s.store.Update(ctx, &task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (s *taskService) DeleteTask(ctx context.Context, id string) error {
	taskID, err := parseID(id)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, taskID)
}

// timestamp is truncated to milliseconds, the coarsest precision of the
// supported stores, so values read back compare equal to values written.
func (s *taskService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func validateTask(task *models.Task) error {
	if task.Title == "" {
		return &ValidationError{Field: "title", Message: "Title is required"}
	}
	if !task.Status.Valid() {
		return &ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("Invalid status %q: must be one of %s", task.Status, statusList()),
		}
	}
	return nil
}

func statusList() string {
	names := make([]string, len(models.Statuses))
	for i, s := range models.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func parseID(id string) (uuid.UUID, error) {
	taskID, err := uuid.FromString(strings.TrimSpace(id))
	if err != nil || taskID == uuid.Nil {
		return uuid.Nil, ErrTaskNotFound
	}
	return taskID, nil
}
