package client

import (
	"context"
	"errors"
	"strings"
	"sync"

	"todo-tracker/internal/logging"
	"todo-tracker/internal/models"

	"github.com/charmbracelet/log"
)

const DefaultPageSize = 6

const (
	MsgFetchFailed  = "Failed to fetch todos"
	MsgCreated      = "New task created!"
	MsgUpdated      = "Task updated!"
	MsgDeleted      = "Task deleted!"
	MsgSubmitFailed = "Something went wrong"
	MsgDeleteFailed = "Error deleting task"
)

var (
	ErrNotConfirmed  = errors.New("delete was not confirmed")
	ErrNoEditTarget  = errors.New("no task is being edited")
	ErrTaskNotLoaded = errors.New("task is not on the current page")
)

type NotificationKind int

const (
	NotifySuccess NotificationKind = iota
	NotifyError
)

type Notification struct {
	Kind    NotificationKind
	Message string
	Err     error
}

type Notifier interface {
	Notify(Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Confirmer gates deletes; returning false cancels without calling the API.
type Confirmer func(task models.Task) bool

// Stats counts statuses on the loaded page only, not across the collection.
type Stats struct {
	Pending    int
	InProgress int
	Completed  int
}

// TaskForm carries the editable fields for both create and edit.
type TaskForm struct {
	Title       string
	Description string
	Status      models.TaskStatus
}

type Options struct {
	PageSize int
	Notifier Notifier
	Logger   *log.Logger
}

// Controller holds the client's copy of the current page. Mutations patch the
// local list from server responses instead of refetching. All methods are
// safe for concurrent use; network calls run without holding the lock.
type Controller struct {
	api      TaskAPI
	notifier Notifier
	logger   *log.Logger

	mu           sync.Mutex
	tasks        []models.Task
	total        int64
	page         int
	limit        int
	serverSearch string
	searchTerm   string
	editTarget   *models.Task
	loading      bool
	seq          uint64
}

func NewController(api TaskAPI, opts Options) *Controller {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(Notification) {})
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Controller{
		api:      api,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		tasks:    []models.Task{},
		page:     1,
		limit:    opts.PageSize,
	}
}

// LoadPage fetches page n and replaces the local list and total. Only the
// most recently issued load may apply its result; older responses are
// dropped. On failure the previous state is kept.
func (c *Controller) LoadPage(ctx context.Context, n int) error {
	if n < 1 {
		n = 1
	}

	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.loading = true
	q := ListQuery{Page: n, Limit: c.limit, Search: c.serverSearch}
	c.mu.Unlock()

	resp, err := c.api.List(ctx, q)

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		c.logger.Debug("discarding superseded page load", "page", n)
		return nil
	}
	c.loading = false
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("failed to load page", "page", n, "err", err)
		c.notify(NotifyError, MsgFetchFailed, err)
		return err
	}
	c.tasks = resp.Tasks
	if c.tasks == nil {
		c.tasks = []models.Task{}
	}
	c.total = resp.Total
	c.page = n
	c.mu.Unlock()
	return nil
}

func (c *Controller) Refresh(ctx context.Context) error {
	return c.LoadPage(ctx, c.Page())
}

func (c *Controller) NextPage(ctx context.Context) error {
	if !c.CanNext() {
		return nil
	}
	return c.LoadPage(ctx, c.Page()+1)
}

func (c *Controller) PrevPage(ctx context.Context) error {
	if !c.CanPrev() {
		return nil
	}
	return c.LoadPage(ctx, c.Page()-1)
}

func (c *Controller) CanNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(c.page*c.limit) < c.total
}

func (c *Controller) CanPrev() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page > 1
}

// CreateTask submits the form and prepends the stored record to the page.
func (c *Controller) CreateTask(ctx context.Context, form TaskForm) (models.Task, error) {
	task, err := c.api.Create(ctx, models.CreateTaskRequest{
		Title:       form.Title,
		Description: form.Description,
		Status:      form.Status,
	})
	if err != nil {
		c.logger.Warn("failed to create task", "err", err)
		c.notify(NotifyError, MsgSubmitFailed, err)
		return models.Task{}, err
	}

	c.mu.Lock()
	c.tasks = append([]models.Task{task}, c.tasks...)
	c.total++
	c.mu.Unlock()

	c.notify(NotifySuccess, MsgCreated, nil)
	return task, nil
}

// BeginEdit marks a loaded task as the edit target and returns a copy of it
// for prefilling a form.
func (c *Controller) BeginEdit(id string) (models.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		return models.Task{}, ErrTaskNotLoaded
	}
	target := c.tasks[i]
	c.editTarget = &target
	return target, nil
}

func (c *Controller) CancelEdit() {
	c.mu.Lock()
	c.editTarget = nil
	c.mu.Unlock()
}

// EditTarget reports the task being edited, if any.
func (c *Controller) EditTarget() (models.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editTarget == nil {
		return models.Task{}, false
	}
	return *c.editTarget, true
}

// SubmitEdit sends every form field for the edit target and swaps the
// server's record into the page in place. The target is kept on failure so
// the form can be retried.
func (c *Controller) SubmitEdit(ctx context.Context, form TaskForm) (models.Task, error) {
	target, ok := c.EditTarget()
	if !ok {
		return models.Task{}, ErrNoEditTarget
	}

	status := form.Status
	task, err := c.api.Update(ctx, models.UpdateTaskRequest{
		ID:          target.ID.String(),
		Title:       &form.Title,
		Description: &form.Description,
		Status:      &status,
	})
	if err != nil {
		c.logger.Warn("failed to update task", "id", target.ID, "err", err)
		c.notify(NotifyError, MsgSubmitFailed, err)
		return models.Task{}, err
	}

	c.mu.Lock()
	if i := c.indexLocked(task.ID.String()); i >= 0 {
		c.tasks[i] = task
	}
	c.editTarget = nil
	c.mu.Unlock()

	c.notify(NotifySuccess, MsgUpdated, nil)
	return task, nil
}

// DeleteTask asks confirm before deleting a loaded task. When the removed
// record was the last one on a page after the first, the previous page is
// loaded.
func (c *Controller) DeleteTask(ctx context.Context, id string, confirm Confirmer) error {
	c.mu.Lock()
	i := c.indexLocked(id)
	var task models.Task
	if i >= 0 {
		task = c.tasks[i]
	}
	c.mu.Unlock()

	if i < 0 {
		return ErrTaskNotLoaded
	}
	if confirm == nil || !confirm(task) {
		return ErrNotConfirmed
	}

	if err := c.api.Delete(ctx, id); err != nil {
		c.logger.Warn("failed to delete task", "id", id, "err", err)
		c.notify(NotifyError, MsgDeleteFailed, err)
		return err
	}

	c.mu.Lock()
	if i := c.indexLocked(id); i >= 0 {
		c.tasks = append(c.tasks[:i:i], c.tasks[i+1:]...)
	}
	if c.total > 0 {
		c.total--
	}
	if c.editTarget != nil && c.editTarget.ID.String() == id {
		c.editTarget = nil
	}
	stepBack := len(c.tasks) == 0 && c.page > 1
	page := c.page
	c.mu.Unlock()

	c.notify(NotifySuccess, MsgDeleted, nil)

	if stepBack {
		return c.LoadPage(ctx, page-1)
	}
	return nil
}

// SetSearchTerm sets the local title filter. It narrows VisibleTasks only;
// totals and paging are untouched.
func (c *Controller) SetSearchTerm(term string) {
	c.mu.Lock()
	c.searchTerm = term
	c.mu.Unlock()
}

func (c *Controller) SearchTerm() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searchTerm
}

// SetServerSearch changes the search sent with List and reloads from page 1.
func (c *Controller) SetServerSearch(ctx context.Context, search string) error {
	c.mu.Lock()
	c.serverSearch = strings.TrimSpace(search)
	c.mu.Unlock()
	return c.LoadPage(ctx, 1)
}

func (c *Controller) ServerSearch() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverSearch
}

// VisibleTasks is the loaded page narrowed by the local search term,
// matched case-insensitively against titles.
func (c *Controller) VisibleTasks() []models.Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	term := strings.ToLower(c.searchTerm)
	visible := make([]models.Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		if term == "" || strings.Contains(strings.ToLower(t.Title), term) {
			visible = append(visible, t)
		}
	}
	return visible
}

func (c *Controller) Tasks() []models.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Task(nil), c.tasks...)
}

func (c *Controller) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *Controller) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

func (c *Controller) Limit() int {
	return c.limit
}

func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Stats is recomputed from the loaded page on every call.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var s Stats
	for _, t := range c.tasks {
		switch t.Status {
		case models.StatusPending:
			s.Pending++
		case models.StatusInProgress:
			s.InProgress++
		case models.StatusCompleted:
			s.Completed++
		}
	}
	return s
}

func (c *Controller) indexLocked(id string) int {
	for i, t := range c.tasks {
		if t.ID.String() == id {
			return i
		}
	}
	return -1
}

func (c *Controller) notify(kind NotificationKind, msg string, err error) {
	c.notifier.Notify(Notification{Kind: kind, Message: msg, Err: err})
}
