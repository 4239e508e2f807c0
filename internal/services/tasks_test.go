package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"todo-tracker/internal/models"
	"todo-tracker/internal/repositories"
	"todo-tracker/internal/services"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newSQLiteStore(t *testing.T) *repositories.GormTaskRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	repo := repositories.NewGormTaskRepository(db)
	if err := repo.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return repo
}

type TaskServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	clock   *clock
	service services.TaskService
}

func (s *TaskServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s.service = services.NewTaskServiceWithClock(newSQLiteStore(s.T()), services.ListLimits{Default: 6, Max: 100}, s.clock.Now)
}

func (s *TaskServiceTestSuite) create(title string) models.Task {
	task, err := s.service.CreateTask(s.ctx, models.CreateTaskRequest{Title: title})
	s.Require().NoError(err)
	s.clock.Advance(time.Second)
	return task
}

func (s *TaskServiceTestSuite) TestCreateAppliesDefaults() {
	task, err := s.service.CreateTask(s.ctx, models.CreateTaskRequest{Title: "  Buy milk  ", Description: "  2 litres "})
	s.Require().NoError(err)

	s.NotEqual(uuid.Nil, task.ID)
	s.Equal("Buy milk", task.Title)
	s.Equal("2 litres", task.Description)
	s.Equal(models.StatusPending, task.Status)
	s.True(task.CreatedAt.Equal(s.clock.now))
	s.True(task.UpdatedAt.Equal(task.CreatedAt))
}

func (s *TaskServiceTestSuite) TestCreateKeepsExplicitStatus() {
	task, err := s.service.CreateTask(s.ctx, models.CreateTaskRequest{Title: "Ship", Status: models.StatusInProgress})
	s.Require().NoError(err)
	s.Equal(models.StatusInProgress, task.Status)
}

func (s *TaskServiceTestSuite) TestCreateValidation() {
	tests := []struct {
		name  string
		req   models.CreateTaskRequest
		field string
	}{
		{"empty title", models.CreateTaskRequest{Title: ""}, "title"},
		{"whitespace title", models.CreateTaskRequest{Title: " \t\n "}, "title"},
		{"unknown status", models.CreateTaskRequest{Title: "x", Status: "Done"}, "status"},
		{"wrong case status", models.CreateTaskRequest{Title: "x", Status: "pending"}, "status"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.CreateTask(s.ctx, tt.req)
			var ve *services.ValidationError
			s.Require().True(errors.As(err, &ve), "expected validation error, got %v", err)
			s.Equal(tt.field, ve.Field)
		})
	}

	resp, err := s.service.ListTasks(s.ctx, services.ListParams{})
	s.Require().NoError(err)
	s.Zero(resp.Total, "nothing is persisted on validation failure")
}

func (s *TaskServiceTestSuite) TestTitleRequiredMessage() {
	_, err := s.service.CreateTask(s.ctx, models.CreateTaskRequest{Title: "  "})
	s.EqualError(err, "Title is required")

	_, err = s.service.CreateTask(s.ctx, models.CreateTaskRequest{Title: "x", Status: "Done"})
	s.Require().Error(err)
	s.True(strings.Contains(err.Error(), "Pending, In-Progress, Completed"))
}

func (s *TaskServiceTestSuite) TestListDefaultsAndOrdering() {
	for i := 0; i < 8; i++ {
		s.create("task " + string(rune('A'+i)))
	}

	resp, err := s.service.ListTasks(s.ctx, services.ListParams{Page: 0, Limit: -3})
	s.Require().NoError(err)
	s.EqualValues(8, resp.Total)
	s.Len(resp.Tasks, 6)
	s.Equal("task H", resp.Tasks[0].Title)
	for i := 1; i < len(resp.Tasks); i++ {
		s.False(resp.Tasks[i].CreatedAt.After(resp.Tasks[i-1].CreatedAt))
	}

	resp, err = s.service.ListTasks(s.ctx, services.ListParams{Page: 2})
	s.Require().NoError(err)
	s.Len(resp.Tasks, 2)
	s.EqualValues(8, resp.Total)
}

func (s *TaskServiceTestSuite) TestListEmptyPageKeepsTotal() {
	for i := 0; i < 6; i++ {
		s.create("t")
	}

	resp, err := s.service.ListTasks(s.ctx, services.ListParams{Page: 2, Limit: 6})
	s.Require().NoError(err)
	s.NotNil(resp.Tasks)
	s.Empty(resp.Tasks)
	s.EqualValues(6, resp.Total)
}

func (s *TaskServiceTestSuite) TestListClampsLimit() {
	for i := 0; i < 3; i++ {
		s.create("t")
	}
	params := services.ListParams{Page: 1, Limit: 1000}.Normalize(services.ListLimits{Default: 6, Max: 2})
	s.Equal(2, params.Limit)

	resp, err := s.service.ListTasks(s.ctx, services.ListParams{Page: 1, Limit: 1000})
	s.Require().NoError(err)
	s.Len(resp.Tasks, 3)
}

func (s *TaskServiceTestSuite) TestListSearch() {
	s.create("Buy milk")
	s.create("Walk dog")
	s.create("Oat MILK")

	resp, err := s.service.ListTasks(s.ctx, services.ListParams{Search: "milk"})
	s.Require().NoError(err)
	s.EqualValues(2, resp.Total)
	s.Equal("Oat MILK", resp.Tasks[0].Title)
}

func (s *TaskServiceTestSuite) TestListSearchKeepsWhitespace() {
	s.create("Buy milk")
	s.create("Milk shake")

	params := services.ListParams{Search: "milk "}.Normalize(services.ListLimits{Default: 6, Max: 100})
	s.Equal("milk ", params.Search)

	resp, err := s.service.ListTasks(s.ctx, services.ListParams{Search: "milk "})
	s.Require().NoError(err)
	s.EqualValues(1, resp.Total)
	s.Equal("Milk shake", resp.Tasks[0].Title)
}

func (s *TaskServiceTestSuite) TestUpdateMergesProvidedFields() {
	task := s.create("Buy milk")
	original := task.UpdatedAt

	status := models.StatusCompleted
	updated, err := s.service.UpdateTask(s.ctx, task.ID.String(), models.UpdateTaskRequest{Status: &status})
	s.Require().NoError(err)

	s.Equal("Buy milk", updated.Title)
	s.Equal(models.StatusCompleted, updated.Status)
	s.True(updated.UpdatedAt.After(original))
	s.True(updated.CreatedAt.Equal(task.CreatedAt))
	s.Equal(task.ID, updated.ID)

	stored, err := s.service.GetTask(s.ctx, task.ID.String())
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, stored.Status)
	s.True(stored.UpdatedAt.Equal(updated.UpdatedAt))
}

func (s *TaskServiceTestSuite) TestUpdateTimestampAdvancesWithFrozenClock() {
	task, err := s.service.CreateTask(s.ctx, models.CreateTaskRequest{Title: "same instant"})
	s.Require().NoError(err)

	desc := "edited"
	updated, err := s.service.UpdateTask(s.ctx, task.ID.String(), models.UpdateTaskRequest{Description: &desc})
	s.Require().NoError(err)
	s.True(updated.UpdatedAt.After(task.UpdatedAt))
}

func (s *TaskServiceTestSuite) TestUpdateValidation() {
	task := s.create("Buy milk")

	blank := "   "
	_, err := s.service.UpdateTask(s.ctx, task.ID.String(), models.UpdateTaskRequest{Title: &blank})
	s.True(services.IsValidationError(err))

	bad := models.TaskStatus("Archived")
	_, err = s.service.UpdateTask(s.ctx, task.ID.String(), models.UpdateTaskRequest{Status: &bad})
	s.True(services.IsValidationError(err))

	stored, err := s.service.GetTask(s.ctx, task.ID.String())
	s.Require().NoError(err)
	s.Equal("Buy milk", stored.Title)
	s.Equal(models.StatusPending, stored.Status)
}

func (s *TaskServiceTestSuite) TestUpdateEmptyStatusIsIgnored() {
	task := s.create("Buy milk")
	empty := models.TaskStatus("")

	updated, err := s.service.UpdateTask(s.ctx, task.ID.String(), models.UpdateTaskRequest{Status: &empty})
	s.Require().NoError(err)
	s.Equal(models.StatusPending, updated.Status)
}

func (s *TaskServiceTestSuite) TestUpdateMissingIsNotFound() {
	title := "x"
	for _, id := range []string{uuid.Must(uuid.NewV4()).String(), "not-a-uuid", ""} {
		_, err := s.service.UpdateTask(s.ctx, id, models.UpdateTaskRequest{Title: &title})
		s.ErrorIs(err, services.ErrTaskNotFound, "id %q", id)
	}
}

func (s *TaskServiceTestSuite) TestDeleteTwiceIsNotFoundTwice() {
	task := s.create("Buy milk")

	s.Require().NoError(s.service.DeleteTask(s.ctx, task.ID.String()))
	s.ErrorIs(s.service.DeleteTask(s.ctx, task.ID.String()), services.ErrTaskNotFound)
	s.ErrorIs(s.service.DeleteTask(s.ctx, task.ID.String()), services.ErrTaskNotFound)
	s.ErrorIs(s.service.DeleteTask(s.ctx, "garbage"), services.ErrTaskNotFound)
}

func (s *TaskServiceTestSuite) TestRoundTripThroughSearch() {
	created, err := s.service.CreateTask(s.ctx, models.CreateTaskRequest{
		Title:       "Renew passport",
		Description: "before June",
		Status:      models.StatusInProgress,
	})
	s.Require().NoError(err)
	s.create("Something else")

	resp, err := s.service.ListTasks(s.ctx, services.ListParams{Search: "Renew passport"})
	s.Require().NoError(err)
	s.Require().Len(resp.Tasks, 1)
	got := resp.Tasks[0]
	s.Equal(created.ID, got.ID)
	s.Equal(created.Title, got.Title)
	s.Equal(created.Description, got.Description)
	s.Equal(created.Status, got.Status)
	s.True(created.CreatedAt.Equal(got.CreatedAt))
}

func TestTaskServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceTestSuite))
}
