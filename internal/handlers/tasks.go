package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"todo-tracker/internal/models"
	"todo-tracker/internal/services"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

const (
	msgNotFound      = "Todo not found"
	msgDeleted       = "Todo deleted successfully"
	msgIDRequired    = "Todo id is required"
	msgInternalError = "Something went wrong"
	msgListFailed    = "Failed to fetch todos"
	msgDeleteFailed  = "Error deleting todo"
)

type TaskHandler struct {
	taskService services.TaskService
	logger      *log.Logger
}

func NewTaskHandler(taskService services.TaskService, logger *log.Logger) *TaskHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &TaskHandler{taskService: taskService, logger: logger}
}

// RegisterRoutes mounts the todo endpoints under /api/todos.
func (h *TaskHandler) RegisterRoutes(router gin.IRouter) {
	todos := router.Group("/api/todos")
	todos.GET("", h.ListTasks)
	todos.POST("", h.CreateTask)
	todos.PUT("", h.UpdateTask)
	todos.DELETE("", h.DeleteTask)
	todos.GET("/:id", h.GetTask)
}

// queryInt returns 0 for missing or malformed values so the service falls
// back to its defaults.
func queryInt(c *gin.Context, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.Query(name)))
	if err != nil {
		return 0
	}
	return n
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	params := services.ListParams{
		Page:   queryInt(c, "page"),
		Limit:  queryInt(c, "limit"),
		Search: c.Query("search"),
	}

	resp, err := h.taskService.ListTasks(c.Request.Context(), params)
	if err != nil {
		h.logger.Error("failed to list todos", "err", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: msgListFailed})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.taskService.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleTaskError(c, err, http.StatusInternalServerError, msgInternalError)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req models.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), req)
	if err != nil {
		h.handleTaskError(c, err, http.StatusBadRequest, msgInternalError)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	var req models.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msgIDRequired})
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), req.ID, req)
	if err != nil {
		h.handleTaskError(c, err, http.StatusBadRequest, msgInternalError)
		return
	}
	c.JSON(http.StatusOK, task)
}

// DeleteTask reads the id from the JSON body, or from ?id= for clients that
// cannot send a body with DELETE.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	var req models.DeleteTaskRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body: " + err.Error()})
			return
		}
	}
	if req.ID == "" {
		req.ID = c.Query("id")
	}
	if strings.TrimSpace(req.ID) == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msgIDRequired})
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), req.ID); err != nil {
		h.handleTaskError(c, err, http.StatusInternalServerError, msgDeleteFailed)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: msgDeleted})
}

// handleTaskError maps service errors onto responses. Store faults answer
// with faultStatus; create and update report them as 400.
func (h *TaskHandler) handleTaskError(c *gin.Context, err error, faultStatus int, faultMessage string) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: ve.Message})
	case errors.Is(err, services.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, models.MessageResponse{Message: msgNotFound})
	default:
		h.logger.Error("todo request failed", "method", c.Request.Method, "err", err)
		c.JSON(faultStatus, models.ErrorResponse{Error: faultMessage})
	}
}
