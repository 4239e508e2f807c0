// Package client talks to the todo API over HTTP and keeps the local view of
// the current page that the terminal front end renders.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"todo-tracker/internal/models"
)

const todosPath = "/api/todos"

// APIError is a non-2xx response. Message comes from the body's "error" or
// "message" field, falling back to the status text.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("todo api: %d %s", e.Status, e.Message)
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type ListQuery struct {
	Page   int
	Limit  int
	Search string
}

// TaskAPI is the subset of the HTTP surface the Controller needs.
type TaskAPI interface {
	List(ctx context.Context, q ListQuery) (models.ListTasksResponse, error)
	Create(ctx context.Context, req models.CreateTaskRequest) (models.Task, error)
	Update(ctx context.Context, req models.UpdateTaskRequest) (models.Task, error)
	Delete(ctx context.Context, id string) error
}

type APIClient struct {
	baseURL string
	http    *http.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *APIClient) List(ctx context.Context, q ListQuery) (models.ListTasksResponse, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}

	path := todosPath
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp models.ListTasksResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return models.ListTasksResponse{}, err
	}
	if resp.Tasks == nil {
		resp.Tasks = []models.Task{}
	}
	return resp, nil
}

func (c *APIClient) Create(ctx context.Context, req models.CreateTaskRequest) (models.Task, error) {
	var task models.Task
	err := c.do(ctx, http.MethodPost, todosPath, req, &task)
	return task, err
}

func (c *APIClient) Update(ctx context.Context, req models.UpdateTaskRequest) (models.Task, error) {
	var task models.Task
	err := c.do(ctx, http.MethodPut, todosPath, req, &task)
	return task, err
}

func (c *APIClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, todosPath, models.DeleteTaskRequest{ID: id}, nil)
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(status int, data []byte) *APIError {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := http.StatusText(status)
	if json.Unmarshal(data, &body) == nil {
		switch {
		case body.Error != "":
			msg = body.Error
		case body.Message != "":
			msg = body.Message
		}
	}
	return &APIError{Status: status, Message: msg}
}
