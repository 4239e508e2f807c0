package models

// CreateTaskRequest is the body of POST /api/todos. Status may be omitted.
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status,omitempty"`
}

// UpdateTaskRequest is the body of PUT /api/todos. Nil fields are left
// untouched on the stored record.
type UpdateTaskRequest struct {
	ID          string      `json:"id"`
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
}

// DeleteTaskRequest is the body of DELETE /api/todos.
type DeleteTaskRequest struct {
	ID string `json:"id"`
}

type ListTasksResponse struct {
	Tasks []Task `json:"tasks"`
	Total int64  `json:"total"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
