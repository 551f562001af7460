package domain

// Task is a single to-do record. Titles stored by Create are normalized.
type Task struct {
	ID        int    `json:"id" db:"id"`
	Title     string `json:"titulo" db:"title"`
	Completed bool   `json:"completada" db:"completed"`
}

// CreateTaskRequest is the request body for creating a task.
type CreateTaskRequest struct {
	Title     *string `json:"titulo"`
	Completed bool    `json:"completada"`
}

// UpdateTaskRequest is the request body for updating a task.
// Nil fields are left untouched.
type UpdateTaskRequest struct {
	Title     *string `json:"titulo"`
	Completed *bool   `json:"completada"`
}

// TaskPatch describes the fields an update replaces.
type TaskPatch struct {
	Title     *string
	Completed *bool
}

// DeleteCompletedResponse is returned by DELETE /tareas/completed.
type DeleteCompletedResponse struct {
	Deleted int `json:"eliminadas"`
}

// DemoTasks returns the tasks the server starts with.
func DemoTasks() []Task {
	return []Task{
		{ID: 1, Title: "Tarea 1", Completed: false},
		{ID: 2, Title: "Tarea 2", Completed: true},
		{ID: 3, Title: "Tarea 3", Completed: false},
		{ID: 4, Title: "Tarea 4", Completed: true},
		{ID: 5, Title: "Tarea 5", Completed: true},
	}
}
