package handler

import (
	"log"
	"net/http"

	"github.com/bcnelson/tareas-api/internal/domain"
	"github.com/bcnelson/tareas-api/internal/metrics"
	"github.com/bcnelson/tareas-api/internal/storage"
	"github.com/bcnelson/tareas-api/internal/validation"
	"github.com/go-chi/chi/v5"
)

// TaskHandler handles task endpoints.
type TaskHandler struct {
	store   storage.TaskStore
	metrics *metrics.Metrics
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(store storage.TaskStore, m *metrics.Metrics) *TaskHandler {
	return &TaskHandler{store: store, metrics: m}
}

// Index answers the root path.
func (h *TaskHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Esta es la API de tareas"))
}

// List lists all tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.store.List(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tasks)
}

// Create creates a new task.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTaskRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, domain.MsgInvalidBody)
		return
	}
	if req.Title == nil {
		respondError(w, http.StatusBadRequest, domain.MsgTitleTooShort)
		return
	}

	task, err := h.store.Create(r.Context(), *req.Title, req.Completed)
	if err != nil {
		handleError(w, err)
		return
	}

	h.refreshGauge(r)
	respondJSON(w, http.StatusCreated, task)
}

// Update updates the title and/or completion of a task.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	task, ok := h.lookup(w, r)
	if !ok {
		return
	}

	// An empty body is an empty patch.
	var req domain.UpdateTaskRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, domain.MsgInvalidBody)
		return
	}

	updated, err := h.store.Update(r.Context(), task.ID, domain.TaskPatch{
		Title:     req.Title,
		Completed: req.Completed,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

// Delete deletes a task.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	task, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), task.ID); err != nil {
		handleError(w, err)
		return
	}

	h.refreshGauge(r)
	w.WriteHeader(http.StatusNoContent)
}

// DeleteCompleted deletes every completed task.
func (h *TaskHandler) DeleteCompleted(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.DeleteCompleted(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	h.refreshGauge(r)
	respondJSON(w, http.StatusOK, &domain.DeleteCompletedResponse{Deleted: n})
}

// lookup resolves the {id} path parameter. Malformed and unknown ids both
// answer 404, with different messages.
func (h *TaskHandler) lookup(w http.ResponseWriter, r *http.Request) (domain.Task, bool) {
	id, err := validation.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, domain.MsgInvalidID)
		return domain.Task{}, false
	}
	task, err := h.store.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return domain.Task{}, false
	}
	return task, true
}

func (h *TaskHandler) refreshGauge(r *http.Request) {
	if h.metrics == nil {
		return
	}
	tasks, err := h.store.List(r.Context())
	if err != nil {
		log.Printf("counting tasks: %v", err)
		return
	}
	h.metrics.SetTasks(len(tasks))
}
