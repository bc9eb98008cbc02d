package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/taskhive/taskhive-be/internal/http/respond"
	"github.com/taskhive/taskhive-be/internal/middleware"
	"github.com/taskhive/taskhive-be/internal/models"
	"github.com/taskhive/taskhive-be/internal/models/dto"
	"github.com/taskhive/taskhive-be/internal/storage"
)

var allowedTaskUpdates = map[string]bool{
	"description": true,
	"completed":   true,
}

// TaskHandler owns the task CRUD endpoints. Every operation is scoped to the
// authenticated owner; a task belonging to someone else looks exactly like a
// missing one.
type TaskHandler struct {
	tasks storage.TaskStore
}

// NewTaskHandler constructs the handler.
func NewTaskHandler(tasks storage.TaskStore) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// Register attaches task routes to the mux; all of them require auth.
func (h *TaskHandler) Register(mux *http.ServeMux, requireAuth func(http.Handler) http.Handler) {
	mux.Handle("POST /tasks", requireAuth(http.HandlerFunc(h.handleCreate)))
	mux.Handle("GET /tasks", requireAuth(http.HandlerFunc(h.handleList)))
	mux.Handle("GET /tasks/{id}", requireAuth(http.HandlerFunc(h.handleGet)))
	mux.Handle("PATCH /tasks/{id}", requireAuth(http.HandlerFunc(h.handleUpdate)))
	mux.Handle("DELETE /tasks/{id}", requireAuth(http.HandlerFunc(h.handleDelete)))
}

func (h *TaskHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	var req dto.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		respond.Error(w, http.StatusBadRequest, "description is required")
		return
	}

	task, err := h.tasks.CreateTask(r.Context(), models.Task{
		Description: req.Description,
		Completed:   req.Completed,
		OwnerID:     user.ID,
	})
	if err != nil {
		log.Printf("create task for user %s: %v", user.ID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	respond.JSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	filter, err := parseTaskFilter(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	tasks, err := h.tasks.ListTasks(r.Context(), user.ID, filter)
	if err != nil {
		log.Printf("list tasks for user %s: %v", user.ID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	respond.JSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	task, err := h.tasks.GetTask(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		h.respondTaskError(w, user.ID, "get", err)
		return
	}
	respond.JSON(w, http.StatusOK, task)
}

func (h *TaskHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	for key := range fields {
		if !allowedTaskUpdates[key] {
			respond.Error(w, http.StatusBadRequest, "invalid update fields")
			return
		}
	}

	var update storage.TaskUpdate
	if raw, ok := fields["description"]; ok {
		var description string
		if err := json.Unmarshal(raw, &description); err != nil || strings.TrimSpace(description) == "" {
			respond.Error(w, http.StatusBadRequest, "description must be a non-empty string")
			return
		}
		description = strings.TrimSpace(description)
		update.Description = &description
	}
	if raw, ok := fields["completed"]; ok {
		var completed bool
		if err := json.Unmarshal(raw, &completed); err != nil {
			respond.Error(w, http.StatusBadRequest, "completed must be a boolean")
			return
		}
		update.Completed = &completed
	}

	task, err := h.tasks.UpdateTask(r.Context(), r.PathValue("id"), user.ID, update)
	if err != nil {
		h.respondTaskError(w, user.ID, "update", err)
		return
	}
	respond.JSON(w, http.StatusOK, task)
}

func (h *TaskHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	task, err := h.tasks.DeleteTask(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		h.respondTaskError(w, user.ID, "delete", err)
		return
	}
	respond.JSON(w, http.StatusOK, task)
}

func (h *TaskHandler) respondTaskError(w http.ResponseWriter, userID, op string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		respond.Error(w, http.StatusNotFound, "task not found")
		return
	}
	log.Printf("%s task for user %s: %v", op, userID, err)
	respond.Error(w, http.StatusInternalServerError, "something went wrong")
}

func parseTaskFilter(r *http.Request) (storage.TaskFilter, error) {
	var filter storage.TaskFilter
	query := r.URL.Query()

	if raw := query.Get("completed"); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			return storage.TaskFilter{}, errors.New("completed must be true or false")
		}
		filter.Completed = &completed
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return storage.TaskFilter{}, errors.New("limit must be a non-negative integer")
		}
		filter.Limit = limit
	}
	if raw := query.Get("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return storage.TaskFilter{}, errors.New("skip must be a non-negative integer")
		}
		filter.Skip = skip
	}
	return filter, nil
}
