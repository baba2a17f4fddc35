package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"todo-go/app/logger"
	"todo-go/app/middleware"
	"todo-go/app/models"
	"todo-go/app/services"
)

const maxBodyBytes = 1 << 20

// TaskController handles HTTP requests for tasks.
type TaskController struct {
	Service *services.TaskService
	log     logrus.FieldLogger
}

// NewTaskController creates a new TaskController.
func NewTaskController(service *services.TaskService, log logrus.FieldLogger) *TaskController {
	return &TaskController{Service: service, log: log.WithField("component", "task_controller")}
}

// GetTasks handles GET /tasks.
func (c *TaskController) GetTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := c.Service.GetTasks(r.Context())
	if err != nil {
		c.fail(w, r, "GetTasks", err)
		return
	}
	respondJSON(w, http.StatusOK, tasks)
}

// CreateTask handles POST /tasks.
func (c *TaskController) CreateTask(w http.ResponseWriter, r *http.Request) {
	var input models.NewTask
	if err := decodeBody(w, r, &input); err != nil {
		c.fail(w, r, "CreateTask", err)
		return
	}

	task, err := c.Service.CreateTask(r.Context(), input)
	if err != nil {
		c.fail(w, r, "CreateTask", err)
		return
	}

	c.entry(r, "CreateTask").WithField("task_id", task.ID).Info("task created")
	respondJSON(w, http.StatusCreated, task)
}

// GetTaskByID handles GET /tasks/{taskID}.
func (c *TaskController) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	id, ok := c.taskID(w, r)
	if !ok {
		return
	}

	task, err := c.Service.GetTaskByID(r.Context(), id)
	if err != nil {
		c.fail(w, r, "GetTaskByID", err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// UpdateTask handles PUT /tasks/{taskID}.
func (c *TaskController) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := c.taskID(w, r)
	if !ok {
		return
	}

	var patch models.TaskPatch
	if err := decodeBody(w, r, &patch); err != nil {
		c.fail(w, r, "UpdateTask", err)
		return
	}

	task, err := c.Service.UpdateTask(r.Context(), id, patch)
	if err != nil {
		c.fail(w, r, "UpdateTask", err)
		return
	}

	c.entry(r, "UpdateTask").WithField("task_id", id).Info("task updated")
	respondJSON(w, http.StatusOK, task)
}

// DeleteTask handles DELETE /tasks/{taskID}.
func (c *TaskController) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := c.taskID(w, r)
	if !ok {
		return
	}

	msg, err := c.Service.DeleteTask(r.Context(), id)
	if err != nil {
		c.fail(w, r, "DeleteTask", err)
		return
	}

	c.entry(r, "DeleteTask").WithField("task_id", id).Info("task deleted")
	respondJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// Health handles GET /healthz.
func (c *TaskController) Health(w http.ResponseWriter, r *http.Request) {
	if err := c.Service.Ping(r.Context()); err != nil {
		c.entry(r, "Health").WithError(err).Warn("store unreachable")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// taskID parses the path id. The route only matches digits, so a parse
// failure means the value overflowed and no such task can exist.
func (c *TaskController) taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["taskID"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondError(w, http.StatusNotFound, "task "+raw+" not found")
		return 0, false
	}
	return id, true
}

// fail maps service errors onto status codes.
func (c *TaskController) fail(w http.ResponseWriter, r *http.Request, handler string, err error) {
	entry := c.entry(r, handler)

	var (
		invalid  *services.ValidationError
		notFound *services.NotFoundError
	)
	switch {
	case errors.As(err, &invalid):
		entry.WithField("field", invalid.Field).Warn(invalid.Message)
		respondError(w, http.StatusBadRequest, invalid.Message)
	case errors.As(err, &notFound):
		entry.WithField("task_id", notFound.ID).Warn("task not found")
		respondError(w, http.StatusNotFound, notFound.Error())
	default:
		entry.WithError(err).Error("request failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (c *TaskController) entry(r *http.Request, handler string) logrus.FieldLogger {
	return logger.WithRequestID(c.log, middleware.GetRequestID(r.Context())).WithField("handler", handler)
}

// decodeBody reads a JSON object into dst. An empty body decodes as {}.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &services.ValidationError{Field: "body", Message: "Invalid request payload"}
	}
	return nil
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}
