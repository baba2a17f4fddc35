package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"todo-go/app/models"
	"todo-go/app/repository"
)

// MaxTitleLength matches the width of the tasks.title column.
const MaxTitleLength = 100

// Outcome labels passed to a Recorder.
const (
	OutcomeOK       = "ok"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Recorder receives one call per service operation.
type Recorder interface {
	ObserveOperation(operation, outcome string)
}

// TaskService handles task-related operations.
type TaskService struct {
	repo     repository.TaskRepository
	recorder Recorder
	now      func() time.Time
}

// Option configures a TaskService.
type Option func(*TaskService)

// WithRecorder reports every operation outcome to r.
func WithRecorder(r Recorder) Option {
	return func(s *TaskService) {
		s.recorder = r
	}
}

// WithClock overrides the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *TaskService) {
		s.now = now
	}
}

// NewTaskService creates a new instance of TaskService.
func NewTaskService(repo repository.TaskRepository, opts ...Option) *TaskService {
	s := &TaskService{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetTasks returns every task in insertion order.
func (s *TaskService) GetTasks(ctx context.Context) (tasks []models.Task, err error) {
	defer func() { s.observe("list", err) }()

	tasks, err = s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// GetTaskByID retrieves a single task.
func (s *TaskService) GetTaskByID(ctx context.Context, id int64) (task *models.Task, err error) {
	defer func() { s.observe("get", err) }()

	task, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, id)
	}
	return task, nil
}

// CreateTask validates input and stores a new task. The store assigns the id.
func (s *TaskService) CreateTask(ctx context.Context, input models.NewTask) (task *models.Task, err error) {
	defer func() { s.observe("create", err) }()

	if input.Title == nil {
		return nil, &ValidationError{Field: "title", Message: "Title is required"}
	}
	if err := validateTitle(*input.Title); err != nil {
		return nil, err
	}

	task = &models.Task{
		Title:       *input.Title,
		Description: input.Description,
		CreatedAt:   s.now().UTC().Truncate(time.Microsecond),
	}
	if input.Completed != nil {
		task.Completed = *input.Completed
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// UpdateTask applies only the fields present in patch.
func (s *TaskService) UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (task *models.Task, err error) {
	defer func() { s.observe("update", err) }()

	if patch.Title != nil {
		if err := validateTitle(*patch.Title); err != nil {
			return nil, err
		}
	}

	task, err = s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, translate(err, id)
	}
	return task, nil
}

// DeleteTask removes a task permanently and returns a confirmation message.
func (s *TaskService) DeleteTask(ctx context.Context, id int64) (msg string, err error) {
	defer func() { s.observe("delete", err) }()

	if err := s.repo.Delete(ctx, id); err != nil {
		return "", translate(err, id)
	}
	return fmt.Sprintf("Task %d has been deleted", id), nil
}

// Ping checks that the store is reachable.
func (s *TaskService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Field: "title", Message: "Title is required"}
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return &ValidationError{
			Field:   "title",
			Message: fmt.Sprintf("Title must be at most %d characters", MaxTitleLength),
		}
	}
	return nil
}

func translate(err error, id int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{ID: id}
	}
	return fmt.Errorf("task %d: %w", id, err)
}

func (s *TaskService) observe(operation string, err error) {
	if s.recorder == nil {
		return
	}
	s.recorder.ObserveOperation(operation, outcomeOf(err))
}

func outcomeOf(err error) string {
	var (
		invalid  *ValidationError
		notFound *NotFoundError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &invalid):
		return OutcomeInvalid
	case errors.As(err, &notFound):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}
