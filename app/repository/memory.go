package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"todo-go/app/models"
)

// MemoryTaskRepository keeps tasks in process memory. It backs the
// memory:// URL and the HTTP tests.
type MemoryTaskRepository struct {
	mu     sync.RWMutex
	nextID int64
	tasks  []models.Task
}

// NewMemoryTaskRepository creates an empty repository.
func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{nextID: 1}
}

func (m *MemoryTaskRepository) List(_ context.Context) ([]models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tasks := make([]models.Task, len(m.tasks))
	for i, task := range m.tasks {
		tasks[i] = cloneTask(task)
	}
	return tasks, nil
}

func (m *MemoryTaskRepository) GetByID(_ context.Context, id int64) (*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := m.indexOf(id)
	if idx < 0 {
		return nil, ErrNotFound
	}
	task := cloneTask(m.tasks[idx])
	return &task, nil
}

func (m *MemoryTaskRepository) Create(_ context.Context, task *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if task.CreatedAt.IsZero() {
		task.CreatedAt = now()
	}
	task.ID = m.nextID
	m.nextID++
	m.tasks = append(m.tasks, cloneTask(*task))
	return nil
}

func (m *MemoryTaskRepository) Update(_ context.Context, id int64, patch models.TaskPatch) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOf(id)
	if idx < 0 {
		return nil, ErrNotFound
	}
	patch.Apply(&m.tasks[idx])
	m.tasks[idx] = cloneTask(m.tasks[idx])
	task := cloneTask(m.tasks[idx])
	return &task, nil
}

func (m *MemoryTaskRepository) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOf(id)
	if idx < 0 {
		return ErrNotFound
	}
	m.tasks = append(m.tasks[:idx], m.tasks[idx+1:]...)
	return nil
}

func (m *MemoryTaskRepository) Ping(context.Context) error { return nil }

func (m *MemoryTaskRepository) Close() error { return nil }

// indexOf relies on tasks being appended in id order.
func (m *MemoryTaskRepository) indexOf(id int64) int {
	idx, found := slices.BinarySearchFunc(m.tasks, id, func(t models.Task, id int64) int {
		return cmp.Compare(t.ID, id)
	})
	if !found {
		return -1
	}
	return idx
}

func cloneTask(task models.Task) models.Task {
	if task.Description != nil {
		desc := *task.Description
		task.Description = &desc
	}
	return task
}
