package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Task represents a single tracked task.
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewTask is the payload accepted by POST /tasks.
type NewTask struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

// TaskPatch carries the fields supplied to PUT /tasks/{id}. Nil pointers
// mean "leave unchanged".
type TaskPatch struct {
	Title       *string        `json:"title"`
	Description OptionalString `json:"description"`
	Completed   *bool          `json:"completed"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && !p.Description.Set && p.Completed == nil
}

// Apply merges the supplied fields into t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description.Set {
		t.Description = p.Description.Value
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
}

// OptionalString distinguishes a JSON key that is absent from one that is
// explicitly null. Set is true whenever the key was present.
type OptionalString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// Some returns an OptionalString holding s.
func Some(s string) OptionalString {
	return OptionalString{Set: true, Value: &s}
}
