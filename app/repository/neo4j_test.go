package repository

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func TestTaskFromRecord(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 3, 1, 13, 0, 0, 0, time.FixedZone("CET", 3600))
	record := &neo4j.Record{
		Keys:   []string{"id", "title", "description", "completed", "created_at"},
		Values: []any{int64(12), "Graph task", "stored as node", true, created},
	}

	task, err := taskFromRecord(record)
	if err != nil {
		t.Fatalf("taskFromRecord returned error: %v", err)
	}
	if task.ID != 12 || task.Title != "Graph task" || !task.Completed {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.Description == nil || *task.Description != "stored as node" {
		t.Fatalf("unexpected description: %v", task.Description)
	}
	if task.CreatedAt.Location() != time.UTC || !task.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v", task.CreatedAt)
	}
}

func TestTaskFromRecordMissingDescription(t *testing.T) {
	t.Parallel()

	record := &neo4j.Record{
		Keys:   []string{"id", "title", "description", "completed", "created_at"},
		Values: []any{int64(1), "No notes", nil, false, time.Now()},
	}

	task, err := taskFromRecord(record)
	if err != nil {
		t.Fatalf("taskFromRecord returned error: %v", err)
	}
	if task.Description != nil {
		t.Fatalf("description = %q, want nil", *task.Description)
	}

	bad := &neo4j.Record{Keys: []string{"id"}, Values: []any{"1"}}
	if _, err := taskFromRecord(bad); err == nil {
		t.Fatal("expected error for non-integer id")
	}
}

func TestNeo4jWrapKeepsNotFound(t *testing.T) {
	t.Parallel()

	r := &Neo4jTaskRepository{}
	if err := r.wrap(ErrNotFound, "get task %d", 3); err != ErrNotFound {
		t.Fatalf("wrap changed ErrNotFound: %v", err)
	}

	boom := errors.New("session expired")
	err := r.wrap(boom, "get task %d", 3)
	if !errors.Is(err, boom) || err.Error() != "get task 3: session expired" {
		t.Fatalf("wrap = %v", err)
	}
	if optionalParam(nil) != nil {
		t.Fatal("nil description should map to a null parameter")
	}
}

func TestNeo4jConstraintsCoverSequence(t *testing.T) {
	t.Parallel()

	var task, sequence bool
	for _, stmt := range neo4jConstraints {
		if !strings.Contains(stmt, "IF NOT EXISTS") || !strings.Contains(stmt, "IS UNIQUE") {
			t.Fatalf("constraint is not an idempotent uniqueness constraint: %q", stmt)
		}
		task = task || strings.Contains(stmt, "(t:Task) REQUIRE t.id")
		sequence = sequence || strings.Contains(stmt, "(s:Sequence) REQUIRE s.name")
	}
	if !task || !sequence {
		t.Fatalf("missing constraints (task id %v, sequence name %v)", task, sequence)
	}
}
