package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"todo-go/app/models"
)

func newSQLiteRepo(t *testing.T) *SQLTaskRepository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	repo := NewSQLTaskRepository(db, SQLite)
	t.Cleanup(func() { repo.Close() })

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema returned error: %v", err)
	}
	return repo
}

func TestSQLiteTaskRepositoryLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newSQLiteRepo(t)

	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("second EnsureSchema returned error: %v", err)
	}
	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}

	tasks, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if tasks == nil || len(tasks) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", tasks)
	}

	created := time.Date(2024, 3, 1, 12, 0, 0, 123456000, time.UTC)
	desc := "milk and eggs"
	first := &models.Task{Title: "Buy groceries", Description: &desc, CreatedAt: created}
	second := &models.Task{Title: "Write report", Completed: true, CreatedAt: created.Add(time.Minute)}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("ids = %d, %d, want 1, 2", first.ID, second.ID)
	}

	got, err := repo.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if got.Title != "Buy groceries" || got.Description == nil || *got.Description != desc || got.Completed {
		t.Fatalf("unexpected task: %+v", got)
	}
	if !got.CreatedAt.Equal(created) || got.CreatedAt.Location() != time.UTC {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, created)
	}

	done := true
	updated, err := repo.Update(ctx, first.ID, models.TaskPatch{
		Completed:   &done,
		Description: models.OptionalString{Set: true},
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if !updated.Completed || updated.Description != nil || updated.Title != "Buy groceries" {
		t.Fatalf("unexpected updated task: %+v", updated)
	}
	if !updated.CreatedAt.Equal(created) {
		t.Fatalf("update changed created_at to %v", updated.CreatedAt)
	}

	// Re-sending identical values still matches the row.
	if _, err := repo.Update(ctx, first.ID, models.TaskPatch{Completed: &done}); err != nil {
		t.Fatalf("no-op Update returned error: %v", err)
	}
	if _, err := repo.Update(ctx, 999, models.TaskPatch{Completed: &done}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update missing: expected ErrNotFound, got %v", err)
	}

	tasks, err = repo.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != 1 || tasks[1].ID != 2 || !tasks[1].Completed {
		t.Fatalf("unexpected list: %+v", tasks)
	}

	if err := repo.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := repo.Delete(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete: expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetByID(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID after delete: expected ErrNotFound, got %v", err)
	}

	third := &models.Task{Title: "third"}
	if err := repo.Create(ctx, third); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if third.ID != 3 {
		t.Fatalf("AUTOINCREMENT must not reuse ids, got %d", third.ID)
	}
	if third.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be stamped")
	}
}
