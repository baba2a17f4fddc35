package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"todo-go/app/models"
)

const neo4jReturnTask = `RETURN t.id AS id, t.title AS title, t.description AS description, ` +
	`t.completed AS completed, t.created_at AS created_at`

// Neo4jTaskRepository stores tasks as :Task nodes. Integer ids come from a
// :Sequence node incremented in the same write transaction as the insert.
type Neo4jTaskRepository struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jTaskRepository creates a repository on an existing driver. An empty
// database selects the server default.
func NewNeo4jTaskRepository(driver neo4j.DriverWithContext, database string) *Neo4jTaskRepository {
	return &Neo4jTaskRepository{driver: driver, database: database}
}

// neo4jConstraints must exist before the first Create. MERGE on the sequence
// node is only race-free when :Sequence(name) is unique.
var neo4jConstraints = []string{
	"CREATE CONSTRAINT task_id_unique IF NOT EXISTS FOR (t:Task) REQUIRE t.id IS UNIQUE",
	"CREATE CONSTRAINT task_sequence_name_unique IF NOT EXISTS FOR (s:Sequence) REQUIRE s.name IS UNIQUE",
}

// EnsureSchema creates the uniqueness constraints on task ids and the id
// sequence.
func (r *Neo4jTaskRepository) EnsureSchema(ctx context.Context) error {
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, stmt := range neo4jConstraints {
		res, err := session.Run(ctx, stmt, nil)
		if err == nil {
			_, err = res.Consume(ctx)
		}
		if err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}
	return nil
}

// List retrieves all tasks ordered by id.
func (r *Neo4jTaskRepository) List(ctx context.Context) ([]models.Task, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, "MATCH (t:Task) "+neo4jReturnTask+" ORDER BY t.id ASC", nil)
		if err != nil {
			return nil, err
		}

		tasks := make([]models.Task, 0)
		for res.Next(ctx) {
			task, err := taskFromRecord(res.Record())
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}
		return tasks, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return result.([]models.Task), nil
}

// GetByID retrieves a single task.
func (r *Neo4jTaskRepository) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, "MATCH (t:Task {id: $id}) "+neo4jReturnTask, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		return singleTask(ctx, res)
	})
	if err != nil {
		return nil, r.wrap(err, "get task %d", id)
	}
	return result.(*models.Task), nil
}

// Create allocates the next id and adds the task node.
func (r *Neo4jTaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now()
	}

	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	id, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"MERGE (seq:Sequence {name: 'task'}) "+
				"ON CREATE SET seq.value = 0 "+
				"SET seq.value = seq.value + 1 "+
				"CREATE (t:Task {id: seq.value, title: $title, description: $description, "+
				"completed: $completed, created_at: $created_at}) "+
				"RETURN t.id AS id",
			map[string]any{
				"title":       task.Title,
				"description": optionalParam(task.Description),
				"completed":   task.Completed,
				"created_at":  task.CreatedAt,
			},
		)
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		value, _ := record.Get("id")
		return value, nil
	})
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	taskID, ok := id.(int64)
	if !ok {
		return fmt.Errorf("create task: unexpected id type %T", id)
	}
	task.ID = taskID
	return nil
}

// Update sets the supplied properties. Setting description to null removes
// the property.
func (r *Neo4jTaskRepository) Update(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error) {
	if patch.Empty() {
		return r.GetByID(ctx, id)
	}

	var sets []string
	params := map[string]any{"id": id}
	if patch.Title != nil {
		sets = append(sets, "t.title = $title")
		params["title"] = *patch.Title
	}
	if patch.Description.Set {
		sets = append(sets, "t.description = $description")
		params["description"] = optionalParam(patch.Description.Value)
	}
	if patch.Completed != nil {
		sets = append(sets, "t.completed = $completed")
		params["completed"] = *patch.Completed
	}

	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"MATCH (t:Task {id: $id}) SET "+strings.Join(sets, ", ")+" "+neo4jReturnTask,
			params,
		)
		if err != nil {
			return nil, err
		}
		return singleTask(ctx, res)
	})
	if err != nil {
		return nil, r.wrap(err, "update task %d", id)
	}
	return result.(*models.Task), nil
}

// Delete removes the task node and its relationships.
func (r *Neo4jTaskRepository) Delete(ctx context.Context, id int64) error {
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	deleted, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, "MATCH (t:Task {id: $id}) DETACH DELETE t", map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		return summary.Counters().NodesDeleted(), nil
	})
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if deleted.(int) == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Neo4jTaskRepository) Ping(ctx context.Context) error {
	return r.driver.VerifyConnectivity(ctx)
}

// Close shuts the driver down.
func (r *Neo4jTaskRepository) Close() error {
	if r == nil || r.driver == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.driver.Close(ctx)
}

func (r *Neo4jTaskRepository) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: r.database})
}

func (r *Neo4jTaskRepository) wrap(err error, format string, args ...any) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func singleTask(ctx context.Context, res neo4j.ResultWithContext) (*models.Task, error) {
	if !res.Next(ctx) {
		if err := res.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	task, err := taskFromRecord(res.Record())
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func taskFromRecord(record *neo4j.Record) (models.Task, error) {
	var task models.Task

	values := record.AsMap()
	id, ok := values["id"].(int64)
	if !ok {
		return task, fmt.Errorf("task id has type %T", values["id"])
	}
	task.ID = id
	task.Title, _ = values["title"].(string)
	if desc, ok := values["description"].(string); ok {
		task.Description = &desc
	}
	task.Completed, _ = values["completed"].(bool)
	if created, ok := values["created_at"].(time.Time); ok {
		task.CreatedAt = created.UTC()
	}
	return task, nil
}

func optionalParam(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
