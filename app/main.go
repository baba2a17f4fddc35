package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"todo-go/app/config"
	"todo-go/app/controllers"
	"todo-go/app/logger"
	"todo-go/app/metrics"
	"todo-go/app/middleware"
	"todo-go/app/repository"
	"todo-go/app/routes"
	"todo-go/app/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.New("tasks", "info", "json").WithError(err).Fatal("failed to load config")
	}
	log := logger.New("tasks", cfg.Log.Level, cfg.Log.Format)

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("tasks service stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	// Initialize the repository and bootstrap its schema
	repo, err := openRepository(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer repo.Close()

	m := metrics.New()

	// Initialize the service layer
	taskService := services.NewTaskService(repo, services.WithRecorder(m))

	// Initialize the controller layer
	taskController := controllers.NewTaskController(taskService, log)

	router := routes.NewRouter(taskController, m.Handler(),
		middleware.RequestID,
		middleware.Logging(log),
		m.Middleware,
		middleware.Recover(log),
	)

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		log.WithField("address", cfg.Server.Address).Info("tasks service starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// schemaRepository is a repository that can create its own schema.
type schemaRepository interface {
	repository.TaskRepository
	EnsureSchema(ctx context.Context) error
}

func openRepository(ctx context.Context, cfg config.DatabaseConfig) (repository.TaskRepository, error) {
	driver, err := cfg.Driver()
	if err != nil {
		return nil, err
	}

	var repo schemaRepository
	switch driver {
	case config.DriverMemory:
		return repository.NewMemoryTaskRepository(), nil
	case config.DriverNeo4j:
		neo4jDriver, err := config.InitNeo4j(ctx, cfg)
		if err != nil {
			return nil, err
		}
		repo = repository.NewNeo4jTaskRepository(neo4jDriver, cfg.Neo4jDatabase())
	default:
		db, name, err := config.InitDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		dialect, err := repository.DialectFor(name)
		if err != nil {
			db.Close()
			return nil, err
		}
		repo = repository.NewSQLTaskRepository(db, dialect)
	}

	if err := repo.EnsureSchema(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("bootstrap %s schema: %w", driver, err)
	}
	return repo, nil
}
