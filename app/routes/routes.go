package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"todo-go/app/controllers"
)

// RegisterRoutes sets up all routes for the application.
func RegisterRoutes(router *mux.Router, taskController *controllers.TaskController, metricsHandler http.Handler) {
	router.HandleFunc("/tasks", taskController.GetTasks).Methods(http.MethodGet)
	router.HandleFunc("/tasks", taskController.CreateTask).Methods(http.MethodPost)
	router.HandleFunc("/tasks/{taskID:[0-9]+}", taskController.GetTaskByID).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{taskID:[0-9]+}", taskController.UpdateTask).Methods(http.MethodPut)
	router.HandleFunc("/tasks/{taskID:[0-9]+}", taskController.DeleteTask).Methods(http.MethodDelete)

	router.HandleFunc("/healthz", taskController.Health).Methods(http.MethodGet)
	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}
}

// NewRouter builds the router. Middlewares run in the order given, the first
// one outermost, for every request including 404 and 405 responses.
func NewRouter(taskController *controllers.TaskController, metricsHandler http.Handler, middlewares ...mux.MiddlewareFunc) *mux.Router {
	router := mux.NewRouter()
	// router.Use only wraps matched routes.
	router.NotFoundHandler = chain(jsonError(http.StatusNotFound, "not found"), middlewares)
	router.MethodNotAllowedHandler = chain(jsonError(http.StatusMethodNotAllowed, "method not allowed"), middlewares)
	router.Use(middlewares...)

	RegisterRoutes(router, taskController, metricsHandler)
	return router
}

func chain(h http.Handler, middlewares []mux.MiddlewareFunc) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

func jsonError(code int, message string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"error":"` + message + `"}` + "\n"))
	})
}
