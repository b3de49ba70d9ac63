package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"policy-rag/internal/handlers"
	"policy-rag/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	QueryService   service.QueryService
	StatusService  service.StatusService
	AllowedOrigins []string
	Version        string
	Environment    string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	// Add chi middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS(deps.AllowedOrigins))

	r.Get("/", handlers.Root)
	r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(deps.StatusService))
	r.Method(http.MethodPost, "/chat", handlers.NewChatHandler(deps.QueryService))
	r.Get("/api/version", handlers.Version(deps.Version, deps.Environment))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
