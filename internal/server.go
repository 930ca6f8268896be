package internal

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"project-tracker-api/internal/auth"
	"project-tracker-api/internal/config"
	"project-tracker-api/internal/handlers"
	"project-tracker-api/internal/repository"
	"project-tracker-api/internal/service"
	"project-tracker-api/pkg/importer"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const pingTimeout = 2 * time.Second

type Server struct {
	Router     *chi.Mux
	Store      repository.Store
	Projects   *service.ProjectService
	Managers   *service.ManagerService
	JWTManager *auth.JWTManager
	Metrics    *Metrics
	Logger     *zap.Logger

	imports *handlers.ImportsHandler
}

// NewServer wires services, middleware and routes on top of store.
// JWTManager is nil when cfg.AuthEnabled is false.
func NewServer(cfg *config.Config, store repository.Store, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	validate := service.NewValidator()
	s := &Server{
		Router:   chi.NewRouter(),
		Store:    store,
		Projects: service.NewProjectService(store, validate, logger),
		Managers: service.NewManagerService(store, validate, logger),
		Metrics:  NewMetrics(),
		Logger:   logger.Named("http"),
	}

	if cfg.AuthEnabled {
		s.JWTManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry)
		if err := s.JWTManager.ValidateConfig(); err != nil {
			return nil, fmt.Errorf("jwt config: %w", err)
		}
	}

	mapping, err := importer.LoadMapping(cfg.ImportMapping)
	if err != nil {
		return nil, err
	}
	im, err := importer.New(s.Projects, mapping, logger)
	if err != nil {
		return nil, err
	}
	s.imports = handlers.NewImportsHandler(im, cfg.ImportMaxBytes, logger.Named("imports"))
	s.imports.Recorder = s.Metrics

	// chi requires every Use before the first route
	s.Router.Use(RequestID)
	s.Router.Use(AccessLog(s.Logger))
	s.Router.Use(middleware.Recoverer)
	if cfg.EnableMetrics {
		s.Router.Use(s.Metrics.Middleware())
	}

	// Public routes
	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	s.Router.Get("/dbping", s.dbPing)
	if cfg.EnableMetrics {
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	s.Router.Group(func(r chi.Router) {
		if s.JWTManager != nil {
			r.Use(auth.AuthMiddleware(s.JWTManager))
		}
		s.mountProtectedRoutes(r)
	})

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// Close releases the store
func (s *Server) Close(ctx context.Context) error {
	if s.Store != nil {
		s.Store.Close()
	}
	return nil
}

func (s *Server) dbPing(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		s.Logger.Warn("store ping failed", zap.Error(err))
		http.Error(w, "db: unavailable", http.StatusServiceUnavailable)
		return
	}
	if _, err := w.Write([]byte("db: ok")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// admin restricts a write route to project admins when auth is on
func (s *Server) admin(h http.HandlerFunc) http.HandlerFunc {
	if s.JWTManager == nil {
		return h
	}
	return auth.MustRole(auth.RoleAdmin)(h).(http.HandlerFunc)
}

// mountProtectedRoutes mounts the project and manager routes
func (s *Server) mountProtectedRoutes(r chi.Router) {
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", s.listProjects)
		r.Post("/", s.admin(s.createProject))
		r.Get("/search", s.searchProjects)
		r.Post("/import", s.admin(s.imports.UploadExcel))
		r.Get("/code/{projectCode}", s.getProjectByCode)

		r.Get("/pm/email/{email}", s.listProjectsByManagerEmail)
		r.Get("/pm/employee/{employeeID}", s.listProjectsByManagerEmployeeID)
		r.Route("/pm/{pmID}", func(r chi.Router) {
			r.Get("/", s.listManagerProjects)
			r.Get("/paginated", s.pageManagerProjects)
			r.Get("/status/{status}", s.listManagerProjectsByStatus)
			r.Get("/daterange", s.listManagerProjectsByDateRange)
			r.Get("/count", s.countManagerProjects)
		})

		r.Route("/{projectID}", func(r chi.Router) {
			r.Get("/", s.getProject)
			r.Put("/", s.admin(s.updateProject))
			r.Delete("/", s.admin(s.deleteProject))
			r.Post("/pm/{pmID}", s.admin(s.assignManager))
			r.Delete("/pm/{pmID}", s.admin(s.removeManager))
		})
	})

	r.Route("/managers", func(r chi.Router) {
		r.Get("/", s.listManagers)
		r.Post("/", s.admin(s.createManager))
		r.Get("/search", s.searchManagers)
		r.Get("/{pmID}", s.getManager)
	})
}
