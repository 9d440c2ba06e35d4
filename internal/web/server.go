// Package web serves the admin panel and its JSON API over HTTP.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/inovacc/pagewright/internal/admin"
	"github.com/inovacc/pagewright/internal/auth"
	"github.com/inovacc/pagewright/internal/content"
	"github.com/inovacc/pagewright/internal/model"
	"github.com/inovacc/pagewright/internal/publish"
)

//go:embed templates/*.html templates/partials/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Config holds the web server configuration
type Config struct {
	Port int
	Host string
	// SecureCookies marks the session cookie Secure. Enable behind TLS.
	SecureCookies bool
}

// DefaultConfig returns the default web server configuration
func DefaultConfig() Config {
	return Config{
		Port: 8080,
		Host: "127.0.0.1",
	}
}

// Deps are the collaborators the server binds to HTTP.
type Deps struct {
	Controller *admin.Controller
	Content    *content.Service
	// Publisher answers the bearer-token publish endpoint. Nil disables it.
	Publisher admin.Publisher
	Logger    *slog.Logger
}

// Server represents the web server
type Server struct {
	httpServer *http.Server
	ctrl       *admin.Controller
	content    *content.Service
	publisher  admin.Publisher
	sessions   *admin.Sessions
	sseHub     *SSEHub
	config     Config
	templates  map[string]*template.Template
	logger     *slog.Logger
}

// New creates a new web server
func New(config Config, deps Deps) (*Server, error) {
	if deps.Controller == nil || deps.Content == nil {
		return nil, errors.New("web: controller and content service are required")
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		ctrl:      deps.Controller,
		content:   deps.Content,
		publisher: deps.Publisher,
		sessions:  admin.NewSessions(),
		sseHub:    NewSSEHub(logger),
		config:    config,
		templates: tmpl,
		logger:    logger,
	}, nil
}

// templateFuncMap returns the common template functions
func templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"value": func(r model.Record, field string) string {
			return r.String(field)
		},
		"checked": func(r model.Record, field string) bool {
			return r.Bool(field)
		},
		"ago": func(t time.Time) string {
			if t.IsZero() {
				return "never"
			}

			return humanize.Time(t)
		},
		"stamp": func(s string) string {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return s
			}

			return humanize.Time(t)
		},
		"truncate": func(s string, maxLen int) string {
			r := []rune(s)
			if len(r) <= maxLen {
				return s
			}

			if maxLen <= 3 {
				return string(r[:maxLen])
			}

			return string(r[:maxLen-3]) + "..."
		},
	}
}

// Each page gets its own template instance so content blocks do not clash.
var pageTemplates = []string{
	"login.html",
	"dashboard.html",
	"section.html",
	"collection.html",
	"item.html",
}

func parseTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template)
	funcMap := templateFuncMap()

	for _, page := range pageTemplates {
		tmpl, err := template.New("").Funcs(funcMap).ParseFS(templatesFS,
			"templates/layout.html", "templates/partials/*.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", page, err)
		}

		templates[page] = tmpl
	}

	partials, err := template.New("").Funcs(funcMap).ParseFS(templatesFS, "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse partials: %w", err)
	}

	templates["partials"] = partials

	return templates, nil
}

// Handler returns the routed handler wrapped in the logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.setupRoutes(mux)

	return s.loggingMiddleware(mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	stopFeed := s.runFeed(ctx)
	defer stopFeed()

	s.logger.Info("admin panel listening", "url", "http://"+addr)

	errCh := make(chan error, 1)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	return s.Shutdown(context.Background()) //nolint:contextcheck // parent context cancelled, use background for shutdown
}

// runFeed starts the SSE hub and forwards content changes to it until the
// returned stop function is called.
func (s *Server) runFeed(ctx context.Context) func() {
	hubCtx, stopHub := context.WithCancel(ctx)

	go s.sseHub.Run(hubCtx)

	stopWatch := s.content.Watch(func() {
		s.BroadcastEvent(EventContentChanged, "content changed", nil)
	})

	return func() {
		stopWatch()
		stopHub()
		<-s.sseHub.done
	}
}

// Shutdown gracefully shuts down the web server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down web server")

	return s.httpServer.Shutdown(shutdownCtx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the connection.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// render renders a page inside the layout
func (s *Server) render(w http.ResponseWriter, status int, templateName string, data any) {
	tmpl, ok := s.templates[templateName]
	if !ok {
		s.logger.Error("template not found", "template", templateName)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		s.logger.Error("template error", "template", templateName, "error", err)
	}
}

// renderPartial renders a fragment for in-page updates
func (s *Server) renderPartial(w http.ResponseWriter, templateName string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := s.templates["partials"].ExecuteTemplate(w, templateName, data); err != nil {
		s.logger.Error("template error", "template", templateName, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var verr *model.ValidationError

	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, content.ErrUnknownSection),
		errors.Is(err, content.ErrUnknownCollection),
		errors.Is(err, admin.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, admin.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, admin.ErrSessionExpired),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, admin.ErrPublishInFlight):
		return http.StatusConflict
	}

	return publish.HTTPStatus(err)
}
