// Package web serves the task board over HTTP.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/nhle/taskboard/internal/board"
	"github.com/nhle/taskboard/internal/crossref"
	"github.com/nhle/taskboard/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options configures a Server.
type Options struct {
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool

	// SessionTTL sets the cookie lifetime.
	SessionTTL time.Duration
}

// Server is the task board web server.
type Server struct {
	board  *board.Board
	router *gin.Engine
	opts   Options
}

var (
	registerOnce sync.Once
	registerErr  error
)

// registerValidations installs the board's form rules on gin's shared
// validator.
func registerValidations() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("unexpected binding validator engine")
			return
		}
		registerErr = board.RegisterValidations(v)
	})
	return registerErr
}

// NewServer creates a web server with all routes registered.
func NewServer(b *board.Board, opts Options) (*Server, error) {
	if err := registerValidations(); err != nil {
		return nil, fmt.Errorf("registering validations: %w", err)
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	s := &Server{
		board:  b,
		router: router,
		opts:   opts,
	}

	tmpl, err := template.New("").Funcs(s.templateFuncs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	router.GET("/healthz", s.handleHealth)

	// Accounts
	accounts := router.Group("/accounts")
	{
		accounts.GET("/login/", s.handleLoginForm)
		accounts.POST("/login/", s.handleLogin)
		accounts.POST("/logout/", s.handleLogout)
	}

	app := router.Group("/", s.requireLogin)
	{
		app.GET("/accounts/password/", s.handlePasswordForm)
		app.POST("/accounts/password/", s.handlePasswordChange)

		// Tasks
		app.GET("/", s.handleTaskList)
		app.GET("/create/", s.handleTaskCreateForm)
		app.POST("/create/", s.handleTaskCreate)
		app.GET("/task/:id/", s.handleTaskDetail)
		app.POST("/task/:id/", s.handleTaskPost)
		app.GET("/task/:id/edit/", s.handleTaskEditForm)
		app.POST("/task/:id/edit/", s.handleTaskEdit)
		app.POST("/task/:id/delete/", s.handleTaskDelete)
		app.GET("/archive/", s.handleArchive)

		// Notifications
		app.Any("/notifications/mark-read/", s.handleMarkRead)
		app.GET("/notifications", s.handleNotifications)
		app.Any("/notifications/clear/", s.handleClearNotifications)

		// Employees
		app.GET("/employees/", s.handleEmployees)
		app.GET("/employees/create/", s.handleEmployeeCreateForm)
		app.POST("/employees/create/", s.handleEmployeeCreate)
		app.GET("/employees/:id/edit/", s.handleEmployeeEditForm)
		app.POST("/employees/:id/edit/", s.handleEmployeeEdit)
		app.POST("/employees/:id/delete/", s.handleEmployeeDelete)
	}

	return s, nil
}

// Handler exposes the router for http.Server and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[web] listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Printf("[web] shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) templateFuncs() template.FuncMap {
	loc := s.board.Location()
	return template.FuncMap{
		"linkify": crossref.Linkify,
		"datetime": func(t time.Time) string {
			return t.In(loc).Format("02.01.2006 15:04")
		},
		"statusLabel": func(st model.TaskStatus) string {
			return st.Label()
		},
		"assigneeNames": func(refs []model.UserRef) string {
			names := make([]string, len(refs))
			for i, r := range refs {
				names[i] = r.FullName
			}
			return strings.Join(names, ", ")
		},
		"fieldErrors": func(errs board.ValidationErrors, field string) []string {
			return errs[field]
		},
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
