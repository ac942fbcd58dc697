package web

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nhle/taskboard/internal/board"
	"github.com/nhle/taskboard/internal/rules"
	"github.com/nhle/taskboard/internal/store"
)

const forbiddenTaskMessage = "У вас нет доступа к этой задаче."

// render executes a page template with the data every page needs: the
// current user and the unread notification menu.
func (s *Server) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if _, ok := data["errors"]; !ok {
		data["errors"] = board.ValidationErrors{}
	}
	if a, ok := currentActor(c); ok {
		data["user"] = currentUser(c)
		data["isManager"] = a.IsManager()
		summary, err := s.board.NotificationSummary(c.Request.Context(), a)
		if err != nil {
			log.Printf("[web] loading notifications for user %d: %v", a.ID, err)
		} else {
			data["notifications"] = summary
		}
	}
	c.HTML(status, name, data)
}

// renderError shows the error page.
func (s *Server) renderError(c *gin.Context, status int, message string) {
	s.render(c, status, "error.html", gin.H{
		"title":   http.StatusText(status),
		"message": message,
	})
}

// fail maps board errors onto responses. Denied actions redirect to
// deniedTo.
func (s *Server) fail(c *gin.Context, err error, deniedTo string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.renderError(c, http.StatusNotFound, "Страница не найдена.")
	case errors.Is(err, rules.ErrAuthorizationDenied):
		c.Redirect(http.StatusFound, deniedTo)
	default:
		log.Printf("[web] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		s.renderError(c, http.StatusInternalServerError, "Внутренняя ошибка сервера.")
	}
}

// validationErrors extracts field errors from err.
func validationErrors(err error) (board.ValidationErrors, bool) {
	var ve board.ValidationErrors
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// bind decodes the posted form into obj and runs its binding tags. Field
// errors are returned for re-rendering the form. A request that cannot be
// decoded at all gets the bad-request page and ok is false.
func (s *Server) bind(c *gin.Context, obj any) (errs board.ValidationErrors, ok bool) {
	err := c.ShouldBind(obj)
	if err == nil {
		return nil, true
	}
	if ve, ok := board.FieldErrors(err); ok {
		return ve, true
	}
	log.Printf("[web] %s %s: binding form: %v", c.Request.Method, c.Request.URL.Path, err)
	s.renderError(c, http.StatusBadRequest, "Некорректный запрос.")
	return nil, false
}

// paramID parses a positive integer path parameter. Malformed ids render
// the not-found page.
func (s *Server) paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		s.renderError(c, http.StatusNotFound, "Страница не найдена.")
		return 0, false
	}
	return id, true
}
