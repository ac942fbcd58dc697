package web

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nhle/taskboard/internal/board"
)

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

func (s *Server) handleLoginForm(c *gin.Context) {
	s.render(c, http.StatusOK, "login.html", gin.H{
		"next": c.Query("next"),
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	ctx := c.Request.Context()
	var form loginForm
	if _, ok := s.bind(c, &form); !ok {
		return
	}

	u, err := s.board.Authenticate(ctx, form.Username, form.Password)
	if errors.Is(err, board.ErrInvalidCredentials) {
		s.render(c, http.StatusOK, "login.html", gin.H{
			"next":     form.Next,
			"username": form.Username,
			"failed":   true,
		})
		return
	}
	if err != nil {
		s.fail(c, err, loginPath)
		return
	}

	sess, err := s.board.StartSession(ctx, u.ID)
	if err != nil {
		s.fail(c, err, loginPath)
		return
	}
	s.setSessionCookie(c, sess.Token)
	log.Printf("[web] user %s signed in", u.Username)

	if u.MustChangePassword {
		c.Redirect(http.StatusFound, passwordPath)
		return
	}
	c.Redirect(http.StatusFound, safeNext(form.Next))
}

func (s *Server) handleLogout(c *gin.Context) {
	if token, err := c.Cookie(sessionCookie); err == nil && token != "" {
		if err := s.board.EndSession(c.Request.Context(), token); err != nil {
			log.Printf("[web] ending session: %v", err)
		}
	}
	s.clearSessionCookie(c)
	c.Redirect(http.StatusFound, loginPath)
}

func (s *Server) handlePasswordForm(c *gin.Context) {
	s.render(c, http.StatusOK, "password.html", gin.H{
		"forced": currentUser(c).MustChangePassword,
	})
}

func (s *Server) handlePasswordChange(c *gin.Context) {
	u := currentUser(c)
	var form board.PasswordForm
	errs, ok := s.bind(c, &form)
	if !ok {
		return
	}
	if len(errs) == 0 {
		err := s.board.ChangePassword(c.Request.Context(), u.ID, form)
		ve, isValidation := validationErrors(err)
		if !isValidation && err != nil {
			s.fail(c, err, "/")
			return
		}
		errs = ve
	}
	if len(errs) > 0 {
		s.render(c, http.StatusOK, "password.html", gin.H{
			"forced": u.MustChangePassword,
			"errors": errs,
		})
		return
	}
	c.Redirect(http.StatusFound, "/")
}
