package web

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/rules"
	"github.com/nhle/taskboard/internal/store"
)

const (
	sessionCookie = "taskboard_session"
	passwordPath  = "/accounts/password/"
	loginPath     = "/accounts/login/"

	ctxUser  = "user"
	ctxActor = "actor"
)

// requireLogin resolves the session cookie into the current user and
// actor. Anonymous requests are sent to the login page; users who must
// change their password are sent to the password form first.
func (s *Server) requireLogin(c *gin.Context) {
	token, err := c.Cookie(sessionCookie)
	if err != nil || token == "" {
		s.redirectToLogin(c)
		return
	}

	u, err := s.board.SessionUser(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[web] resolving session: %v", err)
		}
		s.clearSessionCookie(c)
		s.redirectToLogin(c)
		return
	}

	c.Set(ctxUser, u)
	c.Set(ctxActor, rules.ActorFor(*u))

	if u.MustChangePassword && c.Request.URL.Path != passwordPath {
		c.Redirect(http.StatusFound, passwordPath)
		c.Abort()
		return
	}

	c.Next()
}

func (s *Server) redirectToLogin(c *gin.Context) {
	target := loginPath + "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

func (s *Server) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, int(s.opts.SessionTTL.Seconds()), "/", "", s.opts.SecureCookies, true)
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, "", -1, "/", "", s.opts.SecureCookies, true)
}

// currentUser returns the user resolved by requireLogin.
func currentUser(c *gin.Context) *model.User {
	if v, ok := c.Get(ctxUser); ok {
		if u, ok := v.(*model.User); ok {
			return u
		}
	}
	return nil
}

// currentActor returns the actor resolved by requireLogin.
func currentActor(c *gin.Context) (rules.Actor, bool) {
	if v, ok := c.Get(ctxActor); ok {
		a, ok := v.(rules.Actor)
		return a, ok
	}
	return rules.Actor{}, false
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
