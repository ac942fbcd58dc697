package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleNotifications(c *gin.Context) {
	actor, _ := currentActor(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	p, err := s.board.NotificationPage(c.Request.Context(), actor, page)
	if err != nil {
		s.fail(c, err, "/")
		return
	}
	s.render(c, http.StatusOK, "notifications.html", gin.H{"page": p})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error"})
		return
	}
	actor, _ := currentActor(c)
	if _, err := s.board.MarkNotificationsRead(c.Request.Context(), actor); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) handleClearNotifications(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error"})
		return
	}
	actor, _ := currentActor(c)
	if _, err := s.board.ClearNotifications(c.Request.Context(), actor); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
