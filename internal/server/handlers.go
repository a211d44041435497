package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lamim/storyforge/internal/store"
	"github.com/lamim/storyforge/pkg/models"
)

const maxListLimit = 200

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) listStories(c *gin.Context) {
	params := store.ListParams{
		Niche:  c.Query("niche"),
		Group:  c.Query("group"),
		Search: c.Query("q"),
		Limit:  50,
	}
	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseWorkflowStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		params.Status = status
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		params.Limit = n
	}
	if params.Group != "" && params.Group != store.GroupBible && params.Group != store.GroupGeneral {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group must be bible or general"})
		return
	}

	stories, err := s.store.List(c.Request.Context(), params)
	if err != nil {
		s.logger.Error("Failed to list stories", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list stories"})
		return
	}
	if stories == nil {
		stories = []models.StoryRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories, "count": len(stories)})
}

func (s *Server) getStory(c *gin.Context) {
	rec, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) updateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	next, err := models.ParseWorkflowStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	if err := s.store.UpdateStatus(c.Request.Context(), id, next); err != nil {
		s.storeError(c, err)
		return
	}
	s.logger.Info("Story status updated", "id", id, "status", next)
	c.JSON(http.StatusOK, gin.H{"id": id, "status": next})
}

func (s *Server) storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger.Error("Library request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
