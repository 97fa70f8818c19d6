package handlers

import (
	"net/http"
	"time"

	"showcase/internal/services"

	"github.com/gin-gonic/gin"
)

type BootcampHandler struct {
	projects *services.ProjectService
	deadline *services.Deadline
}

func NewBootcampHandler(projects *services.ProjectService, deadline *services.Deadline) *BootcampHandler {
	return &BootcampHandler{projects: projects, deadline: deadline}
}

func (h *BootcampHandler) List(c *gin.Context) {
	bootcamps, err := h.projects.ListActiveBootcamps(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bootcamps)
}

// Deadline GET /api/deadline
func (h *BootcampHandler) Deadline(c *gin.Context) {
	c.JSON(http.StatusOK, h.deadline.Info(time.Now()))
}
