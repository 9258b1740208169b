package server

import (
	"net/http"

	"github.com/agentdproject/agentd/api/models"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleAgentCreate(c *gin.Context) {
	ctx := c.Request.Context()

	var wrapper models.AgentWrapper
	if err := c.ShouldBindJSON(&wrapper); err != nil {
		handleErrorResponse(c, models.ErrInvalidJSON)
		return
	}

	if err := s.worker.CreateAgent(ctx, wrapper.AgentID, wrapper.InitArgs, wrapper.Source); err != nil {
		handleErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{OK: true, Message: "Agent created"})
}
