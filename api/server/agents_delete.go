package server

import (
	"net/http"

	"github.com/agentdproject/agentd/api"
	"github.com/agentdproject/agentd/api/models"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleAgentDelete(c *gin.Context) {
	ctx := c.Request.Context()

	if err := s.worker.DeleteAgent(ctx, c.Param(api.ParamAgentID)); err != nil {
		handleErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{OK: true, Message: "Agent deleted"})
}

// handleAgentDeleteAll tears down every hosted agent. Best-effort: all
// agents are attempted even if some fail to close.
func (s *Server) handleAgentDeleteAll(c *gin.Context) {
	ctx := c.Request.Context()

	if err := s.worker.DeleteAllAgents(ctx); err != nil {
		handleErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{OK: true, Message: "All agents deleted"})
}
