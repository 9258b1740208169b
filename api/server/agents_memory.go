package server

import (
	"net/http"

	"github.com/agentdproject/agentd/api"
	"github.com/agentdproject/agentd/api/models"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleAgentMemory(c *gin.Context) {
	ctx := c.Request.Context()

	memory, err := s.worker.AgentMemory(ctx, c.Param(api.ParamAgentID))
	if err != nil {
		handleErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MemoryResponse{OK: true, Memory: memory})
}
