package server

import (
	"net/http"

	"github.com/agentdproject/agentd/api"
	"github.com/agentdproject/agentd/api/models"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleAgentClone(c *gin.Context) {
	ctx := c.Request.Context()

	cloneID, err := s.worker.CloneAgent(ctx, c.Param(api.ParamAgentID))
	if err != nil {
		handleErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CloneResponse{OK: true, AgentID: cloneID})
}
