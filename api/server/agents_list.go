package server

import (
	"net/http"

	"github.com/agentdproject/agentd/api/models"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleAgentList(c *gin.Context) {
	agents := s.worker.ListAgents(c.Request.Context())
	c.JSON(http.StatusOK, models.AgentListResponse{OK: true, Agents: agents})
}
