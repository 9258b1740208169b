package server

import (
	"net/http"

	"github.com/agentdproject/agentd/api/common"
	"github.com/agentdproject/agentd/api/models"
	"github.com/agentdproject/agentd/api/version"
	"github.com/gin-gonic/gin"
)

func handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, models.MessageResponse{OK: true, Message: "pong"})
}

func handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "version": version.Version})
}

func (s *Server) handleServerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, s.worker.Info(c.Request.Context()))
}

// handleShutdown acknowledges first, then trips the main loop; in-flight
// requests drain through http.Server.Shutdown.
func (s *Server) handleShutdown(c *gin.Context) {
	common.Logger(c.Request.Context()).Info("shutdown requested via api")
	c.JSON(http.StatusOK, models.MessageResponse{OK: true, Message: "Shutting down"})
	s.Stop()
}
