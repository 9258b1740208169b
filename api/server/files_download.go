package server

import (
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/agentdproject/agentd/api/common"
	"github.com/agentdproject/agentd/api/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// downloadChunkSize is the fixed read/flush unit for file streaming.
const downloadChunkSize = 64 * 1024

// handleFileDownload streams a worker-local file back in fixed chunks.
// Anything wrong with the file is reported before the first byte; once the
// stream starts, failures can only be logged and the connection cut.
func (s *Server) handleFileDownload(c *gin.Context) {
	ctx := c.Request.Context()
	log := common.Logger(ctx)

	path := c.Query("path")
	if path == "" {
		handleErrorResponse(c, models.ErrFilesMissingPath)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		handleErrorResponse(c, models.ErrFilesNotFound)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		handleErrorResponse(c, models.ErrFilesNotFound)
		return
	}

	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Length", strconv.FormatInt(fi.Size(), 10))
	c.Status(http.StatusOK)

	buf := make([]byte, downloadChunkSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				log.WithError(werr).WithFields(logrus.Fields{"path": path}).Info("download aborted by client")
				return
			}
			c.Writer.Flush()
		}
		if rerr == io.EOF {
			return
		}
		if rerr != nil {
			log.WithError(rerr).WithFields(logrus.Fields{"path": path}).Error("read error mid-download")
			c.Abort()
			return
		}
		if ctx.Err() != nil {
			log.WithFields(logrus.Fields{"path": path}).Info("download aborted by client")
			return
		}
	}
}
