package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agentdproject/agentd/api/common"
	"github.com/agentdproject/agentd/api/id"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var (
	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentd_api_requests_total",
			Help: "Count of API requests by method, path and status.",
		},
		[]string{"method", "path", "status"},
	)
	apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentd_api_request_duration_seconds",
			Help:    "API request latency by method and path.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(apiRequests, apiLatency)
}

// loggerWrap tags every request context with a request id and a scoped
// logger so downstream code logs with correlation.
func loggerWrap(c *gin.Context) {
	rid := c.GetHeader("X-Request-Id")
	if rid == "" {
		rid = id.New().String()
	}
	ctx := common.WithRequestID(c.Request.Context(), rid)
	ctx, _ = common.LoggerWithFields(ctx, logrus.Fields{"request_id": rid})
	c.Header("X-Request-Id", rid)
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

func panicWrap(c *gin.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			common.Logger(c.Request.Context()).WithError(err).Error("panic serving request")
			handleErrorResponse(c, ErrInternalServerError)
			c.Abort()
		}
	}()
	c.Next()
}

func metricsWrap(c *gin.Context) {
	start := time.Now()
	c.Next()

	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	apiRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	apiLatency.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
}

func optionalCorsWrap(engine *gin.Engine) {
	corsStr := common.GetEnv(EnvAPICORSOrigins, "")
	if corsStr == "" {
		return
	}

	origins := strings.Split(strings.ReplaceAll(corsStr, " ", ""), ",")
	corsConfig := cors.DefaultConfig()
	if origins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}

	corsHeaders := common.GetEnv(EnvAPICORSHeaders, "")
	if corsHeaders != "" {
		headers := strings.Split(strings.ReplaceAll(corsHeaders, " ", ""), ",")
		corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, headers...)
	}

	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}
	logrus.WithFields(logrus.Fields{"origins": origins}).Info("CORS enabled")
	engine.Use(cors.New(corsConfig))
}
