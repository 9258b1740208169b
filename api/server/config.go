package server

import (
	"os"
	"runtime"
	"time"

	"github.com/agentdproject/agentd/api/common"
	"github.com/agentdproject/agentd/api/id"
	"github.com/agentdproject/agentd/api/models"
)

// Environment keys for NewFromEnv. Every key may also be provided through a
// <key>_FILE indirection, see common.GetEnv.
const (
	EnvLogLevel  = "AGENTD_LOG_LEVEL"
	EnvLogFormat = "AGENTD_LOG_FORMAT"
	EnvLogDest   = "AGENTD_LOG_DEST"

	EnvHost         = "AGENTD_HOST"
	EnvPort         = "AGENTD_PORT"
	EnvLocalMode    = "AGENTD_LOCAL_MODE"
	EnvServerID     = "AGENTD_SERVER_ID"
	EnvDashboardURL = "AGENTD_DASHBOARD_URL"

	EnvStoreURL = "AGENTD_STORE_URL"
	EnvDriver   = "AGENTD_DRIVER"

	EnvMaxPoolSize = "AGENTD_MAX_POOL_SIZE"
	EnvMaxExpire   = "AGENTD_MAX_EXPIRE"
	EnvMaxTimeout  = "AGENTD_MAX_TIMEOUT"
	EnvNumWorkers  = "AGENTD_NUM_WORKERS"
	EnvQueueDepth  = "AGENTD_QUEUE_DEPTH"

	EnvAPICORSOrigins = "AGENTD_API_CORS_ORIGINS"
	EnvAPICORSHeaders = "AGENTD_API_CORS_HEADERS"

	// DefaultPort matches cooperating launchers that probe for it.
	DefaultPort = 8080

	DefaultMaxPoolSize = 8192
	DefaultMaxExpire   = 2 * time.Hour
	DefaultMaxTimeout  = 2 * time.Hour
)

// ConfigFromEnv assembles the worker configuration from AGENTD_* variables,
// defaulting anything unset.
func ConfigFromEnv() *models.Config {
	cfg := &models.Config{
		Host:         common.GetEnv(EnvHost, "0.0.0.0"),
		Port:         common.GetEnvInt(EnvPort, DefaultPort),
		LocalMode:    common.GetEnvBool(EnvLocalMode, false),
		ServerID:     common.GetEnv(EnvServerID, ""),
		DashboardURL: common.GetEnv(EnvDashboardURL, ""),
		StoreURL:     common.GetEnv(EnvStoreURL, "memory://"),
		Driver:       common.GetEnv(EnvDriver, "inproc"),
		MaxPoolSize:  common.GetEnvInt(EnvMaxPoolSize, DefaultMaxPoolSize),
		MaxExpire:    common.GetEnvDuration(EnvMaxExpire, DefaultMaxExpire),
		MaxTimeout:   common.GetEnvDuration(EnvMaxTimeout, DefaultMaxTimeout),
		NumWorkers:   common.GetEnvInt(EnvNumWorkers, 2*runtime.NumCPU()),
		QueueDepth:   common.GetEnvInt(EnvQueueDepth, 0),
	}
	if cfg.ServerID == "" {
		host, _ := os.Hostname()
		cfg.ServerID = host + "-" + id.New().String()
	}
	return cfg
}
