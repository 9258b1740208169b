package models

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config is the process wide worker configuration, fixed for the worker's
// lifetime.
type Config struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	LocalMode    bool   `json:"local_mode"`
	ServerID     string `json:"server_id"`
	DashboardURL string `json:"dashboard_url"`

	// StoreURL selects the result store backend, e.g. memory:// or
	// redis://localhost:6379
	StoreURL string `json:"store_url"`
	Driver   string `json:"driver"`

	// MaxPoolSize bounds the number of live agents in the registry.
	MaxPoolSize int `json:"max_pool_size"`
	// MaxExpire is the idle age past which an agent becomes evictable.
	MaxExpire time.Duration `json:"max_expire"`
	// MaxTimeout bounds a synchronous call and the lifetime of stored task
	// results.
	MaxTimeout time.Duration `json:"max_timeout"`
	// NumWorkers is the dispatch pool size, QueueDepth its backlog.
	NumWorkers int `json:"num_workers"`
	QueueDepth int `json:"queue_depth"`
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxPoolSize <= 0 {
		return errors.New("max pool size must be positive")
	}
	if c.MaxExpire <= 0 {
		return errors.New("max expire must be positive")
	}
	if c.MaxTimeout <= 0 {
		return errors.New("max timeout must be positive")
	}
	if c.NumWorkers <= 0 {
		return errors.New("num workers must be positive")
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = c.NumWorkers * 64
	}
	return nil
}

// ListenAddr is the host:port the API server binds. LocalMode pins the
// listener to loopback regardless of Host.
func (c *Config) ListenAddr() string {
	host := c.Host
	if c.LocalMode {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(c.Port))
}
