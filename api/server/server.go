package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/agentdproject/agentd/api"
	"github.com/agentdproject/agentd/api/common"
	"github.com/agentdproject/agentd/api/drivers"
	"github.com/agentdproject/agentd/api/id"
	"github.com/agentdproject/agentd/api/models"
	"github.com/agentdproject/agentd/api/taskstore"
	"github.com/agentdproject/agentd/api/worker"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	// default result store backends
	_ "github.com/agentdproject/agentd/api/taskstore/memory"
	_ "github.com/agentdproject/agentd/api/taskstore/redis"
)

// Server is the stateless RPC façade over the worker core: one route per
// worker operation, plus health, info and metrics.
type Server struct {
	Router *gin.Engine

	cfg    *models.Config
	worker *worker.Worker

	stop     chan struct{}
	stopOnce sync.Once
}

// New builds a server around an already wired worker.
func New(cfg *models.Config, w *worker.Worker) *Server {
	engine := gin.New()
	s := &Server{
		Router: engine,
		cfg:    cfg,
		worker: w,
		stop:   make(chan struct{}),
	}

	engine.Use(loggerWrap, panicWrap, metricsWrap)
	optionalCorsWrap(engine)
	s.bindHandlers()
	return s
}

// NewFromEnv builds the whole worker from environment configuration.
func NewFromEnv(ctx context.Context) *Server {
	common.SetLogFormat(common.GetEnv(EnvLogFormat, "text"))
	common.SetLogLevel(common.GetEnv(EnvLogLevel, "info"))
	common.SetLogDest(common.GetEnv(EnvLogDest, "stderr"))

	cfg := ConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	// seed task/clone id generation so cooperating workers cannot collide
	if addr := net.ParseIP(cfg.Host); addr != nil && addr.To4() != nil {
		id.SetMachineIDHost(addr, uint16(cfg.Port))
	}

	driver, err := drivers.New(cfg.Driver, drivers.Config{ServerID: cfg.ServerID})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"driver": cfg.Driver}).Fatal("error creating agent driver")
	}
	store, err := taskstore.New(cfg.StoreURL, cfg.MaxTimeout)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"store": cfg.StoreURL}).Fatal("error creating result store")
	}
	w, err := worker.New(cfg, driver, store)
	if err != nil {
		logrus.WithError(err).Fatal("error creating worker")
	}
	return New(cfg, w)
}

func (s *Server) bindHandlers() {
	engine := s.Router

	engine.GET("/version", handleVersion)
	engine.GET("/metrics", handlePrometheus)

	v1 := engine.Group("/v1")
	v1.GET("/ping", handlePing)
	v1.POST("/shutdown", s.handleShutdown)
	v1.GET("/info", s.handleServerInfo)
	v1.PUT("/configs/models", s.handleModelConfigsSet)

	v1.POST("/agents", s.handleAgentCreate)
	v1.GET("/agents", s.handleAgentList)
	v1.DELETE("/agents", s.handleAgentDeleteAll)
	v1.DELETE("/agents/:"+api.ParamAgentID, s.handleAgentDelete)
	v1.POST("/agents/:"+api.ParamAgentID+"/clone", s.handleAgentClone)
	v1.GET("/agents/:"+api.ParamAgentID+"/memory", s.handleAgentMemory)
	v1.POST("/agents/:"+api.ParamAgentID+"/call", s.handleAgentCall)

	v1.GET("/tasks/:"+api.ParamTaskID, s.handleTaskGet)
	v1.GET("/files", s.handleFileDownload)
}

// Start serves until the context is cancelled, a SIGINT/SIGTERM arrives or
// the Stop RPC fires, then drains in-flight requests and tears the worker
// down.
func (s *Server) Start(ctx context.Context) {
	ctx, cancel := contextWithSignal(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{"addr": srv.Addr, "server_id": s.cfg.ServerID}).Info("agentd serving")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		logrus.WithError(err).Fatal("server exited")
	case <-ctx.Done():
		logrus.Info("signal received, shutting down")
	case <-s.stop:
		logrus.Info("stop requested, shutting down")
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), s.cfg.MaxTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("error draining http server")
	}
	if err := s.worker.Close(shutdownCtx); err != nil {
		logrus.WithError(err).Error("error closing worker")
	}
}

func contextWithSignal(ctx context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	c := make(chan os.Signal, 1)
	signal.Notify(c, signals...)
	go func() {
		select {
		case <-c:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(c)
	}()
	return ctx, cancel
}

// Stop signals Start to begin a clean shutdown.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
