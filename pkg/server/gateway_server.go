package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rankbridge/rerankgate/pkg/config"
	handlers "github.com/rankbridge/rerankgate/pkg/handlers/http"
	"github.com/rankbridge/rerankgate/pkg/infra/prometheus"
	"github.com/rankbridge/rerankgate/pkg/middleware"
	"github.com/sirupsen/logrus"
)

type (
	GatewayServerDI struct {
		Config              *config.Config
		Logger              *logrus.Logger
		MiddlewareTransport middleware.Transport
		HandlerTransport    handlers.HandlerTransport
	}
	GatewayServer struct {
		*BaseServer
		middlewareTransport middleware.Transport
		handlerTransport    handlers.HandlerTransport
	}
)

const (
	RootPath    = "/"
	HealthPath  = "/health"
	PingPath    = "/__/ping"
	VersionPath = "/version"
	ModelsPath  = "/models"
	RerankPath  = "/rerank"
)

func NewGatewayServer(di GatewayServerDI) *GatewayServer {
	metricsConfig := prometheus.MetricsConfig{
		EnableLatency:         di.Config.Metrics.EnableLatency,
		EnableUpstreamLatency: di.Config.Metrics.EnableUpstream,
		EnableConnections:     di.Config.Metrics.EnableConnections,
	}
	prometheus.Initialize(metricsConfig)

	s := &GatewayServer{
		BaseServer:          NewBaseServer(di.Config, di.Logger),
		middlewareTransport: di.MiddlewareTransport,
		handlerTransport:    di.HandlerTransport,
	}

	s.BaseServer.setupMetricsEndpoint()
	return s
}

func (s *GatewayServer) Run() error {

	s.router.Use(s.middlewareTransport.RecoverMiddleware.Middleware())

	s.router.Get(RootPath, func(ctx *fiber.Ctx) error {
		return ctx.Status(http.StatusOK).JSON(fiber.Map{
			"status": "rerankgate is up",
			"note":   "POST /rerank with JSON body",
		})
	})

	s.router.Get(HealthPath, func(ctx *fiber.Ctx) error {
		return ctx.Status(http.StatusOK).JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	s.router.Get(PingPath, func(ctx *fiber.Ctx) error {
		return ctx.Status(http.StatusOK).JSON(fiber.Map{
			"message": "pong",
		})
	})

	s.router.Get(VersionPath, s.handlerTransport.GetVersionHandler.Handle)

	authenticated := []fiber.Handler{
		s.middlewareTransport.AuthMiddleware.Middleware(),
		s.middlewareTransport.MetricsMiddleware.Middleware(),
	}

	s.router.Get(ModelsPath, append(authenticated, s.handlerTransport.ListModelsHandler.Handle)...)
	s.router.Post(RerankPath, append(authenticated, s.handlerTransport.RerankHandler.Handle)...)
	s.router.Post("/v1"+RerankPath, append(authenticated, s.handlerTransport.RerankHandler.Handle)...)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.logger.WithField("addr", addr).Info("Starting gateway server")
	return s.router.Listen(addr)
}

func (s *GatewayServer) Shutdown() error {
	return s.router.Shutdown()
}
