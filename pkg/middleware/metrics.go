package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rankbridge/rerankgate/pkg/common"
	"github.com/rankbridge/rerankgate/pkg/infra/prometheus"
	"github.com/sirupsen/logrus"
)

type metricsMiddleware struct {
	logger   *logrus.Logger
	taskChan chan func()
}

func NewMetricsMiddleware(logger *logrus.Logger) Middleware {
	m := &metricsMiddleware{
		logger:   logger,
		taskChan: make(chan func(), 1000),
	}
	go m.startWorkers(5)
	return m
}

func (m *metricsMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := uuid.New().String()
		c.Locals(common.RequestIdContextKey, requestID)
		c.Set(common.RequestIDHeader, requestID)

		startTime := time.Now()
		c.Locals(common.LatencyContextKey, startTime)

		if prometheus.Config.EnableConnections {
			prometheus.Connections.WithLabelValues("active").Inc()
		}

		err := c.Next()

		elapsed := time.Since(startTime)
		method := c.Method()
		path := c.Route().Path
		statusCode := c.Response().StatusCode()

		m.enqueueTask(func() {
			m.record(method, path, statusCode, elapsed)
		})

		return err
	}
}

func (m *metricsMiddleware) record(method, path string, statusCode int, elapsed time.Duration) {
	prometheus.RequestTotal.WithLabelValues(method, path, statusClass(statusCode)).Inc()
	if prometheus.Config.EnableLatency {
		prometheus.RequestLatency.WithLabelValues("total").Observe(float64(elapsed.Milliseconds()))
	}
	if prometheus.Config.EnableConnections {
		prometheus.Connections.WithLabelValues("active").Dec()
	}
}

func (m *metricsMiddleware) startWorkers(n int) {
	for i := 0; i < n; i++ {
		go func() {
			for task := range m.taskChan {
				task()
			}
		}()
	}
}

func (m *metricsMiddleware) enqueueTask(task func()) {
	select {
	case m.taskChan <- task:
	default:
		m.logger.Warn("taskChan is full, dropping metrics task")
	}
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
