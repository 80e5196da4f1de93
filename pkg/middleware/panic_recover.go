package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rankbridge/rerankgate/pkg/common"
	"github.com/sirupsen/logrus"
)

type panicRecoverMiddleware struct {
	logger *logrus.Logger
}

func NewPanicRecoverMiddleware(logger *logrus.Logger) Middleware {
	return &panicRecoverMiddleware{logger: logger}
}

// Middleware converts a panic anywhere below it into a 500 JSON response
// instead of tearing down the connection.
func (m *panicRecoverMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			if r := recover(); r != nil {
				requestID, _ := c.Locals(common.RequestIdContextKey).(string)
				m.logger.WithFields(logrus.Fields{
					"error":      r,
					"method":     c.Method(),
					"path":       c.Path(),
					"request_id": requestID,
				}).Error("recovered from panic while handling rerank traffic")

				_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "internal server error",
				})
			}
		}()

		return c.Next()
	}
}
