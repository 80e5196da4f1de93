package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/rankbridge/rerankgate/pkg/common"
	"github.com/sirupsen/logrus"
)

// authMiddleware guards the gateway with a static service-key list. An
// empty list leaves the endpoint open, matching the original deployment.
type authMiddleware struct {
	logger      *logrus.Logger
	serviceKeys []string
}

func NewAuthMiddleware(logger *logrus.Logger, serviceKeys []string) Middleware {
	return &authMiddleware{
		logger:      logger,
		serviceKeys: serviceKeys,
	}
}

func (m *authMiddleware) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if len(m.serviceKeys) == 0 {
			return ctx.Next()
		}

		serviceKey := ctx.Get(common.ServiceKeyHeader)
		if serviceKey == "" {
			m.logger.Debug("no service key provided")
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "API key required"})
		}

		if !m.isValidKey(serviceKey) {
			m.logger.Debug("invalid service key")
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid API key"})
		}

		ctx.Locals(common.ServiceKeyContextKey, serviceKey)

		return ctx.Next()
	}
}

func (m *authMiddleware) isValidKey(candidate string) bool {
	valid := false
	for _, key := range m.serviceKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(candidate)) == 1 {
			valid = true
		}
	}
	return valid
}
