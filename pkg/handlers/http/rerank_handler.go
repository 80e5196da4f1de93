package http

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rankbridge/rerankgate/pkg/cache"
	"github.com/rankbridge/rerankgate/pkg/domain"
	"github.com/rankbridge/rerankgate/pkg/domain/rerank"
	"github.com/rankbridge/rerankgate/pkg/infra/prometheus"
	"github.com/rankbridge/rerankgate/pkg/infra/voyage"
	"github.com/sirupsen/logrus"
)

type rerankHandler struct {
	logger        *logrus.Logger
	client        voyage.Client
	responseCache *cache.ResponseCache
	defaultModel  string
	allowedModels []string
}

func NewRerankHandler(
	logger *logrus.Logger,
	client voyage.Client,
	responseCache *cache.ResponseCache,
	defaultModel string,
	allowedModels []string,
) Handler {
	return &rerankHandler{
		logger:        logger,
		client:        client,
		responseCache: responseCache,
		defaultModel:  defaultModel,
		allowedModels: allowedModels,
	}
}

func (h *rerankHandler) Handle(c *fiber.Ctx) error {
	var req rerank.Request
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON payload"})
	}

	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	model := h.resolveModel(req.Model)
	fingerprint := voyage.Fingerprint(model, &req)

	if cached, ok := h.responseCache.Get(c.Context(), fingerprint); ok {
		prometheus.RerankCacheTotal.WithLabelValues("hit").Inc()
		return c.Status(fiber.StatusOK).JSON(cached)
	}
	if h.responseCache.Enabled() {
		prometheus.RerankCacheTotal.WithLabelValues("miss").Inc()
	}

	prometheus.RerankDocuments.WithLabelValues(model).Observe(float64(len(req.Documents)))

	upstreamStart := time.Now()
	result, err := h.client.Rerank(c.UserContext(), &req)
	if err != nil {
		return h.handleRerankError(c, err)
	}
	if prometheus.Config.EnableUpstreamLatency {
		prometheus.RequestLatency.WithLabelValues("upstream").
			Observe(float64(time.Since(upstreamStart).Milliseconds()))
	}

	h.responseCache.Set(c.Context(), fingerprint, result)

	h.logger.WithFields(logrus.Fields{
		"model":     result.Model,
		"documents": len(req.Documents),
		"ranked":    len(result.Ranked),
	}).Debug("rerank request completed")

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *rerankHandler) handleRerankError(c *fiber.Ctx, err error) error {
	if errors.Is(err, domain.ErrMissingCredential) {
		h.logger.Error("rerank request rejected: no upstream credential configured")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if upstreamErr, ok := domain.IsUpstreamError(err); ok {
		// Pass the upstream status and payload through untouched.
		var payload interface{}
		if jsonErr := json.Unmarshal(upstreamErr.Body, &payload); jsonErr != nil {
			payload = string(upstreamErr.Body)
		}
		h.logger.WithField("status", upstreamErr.StatusCode).Warn("upstream rejected rerank request")
		return c.Status(upstreamErr.StatusCode).JSON(fiber.Map{"voyage_error": payload})
	}

	if domain.IsUnreachableError(err) {
		h.logger.WithError(err).Error("upstream unreachable")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	h.logger.WithError(err).Error("rerank request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}

func (h *rerankHandler) resolveModel(requested string) string {
	if requested == "" {
		return h.defaultModel
	}
	for _, m := range h.allowedModels {
		if m == requested {
			return requested
		}
	}
	if len(h.allowedModels) == 0 {
		return requested
	}
	return h.defaultModel
}
