package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type listModelsHandler struct {
	logger        *logrus.Logger
	defaultModel  string
	allowedModels []string
}

func NewListModelsHandler(logger *logrus.Logger, defaultModel string, allowedModels []string) Handler {
	return &listModelsHandler{
		logger:        logger,
		defaultModel:  defaultModel,
		allowedModels: allowedModels,
	}
}

func (h *listModelsHandler) Handle(c *fiber.Ctx) error {
	models := h.allowedModels
	if len(models) == 0 {
		models = []string{h.defaultModel}
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"default_model": h.defaultModel,
		"models":        models,
	})
}
