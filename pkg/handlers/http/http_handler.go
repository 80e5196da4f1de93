package http

import "github.com/gofiber/fiber/v2"

type Handler interface {
	Handle(ctx *fiber.Ctx) error
}

type HandlerTransport struct {
	RerankHandler     Handler
	ListModelsHandler Handler
	GetVersionHandler Handler
}
