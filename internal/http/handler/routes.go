package handler

import (
	"github.com/gofiber/fiber/v2"

	"ragapi/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, docs service.DocumentService, qa service.QAService, health service.HealthService) {
	app.Get("/health", Health())
	app.Get("/healthz", LivenessProbe())
	app.Get("/status", Status(health))

	app.Get("/documents", ListDocuments(docs))
	app.Post("/documents", UploadDocument(docs))
	app.Get("/documents/:id", GetDocument(docs))
	app.Get("/documents/:id/raw", RawDocument(docs))
	app.Delete("/documents/:id", DeleteDocument(docs))

	app.Post("/qa", AskQuestion(qa))
}
