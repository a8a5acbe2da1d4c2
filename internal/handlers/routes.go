package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Routes groups the handlers served by the API. The async handlers are nil
// when no database is configured.
type Routes struct {
	Compliance *ComplianceHandler
	Upload     *UploadHandler
	Evaluate   *EvaluationHandler
	Result     *ResultHandler
}

func (r Routes) Register(app *fiber.App) {
	endpoints := []string{
		"POST /api/validar-contratacion",
		"POST /api/v1/validate",
		"POST /api/v1/validate/structured",
		"POST /api/v1/validate/export",
	}

	app.Post("/api/validar-contratacion", r.Compliance.HandleValidate)

	api := app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	api.Post("/validate", r.Compliance.HandleValidate)
	api.Post("/validate/structured", r.Compliance.HandleValidateStructured)
	api.Post("/validate/export", r.Compliance.HandleExport)

	if r.Upload != nil && r.Evaluate != nil && r.Result != nil {
		api.Post("/upload", r.Upload.HandleUpload)
		api.Post("/evaluate", r.Evaluate.HandleEvaluate)
		api.Get("/result/:id", r.Result.HandleGetResult)
		api.Get("/result/:id/export", r.Result.HandleExport)
		api.Get("/result/:id/report", r.Result.HandleReport)

		endpoints = append(endpoints,
			"POST /api/v1/upload",
			"POST /api/v1/evaluate",
			"GET /api/v1/result/:id",
			"GET /api/v1/result/:id/export",
			"GET /api/v1/result/:id/report",
		)
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":   "Idoneidad Checker API",
			"version":   "1.0.0",
			"endpoints": endpoints,
		})
	})
}
