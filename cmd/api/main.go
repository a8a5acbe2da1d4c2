package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	log "github.com/sirupsen/logrus"

	"alfredoptarigan/idoneidad-checker/internal/config"
	"alfredoptarigan/idoneidad-checker/internal/handlers"
	"alfredoptarigan/idoneidad-checker/internal/logger"
	"alfredoptarigan/idoneidad-checker/internal/models"
	"alfredoptarigan/idoneidad-checker/internal/repositories"
	"alfredoptarigan/idoneidad-checker/internal/services"
)

func main() {
	cfg := config.Load()
	accessLog := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log.Info("Config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	apiKey, err := cfg.ResolveAPIKey(nil, nil)
	if err != nil {
		log.WithError(err).Fatal("Gemini API key is required")
	}

	modelClient, err := services.NewGeminiService(ctx, services.GeminiOptions{
		APIKey:          apiKey,
		Model:           cfg.Gemini.Model,
		Temperature:     cfg.Gemini.Temperature,
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
		Timeout:         cfg.Gemini.Timeout,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize Gemini")
	}
	log.WithField("model", cfg.Gemini.Model).Info("Gemini initialized")

	collector := services.NewInputCollector(
		services.NewPDFParserService(),
		services.NewImageOptimizer(services.DefaultMaxImageSide),
	)
	excel := services.NewExcelFiller(cfg.Storage.TemplatePath)

	routes := handlers.Routes{}
	var worker services.Worker

	if cfg.Database.Enabled {
		db, err := config.InitDatabase(cfg)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize database")
		}

		docRepo := repositories.NewDocumentRepository(db)
		evalRepo := repositories.NewEvaluationRepository(db)

		storageService := services.NewStorageService(cfg.Storage.UploadPath)
		if err := storageService.EnsureUploadDir(); err != nil {
			log.WithError(err).Fatal("Failed to create upload directory")
		}

		evaluator := services.NewEvaluatorService(evalRepo, storageService, collector, modelClient, cfg.Gemini.MaxAttempts)
		worker = services.NewWorker(evalRepo, evaluator, services.WorkerOptions{
			Concurrency:  cfg.Worker.Concurrency,
			QueueSize:    cfg.Worker.QueueSize,
			PollInterval: cfg.Worker.PollInterval,
		})
		worker.Start(ctx)

		routes.Compliance = handlers.NewComplianceHandler(evaluator, excel, cfg.Storage.MaxFileSize)
		routes.Upload = handlers.NewUploadHandler(docRepo, storageService, services.NewPDFParserService(), cfg.Storage.MaxFileSize)
		routes.Evaluate = handlers.NewEvaluationHandler(evalRepo, docRepo, worker, models.ResponseMode(cfg.Gemini.ResponseMode))
		routes.Result = handlers.NewResultHandler(evalRepo, docRepo, storageService, excel)
	} else {
		evaluator := services.NewEvaluatorService(nil, nil, collector, modelClient, cfg.Gemini.MaxAttempts)
		routes.Compliance = handlers.NewComplianceHandler(evaluator, excel, cfg.Storage.MaxFileSize)
		log.Info("Database disabled, async evaluation endpoints are not served")
	}

	app := fiber.New(fiber.Config{
		AppName:      "Idoneidad Checker API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Gemini.Timeout + 30*time.Second,
		BodyLimit:    int(cfg.Storage.MaxFileSize) * 10,
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.FiberMiddleware(accessLog))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	routes.Register(app)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("Shutting down server")
		if worker != nil {
			worker.Stop()
		}
		cancel()
		if err := app.Shutdown(); err != nil {
			log.WithError(err).Error("Server forced to shutdown")
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.WithField("addr", addr).Info("Server starting")

	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
