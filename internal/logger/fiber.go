package logger

import (
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// FiberMiddleware logs every request except CORS preflights. Responses with
// status >= 300 are logged at warn level.
func FiberMiddleware(logger *log.Logger) fiber.Handler {
	if logger == nil {
		logger = log.StandardLogger()
	}

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if c.Method() == fiber.MethodOptions {
			return err
		}

		status := c.Response().StatusCode()
		if err != nil {
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		entry := logger.WithFields(log.Fields{
			"method":  c.Method(),
			"path":    c.Path(),
			"status":  status,
			"latency": time.Since(start).String(),
			"ip":      c.IP(),
		})
		if err != nil {
			entry = entry.WithError(err)
		}

		if status >= 300 {
			entry.Warn("api request")
		} else {
			entry.Info("api request")
		}

		return err
	}
}
