package in

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"

	"github.com/sremani/Artifortress-sub001/internal/platform/mlog"
)

const headerCorrelationID = "X-Correlation-Id"

const (
	defaultAccessControlAllowOrigin  = "*"
	defaultAccessControlAllowMethods = "POST, GET, OPTIONS, PUT, DELETE, PATCH"
	defaultAccessControlAllowHeaders = "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization"
)

// WithCORS enables CORS, configurable via the same ACCESS_CONTROL_* env
// vars as common/net/http/withCORS.go.
func WithCORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     getenvOrDefault("ACCESS_CONTROL_ALLOW_ORIGIN", defaultAccessControlAllowOrigin),
		AllowMethods:     getenvOrDefault("ACCESS_CONTROL_ALLOW_METHODS", defaultAccessControlAllowMethods),
		AllowHeaders:     getenvOrDefault("ACCESS_CONTROL_ALLOW_HEADERS", defaultAccessControlAllowHeaders),
		AllowCredentials: true,
	})
}

func getenvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

// WithCorrelationID stamps every request with a correlation id, generating
// one when the caller didn't supply one. Grounded on
// common/net/http/withCorrelationID.go.
func WithCorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		cid := c.Get(headerCorrelationID)
		if cid == "" {
			cid = uuid.NewString()
		}

		c.Set(headerCorrelationID, cid)
		c.Locals(headerCorrelationID, cid)

		return c.Next()
	}
}

// WithHTTPLogging logs one line per request (method, path, status, duration,
// correlation id), skipping the liveness probe so it doesn't flood logs.
// Grounded on common/net/http/withLogging.go's WithHTTPLogging, trimmed to
// this module's mlog.Logger interface.
func WithHTTPLogging(logger mlog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/health/live" {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		cid, _ := c.Locals(headerCorrelationID).(string)

		logger.WithFields("correlationId", cid).Infof(
			"%s %s %d %s", c.Method(), c.Path(), c.Response().StatusCode(), duration)

		return err
	}
}

// WithRecover turns a panic in a downstream handler into a logged 500
// instead of crashing the server, grounded on the same
// recover-and-log-then-500 idiom common/net/http/withLogging.go's access-log
// wrapper runs every request through.
func WithRecover(logger mlog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("panic recovered: %v", r)
				err = WithError(c, fiber.NewError(fiber.StatusInternalServerError, "internal server error"))
			}
		}()

		return c.Next()
	}
}
