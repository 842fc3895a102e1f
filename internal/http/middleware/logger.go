package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerLocalKey stores the request-scoped *zap.Logger in Fiber's context locals.
const LoggerLocalKey = "logger"

// Logger logs one structured entry per request with request_id, method, path,
// status and latency_ms. Handlers can fetch a logger already carrying the
// request_id via LoggerFrom.
func Logger(log *zap.Logger) fiber.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")

	return func(c *fiber.Ctx) error {
		start := time.Now()
		reqLog := log.With(zap.String("request_id", RequestIDFrom(c)))
		c.Locals(LoggerLocalKey, reqLog)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			// Handled later by the app's ErrorHandler; report what it will write.
			status = fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		level := zapcore.InfoLevel
		switch {
		case status >= fiber.StatusInternalServerError:
			level = zapcore.ErrorLevel
		case status >= fiber.StatusBadRequest:
			level = zapcore.WarnLevel
		}

		if ce := reqLog.Check(level, "http_request"); ce != nil {
			ce.Write(
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000),
			)
		}
		return err
	}
}

// LoggerFrom returns the request-scoped logger stored by Logger. It never returns nil.
func LoggerFrom(c *fiber.Ctx) *zap.Logger {
	if l, ok := c.Locals(LoggerLocalKey).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}
