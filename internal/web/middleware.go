package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"yarukoto/internal/metrics"
)

const requestIDKey = "requestid"

func requestLogger(c *fiber.Ctx, log *logrus.Entry) *logrus.Entry {
	id, _ := c.Locals(requestIDKey).(string)
	return log.WithField("request_id", id)
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	method, path := c.Method(), c.Path()
	err := c.Next()

	requestLogger(c, s.log).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      statusOf(c, err),
		"duration_ms": time.Since(start).Milliseconds(),
		"remote_ip":   c.IP(),
		"user_agent":  c.Get(fiber.HeaderUserAgent),
	}).Info("request completed")
	return err
}

func observeRequests(c *fiber.Ctx) error {
	start := time.Now()
	method := c.Method()
	err := c.Next()
	metrics.ObserveRequest(method, routeLabel(c), statusOf(c, err), time.Since(start))
	return err
}

// routeLabel is the pattern of the route that handled the request. When
// only the app-wide middleware matched, the route is reported as unmatched.
func routeLabel(c *fiber.Ctx) string {
	r := c.Route()
	if r == nil || r.Path == "" || r.Path == "/" {
		return metrics.UnmatchedRoute
	}
	return r.Path
}

// statusOf reports the status the error handler will send when err is set.
func statusOf(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	if fe, ok := err.(*fiber.Error); ok {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}
