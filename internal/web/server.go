package web

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"yarukoto/internal/command"
	"yarukoto/internal/config"
	"yarukoto/internal/metrics"
	"yarukoto/internal/query"
	"yarukoto/internal/todo"
)

type Lister interface {
	List(ctx context.Context, p query.Params) ([]todo.Item, error)
}

type Store interface {
	Get(ctx context.Context, id int64) (todo.Item, error)
	Ping(ctx context.Context) error
}

type Commands interface {
	Dispatch(ctx context.Context, f command.Form) command.Result
}

type Deps struct {
	Lister   Lister
	Store    Store
	Commands Commands
	Log      *logrus.Entry
	Now      func() time.Time
}

type Server struct {
	app  *fiber.App
	addr string
	log  *logrus.Entry
	deps Deps
}

func New(cfg config.HTTP, deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{addr: cfg.Addr, log: deps.Log, deps: deps}

	s.app = fiber.New(fiber.Config{
		AppName:               "yarukoto",
		ReadTimeout:           cfg.ReadTimeout(),
		WriteTimeout:          cfg.WriteTimeout(),
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	s.app.Use(
		recover.New(),
		requestid.New(requestid.Config{
			Generator:  uuid.NewString,
			ContextKey: requestIDKey,
		}),
		cors.New(),
		s.logRequests,
		observeRequests,
	)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	todos := s.app.Group("/todos")
	todos.Get("/", s.handleList)
	todos.Post("/", s.handleCommand)
	todos.Get("/:id", s.handleGet)
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.addr).Info("http server listening")
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server")
	if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	} else {
		requestLogger(c, s.log).WithError(err).Error("unhandled error")
	}
	return FiberJsonResponse(c, code, "error", msg, nil)
}

func FiberJsonResponse(c *fiber.Ctx, httpStatus int, status, message string, data any) error {
	return c.Status(httpStatus).JSON(fiber.Map{"status": status, "message": message, "data": data})
}
