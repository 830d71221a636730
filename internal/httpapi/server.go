// Package httpapi is the JSON surface over the same workspaces the bot
// uses.
package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"deadline-tracker/internal/metrics"
	"deadline-tracker/internal/repository"
	"deadline-tracker/internal/service"
)

// Deps are the services behind the API. Metrics and Ping are optional.
type Deps struct {
	Users      *repository.UserRepository
	Workspaces *service.WorkspaceService
	Metrics    *metrics.Metrics
	Ping       func(ctx context.Context) error
}

type Options struct {
	Location         *time.Location
	CountdownRefresh time.Duration
	Now              func() time.Time
}

// Server wraps the Fiber app.
type Server struct {
	App      *fiber.App
	Sessions *Sessions

	log    *zap.Logger
	cancel context.CancelFunc
}

// New creates the app with middleware and routes configured.
func New(deps Deps, opts Options, log *zap.Logger) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.CountdownRefresh <= 0 {
		opts.CountdownRefresh = time.Second
	}
	if opts.Now == nil {
		opts.Now = deps.Workspaces.Now
	}

	app := fiber.New(fiber.Config{
		AppName: "deadline-tracker",
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "internal server error"

			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
				message = e.Message
			} else {
				log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
			}
			return jsonError(c, code, message)
		},
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(accessLog(log.Named("http")))

	streams, cancel := context.WithCancel(context.Background())
	s := &Server{
		App:      app,
		Sessions: NewSessions(),
		log:      log,
		cancel:   cancel,
	}

	app.Get("/healthz", healthcheck.New(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			if deps.Ping == nil {
				return true
			}
			return deps.Ping(c.Context()) == nil
		},
	}))
	if deps.Metrics != nil {
		registry := deps.Metrics.Registry()
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	}

	authHandler := NewAuthHandler(deps.Users, deps.Workspaces, s.Sessions, log)
	linkHandler := NewLinkHandler(deps.Workspaces, opts.Location, log)
	countdownHandler := NewCountdownHandler(deps.Workspaces, opts.CountdownRefresh, opts.Now, streams, log)
	notificationHandler := NewNotificationHandler(deps.Workspaces, log)
	requireAuth := RequireAuth(s.Sessions)

	api := app.Group("/api")
	api.Post("/auth/login", authHandler.Login)
	api.Post("/auth/logout", requireAuth, authHandler.Logout)
	api.Get("/stats", requireAuth, linkHandler.Stats)

	links := api.Group("/links", requireAuth)
	links.Get("/", linkHandler.List)
	links.Post("/", linkHandler.Create)
	links.Get("/upcoming", linkHandler.Upcoming)
	links.Post("/extract", linkHandler.Extract)
	links.Get("/:id", linkHandler.Get)
	links.Put("/:id", linkHandler.Update)
	links.Delete("/:id", linkHandler.Delete)
	links.Post("/:id/status", linkHandler.SetStatus)
	links.Get("/:id/countdown", countdownHandler.Snapshot)
	links.Get("/:id/countdown/stream", countdownHandler.Stream)

	inbox := api.Group("/notifications", requireAuth)
	inbox.Get("/", notificationHandler.List)
	inbox.Post("/read-all", notificationHandler.MarkAllRead)
	inbox.Post("/:id/read", notificationHandler.MarkRead)

	return s
}

// Listen blocks serving on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.log.Info("http api listening", zap.String("addr", addr))
	return s.App.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown ends open countdown streams, then stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.App.ShutdownWithContext(ctx)
}

func accessLog(log *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var e *fiber.Error
		if errors.As(err, &e) {
			status = e.Code
		}
		log.Debug("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", requestid.FromContext(c)),
		)
		return err
	}
}
