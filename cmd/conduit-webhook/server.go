// Package main provides the Conduit webhook intake server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/dukex/conduit/pkg/persistence"
	"github.com/dukex/conduit/pkg/web"
)

type Server struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	publisher   web.Publisher
}

func NewServer(logger *slog.Logger, persistence persistence.Persistence, publisher web.Publisher) *Server {
	return &Server{
		logger:      logger,
		persistence: persistence,
		publisher:   publisher,
	}
}

func (s *Server) App() *fiber.App {
	handlers := web.NewWebhookHandlers(s.persistence.WorkflowRepository(), s.publisher, s.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	handlers.Register(app)

	return app
}

func (s *Server) Start(port int) error {
	return s.App().Listen(":" + strconv.Itoa(port))
}
