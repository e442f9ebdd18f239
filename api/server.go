package api

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"messenger/auth"
	"messenger/errors"
	"messenger/observability"
	"messenger/runtime"
	"messenger/services"
)

// Server is the HTTP and WebSocket front of the delivery core.
type Server struct {
	log  *slog.Logger
	app  *fiber.App
	addr string
}

func NewServer(log *slog.Logger, addr string, accounts services.IAccountService,
	chats services.IChatService, history services.IHistoryService, tokens *auth.TokenIssuer,
	engine *runtime.Engine, stats *observability.DeliveryStats, readLimit int64) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "messenger",
		DisableStartupMessage: true,
		ErrorHandler:          newErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New())

	s := &Server{log: log, app: app, addr: addr}
	s.registerRoutes(
		newUserHandler(accounts),
		newChatHandler(chats),
		newMessageHandler(history),
		newHealthHandler(stats),
		NewSocketHandler(log, engine, readLimit),
		tokens,
	)
	return s
}

func (s *Server) registerRoutes(users *userHandler, chats *chatHandler, messages *messageHandler,
	health *healthHandler, sockets *SocketHandler, tokens *auth.TokenIssuer) {
	s.app.Get("/healthz", health.snapshot)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/:chat_id", sockets.admitSocket, websocket.New(sockets.handleSocket))

	api := s.app.Group("/api/v1")
	api.Post("/users", users.register)
	api.Post("/auth/login", users.login)
	api.Post("/auth/refresh", users.refresh)

	// Routes above stay public: the auth middleware only guards what is
	// registered after it.
	api.Use(requireAuth(tokens))
	api.Get("/users", users.list)
	api.Get("/users/:id", users.get)
	api.Put("/users/:id", users.update)
	api.Delete("/users/:id", users.remove)

	api.Post("/chats", chats.create)
	api.Get("/chats", chats.list)
	api.Get("/chats/:id", chats.get)
	api.Get("/chats/:id/participants", chats.participants)
	api.Post("/chats/:id/participants", chats.addParticipant)
	api.Delete("/chats/:id/participants/:user_id", chats.removeParticipant)

	api.Get("/chats/:id/messages", messages.history)
	api.Get("/chats/:id/messages/search", messages.search)
}

// Listen blocks serving requests until the listener fails or Shutdown
// is called.
func (s *Server) Listen() error {
	s.log.Info("API listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the fiber app for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func newErrorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := statusForErr(err)
		message := err.Error()
		if code == fiber.StatusInternalServerError {
			message = "internal server error"
			log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		} else {
			log.Debug("request rejected", "method", c.Method(), "path", c.Path(), "status", code, "error", err)
		}
		return c.Status(code).JSON(fiber.Map{"error": message})
	}
}

func statusForErr(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return fiber.StatusBadRequest
	}

	switch {
	case errors.Is(err, errors.ErrInvalidToken),
		errors.Is(err, errors.ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	case errors.Is(err, errors.ErrNotParticipant),
		errors.Is(err, errors.ErrSelfRemovalOnly):
		return fiber.StatusForbidden
	case errors.Is(err, errors.ErrUserNotFound),
		errors.Is(err, errors.ErrChatNotFound),
		errors.Is(err, errors.ErrUnknownMessage):
		return fiber.StatusNotFound
	case errors.Is(err, errors.ErrUserAlreadyExists):
		return fiber.StatusConflict
	case errors.Is(err, errors.ErrInvalidPassword),
		errors.Is(err, errors.ErrEmptyBody),
		errors.Is(err, errors.ErrBodyTooLarge),
		errors.Is(err, errors.ErrMalformedFrame),
		errors.Is(err, errors.ErrDirectChatSize),
		errors.Is(err, errors.ErrNotGroupChat),
		errors.Is(err, errors.ErrChatNameRequired),
		errors.Is(err, errors.ErrStaleResume):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
