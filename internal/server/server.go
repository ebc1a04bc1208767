package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"accounts/internal/auth"
	"accounts/internal/config"
	"accounts/internal/handlers"
	"accounts/internal/middleware"
	puser "accounts/internal/platform/user"
)

const (
	reasonNotFound         = "NotFound"
	reasonMethodNotAllowed = "MethodNotAllowed"
	reasonRequestTooLarge  = "RequestTooLarge"
	reasonBadRequest       = "BadRequest"
)

type Services struct {
	Auth   *puser.AuthService
	Reset  *puser.ResetWorkflow
	Users  *puser.UserService
	Issuer *auth.Issuer
}

// New builds the HTTP application. Handlers find their services in the
// request locals.
func New(cfg *config.Config, s Services) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "accounts",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(compress.New())
	app.Use(helmet.New())
	app.Use(cors.New())
	app.Use(healthcheck.New())
	app.Use(middleware.RobotsMiddleware())

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		c.Locals("auth", s.Auth)
		c.Locals("reset", s.Reset)
		c.Locals("users", s.Users)
		c.Locals("issuer", s.Issuer)
		return c.Next()
	})

	// Target of the link in reset mails.
	app.Get("/resetpassword/:token", middleware.NoStore, handlers.ResetPasswordPage)

	api := app.Group(cfg.APIPrefix())
	api.Post("/login", middleware.NoStore, handlers.Login)
	api.Post("/signup", handlers.Signup)
	api.Post("/forgotpassword", handlers.ForgotPassword)
	api.Post("/resetpassword", middleware.NoStore, handlers.ResetPassword)
	api.Get("/resetpassword/:token", middleware.NoStore, handlers.ResetPasswordPage)

	api.Get("/me", middleware.AuthMiddleware, handlers.GetCurrentUser)
	api.Get("/users", middleware.AuthMiddleware, handlers.ListUsers)

	user := api.Group("/user", middleware.AuthMiddleware)
	user.Post("/", handlers.CreateUser)
	user.Get("/:id", handlers.GetUser)
	user.Put("/:id", handlers.UpdateUser)
	user.Delete("/:id", handlers.DeleteUser)

	app.Use(func(c *fiber.Ctx) error {
		return handlers.Reject(c, fiber.StatusNotFound, reasonNotFound, "Not found")
	})

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	if code >= fiber.StatusInternalServerError {
		log.Errorw("server: request failed", "path", c.Path(), "request_id", c.Locals("requestid"), "error", err)
		return handlers.Reject(c, code, handlers.ReasonInternalError, "Internal server error")
	}

	return handlers.Reject(c, code, clientReason(code), e.Message)
}

func clientReason(code int) string {
	switch code {
	case fiber.StatusNotFound:
		return reasonNotFound
	case fiber.StatusMethodNotAllowed:
		return reasonMethodNotAllowed
	case fiber.StatusRequestEntityTooLarge:
		return reasonRequestTooLarge
	default:
		return reasonBadRequest
	}
}
