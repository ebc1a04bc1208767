package handlers

import (
	"errors"

	"github.com/go-playground/validator"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"accounts/internal/auth"
	puser "accounts/internal/platform/user"
)

// Reasons are stable, machine readable error identifiers.
const (
	ReasonMissingFields         = "MissingFields"
	ReasonValidationFailed      = "ValidationFailed"
	ReasonInvalidPassword       = "InvalidPassword"
	ReasonAccountNotFound       = "AccountNotFound"
	ReasonAccountInactive       = "AccountInactive"
	ReasonCredentialMismatch    = "CredentialMismatch"
	ReasonDuplicateAccount      = "DuplicateAccount"
	ReasonExpiredOrInvalidToken = "ExpiredOrInvalidToken"
	ReasonTokenInvalidOrExpired = "TokenInvalidOrExpired"
	ReasonStoreUnavailable      = "StoreUnavailable"
	ReasonInternalError         = "InternalError"
)

// ok writes a success envelope merged with payload.
func ok(c *fiber.Ctx, payload fiber.Map) error {
	body := fiber.Map{"error": false}
	for k, v := range payload {
		body[k] = v
	}
	return c.JSON(body)
}

// Reject writes an error envelope.
func Reject(c *fiber.Ctx, status int, reason, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   true,
		"reason":  reason,
		"message": message,
	})
}

func invalidInput(c *fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				return Reject(c, fiber.StatusBadRequest, ReasonMissingFields, "Field `"+fe.Field()+"` is mandatory")
			}
		}
		return Reject(c, fiber.StatusBadRequest, ReasonValidationFailed, verrs.Error())
	}
	return Reject(c, fiber.StatusBadRequest, ReasonValidationFailed, "Invalid input")
}

// fail maps err to a status and reason. Details of unexpected errors are
// logged, never returned.
func fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, puser.ErrMissingFields):
		return Reject(c, fiber.StatusBadRequest, ReasonMissingFields, err.Error())
	case errors.Is(err, puser.ErrInvalidPassword):
		return Reject(c, fiber.StatusBadRequest, ReasonInvalidPassword, err.Error())
	case errors.Is(err, puser.ErrExpiredOrInvalidToken):
		return Reject(c, fiber.StatusBadRequest, ReasonExpiredOrInvalidToken, err.Error())
	case errors.Is(err, puser.ErrCredentialMismatch):
		return Reject(c, fiber.StatusUnauthorized, ReasonCredentialMismatch, "Invalid credentials")
	case errors.Is(err, auth.ErrTokenInvalidOrExpired):
		return Reject(c, fiber.StatusUnauthorized, ReasonTokenInvalidOrExpired, "Unauthorized")
	case errors.Is(err, puser.ErrAccountInactive):
		return Reject(c, fiber.StatusForbidden, ReasonAccountInactive, err.Error())
	case errors.Is(err, puser.ErrAccountNotFound):
		return Reject(c, fiber.StatusNotFound, ReasonAccountNotFound, err.Error())
	case errors.Is(err, puser.ErrDuplicateAccount):
		return Reject(c, fiber.StatusConflict, ReasonDuplicateAccount, err.Error())
	case errors.Is(err, puser.ErrStoreUnavailable):
		log.Errorw("handlers: store failure", "path", c.Path(), "request_id", c.Locals("requestid"), "error", err)
		return Reject(c, fiber.StatusInternalServerError, ReasonStoreUnavailable, "Service temporarily unavailable")
	default:
		log.Errorw("handlers: unexpected error", "path", c.Path(), "request_id", c.Locals("requestid"), "error", err)
		return Reject(c, fiber.StatusInternalServerError, ReasonInternalError, "Internal server error")
	}
}
