package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"accounts/internal/config"
	"accounts/internal/database"
	puser "accounts/internal/platform/user"
)

type NameInput struct {
	First *string `json:"first" validate:"omitempty,max=100"`
	Last  *string `json:"last" validate:"omitempty,max=100"`
}

func (n *NameInput) value() database.Name {
	var name database.Name
	if n == nil {
		return name
	}
	if n.First != nil {
		name.First = *n.First
	}
	if n.Last != nil {
		name.Last = *n.Last
	}
	return name
}

func Login(c *fiber.Ctx) error {
	authService := c.Locals("auth").(*puser.AuthService)

	type LoginInput struct {
		Handle   string `json:"handle" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	var input LoginInput
	if err := c.BodyParser(&input); err != nil {
		return invalidInput(c, err)
	}

	if err := config.Validate.Struct(input); err != nil {
		return invalidInput(c, err)
	}

	result, err := authService.Login(c.UserContext(), input.Handle, input.Password)
	if err != nil {
		// Unknown handles look like a wrong password to the client.
		if errors.Is(err, puser.ErrAccountNotFound) {
			log.Infow("user service: login rejected", "reason", ReasonAccountNotFound)
			err = puser.ErrCredentialMismatch
		} else if errors.Is(err, puser.ErrCredentialMismatch) || errors.Is(err, puser.ErrAccountInactive) {
			log.Infow("user service: login rejected", "reason", err.Error())
		}
		return fail(c, err)
	}

	return ok(c, fiber.Map{
		"handle":    result.Handle,
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
	})
}

func Signup(c *fiber.Ctx) error {
	authService := c.Locals("auth").(*puser.AuthService)

	type SignupInput struct {
		Email    string     `json:"email" validate:"required,email"`
		Phone    string     `json:"phone" validate:"omitempty,max=32"`
		Password string     `json:"password" validate:"omitempty,max=72"`
		Name     *NameInput `json:"name"`
	}

	var input SignupInput
	if err := c.BodyParser(&input); err != nil {
		return invalidInput(c, err)
	}

	if err := config.Validate.Struct(input); err != nil {
		return invalidInput(c, err)
	}

	account, err := authService.Signup(c.UserContext(), puser.SignupInput{
		Email:    input.Email,
		Phone:    input.Phone,
		Password: input.Password,
		Name:     input.Name.value(),
	})
	if err != nil {
		return fail(c, err)
	}

	return ok(c, fiber.Map{"user": account})
}

func ForgotPassword(c *fiber.Ctx) error {
	reset := c.Locals("reset").(*puser.ResetWorkflow)

	type ForgotPasswordInput struct {
		Handle string `json:"handle" validate:"required"`
	}

	var input ForgotPasswordInput
	if err := c.BodyParser(&input); err != nil {
		return invalidInput(c, err)
	}

	if err := config.Validate.Struct(input); err != nil {
		return invalidInput(c, err)
	}

	if err := reset.Start(c.UserContext(), input.Handle); err != nil {
		return fail(c, err)
	}

	return ok(c, nil)
}

func ResetPassword(c *fiber.Ctx) error {
	reset := c.Locals("reset").(*puser.ResetWorkflow)

	type ResetPasswordInput struct {
		Token    string `json:"token" validate:"required"`
		Password string `json:"password" validate:"required,max=72"`
	}

	var input ResetPasswordInput
	if err := c.BodyParser(&input); err != nil {
		return invalidInput(c, err)
	}

	if err := config.Validate.Struct(input); err != nil {
		return invalidInput(c, err)
	}

	if _, err := reset.Redeem(c.UserContext(), input.Token, input.Password); err != nil {
		return fail(c, err)
	}

	return ok(c, nil)
}

// ResetPasswordPage checks that the token in a mailed link can still be used.
// It never consumes the token.
func ResetPasswordPage(c *fiber.Ctx) error {
	reset := c.Locals("reset").(*puser.ResetWorkflow)

	token := c.Params("token")
	account, err := reset.Inspect(c.UserContext(), token)
	if err != nil {
		return fail(c, err)
	}

	return ok(c, fiber.Map{
		"handle": account.Email,
		"token":  token,
	})
}
