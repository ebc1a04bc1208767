package handlers

import (
	"github.com/gofiber/fiber/v2"

	"accounts/internal/auth"
	"accounts/internal/config"
	"accounts/internal/database"
	puser "accounts/internal/platform/user"
)

func GetCurrentUser(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*auth.Claims)

	return ok(c, fiber.Map{"user": claims.Identity()})
}

func ListUsers(c *fiber.Ctx) error {
	userService := c.Locals("users").(*puser.UserService)

	users, err := userService.List(c.UserContext())
	if err != nil {
		return fail(c, err)
	}

	return ok(c, fiber.Map{"users": users})
}

func GetUser(c *fiber.Ctx) error {
	userService := c.Locals("users").(*puser.UserService)

	user, err := userService.GetUserByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	return ok(c, fiber.Map{"user": user})
}

func CreateUser(c *fiber.Ctx) error {
	userService := c.Locals("users").(*puser.UserService)

	type CreateUserInput struct {
		Email    string     `json:"email" validate:"required,email"`
		Phone    string     `json:"phone" validate:"omitempty,max=32"`
		Password string     `json:"password" validate:"required,max=72"`
		IsActive *bool      `json:"isActive"`
		Name     *NameInput `json:"name"`
	}

	var input CreateUserInput
	if err := c.BodyParser(&input); err != nil {
		return invalidInput(c, err)
	}

	if err := config.Validate.Struct(input); err != nil {
		return invalidInput(c, err)
	}

	user, err := userService.Create(c.UserContext(), puser.CreateInput{
		Email:    input.Email,
		Phone:    input.Phone,
		Password: input.Password,
		IsActive: input.IsActive,
		Name:     input.Name.value(),
	})
	if err != nil {
		return fail(c, err)
	}

	return ok(c, fiber.Map{"user": user})
}

// UpdateUser merges the given fields into the account. Omitted fields are
// left alone; the email address cannot be changed.
func UpdateUser(c *fiber.Ctx) error {
	userService := c.Locals("users").(*puser.UserService)

	type UpdateUserInput struct {
		Phone    *string    `json:"phone" validate:"omitempty,max=32"`
		Password *string    `json:"password" validate:"omitempty,max=72"`
		IsActive *bool      `json:"isActive"`
		Name     *NameInput `json:"name"`
	}

	var input UpdateUserInput
	if err := c.BodyParser(&input); err != nil {
		return invalidInput(c, err)
	}

	if err := config.Validate.Struct(input); err != nil {
		return invalidInput(c, err)
	}

	update := puser.UpdateInput{
		Phone:    input.Phone,
		Password: input.Password,
		IsActive: input.IsActive,
	}
	if input.Name != nil {
		update.Name = &database.NameUpdate{First: input.Name.First, Last: input.Name.Last}
	}

	user, err := userService.Update(c.UserContext(), c.Params("id"), update)
	if err != nil {
		return fail(c, err)
	}

	return ok(c, fiber.Map{"user": user})
}

func DeleteUser(c *fiber.Ctx) error {
	userService := c.Locals("users").(*puser.UserService)

	if err := userService.Delete(c.UserContext(), c.Params("id")); err != nil {
		return fail(c, err)
	}

	return ok(c, nil)
}
