package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/flourish/internal/middleware"
	"github.com/example/flourish/internal/models"
	"github.com/example/flourish/internal/services"
	"github.com/example/flourish/internal/utils"
)

// ErrorHandler renders every error as { success: false, message, errors? }.
// Unexpected errors are logged and reported without detail.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var (
		validation *utils.ValidationError
		rejection  *models.Rejection
		notFound   *services.NotFoundError
		fiberErr   *fiber.Error
	)

	switch {
	case errors.As(err, &validation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Validation failed",
			"errors":  validation.Errors,
		})
	case errors.As(err, &rejection):
		return fail(c, fiber.StatusBadRequest, rejection.Message)
	case errors.As(err, &notFound):
		return fail(c, fiber.StatusNotFound, notFound.Error())
	case errors.Is(err, services.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "Resource not found")
	case errors.Is(err, services.ErrCartConflict):
		return fail(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidSignature):
		return fail(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrPaymentsDisabled):
		return fail(c, fiber.StatusServiceUnavailable, err.Error())
	case errors.As(err, &fiberErr):
		return fail(c, fiberErr.Code, fiberErr.Message)
	}

	log.Printf("[HTTP] %s %s failed: %v", c.Method(), c.Path(), err)
	return fail(c, fiber.StatusInternalServerError, "Internal server error")
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": message})
}

func success(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": data})
}

func okMessage(c *fiber.Ctx, message string, data interface{}) error {
	body := fiber.Map{"success": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	return c.JSON(body)
}

func paginated(c *fiber.Ctx, data interface{}, pg utils.Pagination, total int64) error {
	return c.JSON(fiber.Map{
		"success":    true,
		"data":       data,
		"pagination": pg.Meta(total),
	})
}

// bind parses the body into req and runs its validate tags.
func bind(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return utils.ValidateStruct(req)
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func currentUser(c *fiber.Ctx) (uuid.UUID, error) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return userID, nil
}

func currentActor(c *fiber.Ctx) (services.Actor, error) {
	userID, err := currentUser(c)
	if err != nil {
		return services.Actor{}, err
	}
	return services.Actor{UserID: userID, Admin: middleware.IsAdmin(c)}, nil
}
