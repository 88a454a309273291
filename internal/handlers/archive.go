package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/example/flourish/internal/archive"
)

// OrderLookup reads archived orders.
type OrderLookup interface {
	FindOrder(ctx context.Context, orderNumber string) (*archive.OrderDocument, error)
}

// ArchiveHandler serves the order archive to admins.
type ArchiveHandler struct {
	lookup OrderLookup
}

func NewArchiveHandler(lookup OrderLookup) *ArchiveHandler {
	return &ArchiveHandler{lookup: lookup}
}

// GetOrder returns the archived copy of an order by its number.
func (h *ArchiveHandler) GetOrder(c *fiber.Ctx) error {
	doc, err := h.lookup.FindOrder(c.UserContext(), c.Params("orderNumber"))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fiber.NewError(fiber.StatusNotFound, "Archived order not found")
	}
	if err != nil {
		return err
	}
	return success(c, doc)
}
