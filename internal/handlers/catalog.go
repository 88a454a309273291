package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/flourish/internal/middleware"
	"github.com/example/flourish/internal/models"
	"github.com/example/flourish/internal/services"
)

// CatalogHandler manages categories.
type CatalogHandler struct {
	catalog *services.CatalogService
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalog *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListCategories returns categories by name. Inactive ones are listed for
// admins only.
func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.catalog.ListCategories(c.UserContext(), !middleware.IsAdmin(c))
	if err != nil {
		return err
	}

	return success(c, categories)
}

// GetCategory returns a single category by ID.
func (h *CatalogHandler) GetCategory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	category, err := h.catalog.GetCategory(c.UserContext(), id)
	if err != nil {
		return err
	}

	return success(c, category)
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Slug        string `json:"slug" validate:"required,max=100"`
	Description string `json:"description"`
	Image       string `json:"image" validate:"omitempty,url"`
	IsActive    *bool  `json:"is_active"`
}

func (r categoryRequest) toCategory() *models.Category {
	category := &models.Category{
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		Image:       r.Image,
		IsActive:    true,
	}
	if r.IsActive != nil {
		category.IsActive = *r.IsActive
	}
	return category
}

// CreateCategory persists a new category.
func (h *CatalogHandler) CreateCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	category := req.toCategory()
	if err := h.catalog.CreateCategory(c.UserContext(), category); err != nil {
		return err
	}

	return created(c, category)
}

// UpdateCategory updates an existing category.
func (h *CatalogHandler) UpdateCategory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req categoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	category, err := h.catalog.UpdateCategory(c.UserContext(), id, req.toCategory())
	if err != nil {
		return err
	}

	return success(c, category)
}

// DeleteCategory removes a category. Its products stay, uncategorized.
func (h *CatalogHandler) DeleteCategory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := h.catalog.DeleteCategory(c.UserContext(), id); err != nil {
		return err
	}

	return okMessage(c, "category deleted", nil)
}
