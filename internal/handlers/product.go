package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/flourish/internal/middleware"
	"github.com/example/flourish/internal/models"
	"github.com/example/flourish/internal/services"
	"github.com/example/flourish/internal/utils"
)

// ProductHandler manages product CRUD.
type ProductHandler struct {
	catalog *services.CatalogService
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(catalog *services.CatalogService) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// ListProducts returns paginated products with optional filters. Admins
// may pass include_inactive=true.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	filter := services.ProductFilter{
		Search:          c.Query("search"),
		IncludeInactive: middleware.IsAdmin(c) && c.QueryBool("include_inactive"),
		Page:            pg,
	}

	if v := c.Query("category_id", c.Query("category")); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return utils.NewValidationError("category_id", "must be a valid id")
		}
		filter.CategoryID = &id
	}
	if v := c.Query("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			return utils.NewValidationError("featured", "must be true or false")
		}
		filter.Featured = &featured
	}
	for field, dest := range map[string]*decimal.NullDecimal{"min_price": &filter.MinPrice, "max_price": &filter.MaxPrice} {
		if v := c.Query(field); v != "" {
			price, err := decimal.NewFromString(v)
			if err != nil {
				return utils.NewValidationError(field, "must be a number")
			}
			*dest = decimal.NewNullDecimal(price)
		}
	}

	products, total, err := h.catalog.ListProducts(c.UserContext(), filter)
	if err != nil {
		return err
	}

	return paginated(c, products, pg, total)
}

// GetProduct loads a product with relations. Inactive products are only
// visible to admins.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	product, err := h.catalog.GetProduct(c.UserContext(), id)
	if err != nil {
		return err
	}
	if !product.IsActive && !middleware.IsAdmin(c) {
		return fiber.NewError(fiber.StatusNotFound, "Product not found")
	}

	return success(c, product)
}

type productRequest struct {
	Name           string              `json:"name" validate:"required,max=200"`
	Slug           string              `json:"slug" validate:"required,max=200"`
	Description    string              `json:"description"`
	SKU            string              `json:"sku" validate:"max=64"`
	Price          decimal.NullDecimal `json:"price"`
	Stock          int                 `json:"stock" validate:"min=0"`
	CategoryID     *uuid.UUID          `json:"category_id"`
	Images         []string            `json:"images" validate:"dive,url"`
	IsActive       *bool               `json:"is_active"`
	IsFeatured     bool                `json:"is_featured"`
	HasBundleItems bool                `json:"has_bundle_items"`
	BundleSize     int                 `json:"bundle_size" validate:"min=0"`
	Variants       []variantRequest    `json:"variants" validate:"dive"`
	BundleItems    []bundleItemRequest `json:"bundle_items" validate:"dive"`
}

type variantRequest struct {
	ID    *uuid.UUID          `json:"id"`
	Name  string              `json:"name" validate:"required,max=100"`
	Value string              `json:"value" validate:"required,max=100"`
	SKU   string              `json:"sku" validate:"max=64"`
	Price decimal.NullDecimal `json:"price"`
	Stock int                 `json:"stock" validate:"min=0"`
}

type bundleItemRequest struct {
	ID       *uuid.UUID      `json:"id"`
	Category string          `json:"category" validate:"max=100"`
	Name     string          `json:"name" validate:"required,max=100"`
	Price    decimal.Decimal `json:"price"`
}

func (r productRequest) toProduct() *models.Product {
	product := &models.Product{
		Name:           r.Name,
		Slug:           r.Slug,
		Description:    r.Description,
		SKU:            r.SKU,
		Price:          r.Price,
		Stock:          r.Stock,
		CategoryID:     r.CategoryID,
		Images:         r.Images,
		IsActive:       true,
		IsFeatured:     r.IsFeatured,
		HasBundleItems: r.HasBundleItems,
		BundleSize:     r.BundleSize,
	}
	if r.IsActive != nil {
		product.IsActive = *r.IsActive
	}
	if product.Images == nil {
		product.Images = []string{}
	}

	for _, v := range r.Variants {
		variant := models.ProductVariant{Name: v.Name, Value: v.Value, SKU: v.SKU, Price: v.Price, Stock: v.Stock}
		if v.ID != nil {
			variant.ID = *v.ID
		}
		product.Variants = append(product.Variants, variant)
	}
	for _, b := range r.BundleItems {
		item := models.BundleItem{Category: b.Category, Name: b.Name, Price: b.Price}
		if b.ID != nil {
			item.ID = *b.ID
		}
		product.BundleItems = append(product.BundleItems, item)
	}
	return product
}

// CreateProduct handles product creation.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	product := req.toProduct()
	// Client ids are only honoured on update.
	for i := range product.Variants {
		product.Variants[i].ID = uuid.Nil
	}
	for i := range product.BundleItems {
		product.BundleItems[i].ID = uuid.Nil
	}

	if err := h.catalog.CreateProduct(c.UserContext(), product); err != nil {
		return err
	}

	return created(c, product)
}

// UpdateProduct replaces a product definition.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req productRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	product, err := h.catalog.UpdateProduct(c.UserContext(), id, req.toProduct())
	if err != nil {
		return err
	}

	return success(c, product)
}

// DeleteProduct removes a product.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := h.catalog.DeleteProduct(c.UserContext(), id); err != nil {
		return err
	}

	return okMessage(c, "product deleted", nil)
}

// RegisterProductRoutes attaches product routes. Reads are public; writes
// go through auth and admin.
func (h *ProductHandler) RegisterProductRoutes(router fiber.Router, auth, admin fiber.Handler) {
	router.Get("/", h.ListProducts)
	router.Get("/:id", h.GetProduct)
	router.Post("/", auth, admin, h.CreateProduct)
	router.Put("/:id", auth, admin, h.UpdateProduct)
	router.Delete("/:id", auth, admin, h.DeleteProduct)
}
