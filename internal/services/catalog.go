package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/flourish/internal/models"
	"github.com/example/flourish/internal/utils"
)

// CatalogService owns categories and products.
type CatalogService struct {
	db *gorm.DB
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

// ProductFilter narrows ListProducts.
type ProductFilter struct {
	CategoryID      *uuid.UUID
	Search          string
	Featured        *bool
	MinPrice        decimal.NullDecimal
	MaxPrice        decimal.NullDecimal
	IncludeInactive bool
	Page            utils.Pagination
}

// ListProducts returns one page of products and the total match count.
func (s *CatalogService) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{})

	if !f.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}
	if f.CategoryID != nil {
		query = query.Where("category_id = ?", *f.CategoryID)
	}
	if f.Featured != nil {
		query = query.Where("is_featured = ?", *f.Featured)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		q := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", q, q)
	}
	if f.MinPrice.Valid {
		query = query.Where("price >= ?", f.MinPrice.Decimal)
	}
	if f.MaxPrice.Valid {
		query = query.Where("price <= ?", f.MaxPrice.Decimal)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []models.Product
	err := query.Preload("Category").
		Limit(f.Page.Limit).Offset(f.Page.Offset).
		Order("created_at desc").
		Find(&products).Error
	return products, total, err
}

// GetProduct loads a product with its category, variants and bundle items.
func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return getProduct(s.db.WithContext(ctx), id)
}

func getProduct(tx *gorm.DB, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := tx.Preload("Category").
		Preload("Variants").
		Preload("BundleItems").
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, mapNotFound(err, "Product")
	}
	return &product, nil
}

// loadProducts fetches products by id with the relations cart pricing
// needs. Missing ids are simply absent from the map.
func loadProducts(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	out := make(map[uuid.UUID]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var products []models.Product
	if err := tx.Preload("Variants").Preload("BundleItems").
		Where("id IN ?", ids).
		Find(&products).Error; err != nil {
		return nil, err
	}
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

// CreateProduct validates and inserts a product with its children.
func (s *CatalogService) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := product.Validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkCategory(tx, product.CategoryID); err != nil {
			return err
		}
		return tx.Create(product).Error
	})
}

// UpdateProduct overwrites the product's fields and syncs its variants and
// bundle items. Children keep their ids when the caller sends them, so cart
// lines referencing them stay valid. Sold count is never overwritten.
func (s *CatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, input *models.Product) (*models.Product, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Product
		if err := tx.First(&existing, "id = ?", id).Error; err != nil {
			return mapNotFound(err, "Product")
		}
		if err := checkCategory(tx, input.CategoryID); err != nil {
			return err
		}

		if err := tx.Model(&existing).
			Select("name", "slug", "description", "sku", "price", "stock", "category_id",
				"images", "is_active", "is_featured", "has_bundle_items", "bundle_size").
			Updates(input).Error; err != nil {
			return err
		}

		if err := syncVariants(tx, id, input.Variants); err != nil {
			return err
		}
		return syncBundleItems(tx, id, input.BundleItems)
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, id)
}

func syncVariants(tx *gorm.DB, productID uuid.UUID, variants []models.ProductVariant) error {
	var existing []uuid.UUID
	if err := tx.Model(&models.ProductVariant{}).Where("product_id = ?", productID).Pluck("id", &existing).Error; err != nil {
		return err
	}
	known := idSet(existing)

	keep := make([]uuid.UUID, 0, len(variants))
	for i := range variants {
		v := &variants[i]
		v.ProductID = productID
		if known[v.ID] {
			if err := tx.Model(v).Select("name", "value", "sku", "price", "stock").Updates(v).Error; err != nil {
				return err
			}
		} else {
			v.ID = uuid.Nil
			if err := tx.Create(v).Error; err != nil {
				return err
			}
		}
		keep = append(keep, v.ID)
	}
	return deleteOthers(tx, &models.ProductVariant{}, productID, keep)
}

func syncBundleItems(tx *gorm.DB, productID uuid.UUID, items []models.BundleItem) error {
	var existing []uuid.UUID
	if err := tx.Model(&models.BundleItem{}).Where("product_id = ?", productID).Pluck("id", &existing).Error; err != nil {
		return err
	}
	known := idSet(existing)

	keep := make([]uuid.UUID, 0, len(items))
	for i := range items {
		item := &items[i]
		item.ProductID = productID
		if known[item.ID] {
			if err := tx.Model(item).Select("category", "name", "price").Updates(item).Error; err != nil {
				return err
			}
		} else {
			item.ID = uuid.Nil
			if err := tx.Create(item).Error; err != nil {
				return err
			}
		}
		keep = append(keep, item.ID)
	}
	return deleteOthers(tx, &models.BundleItem{}, productID, keep)
}

func deleteOthers(tx *gorm.DB, model interface{}, productID uuid.UUID, keep []uuid.UUID) error {
	del := tx.Where("product_id = ?", productID)
	if len(keep) > 0 {
		del = del.Where("id NOT IN ?", keep)
	}
	return del.Delete(model).Error
}

func idSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// DeleteProduct removes a product, its children and any wishlist entries.
// Cart lines pointing at it are pruned the next time the cart is read.
func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductVariant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.BundleItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.WishlistItem{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Product{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("Product")
		}
		return nil
	})
}

func checkCategory(tx *gorm.DB, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	var count int64
	if err := tx.Model(&models.Category{}).Where("id = ?", *id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return models.Reject(models.RejectInvalidProduct, "Category does not exist")
	}
	return nil
}

// ListCategories returns categories ordered by name.
func (s *CatalogService) ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	query := s.db.WithContext(ctx).Order("name asc")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var categories []models.Category
	err := query.Find(&categories).Error
	return categories, err
}

func (s *CatalogService) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := s.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err, "Category")
	}
	return &category, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, category *models.Category) error {
	return s.db.WithContext(ctx).Create(category).Error
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id uuid.UUID, input *models.Category) (*models.Category, error) {
	category, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(category).
		Select("name", "slug", "description", "image", "is_active").
		Updates(input).Error; err != nil {
		return nil, err
	}
	return s.GetCategory(ctx, id)
}

// DeleteCategory detaches the category's products before removing it.
func (s *CatalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Where("category_id = ?", id).
			UpdateColumn("category_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Category{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("Category")
		}
		return nil
	})
}
