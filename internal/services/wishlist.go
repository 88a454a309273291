package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/flourish/internal/models"
)

// WishlistService keeps the products a user saved for later.
type WishlistService struct {
	db    *gorm.DB
	carts *CartService
}

func NewWishlistService(db *gorm.DB, carts *CartService) *WishlistService {
	return &WishlistService{db: db, carts: carts}
}

// List returns the user's saved products, newest first. Entries whose
// product is gone are skipped.
func (s *WishlistService) List(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error) {
	db := s.db.WithContext(ctx)

	var items []models.WishlistItem
	if err := db.Where("user_id = ?", userID).Order("created_at desc").Find(&items).Error; err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := loadProducts(db, ids)
	if err != nil {
		return nil, err
	}

	out := items[:0]
	for _, item := range items {
		if p, ok := products[item.ProductID]; ok {
			item.Product = p
			out = append(out, item)
		}
	}
	return out, nil
}

// Add saves productID for the user. Adding twice is a no-op.
func (s *WishlistService) Add(ctx context.Context, userID, productID uuid.UUID) (*models.WishlistItem, error) {
	db := s.db.WithContext(ctx)
	product, err := getProduct(db, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, models.Reject(models.RejectUnavailable, "%s is not available", product.Name)
	}

	item := models.WishlistItem{UserID: userID, ProductID: productID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&item).Error; err != nil {
		return nil, err
	}
	if err := db.Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error; err != nil {
		return nil, err
	}
	item.Product = product
	return &item, nil
}

// Remove deletes the entry for productID.
func (s *WishlistService) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.WishlistItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("Wishlist item")
	}
	return nil
}

// MoveToCart adds one unit of the saved product to the cart and then drops
// it from the wishlist.
func (s *WishlistService) MoveToCart(ctx context.Context, userID, productID uuid.UUID, in AddItemInput) (*CartView, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.WishlistItem{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, notFound("Wishlist item")
	}

	in.ProductID = productID
	if in.Quantity < 1 {
		in.Quantity = 1
	}
	view, err := s.carts.AddItem(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	if err := s.Remove(ctx, userID, productID); err != nil {
		return nil, err
	}
	return view, nil
}
