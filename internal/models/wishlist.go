package models

import "github.com/google/uuid"

// WishlistItem marks a product a user wants to keep an eye on.
type WishlistItem struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_wishlist_user_product" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_wishlist_user_product" json:"product_id"`
	Product   *Product  `gorm:"-" json:"product,omitempty"`
}
