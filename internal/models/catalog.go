package models

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Category struct {
	BaseModel
	Name        string `json:"name"`
	Slug        string `gorm:"uniqueIndex" json:"slug"`
	Description string `json:"description"`
	Image       string `json:"image"`
	IsActive    bool   `json:"is_active"`
}

// Product is a catalog entry. Price is null for bundle products, whose
// price is assembled from the selected bundle items.
type Product struct {
	BaseModel
	Name           string              `json:"name"`
	Slug           string              `gorm:"uniqueIndex" json:"slug"`
	Description    string              `json:"description"`
	SKU            string              `gorm:"index" json:"sku"`
	Price          decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"price"`
	Stock          int                 `json:"stock"`
	SoldCount      int                 `json:"sold_count"`
	CategoryID     *uuid.UUID          `gorm:"type:uuid;index" json:"category_id"`
	Category       *Category           `json:"category,omitempty"`
	Images         []string            `gorm:"serializer:json;type:text" json:"images"`
	IsActive       bool                `json:"is_active"`
	IsFeatured     bool                `json:"is_featured"`
	HasBundleItems bool                `json:"has_bundle_items"`
	BundleSize     int                 `json:"bundle_size"`
	Variants       []ProductVariant    `gorm:"constraint:OnDelete:CASCADE" json:"variants,omitempty"`
	BundleItems    []BundleItem        `gorm:"constraint:OnDelete:CASCADE" json:"bundle_items,omitempty"`
}

type ProductVariant struct {
	BaseModel
	ProductID uuid.UUID           `gorm:"type:uuid;index" json:"product_id"`
	Name      string              `json:"name"`
	Value     string              `json:"value"`
	SKU       string              `json:"sku"`
	Price     decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"price"`
	Stock     int                 `json:"stock"`
}

// Label renders the variant as "Size: XL".
func (v ProductVariant) Label() string {
	if v.Name == "" {
		return v.Value
	}
	return v.Name + ": " + v.Value
}

// BundleItem is one selectable component of a bundle product.
type BundleItem struct {
	BaseModel
	ProductID uuid.UUID       `gorm:"type:uuid;index" json:"product_id"`
	Category  string          `json:"category"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2)" json:"price"`
}

// Validate enforces the write-time catalog invariants.
func (p *Product) Validate() error {
	if p.Name == "" {
		return Reject(RejectInvalidProduct, "Name is required")
	}
	if p.Stock < 0 {
		return Reject(RejectInvalidProduct, "Stock cannot be negative")
	}
	if p.HasBundleItems {
		if p.BundleSize < 1 {
			return Reject(RejectInvalidProduct, "Bundle size must be at least 1")
		}
		if len(p.BundleItems) == 0 {
			return Reject(RejectInvalidProduct, "Bundle products need at least one bundle item")
		}
		for _, item := range p.BundleItems {
			if item.Price.IsNegative() {
				return Reject(RejectInvalidProduct, "Bundle item price cannot be negative")
			}
		}
		return nil
	}
	if !p.Price.Valid {
		return Reject(RejectInvalidProduct, "Price is required")
	}
	if p.Price.Decimal.IsNegative() {
		return Reject(RejectInvalidProduct, "Price cannot be negative")
	}
	for _, v := range p.Variants {
		if v.Stock < 0 {
			return Reject(RejectInvalidProduct, "Variant stock cannot be negative")
		}
	}
	return nil
}

// FindVariant returns the variant with the given id, or nil.
func (p *Product) FindVariant(id uuid.UUID) *ProductVariant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

// AvailableStock is the variant stock when a variant is chosen, otherwise
// the product stock.
func (p *Product) AvailableStock(variantID *uuid.UUID) int {
	if variantID != nil {
		if v := p.FindVariant(*variantID); v != nil {
			return v.Stock
		}
		return 0
	}
	return p.Stock
}

// ResolvePrice picks the unit price for a cart line: the variant price when
// a variant is chosen, the sum of the selected items for a bundle, and the
// base price otherwise.
func (p *Product) ResolvePrice(variantID *uuid.UUID, selection []string) (decimal.Decimal, error) {
	if variantID != nil {
		v := p.FindVariant(*variantID)
		if v == nil {
			return decimal.Zero, Reject(RejectInvalidVariant, "Variant not found for %s", p.Name)
		}
		if v.Price.Valid {
			return v.Price.Decimal, nil
		}
	}

	if p.HasBundleItems {
		if len(selection) != p.BundleSize {
			return decimal.Zero, Reject(RejectInvalidBundle, "Please select exactly %d items for %s", p.BundleSize, p.Name)
		}
		prices := make(map[string]decimal.Decimal, len(p.BundleItems))
		for _, item := range p.BundleItems {
			prices[item.ID.String()] = item.Price
		}
		total := decimal.Zero
		for _, id := range selection {
			price, ok := prices[id]
			if !ok {
				return decimal.Zero, Reject(RejectInvalidBundle, "Invalid bundle item selected for %s", p.Name)
			}
			total = total.Add(price)
		}
		return total, nil
	}

	if !p.Price.Valid {
		return decimal.Zero, Reject(RejectInvalidProduct, "%s has no price", p.Name)
	}
	return p.Price.Decimal, nil
}

// NormalizeSelection returns a sorted copy so that the same set of bundle
// items always produces the same line key.
func NormalizeSelection(selection []string) []string {
	if len(selection) == 0 {
		return nil
	}
	out := append([]string(nil), selection...)
	sort.Strings(out)
	return out
}
