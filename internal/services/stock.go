package services

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/flourish/internal/models"
)

// StockLine is one stock movement request.
type StockLine struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
	Name      string
}

// StockLedger mutates stock and sold counters with single conditional
// UPDATE statements so two checkouts cannot both take the last unit.
type StockLedger struct{}

// Reserve takes Quantity units from the product, and from the variant when
// one is set. It fails with an insufficient-stock rejection when the floor
// would be crossed; the caller's transaction must then roll back.
func (StockLedger) Reserve(tx *gorm.DB, line StockLine) error {
	res := tx.Model(&models.Product{}).
		Where("id = ? AND stock >= ?", line.ProductID, line.Quantity).
		UpdateColumns(map[string]interface{}{
			"stock":      gorm.Expr("stock - ?", line.Quantity),
			"sold_count": gorm.Expr("sold_count + ?", line.Quantity),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.Reject(models.RejectInsufficientStock, "Insufficient stock for %s", line.Name)
	}

	if line.VariantID == nil {
		return nil
	}

	res = tx.Model(&models.ProductVariant{}).
		Where("id = ? AND product_id = ? AND stock >= ?", *line.VariantID, line.ProductID, line.Quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", line.Quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.Reject(models.RejectInsufficientStock, "Insufficient stock for %s", line.Name)
	}
	return nil
}

// Release puts Quantity units back. Sold count never drops below zero.
// Rows that no longer exist are skipped.
func (StockLedger) Release(tx *gorm.DB, line StockLine) error {
	err := tx.Model(&models.Product{}).
		Where("id = ?", line.ProductID).
		UpdateColumns(map[string]interface{}{
			"stock":      gorm.Expr("stock + ?", line.Quantity),
			"sold_count": gorm.Expr("CASE WHEN sold_count >= ? THEN sold_count - ? ELSE 0 END", line.Quantity, line.Quantity),
		}).Error
	if err != nil {
		return err
	}

	if line.VariantID == nil {
		return nil
	}
	return tx.Model(&models.ProductVariant{}).
		Where("id = ? AND product_id = ?", *line.VariantID, line.ProductID).
		UpdateColumn("stock", gorm.Expr("stock + ?", line.Quantity)).Error
}
