package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/flourish/internal/models"
)

// ProfileHandler manages user profile endpoints.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

// GetProfile returns authenticated user profile.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var user models.User
	if err := h.db.Preload("Addresses").First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	return success(c, user)
}

type updateProfileRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
}

// UpdateProfile updates user profile fields.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}
	updates["updated_at"] = time.Now()

	if err := h.db.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return err
	}

	return okMessage(c, "profile updated", nil)
}

// Address endpoints

// ListAddresses returns user addresses, default first.
func (h *ProfileHandler) ListAddresses(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var addresses []models.UserAddress
	if err := h.db.Where("user_id = ?", userID).
		Order("is_default desc, created_at asc").
		Find(&addresses).Error; err != nil {
		return err
	}

	return success(c, addresses)
}

type addressRequest struct {
	Label      string `json:"label" validate:"max=50"`
	FullName   string `json:"full_name" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"required,max=32"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=60"`
	IsDefault  bool   `json:"is_default"`
}

func (r addressRequest) apply(a *models.UserAddress) {
	a.Label = r.Label
	a.FullName = r.FullName
	a.Phone = r.Phone
	a.Line1 = r.Line1
	a.Line2 = r.Line2
	a.City = r.City
	a.State = r.State
	a.PostalCode = r.PostalCode
	a.Country = r.Country
	a.IsDefault = r.IsDefault
}

// toAddress converts the request into an order address snapshot.
func (r addressRequest) toAddress() models.Address {
	var a models.UserAddress
	r.apply(&a)
	return a.ToAddress()
}

// CreateAddress creates an address for the user. The first address
// becomes the default.
func (h *ProfileHandler) CreateAddress(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req addressRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	address := models.UserAddress{UserID: userID}
	req.apply(&address)

	err = h.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.UserAddress{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			address.IsDefault = true
		}
		if address.IsDefault {
			if err := clearDefault(tx, userID); err != nil {
				return err
			}
		}
		return tx.Create(&address).Error
	})
	if err != nil {
		return err
	}

	return created(c, address)
}

// UpdateAddress replaces a user address.
func (h *ProfileHandler) UpdateAddress(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	addrID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req addressRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	var address models.UserAddress
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&address, "id = ? AND user_id = ?", addrID, userID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fiber.NewError(fiber.StatusNotFound, "address not found")
			}
			return err
		}
		req.apply(&address)
		if address.IsDefault {
			if err := clearDefault(tx, userID); err != nil {
				return err
			}
		}
		return tx.Save(&address).Error
	})
	if err != nil {
		return err
	}

	return success(c, address)
}

// DeleteAddress removes a user address.
func (h *ProfileHandler) DeleteAddress(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	addrID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	res := h.db.Where("id = ? AND user_id = ?", addrID, userID).Delete(&models.UserAddress{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "address not found")
	}

	return okMessage(c, "address deleted", nil)
}

func clearDefault(tx *gorm.DB, userID uuid.UUID) error {
	return tx.Model(&models.UserAddress{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		UpdateColumn("is_default", false).Error
}
