package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/flourish/internal/models"
	"github.com/example/flourish/internal/utils"
)

const (
	resetCodeTTL      = 10 * time.Minute
	maxResetAttempts  = 5
	resetAcceptedText = "If the account exists, a reset code has been sent"
)

// ResetMailer delivers password reset codes.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, user models.User, code string, ttl time.Duration) error
}

// PasswordResetHandler manages forgot-password endpoints.
type PasswordResetHandler struct {
	db     *gorm.DB
	mailer ResetMailer
	now    func() time.Time
}

// NewPasswordResetHandler constructs a PasswordResetHandler. Without a
// mailer no code is delivered and resets cannot be completed.
func NewPasswordResetHandler(db *gorm.DB, mailer ResetMailer) *PasswordResetHandler {
	return &PasswordResetHandler{db: db, mailer: mailer, now: time.Now}
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPassword starts a reset: a 6-digit code is mailed to the user and
// the response carries the token that later steps refer to. Unknown
// emails get the same answer with a token that never verifies.
func (h *PasswordResetHandler) ForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	resetToken, err := randomToken()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	var user models.User
	err = h.db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !user.IsActive) {
		return okMessage(c, resetAcceptedText, fiber.Map{"token": resetToken})
	}
	if err != nil {
		return err
	}

	code, err := generateResetCode()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate code")
	}
	codeHash, err := utils.HashPassword(code)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash code")
	}

	now := h.now()
	err = h.db.Transaction(func(tx *gorm.DB) error {
		// Earlier unused attempts stop working.
		if err := tx.Model(&models.PasswordResetToken{}).
			Where("user_id = ? AND used_at IS NULL AND expires_at > ?", user.ID, now).
			Update("expires_at", now).Error; err != nil {
			return err
		}
		return tx.Create(&models.PasswordResetToken{
			UserID:    user.ID,
			Token:     resetToken,
			CodeHash:  codeHash,
			ExpiresAt: now.Add(resetCodeTTL),
		}).Error
	})
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to create reset token")
	}

	if h.mailer == nil {
		log.Printf("[Auth] Email disabled; reset code for user %s not delivered", user.ID)
	} else if err := h.mailer.SendPasswordReset(c.UserContext(), user, code, resetCodeTTL); err != nil {
		log.Printf("[Auth] Failed to send reset code to %s: %v", user.Email, err)
	}

	return okMessage(c, resetAcceptedText, fiber.Map{"token": resetToken})
}

type verifyResetCodeRequest struct {
	Token string `json:"token" validate:"required"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// VerifyResetCode checks the mailed code. Too many wrong guesses burn the
// token.
func (h *PasswordResetHandler) VerifyResetCode(c *fiber.Ctx) error {
	var req verifyResetCodeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	record, err := h.activeToken(req.Token)
	if err != nil {
		return err
	}

	if !utils.CheckPassword(record.CodeHash, req.Code) {
		record.Attempts++
		updates := map[string]interface{}{"attempts": record.Attempts}
		if record.Attempts >= maxResetAttempts {
			updates["expires_at"] = h.now()
		}
		if err := h.db.Model(record).Updates(updates).Error; err != nil {
			return err
		}
		return fiber.NewError(fiber.StatusBadRequest, "invalid verification code")
	}

	if err := h.db.Model(record).Update("verified", true).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"verified": true,
		"token":    record.Token,
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// ResetPassword updates the user's password after successful code verification.
func (h *PasswordResetHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	record, err := h.activeToken(req.Token)
	if err != nil {
		return err
	}
	if !record.Verified {
		return fiber.NewError(fiber.StatusBadRequest, "code not verified yet")
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	now := h.now()
	err = h.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PasswordResetToken{}).
			Where("id = ? AND used_at IS NULL", record.ID).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "token already used")
		}
		return tx.Model(&models.User{}).
			Where("id = ?", record.UserID).
			Update("password_hash", hash).Error
	})
	if err != nil {
		return err
	}

	return okMessage(c, "password updated successfully", nil)
}

func (h *PasswordResetHandler) activeToken(token string) (*models.PasswordResetToken, error) {
	var record models.PasswordResetToken
	if err := h.db.Where("token = ?", token).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid or expired reset token")
		}
		return nil, err
	}

	if record.UsedAt != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "token already used")
	}
	if !record.ExpiresAt.After(h.now()) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid or expired reset token")
	}
	return &record, nil
}

func randomToken() (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(tokenBytes), nil
}

func generateResetCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
