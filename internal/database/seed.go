package database

import (
	"errors"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/example/flourish/internal/models"
	"github.com/example/flourish/internal/utils"
)

// SeedAdmin creates the admin account when it does not exist yet, or
// promotes an existing user with that email. Empty credentials skip it.
func SeedAdmin(conn *gorm.DB, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}

	var user models.User
	err := conn.Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		if user.Role == models.RoleAdmin {
			return nil
		}
		log.Printf("[Seed] Promoting %s to admin", email)
		return conn.Model(&user).UpdateColumn("role", models.RoleAdmin).Error
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	admin := models.User{
		FirstName:    "Admin",
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := conn.Create(&admin).Error; err != nil {
		return err
	}
	log.Printf("[Seed] Created admin %s", email)
	return nil
}
