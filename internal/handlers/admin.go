package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/flourish/internal/models"
	"github.com/example/flourish/internal/services"
	"github.com/example/flourish/internal/utils"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	db        *gorm.DB
	dashboard *services.DashboardService
	orders    *services.OrderService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB, dashboard *services.DashboardService, orders *services.OrderService) *AdminHandler {
	return &AdminHandler{db: db, dashboard: dashboard, orders: orders}
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	stats, err := h.dashboard.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return success(c, stats)
}

// Analytics returns bucketed orders, revenue and signups for ?period=.
func (h *AdminHandler) Analytics(c *fiber.Ctx) error {
	analytics, err := h.dashboard.Analytics(c.UserContext(), c.Query("period"))
	if err != nil {
		return err
	}
	return success(c, analytics)
}

// OrderStats aggregates every order in the store.
func (h *AdminHandler) OrderStats(c *fiber.Ctx) error {
	stats, err := h.orders.Stats(c.UserContext(), nil)
	if err != nil {
		return err
	}
	return success(c, stats)
}

type adminUser struct {
	models.User
	OrderCount int64           `json:"order_count"`
	TotalSpent decimal.Decimal `json:"total_spent"`
}

// ListAllUsers returns registered users with their order count and spend.
func (h *AdminHandler) ListAllUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	db := h.db.WithContext(c.UserContext())
	query := db.Model(&models.User{})

	if search := strings.ToLower(c.Query("search")); search != "" {
		like := "%" + search + "%"
		query = query.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?",
			like, like, like, like,
		)
	}
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var users []models.User
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&users).Error; err != nil {
		return err
	}

	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	var stats []struct {
		UserID     uuid.UUID
		OrderCount int64
		TotalSpent decimal.NullDecimal
	}
	if len(ids) > 0 {
		if err := db.Model(&models.Order{}).
			Select("user_id, count(*) as order_count, SUM(total) as total_spent").
			Where("user_id IN ? AND status <> ?", ids, models.OrderStatusCancelled).
			Group("user_id").
			Scan(&stats).Error; err != nil {
			return err
		}
	}

	byUser := make(map[uuid.UUID]int, len(stats))
	for i, s := range stats {
		byUser[s.UserID] = i
	}

	result := make([]adminUser, len(users))
	for i, u := range users {
		result[i] = adminUser{User: u, TotalSpent: decimal.Zero}
		if j, ok := byUser[u.ID]; ok {
			result[i].OrderCount = stats[j].OrderCount
			if stats[j].TotalSpent.Valid {
				result[i].TotalSpent = stats[j].TotalSpent.Decimal
			}
		}
	}

	return paginated(c, result, pg, total)
}

type userStatusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// SetUserStatus activates or deactivates an account. Admins cannot lock
// themselves out.
func (h *AdminHandler) SetUserStatus(c *fiber.Ctx) error {
	adminID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if id == adminID {
		return fiber.NewError(fiber.StatusBadRequest, "cannot change your own status")
	}

	var req userStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res := h.db.WithContext(c.UserContext()).Model(&models.User{}).
		Where("id = ?", id).
		Update("is_active", *req.IsActive)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}

	return okMessage(c, "user updated", nil)
}

// RegisterAdminRoutes attaches the admin area. The router is expected to
// sit behind auth and admin already.
func (h *AdminHandler) RegisterAdminRoutes(router fiber.Router, orders *OrderHandler) {
	router.Get("/dashboard", h.DashboardStats)
	router.Get("/dashboard/analytics", h.Analytics)
	router.Get("/orders", orders.AdminListOrders)
	router.Get("/orders/stats", h.OrderStats)
	router.Get("/users", h.ListAllUsers)
	router.Put("/users/:id/status", h.SetUserStatus)
}
