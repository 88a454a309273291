package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/flourish/internal/config"
	"github.com/example/flourish/internal/handlers"
	"github.com/example/flourish/internal/models"
	"github.com/example/flourish/internal/routes"
	"github.com/example/flourish/internal/testutil"
	"github.com/example/flourish/internal/utils"
)

const testSecret = "test-secret"

type harness struct {
	t   *testing.T
	db  *gorm.DB
	cfg *config.Config
	app *fiber.App
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:           testSecret,
		TokenTTL:            time.Hour,
		Currency:            "inr",
		StripeWebhookSecret: "whsec_test",
	}
	db := testutil.NewDB(t)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	routes.Register(app, db, cfg, routes.Deps{})

	return &harness{t: t, db: db, cfg: cfg, app: app}
}

type response struct {
	Status int
	Body   []byte
}

func (r response) decode(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Body, v), string(r.Body))
}

// envelope is the { success, message, data, errors } shape every handler
// answers with.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (h *harness) do(method, path, token string, body interface{}) response {
	h.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return response{Status: resp.StatusCode, Body: raw}
}

func (h *harness) user(email, role string) (*models.User, string) {
	h.t.Helper()
	user := &models.User{FirstName: "Test", Email: email, Role: role, IsActive: true}
	require.NoError(h.t, h.db.Create(user).Error)

	token, err := utils.GenerateToken(testSecret, user.ID, role, time.Hour)
	require.NoError(h.t, err)
	return user, token
}

func (h *harness) product(name, price string, stock int) *models.Product {
	h.t.Helper()
	product := &models.Product{
		Name:     name,
		Slug:     uuid.NewString(),
		Price:    decimal.NewNullDecimal(decimal.RequireFromString(price)),
		Stock:    stock,
		Images:   []string{},
		IsActive: true,
	}
	require.NoError(h.t, h.db.Create(product).Error)
	return product
}

func requireStatus(t *testing.T, want int, r response) {
	t.Helper()
	require.Equalf(t, want, r.Status, "body: %s", r.Body)
}
