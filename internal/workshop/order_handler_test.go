package workshop

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"kuyumcu-backend/internal/auth"
	"kuyumcu-backend/internal/database"
	"kuyumcu-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	shop     models.Shop
	user     models.User
	workshop models.Workshop
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// :memory: veritabanı bağlantıya özeldir; tek bağlantıya sabitle
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	prev := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prev })

	shop := models.Shop{Name: "Kuyumcu Merkez"}
	require.NoError(t, db.Create(&shop).Error)
	user := models.User{ShopID: &shop.ID, Name: "Ayşe Yılmaz", Email: "ayse@example.com", PasswordHash: "x", Role: models.RoleShopAdmin}
	require.NoError(t, db.Create(&user).Error)
	w := models.Workshop{ShopID: shop.ID, Name: "Usta Mehmet Atölyesi", Specialty: "mıhlama"}
	require.NoError(t, db.Create(&w).Error)

	app := fiber.New()
	// JWT middleware'in koyduğu locals'ı test için elle yerleştir
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, user.ID)
		c.Locals(auth.CtxUserRoleKey, models.RoleShopAdmin)
		c.Locals(auth.CtxShopIDKey, &shop.ID)
		return c.Next()
	})
	app.Post("/api/workshop-orders", CreateOrderHandler())
	app.Put("/api/workshop-orders/:id/status", UpdateOrderStatusHandler())

	return &testEnv{app: app, db: db, shop: shop, user: user, workshop: w}
}

func (e *testEnv) request(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	var envelope map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func (e *testEnv) createOrder(t *testing.T, amount string) uint {
	t.Helper()
	resp, envelope := e.request(t, http.MethodPost, "/api/workshop-orders", fiber.Map{
		"workshop_id": e.workshop.ID,
		"description": "22 ayar bilezik sadeleştirme",
		"amount":      amount,
		"order_date":  "2026-08-20",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := envelope["data"].(map[string]any)
	return uint(data["id"].(float64))
}

func TestCreateOrderHandler_StartsPendingWithoutLedgerEntry(t *testing.T) {
	env := setupEnv(t)
	orderID := env.createOrder(t, "750")

	var order models.WorkshopOrder
	require.NoError(t, env.db.First(&order, orderID).Error)
	assert.Equal(t, models.WorkshopOrderPending, order.Status)
	assert.Equal(t, 0, order.Version)

	var entries int64
	require.NoError(t, env.db.Model(&models.LedgerEntry{}).Count(&entries).Error)
	assert.Zero(t, entries)

	var fresh models.Workshop
	require.NoError(t, env.db.First(&fresh, env.workshop.ID).Error)
	assert.True(t, fresh.CurrentBalance.IsZero())
}

func TestUpdateOrderStatusHandler_CompletionPostsLedgerDebit(t *testing.T) {
	env := setupEnv(t)
	orderID := env.createOrder(t, "750")

	resp, envelope := env.request(t, http.MethodPut,
		fmt.Sprintf("/api/workshop-orders/%d/status", orderID),
		fiber.Map{"status": "completed", "version": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode, "cevap: %v", envelope)

	var order models.WorkshopOrder
	require.NoError(t, env.db.First(&order, orderID).Error)
	assert.Equal(t, models.WorkshopOrderCompleted, order.Status)
	assert.Equal(t, 1, order.Version)

	var entry models.LedgerEntry
	require.NoError(t, env.db.Where("account_type = ? AND account_id = ?",
		models.AccountTypeWorkshop, env.workshop.ID).First(&entry).Error)
	assert.Equal(t, "workshop_order", entry.TransactionType)
	assert.True(t, entry.Debit.Equal(decimal.RequireFromString("750")))
	assert.True(t, entry.BalanceAfter.Equal(decimal.RequireFromString("750")))

	var fresh models.Workshop
	require.NoError(t, env.db.First(&fresh, env.workshop.ID).Error)
	assert.True(t, fresh.CurrentBalance.Equal(decimal.RequireFromString("750")))
}

func TestUpdateOrderStatusHandler_CancellationSkipsLedger(t *testing.T) {
	env := setupEnv(t)
	orderID := env.createOrder(t, "750")

	resp, _ := env.request(t, http.MethodPut,
		fmt.Sprintf("/api/workshop-orders/%d/status", orderID),
		fiber.Map{"status": "cancelled", "version": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries int64
	require.NoError(t, env.db.Model(&models.LedgerEntry{}).Count(&entries).Error)
	assert.Zero(t, entries)
}

func TestUpdateOrderStatusHandler_StaleVersionConflicts(t *testing.T) {
	env := setupEnv(t)
	orderID := env.createOrder(t, "750")

	resp, _ := env.request(t, http.MethodPut,
		fmt.Sprintf("/api/workshop-orders/%d/status", orderID),
		fiber.Map{"status": "in_process", "version": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Eski version ile ikinci deneme çakışma döner
	resp, envelope := env.request(t, http.MethodPut,
		fmt.Sprintf("/api/workshop-orders/%d/status", orderID),
		fiber.Map{"status": "completed", "version": 0})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "concurrent_modification", envelope["code"])

	var order models.WorkshopOrder
	require.NoError(t, env.db.First(&order, orderID).Error)
	assert.Equal(t, models.WorkshopOrderInProcess, order.Status)
}

func TestUpdateOrderStatusHandler_TerminalStatusIsFinal(t *testing.T) {
	env := setupEnv(t)
	orderID := env.createOrder(t, "750")

	resp, _ := env.request(t, http.MethodPut,
		fmt.Sprintf("/api/workshop-orders/%d/status", orderID),
		fiber.Map{"status": "completed", "version": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, envelope := env.request(t, http.MethodPut,
		fmt.Sprintf("/api/workshop-orders/%d/status", orderID),
		fiber.Map{"status": "cancelled", "version": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", envelope["code"])
}

func TestStatusTransitionAllowed(t *testing.T) {
	cases := []struct {
		from, to models.WorkshopOrderStatus
		ok       bool
	}{
		{models.WorkshopOrderPending, models.WorkshopOrderInProcess, true},
		{models.WorkshopOrderPending, models.WorkshopOrderCompleted, true},
		{models.WorkshopOrderPending, models.WorkshopOrderCancelled, true},
		{models.WorkshopOrderInProcess, models.WorkshopOrderCompleted, true},
		{models.WorkshopOrderInProcess, models.WorkshopOrderCancelled, true},
		{models.WorkshopOrderInProcess, models.WorkshopOrderPending, false},
		{models.WorkshopOrderCompleted, models.WorkshopOrderCancelled, false},
		{models.WorkshopOrderCancelled, models.WorkshopOrderPending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, statusTransitionAllowed(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}
