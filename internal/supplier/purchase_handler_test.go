package supplier

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"kuyumcu-backend/internal/auth"
	"kuyumcu-backend/internal/database"
	"kuyumcu-backend/internal/events"
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
	supplier models.Supplier
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
	s := models.Supplier{ShopID: shop.ID, Name: "Has Altın Toptan", CurrentBalance: decimal.Zero}
	require.NoError(t, db.Create(&s).Error)

	app := fiber.New()
	// JWT middleware'in koyduğu locals'ı test için elle yerleştir
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, user.ID)
		c.Locals(auth.CtxUserRoleKey, models.RoleShopAdmin)
		c.Locals(auth.CtxShopIDKey, &shop.ID)
		return c.Next()
	})
	app.Post("/api/purchases", CreatePurchaseHandler())

	return &testEnv{app: app, db: db, shop: shop, user: user, supplier: s}
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

type countingPublisher struct {
	mu sync.Mutex
	n  int
}

func (p *countingPublisher) Publish(string, any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	return nil
}

func (p *countingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

func TestCreatePurchaseHandler_WritesDocumentAndLedgerEntry(t *testing.T) {
	env := setupEnv(t)
	pub := &countingPublisher{}
	prev := events.SetPublisher(pub)
	t.Cleanup(func() { events.SetPublisher(prev) })

	resp, envelope := env.request(t, http.MethodPost, "/api/purchases", fiber.Map{
		"supplier_id": env.supplier.ID,
		"description": "22 ayar külçe",
		"quantity":    2,
		"unit_price":  "1500",
		"date":        "2026-08-20",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, envelope["success"])

	var reloaded models.Supplier
	require.NoError(t, env.db.First(&reloaded, env.supplier.ID).Error)
	assert.True(t, reloaded.CurrentBalance.Equal(decimal.RequireFromString("3000")))
	assert.Equal(t, 1, pub.count())
}

func TestCreatePurchaseHandler_UnknownProductRollsBackEverything(t *testing.T) {
	env := setupEnv(t)
	pub := &countingPublisher{}
	prev := events.SetPublisher(pub)
	t.Cleanup(func() { events.SetPublisher(prev) })

	// hiçbir ürüne denk gelmeyen bir product_id: stok adımı başarısız olur,
	// belge ve defter kaydı dahil her şey geri alınmalı
	missing := uint(99999)
	resp, envelope := env.request(t, http.MethodPost, "/api/purchases", fiber.Map{
		"supplier_id": env.supplier.ID,
		"product_id":  missing,
		"description": "stoğa girecek külçe",
		"quantity":    1,
		"unit_price":  "2000",
		"date":        "2026-08-20",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", envelope["code"])

	var purchases int64
	require.NoError(t, env.db.Model(&models.Purchase{}).Count(&purchases).Error)
	assert.Equal(t, int64(0), purchases)

	var entries int64
	require.NoError(t, env.db.Model(&models.LedgerEntry{}).Count(&entries).Error)
	assert.Equal(t, int64(0), entries)

	var reloaded models.Supplier
	require.NoError(t, env.db.First(&reloaded, env.supplier.ID).Error)
	assert.True(t, reloaded.CurrentBalance.IsZero())

	assert.Equal(t, 0, pub.count(), "geri alınan işlem event yayınlamamalı")
}
