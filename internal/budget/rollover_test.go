package budget

import (
	"testing"

	"kuyumcu-backend/internal/database"
	"kuyumcu-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
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
	return db
}

func seedBudget(t *testing.T, db *gorm.DB, shopID uint, year, month int) models.Budget {
	t.Helper()
	b := models.Budget{ShopID: shopID, Name: "Dönem bütçesi", Year: year, Month: month, CreatedBy: 1}
	require.NoError(t, db.Create(&b).Error)
	return b
}

func seedAllocationRow(t *testing.T, db *gorm.DB, shopID, budgetID uint, category, remaining string) {
	t.Helper()
	remainingAmount := decimal.RequireFromString(remaining)
	alloc := models.BudgetAllocation{
		ShopID:          shopID,
		BudgetID:        budgetID,
		Category:        category,
		AllocatedAmount: remainingAmount,
		RemainingAmount: remainingAmount,
	}
	require.NoError(t, db.Create(&alloc).Error)
}

func TestPreviousPeriodRemaining(t *testing.T) {
	db := setupDB(t)
	shop := models.Shop{Name: "Kuyumcu Merkez"}
	require.NoError(t, db.Create(&shop).Error)

	dec2025 := seedBudget(t, db, shop.ID, 2025, 12)
	jul2026 := seedBudget(t, db, shop.ID, 2026, 7)
	seedAllocationRow(t, db, shop.ID, dec2025.ID, "vitrin", "350")
	seedAllocationRow(t, db, shop.ID, jul2026.ID, "vitrin", "120")
	seedAllocationRow(t, db, shop.ID, jul2026.ID, "tamir", "80")

	t.Run("önceki ay bulunur", func(t *testing.T) {
		current := models.Budget{ShopID: shop.ID, Year: 2026, Month: 8}
		got := previousPeriodRemaining(shop.ID, &current, "vitrin")
		assert.True(t, got.Equal(decimal.RequireFromString("120")))
	})

	t.Run("ocak önceki yılın aralığına bakar", func(t *testing.T) {
		current := models.Budget{ShopID: shop.ID, Year: 2026, Month: 1}
		got := previousPeriodRemaining(shop.ID, &current, "vitrin")
		assert.True(t, got.Equal(decimal.RequireFromString("350")))
	})

	t.Run("önceki dönem yoksa sıfır", func(t *testing.T) {
		current := models.Budget{ShopID: shop.ID, Year: 2026, Month: 8}
		got := previousPeriodRemaining(shop.ID, &current, "reklam")
		assert.True(t, got.IsZero())
	})

	t.Run("eksi kalan sıfıra sabitlenir", func(t *testing.T) {
		negBudget := seedBudget(t, db, shop.ID, 2026, 5)
		alloc := models.BudgetAllocation{
			ShopID:          shop.ID,
			BudgetID:        negBudget.ID,
			Category:        "onarım",
			AllocatedAmount: decimal.RequireFromString("100"),
			RemainingAmount: decimal.RequireFromString("-40"),
		}
		require.NoError(t, db.Create(&alloc).Error)

		current := models.Budget{ShopID: shop.ID, Year: 2026, Month: 6}
		got := previousPeriodRemaining(shop.ID, &current, "onarım")
		assert.True(t, got.IsZero())
	})

	t.Run("başka dükkanın kalemi sayılmaz", func(t *testing.T) {
		other := models.Shop{Name: "Şube Kadıköy"}
		require.NoError(t, db.Create(&other).Error)
		otherBudget := seedBudget(t, db, other.ID, 2026, 7)
		seedAllocationRow(t, db, other.ID, otherBudget.ID, "küpe", "900")

		current := models.Budget{ShopID: shop.ID, Year: 2026, Month: 8}
		got := previousPeriodRemaining(shop.ID, &current, "küpe")
		assert.True(t, got.IsZero())
	})
}
