package ledger

import (
	"os"
	"sync"
	"testing"

	"kuyumcu-backend/internal/action"
	"kuyumcu-backend/internal/database"
	"kuyumcu-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Gerçek FOR UPDATE satır kilidi sqlite'ta çalışmaz; bu varyant ancak
// TEST_POSTGRES_DSN verildiğinde koşar.
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN tanımlı değil, postgres varyantı atlanıyor")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func TestRecordTransaction_ConcurrentWritersSerializePostgres(t *testing.T) {
	db := setupPostgres(t)

	shop := models.Shop{Name: "Altın Kuyumculuk " + uuid.NewString()}
	require.NoError(t, db.Create(&shop).Error)
	sup := models.Supplier{ShopID: shop.ID, Name: "Has Altın Toptan"}
	require.NoError(t, db.Create(&sup).Error)
	t.Cleanup(func() {
		db.Unscoped().Where("shop_id = ?", shop.ID).Delete(&models.LedgerEntry{})
		db.Unscoped().Delete(&sup)
		db.Unscoped().Delete(&shop)
	})

	const writers = 10

	var wg sync.WaitGroup
	errs := make(chan *action.Error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, aerr := RecordTransaction(db, RecordInput{
				ShopID: shop.ID, AccountType: models.AccountTypeSupplier, AccountID: sup.ID,
				Amount: d("10"), Direction: DirectionDebit, TransactionType: "purchase",
			})
			if aerr != nil {
				errs <- aerr
			}
		}()
	}
	wg.Wait()
	close(errs)
	for aerr := range errs {
		t.Fatalf("eşzamanlı yazma başarısız: %v", aerr)
	}

	var fresh models.Supplier
	require.NoError(t, db.First(&fresh, sup.ID).Error)
	assert.True(t, fresh.CurrentBalance.Equal(d("100")),
		"kayıp güncelleme: bakiye %s", fresh.CurrentBalance)
	assert.Equal(t, writers, fresh.Version)

	derived, aerr := DeriveBalance(db, shop.ID, models.AccountTypeSupplier, sup.ID)
	require.Nil(t, aerr)
	assert.True(t, derived.Equal(d("100")))
}
