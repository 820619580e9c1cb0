package ledger

import (
	"sync"
	"testing"

	"kuyumcu-backend/internal/action"
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

	// :memory: veritabanı bağlantıya özeldir; tek bağlantıya sabitle
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func seedShop(t *testing.T, db *gorm.DB) models.Shop {
	t.Helper()
	shop := models.Shop{Name: "Altın Kuyumculuk"}
	require.NoError(t, db.Create(&shop).Error)
	return shop
}

func seedSupplier(t *testing.T, db *gorm.DB, shopID uint) models.Supplier {
	t.Helper()
	s := models.Supplier{ShopID: shopID, Name: "Has Altın Toptan", CurrentBalance: decimal.Zero}
	require.NoError(t, db.Create(&s).Error)
	return s
}

func seedPool(t *testing.T, db *gorm.DB, shopID uint) models.CreditPool {
	t.Helper()
	p := models.CreditPool{ShopID: shopID, Name: "asistan", CurrentBalance: decimal.Zero}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func entryCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Count(&n).Error)
	return n
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRecordTransaction_DebitThenCredit(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	sup := seedSupplier(t, db, shop.ID)

	// Alım: 500 borç
	entry, aerr := RecordTransaction(db, RecordInput{
		ShopID:          shop.ID,
		AccountType:     models.AccountTypeSupplier,
		AccountID:       sup.ID,
		Amount:          d("500"),
		Direction:       DirectionDebit,
		TransactionType: "purchase",
		Description:     "külçe alımı",
		CreatedBy:       1,
	})
	require.Nil(t, aerr)
	assert.True(t, entry.Debit.Equal(d("500")))
	assert.True(t, entry.Credit.IsZero())
	assert.True(t, entry.BalanceAfter.Equal(d("500")))
	assert.NotEmpty(t, entry.ReferenceNo)

	var fresh models.Supplier
	require.NoError(t, db.First(&fresh, sup.ID).Error)
	assert.True(t, fresh.CurrentBalance.Equal(d("500")))
	assert.Equal(t, 1, fresh.Version)

	// Ödeme: 200 alacak
	entry2, aerr := RecordTransaction(db, RecordInput{
		ShopID:          shop.ID,
		AccountType:     models.AccountTypeSupplier,
		AccountID:       sup.ID,
		Amount:          d("200"),
		Direction:       DirectionCredit,
		TransactionType: "payment",
		CreatedBy:       1,
	})
	require.Nil(t, aerr)
	assert.True(t, entry2.Credit.Equal(d("200")))
	assert.True(t, entry2.BalanceAfter.Equal(d("300")))

	require.NoError(t, db.First(&fresh, sup.ID).Error)
	assert.True(t, fresh.CurrentBalance.Equal(d("300")))
	assert.Equal(t, 2, fresh.Version)
}

func TestRecordTransaction_RejectsInvalidInput(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	sup := seedSupplier(t, db, shop.ID)

	cases := []struct {
		name string
		in   RecordInput
		code action.ErrorCode
	}{
		{
			name: "sıfır tutar",
			in: RecordInput{
				ShopID: shop.ID, AccountType: models.AccountTypeSupplier, AccountID: sup.ID,
				Amount: decimal.Zero, Direction: DirectionDebit, TransactionType: "purchase",
			},
			code: action.CodeValidationError,
		},
		{
			name: "negatif tutar",
			in: RecordInput{
				ShopID: shop.ID, AccountType: models.AccountTypeSupplier, AccountID: sup.ID,
				Amount: d("-10"), Direction: DirectionDebit, TransactionType: "purchase",
			},
			code: action.CodeValidationError,
		},
		{
			name: "geçersiz yön",
			in: RecordInput{
				ShopID: shop.ID, AccountType: models.AccountTypeSupplier, AccountID: sup.ID,
				Amount: d("10"), Direction: Direction("sideways"), TransactionType: "purchase",
			},
			code: action.CodeValidationError,
		},
		{
			name: "bütçe kalemi bu operasyonla işlenemez",
			in: RecordInput{
				ShopID: shop.ID, AccountType: models.AccountTypeBudgetAllocation, AccountID: 1,
				Amount: d("10"), Direction: DirectionDebit, TransactionType: "allocation_adjust",
			},
			code: action.CodeValidationError,
		},
		{
			name: "hesap yok",
			in: RecordInput{
				ShopID: shop.ID, AccountType: models.AccountTypeSupplier, AccountID: 9999,
				Amount: d("10"), Direction: DirectionDebit, TransactionType: "purchase",
			},
			code: action.CodeNotFound,
		},
		{
			name: "başka dükkanın hesabı",
			in: RecordInput{
				ShopID: shop.ID + 1, AccountType: models.AccountTypeSupplier, AccountID: sup.ID,
				Amount: d("10"), Direction: DirectionDebit, TransactionType: "purchase",
			},
			code: action.CodeNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entry, aerr := RecordTransaction(db, tc.in)
			require.NotNil(t, aerr)
			assert.Nil(t, entry)
			assert.Equal(t, tc.code, aerr.Code)
		})
	}

	// Hiçbir başarısız deneme iz bırakmamalı
	assert.EqualValues(t, 0, entryCount(t, db))
	var fresh models.Supplier
	require.NoError(t, db.First(&fresh, sup.ID).Error)
	assert.True(t, fresh.CurrentBalance.IsZero())
	assert.Equal(t, 0, fresh.Version)
}

func TestRecordTransaction_DerivedBalanceMatchesCached(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	sup := seedSupplier(t, db, shop.ID)

	amounts := []struct {
		amount    string
		direction Direction
	}{
		{"500", DirectionDebit},
		{"120.50", DirectionCredit},
		{"79.50", DirectionDebit},
		{"300", DirectionCredit},
		{"41", DirectionDebit},
	}
	for _, a := range amounts {
		_, aerr := RecordTransaction(db, RecordInput{
			ShopID: shop.ID, AccountType: models.AccountTypeSupplier, AccountID: sup.ID,
			Amount: d(a.amount), Direction: a.direction, TransactionType: "test",
		})
		require.Nil(t, aerr)
	}

	derived, aerr := DeriveBalance(db, shop.ID, models.AccountTypeSupplier, sup.ID)
	require.Nil(t, aerr)

	var fresh models.Supplier
	require.NoError(t, db.First(&fresh, sup.ID).Error)
	assert.True(t, fresh.CurrentBalance.Equal(derived),
		"önbellek %s, defter %s", fresh.CurrentBalance, derived)
	assert.True(t, derived.Equal(d("200")))

	// Son kaydın balance_after'ı da aynı olmalı
	entries, aerr := EntriesForAccount(db, shop.ID, models.AccountTypeSupplier, sup.ID, nil, nil)
	require.Nil(t, aerr)
	require.Len(t, entries, 5)
	assert.True(t, entries[len(entries)-1].BalanceAfter.Equal(derived))
}

// Not: sqlite'ta tek bağlantı yazarları zaten sıraya sokar, FOR UPDATE
// devreye girmez. Satır kilidinin gerçek davranışı postgres varyantında
// test edilir (TestRecordTransaction_ConcurrentWritersSerializePostgres).
func TestRecordTransaction_ConcurrentWritersSerialize(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	sup := seedSupplier(t, db, shop.ID)

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
	assert.EqualValues(t, writers, entryCount(t, db))

	derived, aerr := DeriveBalance(db, shop.ID, models.AccountTypeSupplier, sup.ID)
	require.Nil(t, aerr)
	assert.True(t, derived.Equal(d("100")))
}

func TestRecordTransaction_DisallowNegative(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	pool := seedPool(t, db, shop.ID)

	_, aerr := RecordTransaction(db, RecordInput{
		ShopID: shop.ID, AccountType: models.AccountTypeCreditPool, AccountID: pool.ID,
		Amount: d("50"), Direction: DirectionDebit, TransactionType: "credit_topup",
	})
	require.Nil(t, aerr)

	// 50 yüklü havuzdan 80 tüketilemez
	entry, aerr := RecordTransaction(db, RecordInput{
		ShopID: shop.ID, AccountType: models.AccountTypeCreditPool, AccountID: pool.ID,
		Amount: d("80"), Direction: DirectionCredit, TransactionType: "credit_consume",
		DisallowNegative: true,
	})
	require.NotNil(t, aerr)
	assert.Nil(t, entry)
	assert.Equal(t, action.CodeInsufficientBudget, aerr.Code)

	var fresh models.CreditPool
	require.NoError(t, db.First(&fresh, pool.ID).Error)
	assert.True(t, fresh.CurrentBalance.Equal(d("50")))
	assert.EqualValues(t, 1, entryCount(t, db))

	// Bakiye dahilinde tüketim geçer
	_, aerr = RecordTransaction(db, RecordInput{
		ShopID: shop.ID, AccountType: models.AccountTypeCreditPool, AccountID: pool.ID,
		Amount: d("50"), Direction: DirectionCredit, TransactionType: "credit_consume",
		DisallowNegative: true,
	})
	require.Nil(t, aerr)
	require.NoError(t, db.First(&fresh, pool.ID).Error)
	assert.True(t, fresh.CurrentBalance.IsZero())
}

func TestRecordPayment_ReferenceMustBelongToAccount(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	supA := seedSupplier(t, db, shop.ID)
	supB := models.Supplier{ShopID: shop.ID, Name: "Gümüş Toptan", CurrentBalance: decimal.Zero}
	require.NoError(t, db.Create(&supB).Error)

	purchase := models.Purchase{
		ShopID: shop.ID, SupplierID: supA.ID,
		Quantity: 1, UnitPrice: d("500"), TotalAmount: d("500"),
	}
	require.NoError(t, db.Create(&purchase).Error)

	_, aerr := RecordTransaction(db, RecordInput{
		ShopID: shop.ID, AccountType: models.AccountTypeSupplier, AccountID: supA.ID,
		Amount: d("500"), Direction: DirectionDebit, TransactionType: "purchase",
	})
	require.Nil(t, aerr)

	// Alım supA'ya ait; supB'nin ödemesine referans verilemez
	entry, aerr := RecordPayment(db, PaymentInput{
		ShopID: shop.ID, AccountType: models.AccountTypeSupplier, AccountID: supB.ID,
		Amount: d("100"), PaymentType: "cash",
		ReferenceType: "purchase", ReferenceID: &purchase.ID,
	})
	require.NotNil(t, aerr)
	assert.Nil(t, entry)
	assert.Equal(t, action.CodeValidationError, aerr.Code)
	// sahiplik kontrolü kayıtla aynı transaction'da: ret hiçbir iz bırakmaz
	assert.Equal(t, int64(1), entryCount(t, db))

	var freshB models.Supplier
	require.NoError(t, db.First(&freshB, supB.ID).Error)
	assert.True(t, freshB.CurrentBalance.IsZero())

	// Doğru hesapla geçer
	entry, aerr = RecordPayment(db, PaymentInput{
		ShopID: shop.ID, AccountType: models.AccountTypeSupplier, AccountID: supA.ID,
		Amount: d("100"), PaymentType: "cash",
		ReferenceType: "purchase", ReferenceID: &purchase.ID,
	})
	require.Nil(t, aerr)
	assert.True(t, entry.Credit.Equal(d("100")))
	assert.True(t, entry.BalanceAfter.Equal(d("400")))
	assert.Equal(t, "payment", entry.TransactionType)
}

func TestRecordPayment_RejectsUnsupportedAccountType(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	pool := seedPool(t, db, shop.ID)

	_, aerr := RecordPayment(db, PaymentInput{
		ShopID: shop.ID, AccountType: models.AccountTypeCreditPool, AccountID: pool.ID,
		Amount: d("10"), PaymentType: "cash",
	})
	require.NotNil(t, aerr)
	assert.Equal(t, action.CodeValidationError, aerr.Code)
}

func TestEntriesForAccount_OrderAndScope(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	supA := seedSupplier(t, db, shop.ID)
	supB := models.Supplier{ShopID: shop.ID, Name: "Diğer", CurrentBalance: decimal.Zero}
	require.NoError(t, db.Create(&supB).Error)

	for i, sup := range []models.Supplier{supA, supB, supA} {
		_, aerr := RecordTransaction(db, RecordInput{
			ShopID: shop.ID, AccountType: models.AccountTypeSupplier, AccountID: sup.ID,
			Amount: d("10").Mul(decimal.NewFromInt(int64(i + 1))), Direction: DirectionDebit,
			TransactionType: "purchase",
		})
		require.Nil(t, aerr)
	}

	entries, aerr := EntriesForAccount(db, shop.ID, models.AccountTypeSupplier, supA.ID, nil, nil)
	require.Nil(t, aerr)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].ID < entries[1].ID)
	for _, e := range entries {
		assert.Equal(t, supA.ID, e.AccountID)
	}
}
