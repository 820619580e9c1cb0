package ledger

import (
	"testing"

	"kuyumcu-backend/internal/action"
	"kuyumcu-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedAllocation(t *testing.T, db *gorm.DB, shopID uint, category, allocated, used string) models.BudgetAllocation {
	t.Helper()

	var budget models.Budget
	err := db.Where("shop_id = ?", shopID).First(&budget).Error
	if err != nil {
		budget = models.Budget{ShopID: shopID, Name: "Ağustos 2026", Year: 2026, Month: 8, CreatedBy: 1}
		require.NoError(t, db.Create(&budget).Error)
	}

	allocatedAmount := d(allocated)
	usedAmount := d(used)
	alloc := models.BudgetAllocation{
		ShopID:          shopID,
		BudgetID:        budget.ID,
		Category:        category,
		AllocatedAmount: allocatedAmount,
		RolloverAmount:  decimal.Zero,
		UsedAmount:      usedAmount,
		RemainingAmount: allocatedAmount.Sub(usedAmount),
	}

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&alloc).Error; err != nil {
			return err
		}
		if _, err := OpenAllocationLedger(tx, &alloc, 1); err != nil {
			return err
		}
		// Kullanılmış tutarı harcama kaydı olarak işle ki defter kendi içinde tutarlı olsun
		if usedAmount.IsPositive() {
			entry := models.LedgerEntry{
				ShopID:          alloc.ShopID,
				AccountType:     models.AccountTypeBudgetAllocation,
				AccountID:       alloc.ID,
				Debit:           usedAmount,
				Credit:          decimal.Zero,
				BalanceAfter:    alloc.RemainingAmount,
				TransactionType: TxTypeBudgetSpend,
				ReferenceNo:     uuid.NewString(),
				CreatedBy:       1,
			}
			return tx.Create(&entry).Error
		}
		return nil
	}))
	return alloc
}

func reloadAllocation(t *testing.T, db *gorm.DB, id uint) models.BudgetAllocation {
	t.Helper()
	var alloc models.BudgetAllocation
	require.NoError(t, db.First(&alloc, id).Error)
	return alloc
}

func TestAdjustAllocationAmount_IncreaseAndDecrease(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	alloc := seedAllocation(t, db, shop.ID, "vitrin", "1000", "200")

	entry, aerr := AdjustAllocationAmount(db, AdjustInput{
		ShopID: shop.ID, AllocationID: alloc.ID, Delta: d("500"), Reason: "sezon artışı",
	})
	require.Nil(t, aerr)
	assert.True(t, entry.Credit.Equal(d("500")))
	assert.True(t, entry.BalanceAfter.Equal(d("1300")))
	assert.Equal(t, TxTypeAllocationAdjust, entry.TransactionType)

	fresh := reloadAllocation(t, db, alloc.ID)
	assert.True(t, fresh.AllocatedAmount.Equal(d("1500")))
	assert.True(t, fresh.RemainingAmount.Equal(d("1300")))
	assert.Equal(t, alloc.Version+1, fresh.Version)

	entry, aerr = AdjustAllocationAmount(db, AdjustInput{
		ShopID: shop.ID, AllocationID: alloc.ID, Delta: d("-300"), Reason: "kısıntı",
	})
	require.Nil(t, aerr)
	assert.True(t, entry.Debit.Equal(d("300")))
	assert.True(t, entry.BalanceAfter.Equal(d("1000")))

	fresh = reloadAllocation(t, db, alloc.ID)
	assert.True(t, fresh.AllocatedAmount.Equal(d("1200")))
	assert.True(t, fresh.RemainingAmount.Equal(d("1000")))
}

func TestAdjustAllocationAmount_RejectsNegativeResult(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	alloc := seedAllocation(t, db, shop.ID, "vitrin", "1000", "200")

	before := entryCount(t, db)

	// 1000 tahsisten 1200 düşülemez
	entry, aerr := AdjustAllocationAmount(db, AdjustInput{
		ShopID: shop.ID, AllocationID: alloc.ID, Delta: d("-1200"), Reason: "hata",
	})
	require.NotNil(t, aerr)
	assert.Nil(t, entry)
	assert.Equal(t, action.CodeValidationError, aerr.Code)

	// Durum değişmemiş olmalı
	fresh := reloadAllocation(t, db, alloc.ID)
	assert.True(t, fresh.AllocatedAmount.Equal(d("1000")))
	assert.True(t, fresh.UsedAmount.Equal(d("200")))
	assert.True(t, fresh.RemainingAmount.Equal(d("800")))
	assert.Equal(t, alloc.Version, fresh.Version)
	assert.Equal(t, before, entryCount(t, db))
}

func TestAdjustAllocationAmount_RejectsZeroDelta(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	alloc := seedAllocation(t, db, shop.ID, "vitrin", "1000", "0")

	_, aerr := AdjustAllocationAmount(db, AdjustInput{
		ShopID: shop.ID, AllocationID: alloc.ID, Delta: decimal.Zero, Reason: "boş",
	})
	require.NotNil(t, aerr)
	assert.Equal(t, action.CodeValidationError, aerr.Code)
}

func TestTransferBetweenAllocations_MovesAmount(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	from := seedAllocation(t, db, shop.ID, "vitrin", "500", "0")
	to := seedAllocation(t, db, shop.ID, "tamir", "100", "0")

	result, aerr := TransferBetweenAllocations(db, TransferInput{
		ShopID: shop.ID, FromID: from.ID, ToID: to.ID, Amount: d("300"), Reason: "öncelik değişti",
	})
	require.Nil(t, aerr)

	assert.True(t, result.FromEntry.Debit.Equal(d("300")))
	assert.True(t, result.FromEntry.BalanceAfter.Equal(d("200")))
	assert.True(t, result.ToEntry.Credit.Equal(d("300")))
	assert.True(t, result.ToEntry.BalanceAfter.Equal(d("400")))

	freshFrom := reloadAllocation(t, db, from.ID)
	freshTo := reloadAllocation(t, db, to.ID)
	assert.True(t, freshFrom.RemainingAmount.Equal(d("200")))
	assert.True(t, freshTo.RemainingAmount.Equal(d("400")))

	// Toplam korunur
	total := freshFrom.RemainingAmount.Add(freshTo.RemainingAmount)
	assert.True(t, total.Equal(d("600")))
}

func TestTransferBetweenAllocations_InsufficientWritesNothing(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	from := seedAllocation(t, db, shop.ID, "vitrin", "500", "400") // kalan 100
	to := seedAllocation(t, db, shop.ID, "tamir", "100", "0")

	before := entryCount(t, db)

	result, aerr := TransferBetweenAllocations(db, TransferInput{
		ShopID: shop.ID, FromID: from.ID, ToID: to.ID, Amount: d("300"), Reason: "fazla",
	})
	require.NotNil(t, aerr)
	assert.Nil(t, result)
	assert.Equal(t, action.CodeInsufficientBudget, aerr.Code)

	// Sıfır kayıt, sıfır değişiklik
	assert.Equal(t, before, entryCount(t, db))
	freshFrom := reloadAllocation(t, db, from.ID)
	freshTo := reloadAllocation(t, db, to.ID)
	assert.True(t, freshFrom.RemainingAmount.Equal(d("100")))
	assert.True(t, freshTo.RemainingAmount.Equal(d("100")))
	assert.Equal(t, from.Version, freshFrom.Version)
	assert.Equal(t, to.Version, freshTo.Version)
}

func TestTransferBetweenAllocations_RejectsSelfAndNonPositive(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	alloc := seedAllocation(t, db, shop.ID, "vitrin", "500", "0")

	_, aerr := TransferBetweenAllocations(db, TransferInput{
		ShopID: shop.ID, FromID: alloc.ID, ToID: alloc.ID, Amount: d("100"),
	})
	require.NotNil(t, aerr)
	assert.Equal(t, action.CodeValidationError, aerr.Code)

	_, aerr = TransferBetweenAllocations(db, TransferInput{
		ShopID: shop.ID, FromID: alloc.ID, ToID: alloc.ID + 1, Amount: decimal.Zero,
	})
	require.NotNil(t, aerr)
	assert.Equal(t, action.CodeValidationError, aerr.Code)
}

func TestRecordAllocationSpend_TracksUsage(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	alloc := seedAllocation(t, db, shop.ID, "vitrin", "1000", "0")

	entry, aerr := RecordAllocationSpend(db, SpendInput{
		ShopID: shop.ID, AllocationID: alloc.ID, Amount: d("250"), Description: "vitrin aydınlatma",
	})
	require.Nil(t, aerr)
	assert.True(t, entry.Debit.Equal(d("250")))
	assert.True(t, entry.BalanceAfter.Equal(d("750")))
	assert.Equal(t, TxTypeBudgetSpend, entry.TransactionType)

	fresh := reloadAllocation(t, db, alloc.ID)
	assert.True(t, fresh.UsedAmount.Equal(d("250")))
	assert.True(t, fresh.RemainingAmount.Equal(d("750")))

	// Kalan 750'den 800 harcanamaz
	before := entryCount(t, db)
	_, aerr = RecordAllocationSpend(db, SpendInput{
		ShopID: shop.ID, AllocationID: alloc.ID, Amount: d("800"), Description: "fazla",
	})
	require.NotNil(t, aerr)
	assert.Equal(t, action.CodeInsufficientBudget, aerr.Code)
	assert.Equal(t, before, entryCount(t, db))

	fresh = reloadAllocation(t, db, alloc.ID)
	assert.True(t, fresh.UsedAmount.Equal(d("250")))
	assert.True(t, fresh.RemainingAmount.Equal(d("750")))
}

func TestAllocationLedger_RederivesState(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	alloc := seedAllocation(t, db, shop.ID, "vitrin", "1000", "0")

	_, aerr := AdjustAllocationAmount(db, AdjustInput{
		ShopID: shop.ID, AllocationID: alloc.ID, Delta: d("200"), Reason: "ek",
	})
	require.Nil(t, aerr)
	_, aerr = RecordAllocationSpend(db, SpendInput{
		ShopID: shop.ID, AllocationID: alloc.ID, Amount: d("300"), Description: "harcama",
	})
	require.Nil(t, aerr)

	// Önbelleği boz, mutabakat defterden geri getirsin
	require.NoError(t, db.Model(&models.BudgetAllocation{}).
		Where("id = ?", alloc.ID).
		Updates(map[string]any{
			"allocated_amount": d("9999"),
			"used_amount":      d("1"),
			"remaining_amount": d("9998"),
		}).Error)

	report, aerr := ReconcileAccount(db, shop.ID, models.AccountTypeBudgetAllocation, alloc.ID)
	require.Nil(t, aerr)
	assert.True(t, report.Corrected)

	fresh := reloadAllocation(t, db, alloc.ID)
	assert.True(t, fresh.AllocatedAmount.Equal(d("1200")), "tahsis %s", fresh.AllocatedAmount)
	assert.True(t, fresh.UsedAmount.Equal(d("300")), "kullanım %s", fresh.UsedAmount)
	assert.True(t, fresh.RemainingAmount.Equal(d("900")), "kalan %s", fresh.RemainingAmount)
}
