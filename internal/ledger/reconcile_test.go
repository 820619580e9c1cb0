package ledger

import (
	"testing"

	"kuyumcu-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveBalance_SumsDebitMinusCredit(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	sup := seedSupplier(t, db, shop.ID)

	_, aerr := RecordTransaction(db, RecordInput{
		ShopID: shop.ID, AccountType: models.AccountTypeSupplier, AccountID: sup.ID,
		Direction: DirectionDebit, Amount: d("700"), TransactionType: "purchase",
	})
	require.Nil(t, aerr)
	_, aerr = RecordTransaction(db, RecordInput{
		ShopID: shop.ID, AccountType: models.AccountTypeSupplier, AccountID: sup.ID,
		Direction: DirectionCredit, Amount: d("250"), TransactionType: "payment",
	})
	require.Nil(t, aerr)

	derived, aerr := DeriveBalance(db, shop.ID, models.AccountTypeSupplier, sup.ID)
	require.Nil(t, aerr)
	assert.True(t, derived.Equal(d("450")))
}

func TestReconcileAccount_FixesCorruptedBalance(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	sup := seedSupplier(t, db, shop.ID)

	_, aerr := RecordTransaction(db, RecordInput{
		ShopID: shop.ID, AccountType: models.AccountTypeSupplier, AccountID: sup.ID,
		Direction: DirectionDebit, Amount: d("500"), TransactionType: "purchase",
	})
	require.Nil(t, aerr)

	// Önbelleği kasıtlı boz
	require.NoError(t, db.Model(&models.Supplier{}).
		Where("id = ?", sup.ID).
		Update("current_balance", d("123.45")).Error)

	report, aerr := ReconcileAccount(db, shop.ID, models.AccountTypeSupplier, sup.ID)
	require.Nil(t, aerr)
	assert.True(t, report.Corrected)
	assert.True(t, report.CachedBalance.Equal(d("123.45")))
	assert.True(t, report.DerivedBalance.Equal(d("500")))
	assert.True(t, report.Drift.Equal(d("-376.55")))

	var fresh models.Supplier
	require.NoError(t, db.First(&fresh, sup.ID).Error)
	assert.True(t, fresh.CurrentBalance.Equal(d("500")))
}

func TestReconcileAccount_NoDriftNoCorrection(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	sup := seedSupplier(t, db, shop.ID)

	_, aerr := RecordTransaction(db, RecordInput{
		ShopID: shop.ID, AccountType: models.AccountTypeSupplier, AccountID: sup.ID,
		Direction: DirectionDebit, Amount: d("500"), TransactionType: "purchase",
	})
	require.Nil(t, aerr)

	report, aerr := ReconcileAccount(db, shop.ID, models.AccountTypeSupplier, sup.ID)
	require.Nil(t, aerr)
	assert.False(t, report.Corrected)
	assert.True(t, report.Drift.IsZero())
}

func TestReconcileShop_ReportsOnlyCorrected(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	sup := seedSupplier(t, db, shop.ID)
	pool := seedPool(t, db, shop.ID)

	_, aerr := RecordTransaction(db, RecordInput{
		ShopID: shop.ID, AccountType: models.AccountTypeSupplier, AccountID: sup.ID,
		Direction: DirectionDebit, Amount: d("500"), TransactionType: "purchase",
	})
	require.Nil(t, aerr)
	_, aerr = RecordTransaction(db, RecordInput{
		ShopID: shop.ID, AccountType: models.AccountTypeCreditPool, AccountID: pool.ID,
		Direction: DirectionDebit, Amount: d("1000"), TransactionType: "credit_topup",
	})
	require.Nil(t, aerr)

	// Yalnızca havuz bakiyesini boz
	require.NoError(t, db.Model(&models.CreditPool{}).
		Where("id = ?", pool.ID).
		Update("current_balance", d("42")).Error)

	reports, aerr := ReconcileShop(db, shop.ID)
	require.Nil(t, aerr)
	require.Len(t, reports, 1)
	assert.Equal(t, models.AccountTypeCreditPool, reports[0].AccountType)
	assert.Equal(t, pool.ID, reports[0].AccountID)
	assert.True(t, reports[0].DerivedBalance.Equal(d("1000")))

	var freshPool models.CreditPool
	require.NoError(t, db.First(&freshPool, pool.ID).Error)
	assert.True(t, freshPool.CurrentBalance.Equal(d("1000")))

	var freshSup models.Supplier
	require.NoError(t, db.First(&freshSup, sup.ID).Error)
	assert.True(t, freshSup.CurrentBalance.Equal(d("500")))
}

func TestReconcileShop_IgnoresOtherShops(t *testing.T) {
	db := setupDB(t)
	shopA := seedShop(t, db)

	shopB := models.Shop{Name: "Şube Kadıköy"}
	require.NoError(t, db.Create(&shopB).Error)
	supB := models.Supplier{ShopID: shopB.ID, Name: "Başka Toptan"}
	require.NoError(t, db.Create(&supB).Error)

	_, aerr := RecordTransaction(db, RecordInput{
		ShopID: shopB.ID, AccountType: models.AccountTypeSupplier, AccountID: supB.ID,
		Direction: DirectionDebit, Amount: d("500"), TransactionType: "purchase",
	})
	require.Nil(t, aerr)
	require.NoError(t, db.Model(&models.Supplier{}).
		Where("id = ?", supB.ID).
		Update("current_balance", d("1")).Error)

	// A dükkanı mutabakatı B'nin bozuk bakiyesine dokunmaz
	reports, aerr := ReconcileShop(db, shopA.ID)
	require.Nil(t, aerr)
	assert.Empty(t, reports)

	var fresh models.Supplier
	require.NoError(t, db.First(&fresh, supB.ID).Error)
	assert.True(t, fresh.CurrentBalance.Equal(d("1")))
}

func TestDeriveAllocationState_SeparatesAllocatedAndUsed(t *testing.T) {
	db := setupDB(t)
	shop := seedShop(t, db)
	alloc := seedAllocation(t, db, shop.ID, "vitrin", "1200", "300")

	// sonradan gelen bir artış da tahsis toplamına girmeli
	_, aerr := AdjustAllocationAmount(db, AdjustInput{
		ShopID:       shop.ID,
		AllocationID: alloc.ID,
		Delta:        d("400"),
		Reason:       "ek tahsis",
		CreatedBy:    1,
	})
	require.Nil(t, aerr)

	allocated, used, aerr := DeriveAllocationState(db, shop.ID, alloc.ID)
	require.Nil(t, aerr)
	assert.True(t, allocated.Equal(d("1600")), "tahsis: %s", allocated)
	assert.True(t, used.Equal(d("300")), "kullanım: %s", used)
}
