package ledger

import (
	"kuyumcu-backend/internal/action"
	"kuyumcu-backend/internal/config"
	"kuyumcu-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Çökme/kısmi yazma sonrası önbelleklenmiş bakiyeler defterden sapabilir.
// Reconcile defter kayıtlarını yeniden toplayıp sapmayı düzeltir.

type DriftReport struct {
	AccountType    models.LedgerAccountType `json:"account_type"`
	AccountID      uint                     `json:"account_id"`
	CachedBalance  decimal.Decimal          `json:"cached_balance"`
	DerivedBalance decimal.Decimal          `json:"derived_balance"`
	Drift          decimal.Decimal          `json:"drift"`
	Corrected      bool                     `json:"corrected"`
}

// DeriveBalance - bakiyeyi defterden saf olarak türetir: debit ekler, credit düşer.
func DeriveBalance(db *gorm.DB, shopID uint, accountType models.LedgerAccountType, accountID uint) (decimal.Decimal, *action.Error) {
	var row struct {
		Total decimal.Decimal
	}
	err := db.Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(debit), 0) - COALESCE(SUM(credit), 0) as total").
		Where("shop_id = ? AND account_type = ? AND account_id = ?", shopID, accountType, accountID).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, action.NewError(action.CodeDatabaseError, "Bakiye türetilemedi")
	}
	return row.Total, nil
}

// ReconcileAccount - tek bir hesabın önbelleklenmiş bakiyesini defterle
// karşılaştırır, sapma varsa kilitli transaction içinde düzeltir.
func ReconcileAccount(db *gorm.DB, shopID uint, accountType models.LedgerAccountType, accountID uint) (*DriftReport, *action.Error) {
	if accountType == models.AccountTypeBudgetAllocation {
		return reconcileAllocation(db, shopID, accountID)
	}

	var (
		report DriftReport
		appErr *action.Error
	)

	txErr := db.Transaction(func(tx *gorm.DB) error {
		cached, aerr := lockAccountBalance(tx, shopID, accountType, accountID)
		if aerr != nil {
			appErr = aerr
			return aerr
		}
		derived, aerr := DeriveBalance(tx, shopID, accountType, accountID)
		if aerr != nil {
			appErr = aerr
			return aerr
		}

		report = DriftReport{
			AccountType:    accountType,
			AccountID:      accountID,
			CachedBalance:  cached,
			DerivedBalance: derived,
			Drift:          cached.Sub(derived),
		}

		if report.Drift.IsZero() {
			return nil
		}
		if aerr := updateAccountBalance(tx, shopID, accountType, accountID, derived); aerr != nil {
			appErr = aerr
			return aerr
		}
		report.Corrected = true
		return nil
	})

	if txErr != nil {
		if appErr != nil {
			return nil, appErr
		}
		return nil, action.NewError(action.CodeDatabaseError, "Mutabakat yapılamadı")
	}

	if report.Corrected {
		config.GetLogger().Warnf("Bakiye sapması düzeltildi: %s/%d sapma=%s",
			accountType, accountID, report.Drift.String())
	}
	return &report, nil
}

// DeriveAllocationState - bütçe kalemi için tahsis ve kullanımı defterden
// türetir: tahsis = harcama dışı kayıtların credit-debit toplamı,
// kullanım = harcama debit'leri. Kalan = tahsis + devir - kullanım.
func DeriveAllocationState(db *gorm.DB, shopID, allocationID uint) (allocated, used decimal.Decimal, appErr *action.Error) {
	var allocatedRow struct{ Total decimal.Decimal }
	if err := db.Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(credit), 0) - COALESCE(SUM(debit), 0) as total").
		Where("shop_id = ? AND account_type = ? AND account_id = ? AND transaction_type <> ?",
			shopID, models.AccountTypeBudgetAllocation, allocationID, TxTypeBudgetSpend).
		Scan(&allocatedRow).Error; err != nil {
		return decimal.Zero, decimal.Zero, action.NewError(action.CodeDatabaseError, "Tahsis tutarı türetilemedi")
	}

	var usedRow struct{ Total decimal.Decimal }
	if err := db.Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(debit), 0) as total").
		Where("shop_id = ? AND account_type = ? AND account_id = ? AND transaction_type = ?",
			shopID, models.AccountTypeBudgetAllocation, allocationID, TxTypeBudgetSpend).
		Scan(&usedRow).Error; err != nil {
		return decimal.Zero, decimal.Zero, action.NewError(action.CodeDatabaseError, "Kullanım tutarı türetilemedi")
	}

	return allocatedRow.Total, usedRow.Total, nil
}

// reconcileAllocation - kalemi kilitleyip defterden türetilen durumla
// karşılaştırır, sapma varsa düzeltir.
func reconcileAllocation(db *gorm.DB, shopID, allocationID uint) (*DriftReport, *action.Error) {
	var (
		report DriftReport
		appErr *action.Error
	)

	txErr := db.Transaction(func(tx *gorm.DB) error {
		alloc, aerr := lockAllocation(tx, shopID, allocationID)
		if aerr != nil {
			appErr = aerr
			return aerr
		}

		allocated, used, aerr := DeriveAllocationState(tx, shopID, allocationID)
		if aerr != nil {
			appErr = aerr
			return aerr
		}

		derivedRemaining := allocated.Add(alloc.RolloverAmount).Sub(used)

		report = DriftReport{
			AccountType:    models.AccountTypeBudgetAllocation,
			AccountID:      allocationID,
			CachedBalance:  alloc.RemainingAmount,
			DerivedBalance: derivedRemaining,
			Drift:          alloc.RemainingAmount.Sub(derivedRemaining),
		}

		if report.Drift.IsZero() &&
			alloc.AllocatedAmount.Equal(allocated) &&
			alloc.UsedAmount.Equal(used) {
			return nil
		}
		if aerr := saveAllocation(tx, allocationID, map[string]any{
			"allocated_amount": allocated,
			"used_amount":      used,
			"remaining_amount": derivedRemaining,
		}); aerr != nil {
			appErr = aerr
			return aerr
		}
		report.Corrected = true
		return nil
	})

	if txErr != nil {
		if appErr != nil {
			return nil, appErr
		}
		return nil, action.NewError(action.CodeDatabaseError, "Mutabakat yapılamadı")
	}

	if report.Corrected {
		config.GetLogger().Warnf("Bütçe kalemi sapması düzeltildi: %d sapma=%s",
			allocationID, report.Drift.String())
	}
	return &report, nil
}

// ReconcileShop - dükkanın tüm hesaplarını gezer, sapma bulunanları düzeltir
// ve raporlarını döner.
func ReconcileShop(db *gorm.DB, shopID uint) ([]DriftReport, *action.Error) {
	reports := make([]DriftReport, 0)

	collect := func(accountType models.LedgerAccountType, ids []uint) *action.Error {
		for _, id := range ids {
			report, aerr := ReconcileAccount(db, shopID, accountType, id)
			if aerr != nil {
				return aerr
			}
			if report.Corrected {
				reports = append(reports, *report)
			}
		}
		return nil
	}

	type idLister struct {
		accountType models.LedgerAccountType
		model       any
	}
	lists := []idLister{
		{models.AccountTypeSupplier, &models.Supplier{}},
		{models.AccountTypeWorkshop, &models.Workshop{}},
		{models.AccountTypeCustomer, &models.Customer{}},
		{models.AccountTypeCreditPool, &models.CreditPool{}},
		{models.AccountTypeBudgetAllocation, &models.BudgetAllocation{}},
	}

	for _, l := range lists {
		var ids []uint
		if err := db.Model(l.model).Where("shop_id = ?", shopID).Pluck("id", &ids).Error; err != nil {
			return nil, action.NewError(action.CodeDatabaseError, "Hesaplar listelenemedi")
		}
		if aerr := collect(l.accountType, ids); aerr != nil {
			return nil, aerr
		}
	}

	return reports, nil
}
