package ledger

import (
	"errors"
	"fmt"

	"kuyumcu-backend/internal/action"
	"kuyumcu-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Bütçe kalemi defteri iki tür hareketi ayrı transaction_type ile tutar:
//   - tahsis hareketleri (allocation_opening / allocation_adjust /
//     allocation_transfer): credit tahsisi artırır, debit azaltır
//   - harcamalar (budget_spend): debit kullanılan tutarı artırır
// BalanceAfter her kayıtta kalemin güncel RemainingAmount'udur.

const (
	TxTypeAllocationOpening  = "allocation_opening"
	TxTypeAllocationAdjust   = "allocation_adjust"
	TxTypeAllocationTransfer = "allocation_transfer"
	TxTypeBudgetSpend        = "budget_spend"
)

type AdjustInput struct {
	ShopID       uint
	AllocationID uint
	Delta        decimal.Decimal // pozitif = artır, negatif = azalt; sıfır olamaz
	Reason       string
	CreatedBy    uint
}

// AdjustAllocationAmount - kalemin tahsis tutarını delta kadar değiştirir.
// Sonuç tahsis tutarı eksiye düşemez.
func AdjustAllocationAmount(db *gorm.DB, in AdjustInput) (*models.LedgerEntry, *action.Error) {
	if in.Delta.IsZero() {
		return nil, action.NewError(action.CodeValidationError, "Delta sıfır olamaz")
	}

	var (
		entry  models.LedgerEntry
		appErr *action.Error
	)

	txErr := db.Transaction(func(tx *gorm.DB) error {
		alloc, aerr := lockAllocation(tx, in.ShopID, in.AllocationID)
		if aerr != nil {
			appErr = aerr
			return aerr
		}

		newAllocated := alloc.AllocatedAmount.Add(in.Delta)
		if newAllocated.IsNegative() {
			appErr = action.NewError(action.CodeValidationError, "Değişiklik tahsis tutarını eksiye düşürür")
			return appErr
		}
		newRemaining := newAllocated.Add(alloc.RolloverAmount).Sub(alloc.UsedAmount)

		directionLabel := "artırıldı"
		if in.Delta.IsNegative() {
			directionLabel = "azaltıldı"
		}

		entry = models.LedgerEntry{
			ShopID:          in.ShopID,
			AccountType:     models.AccountTypeBudgetAllocation,
			AccountID:       alloc.ID,
			BalanceAfter:    newRemaining,
			TransactionType: TxTypeAllocationAdjust,
			Description:     fmt.Sprintf("Tahsis %s: %s", directionLabel, in.Reason),
			ReferenceNo:     uuid.NewString(),
			CreatedBy:       in.CreatedBy,
		}
		if in.Delta.IsPositive() {
			entry.Credit = in.Delta
			entry.Debit = decimal.Zero
		} else {
			entry.Debit = in.Delta.Abs()
			entry.Credit = decimal.Zero
		}

		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if aerr := saveAllocation(tx, alloc.ID, map[string]any{
			"allocated_amount": newAllocated,
			"remaining_amount": newRemaining,
		}); aerr != nil {
			appErr = aerr
			return aerr
		}
		return nil
	})

	if txErr != nil {
		if appErr != nil {
			return nil, appErr
		}
		return nil, action.NewError(action.CodeDatabaseError, "Tahsis güncellenemedi")
	}

	if !inTransaction(db) {
		SignalRecorded(&entry)
	}
	return &entry, nil
}

type TransferInput struct {
	ShopID    uint
	FromID    uint
	ToID      uint
	Amount    decimal.Decimal
	Reason    string
	CreatedBy uint
}

type TransferResult struct {
	FromEntry models.LedgerEntry
	ToEntry   models.LedgerEntry
}

// TransferBetweenAllocations - iki kalem arasında tahsis aktarımı.
// Dört yazma (iki kayıt + iki kalem) tek transaction'dadır: ya hepsi ya hiçbiri.
func TransferBetweenAllocations(db *gorm.DB, in TransferInput) (*TransferResult, *action.Error) {
	if in.FromID == in.ToID {
		return nil, action.NewError(action.CodeValidationError, "Kaynak ve hedef kalem aynı olamaz")
	}
	if !in.Amount.IsPositive() {
		return nil, action.NewError(action.CodeValidationError, "Tutar 0'dan büyük olmalı")
	}

	var (
		result TransferResult
		appErr *action.Error
	)

	txErr := db.Transaction(func(tx *gorm.DB) error {
		// deadlock'a karşı her zaman küçük ID'den büyüğe kilitle
		firstID, secondID := in.FromID, in.ToID
		if secondID < firstID {
			firstID, secondID = secondID, firstID
		}

		first, aerr := lockAllocation(tx, in.ShopID, firstID)
		if aerr != nil {
			appErr = aerr
			return aerr
		}
		second, aerr := lockAllocation(tx, in.ShopID, secondID)
		if aerr != nil {
			appErr = aerr
			return aerr
		}

		from, to := first, second
		if from.ID != in.FromID {
			from, to = second, first
		}

		if from.RemainingAmount.LessThan(in.Amount) {
			appErr = action.NewError(action.CodeInsufficientBudget, "Kaynak kalemde yeterli bütçe yok")
			return appErr
		}

		fromAllocated := from.AllocatedAmount.Sub(in.Amount)
		if fromAllocated.IsNegative() {
			appErr = action.NewError(action.CodeValidationError, "Aktarım kaynak tahsis tutarını eksiye düşürür")
			return appErr
		}
		fromRemaining := fromAllocated.Add(from.RolloverAmount).Sub(from.UsedAmount)

		toAllocated := to.AllocatedAmount.Add(in.Amount)
		toRemaining := toAllocated.Add(to.RolloverAmount).Sub(to.UsedAmount)

		result.FromEntry = models.LedgerEntry{
			ShopID:          in.ShopID,
			AccountType:     models.AccountTypeBudgetAllocation,
			AccountID:       from.ID,
			Debit:           in.Amount,
			Credit:          decimal.Zero,
			BalanceAfter:    fromRemaining,
			TransactionType: TxTypeAllocationTransfer,
			Description:     fmt.Sprintf("Aktarım → %s: %s", to.Category, in.Reason),
			ReferenceNo:     uuid.NewString(),
			CreatedBy:       in.CreatedBy,
		}
		result.ToEntry = models.LedgerEntry{
			ShopID:          in.ShopID,
			AccountType:     models.AccountTypeBudgetAllocation,
			AccountID:       to.ID,
			Debit:           decimal.Zero,
			Credit:          in.Amount,
			BalanceAfter:    toRemaining,
			TransactionType: TxTypeAllocationTransfer,
			Description:     fmt.Sprintf("Aktarım ← %s: %s", from.Category, in.Reason),
			ReferenceNo:     uuid.NewString(),
			CreatedBy:       in.CreatedBy,
		}

		if err := tx.Create(&result.FromEntry).Error; err != nil {
			return err
		}
		if err := tx.Create(&result.ToEntry).Error; err != nil {
			return err
		}
		if aerr := saveAllocation(tx, from.ID, map[string]any{
			"allocated_amount": fromAllocated,
			"remaining_amount": fromRemaining,
		}); aerr != nil {
			appErr = aerr
			return aerr
		}
		if aerr := saveAllocation(tx, to.ID, map[string]any{
			"allocated_amount": toAllocated,
			"remaining_amount": toRemaining,
		}); aerr != nil {
			appErr = aerr
			return aerr
		}
		return nil
	})

	if txErr != nil {
		if appErr != nil {
			return nil, appErr
		}
		return nil, action.NewError(action.CodeDatabaseError, "Aktarım kaydedilemedi")
	}

	if !inTransaction(db) {
		SignalRecorded(&result.FromEntry, &result.ToEntry)
	}
	return &result, nil
}

type SpendInput struct {
	ShopID        uint
	AllocationID  uint
	Amount        decimal.Decimal
	Description   string
	ReferenceType string
	ReferenceID   *uint
	CreatedBy     uint
}

// RecordAllocationSpend - kalemden harcama işler; kalan tutar yetersizse reddeder.
func RecordAllocationSpend(db *gorm.DB, in SpendInput) (*models.LedgerEntry, *action.Error) {
	if !in.Amount.IsPositive() {
		return nil, action.NewError(action.CodeValidationError, "Tutar 0'dan büyük olmalı")
	}

	var (
		entry  models.LedgerEntry
		appErr *action.Error
	)

	txErr := db.Transaction(func(tx *gorm.DB) error {
		alloc, aerr := lockAllocation(tx, in.ShopID, in.AllocationID)
		if aerr != nil {
			appErr = aerr
			return aerr
		}

		if alloc.RemainingAmount.LessThan(in.Amount) {
			appErr = action.NewError(action.CodeInsufficientBudget, "Kalemde yeterli bütçe yok")
			return appErr
		}

		newUsed := alloc.UsedAmount.Add(in.Amount)
		newRemaining := alloc.AllocatedAmount.Add(alloc.RolloverAmount).Sub(newUsed)

		entry = models.LedgerEntry{
			ShopID:          in.ShopID,
			AccountType:     models.AccountTypeBudgetAllocation,
			AccountID:       alloc.ID,
			Debit:           in.Amount,
			Credit:          decimal.Zero,
			BalanceAfter:    newRemaining,
			TransactionType: TxTypeBudgetSpend,
			Description:     in.Description,
			ReferenceType:   in.ReferenceType,
			ReferenceID:     in.ReferenceID,
			ReferenceNo:     uuid.NewString(),
			CreatedBy:       in.CreatedBy,
		}

		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if aerr := saveAllocation(tx, alloc.ID, map[string]any{
			"used_amount":      newUsed,
			"remaining_amount": newRemaining,
		}); aerr != nil {
			appErr = aerr
			return aerr
		}
		return nil
	})

	if txErr != nil {
		if appErr != nil {
			return nil, appErr
		}
		return nil, action.NewError(action.CodeDatabaseError, "Harcama kaydedilemedi")
	}

	if !inTransaction(db) {
		SignalRecorded(&entry)
	}
	return &entry, nil
}

// OpenAllocationLedger - kalem oluşturulurken açılış kaydını yazar.
// Çağıranın transaction'ı içinde çalışır; commit sonrası SignalRecorded
// çağıranın sorumluluğundadır.
func OpenAllocationLedger(tx *gorm.DB, alloc *models.BudgetAllocation, createdBy uint) (*models.LedgerEntry, error) {
	if !alloc.AllocatedAmount.IsPositive() {
		return nil, nil
	}
	entry := models.LedgerEntry{
		ShopID:          alloc.ShopID,
		AccountType:     models.AccountTypeBudgetAllocation,
		AccountID:       alloc.ID,
		Debit:           decimal.Zero,
		Credit:          alloc.AllocatedAmount,
		BalanceAfter:    alloc.RemainingAmount,
		TransactionType: TxTypeAllocationOpening,
		Description:     fmt.Sprintf("Açılış tahsisi: %s", alloc.Category),
		ReferenceNo:     uuid.NewString(),
		CreatedBy:       createdBy,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func lockAllocation(tx *gorm.DB, shopID, allocationID uint) (*models.BudgetAllocation, *action.Error) {
	var alloc models.BudgetAllocation
	err := lockForUpdate(tx).
		Where("shop_id = ? AND id = ?", shopID, allocationID).
		First(&alloc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, action.NewError(action.CodeNotFound, "Bütçe kalemi bulunamadı")
		}
		return nil, action.NewError(action.CodeDatabaseError, "Bütçe kalemi yüklenemedi")
	}
	return &alloc, nil
}

func saveAllocation(tx *gorm.DB, allocationID uint, fields map[string]any) *action.Error {
	fields["version"] = gorm.Expr("version + 1")
	res := tx.Model(&models.BudgetAllocation{}).
		Where("id = ?", allocationID).
		Updates(fields)
	if res.Error != nil {
		return action.NewError(action.CodeDatabaseError, "Bütçe kalemi güncellenemedi")
	}
	if res.RowsAffected == 0 {
		return action.NewError(action.CodeNotFound, "Bütçe kalemi bulunamadı")
	}
	return nil
}
