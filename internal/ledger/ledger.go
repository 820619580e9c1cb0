package ledger

import (
	"errors"
	"fmt"
	"time"

	"kuyumcu-backend/internal/action"
	"kuyumcu-backend/internal/cache"
	"kuyumcu-backend/internal/events"
	"kuyumcu-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Yön: debit karşı tarafa olan borcu artırır (alım), credit azaltır (ödeme).
// Kredi havuzunda debit = yükleme, credit = tüketim; mekanik aynıdır.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

type RecordInput struct {
	ShopID          uint
	AccountType     models.LedgerAccountType
	AccountID       uint
	Amount          decimal.Decimal
	Direction       Direction
	TransactionType string
	Description     string
	ReferenceType   string
	ReferenceID     *uint
	CreatedBy       uint

	// true ise bakiyeyi eksiye düşürecek credit reddedilir (kredi havuzu tüketimi)
	DisallowNegative bool
}

// RecordTransaction - bir finansal olayı kalıcı olarak kaydeder ve hesabın
// önbelleklenmiş bakiyesini günceller. Bakiye okuma + kayıt insert + bakiye
// update tek transaction içinde, hesap satırı kilitliyken yürür; eşzamanlı
// yazarlar veritabanında sıralanır.
func RecordTransaction(db *gorm.DB, in RecordInput) (*models.LedgerEntry, *action.Error) {
	if !in.Amount.IsPositive() {
		return nil, action.NewError(action.CodeValidationError, "Tutar 0'dan büyük olmalı")
	}
	if in.Direction != DirectionDebit && in.Direction != DirectionCredit {
		return nil, action.NewError(action.CodeValidationError, "Yön 'debit' veya 'credit' olmalı")
	}
	if in.AccountType == models.AccountTypeBudgetAllocation {
		// Bütçe kalemleri AdjustAllocationAmount / TransferBetweenAllocations
		// / RecordAllocationSpend üzerinden işlenir
		return nil, action.NewError(action.CodeValidationError, "Bütçe kalemi bu operasyonla işlenemez")
	}

	var (
		entry  models.LedgerEntry
		appErr *action.Error
	)

	txErr := db.Transaction(func(tx *gorm.DB) error {
		balance, aerr := lockAccountBalance(tx, in.ShopID, in.AccountType, in.AccountID)
		if aerr != nil {
			appErr = aerr
			return aerr
		}

		newBalance := balance.Add(in.Amount)
		if in.Direction == DirectionCredit {
			newBalance = balance.Sub(in.Amount)
		}
		if in.DisallowNegative && newBalance.IsNegative() {
			appErr = action.NewError(action.CodeInsufficientBudget, "Hesapta yeterli bakiye yok")
			return appErr
		}

		entry = models.LedgerEntry{
			ShopID:          in.ShopID,
			AccountType:     in.AccountType,
			AccountID:       in.AccountID,
			BalanceAfter:    newBalance,
			TransactionType: in.TransactionType,
			Description:     in.Description,
			ReferenceType:   in.ReferenceType,
			ReferenceID:     in.ReferenceID,
			ReferenceNo:     uuid.NewString(),
			CreatedBy:       in.CreatedBy,
		}
		if in.Direction == DirectionDebit {
			entry.Debit = in.Amount
			entry.Credit = decimal.Zero
		} else {
			entry.Debit = decimal.Zero
			entry.Credit = in.Amount
		}

		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if aerr := updateAccountBalance(tx, in.ShopID, in.AccountType, in.AccountID, newBalance); aerr != nil {
			appErr = aerr
			return aerr
		}
		return nil
	})

	if txErr != nil {
		if appErr != nil {
			return nil, appErr
		}
		return nil, action.NewError(action.CodeDatabaseError, "Defter kaydı yazılamadı")
	}

	// İç içe çağrıda (dış transaction bir savepoint açtı) sinyal yok:
	// dış transaction geri alınabilir, sinyal dıştaki commit'in işidir.
	if !inTransaction(db) {
		SignalRecorded(&entry)
	}
	return &entry, nil
}

type PaymentInput struct {
	ShopID        uint
	AccountType   models.LedgerAccountType // supplier, workshop veya customer
	AccountID     uint
	Amount        decimal.Decimal
	PaymentType   string // "cash", "transfer", "gold" ...
	ReferenceType string // "purchase" / "workshop_order", opsiyonel
	ReferenceID   *uint
	Notes         string
	CreatedBy     uint
}

// RecordPayment - karşı tarafa yapılan ödemeyi işler; bakiyeyi düşürür.
// Opsiyonel belge referansı aynı hesaba ait olmak zorundadır; sahiplik
// kontrolü kayıtla aynı transaction içinde yapılır.
func RecordPayment(db *gorm.DB, in PaymentInput) (*models.LedgerEntry, *action.Error) {
	switch in.AccountType {
	case models.AccountTypeSupplier, models.AccountTypeWorkshop, models.AccountTypeCustomer:
	default:
		return nil, action.NewError(action.CodeValidationError, "Bu hesap tipine ödeme işlenemez")
	}

	description := in.Notes
	if description == "" {
		description = fmt.Sprintf("Ödeme (%s)", in.PaymentType)
	}

	var (
		entry  *models.LedgerEntry
		appErr *action.Error
	)

	txErr := db.Transaction(func(tx *gorm.DB) error {
		if in.ReferenceID != nil {
			if aerr := verifyReference(tx, in); aerr != nil {
				appErr = aerr
				return aerr
			}
		}

		e, aerr := RecordTransaction(tx, RecordInput{
			ShopID:          in.ShopID,
			AccountType:     in.AccountType,
			AccountID:       in.AccountID,
			Amount:          in.Amount,
			Direction:       DirectionCredit,
			TransactionType: "payment",
			Description:     description,
			ReferenceType:   in.ReferenceType,
			ReferenceID:     in.ReferenceID,
			CreatedBy:       in.CreatedBy,
		})
		if aerr != nil {
			appErr = aerr
			return aerr
		}
		entry = e
		return nil
	})

	if txErr != nil {
		if appErr != nil {
			return nil, appErr
		}
		return nil, action.NewError(action.CodeDatabaseError, "Ödeme kaydedilemedi")
	}

	if !inTransaction(db) {
		SignalRecorded(entry)
	}
	return entry, nil
}

func verifyReference(db *gorm.DB, in PaymentInput) *action.Error {
	switch in.ReferenceType {
	case "workshop_order":
		var order models.WorkshopOrder
		if err := db.Where("shop_id = ? AND id = ?", in.ShopID, *in.ReferenceID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.NewError(action.CodeNotFound, "İş emri bulunamadı")
			}
			return action.NewError(action.CodeDatabaseError, "İş emri yüklenemedi")
		}
		if order.WorkshopID != in.AccountID {
			return action.NewError(action.CodeValidationError, "İş emri bu atölyeye ait değil")
		}
	case "purchase":
		var purchase models.Purchase
		if err := db.Where("shop_id = ? AND id = ?", in.ShopID, *in.ReferenceID).First(&purchase).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.NewError(action.CodeNotFound, "Alım kaydı bulunamadı")
			}
			return action.NewError(action.CodeDatabaseError, "Alım kaydı yüklenemedi")
		}
		if purchase.SupplierID != in.AccountID {
			return action.NewError(action.CodeValidationError, "Alım bu tedarikçiye ait değil")
		}
	case "sale":
		var sale models.Sale
		if err := db.Where("shop_id = ? AND id = ?", in.ShopID, *in.ReferenceID).First(&sale).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.NewError(action.CodeNotFound, "Satış bulunamadı")
			}
			return action.NewError(action.CodeDatabaseError, "Satış yüklenemedi")
		}
		if sale.CustomerID == nil || *sale.CustomerID != in.AccountID {
			return action.NewError(action.CodeValidationError, "Satış bu müşteriye ait değil")
		}
	default:
		return action.NewError(action.CodeValidationError, "Geçersiz belge referansı tipi")
	}
	return nil
}

// EntriesForAccount - bir hesabın defter kayıtları, sıra numarasına göre
func EntriesForAccount(db *gorm.DB, shopID uint, accountType models.LedgerAccountType, accountID uint, from, to *time.Time) ([]models.LedgerEntry, *action.Error) {
	dbq := db.Model(&models.LedgerEntry{}).
		Where("shop_id = ? AND account_type = ? AND account_id = ?", shopID, accountType, accountID)

	if from != nil {
		dbq = dbq.Where("created_at >= ?", *from)
	}
	if to != nil {
		dbq = dbq.Where("created_at <= ?", *to)
	}

	var entries []models.LedgerEntry
	if err := dbq.Order("id asc").Find(&entries).Error; err != nil {
		return nil, action.NewError(action.CodeDatabaseError, "Defter kayıtları listelenemedi")
	}
	return entries, nil
}

// ---- hesap tipi anahtarlamaları ----

func lockForUpdate(tx *gorm.DB) *gorm.DB {
	// sqlite (testler) FOR UPDATE desteklemez; tek bağlantılı olduğu için gerek de yok
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func lockAccountBalance(tx *gorm.DB, shopID uint, accountType models.LedgerAccountType, accountID uint) (decimal.Decimal, *action.Error) {
	q := lockForUpdate(tx).Where("shop_id = ? AND id = ?", shopID, accountID)

	var (
		balance decimal.Decimal
		err     error
	)

	switch accountType {
	case models.AccountTypeSupplier:
		var s models.Supplier
		err = q.First(&s).Error
		balance = s.CurrentBalance
	case models.AccountTypeWorkshop:
		var w models.Workshop
		err = q.First(&w).Error
		balance = w.CurrentBalance
	case models.AccountTypeCustomer:
		var c models.Customer
		err = q.First(&c).Error
		balance = c.CurrentBalance
	case models.AccountTypeCreditPool:
		var p models.CreditPool
		err = q.First(&p).Error
		balance = p.CurrentBalance
	default:
		return decimal.Zero, action.NewError(action.CodeValidationError, "Bilinmeyen hesap tipi")
	}

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, action.NewError(action.CodeNotFound, "Hesap bulunamadı")
		}
		return decimal.Zero, action.NewError(action.CodeDatabaseError, "Hesap yüklenemedi")
	}
	return balance, nil
}

func updateAccountBalance(tx *gorm.DB, shopID uint, accountType models.LedgerAccountType, accountID uint, newBalance decimal.Decimal) *action.Error {
	var model any
	switch accountType {
	case models.AccountTypeSupplier:
		model = &models.Supplier{}
	case models.AccountTypeWorkshop:
		model = &models.Workshop{}
	case models.AccountTypeCustomer:
		model = &models.Customer{}
	case models.AccountTypeCreditPool:
		model = &models.CreditPool{}
	default:
		return action.NewError(action.CodeValidationError, "Bilinmeyen hesap tipi")
	}

	res := tx.Model(model).
		Where("shop_id = ? AND id = ?", shopID, accountID).
		Updates(map[string]any{
			"current_balance": newBalance,
			"version":         gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return action.NewError(action.CodeDatabaseError, "Hesap bakiyesi güncellenemedi")
	}
	if res.RowsAffected == 0 {
		return action.NewError(action.CodeNotFound, "Hesap bulunamadı")
	}
	return nil
}

// inTransaction - verilen handle zaten bir transaction'a mı ait?
// gorm iç içe Transaction çağrısında savepoint açar; sinyaller gerçek
// commit'e kadar beklemek zorundadır.
func inTransaction(db *gorm.DB) bool {
	committer, ok := db.Statement.ConnPool.(gorm.TxCommitter)
	return ok && committer != nil
}

// SignalRecorded - commit sonrası fire-and-forget sinyaller (önbellek
// geçersiz kılma + event yayını). Defter fonksiyonları kendi transaction'ını
// açtığında bunu kendisi çağırır; dış transaction içinden çağrıldıklarında
// sinyal, commit'ten sonra dönen entry ile çağıranın sorumluluğudur.
func SignalRecorded(entries ...*models.LedgerEntry) {
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		cache.Invalidate(viewPaths(entry)...)
		events.EmitLedgerEntry(entry)
	}
}

func viewPaths(entry *models.LedgerEntry) []string {
	var base string
	switch entry.AccountType {
	case models.AccountTypeSupplier:
		base = "suppliers"
	case models.AccountTypeWorkshop:
		base = "workshops"
	case models.AccountTypeCustomer:
		base = "customers"
	case models.AccountTypeCreditPool:
		base = "credit-pools"
	case models.AccountTypeBudgetAllocation:
		base = "budgets"
	}
	return []string{base, fmt.Sprintf("%s/%d", base, entry.AccountID)}
}
