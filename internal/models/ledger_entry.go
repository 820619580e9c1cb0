package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerAccountType - defter kaydının hangi hesap tipine ait olduğu
type LedgerAccountType string

const (
	AccountTypeSupplier         LedgerAccountType = "supplier"
	AccountTypeWorkshop         LedgerAccountType = "workshop"
	AccountTypeCustomer         LedgerAccountType = "customer"
	AccountTypeCreditPool       LedgerAccountType = "credit_pool"
	AccountTypeBudgetAllocation LedgerAccountType = "budget_allocation"
)

// LedgerEntry - tek bir finansal olayın değiştirilemez kaydı.
// Insert sonrası asla update/delete edilmez; bakiye düzeltmeleri
// yeni kayıtla yapılır.
type LedgerEntry struct {
	ID     uint `gorm:"primaryKey"` // auto-increment = hesap başına monoton sıra
	ShopID uint `gorm:"index;not null"`
	Shop   Shop `gorm:"foreignKey:ShopID"`

	AccountType LedgerAccountType `gorm:"size:30;not null;index:idx_ledger_account"`
	AccountID   uint              `gorm:"not null;index:idx_ledger_account"`

	// Tam olarak biri sıfırdan farklı olur (alım = debit, ödeme = credit)
	Debit  decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Credit decimal.Decimal `gorm:"type:decimal(18,2);not null"`

	// Kayıt yazıldığı andaki hesap bakiyesi (yazar tarafından hesaplanır)
	BalanceAfter decimal.Decimal `gorm:"type:decimal(18,2);not null"`

	TransactionType string `gorm:"size:40;not null;index"`
	Description     string `gorm:"size:500"`

	// Kaydı tetikleyen iş belgesi (purchase / workshop_order / sale), opsiyonel
	ReferenceType string `gorm:"size:40"`
	ReferenceID   *uint

	ReferenceNo string `gorm:"size:40;uniqueIndex"` // dışa dönük işlem numarası (uuid)

	CreatedBy uint `gorm:"not null"`
	CreatedAt time.Time
}
