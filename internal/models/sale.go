package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodInstallment PaymentMethod = "installment" // veresiye/taksit
)

// Sale - satış. Taksitli satışlarda kalan tutar müşteri hesabına
// borç (debit) olarak işlenir.
type Sale struct {
	ID     uint `gorm:"primaryKey"`
	ShopID uint `gorm:"index;not null"`
	Shop   Shop `gorm:"foreignKey:ShopID"`

	CustomerID *uint     // nakit satışta opsiyonel
	Customer   *Customer `gorm:"foreignKey:CustomerID"`

	Method      PaymentMethod   `gorm:"size:20;not null"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	PaidAmount  decimal.Decimal `gorm:"type:decimal(18,2);not null"` // peşinat dahil ödenen
	Date        time.Time       `gorm:"index;not null"`
	Description string          `gorm:"size:500"`

	Items []SaleItem `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`

	CreatedBy uint `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type SaleItem struct {
	ID     uint `gorm:"primaryKey"`
	SaleID uint `gorm:"index;not null"`

	ProductID uint    `gorm:"index;not null"`
	Product   Product `gorm:"foreignKey:ProductID"`

	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Total     decimal.Decimal `gorm:"type:decimal(18,2);not null"`

	CreatedAt time.Time
}
