package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase - tedarikçiden yapılan alım. Kaydedildiğinde tutarı tedarikçi
// hesabına borç (debit) olarak işlenir.
type Purchase struct {
	ID         uint     `gorm:"primaryKey"`
	ShopID     uint     `gorm:"index;not null"`
	Shop       Shop     `gorm:"foreignKey:ShopID"`
	SupplierID uint     `gorm:"index;not null"`
	Supplier   Supplier `gorm:"foreignKey:SupplierID"`

	ProductID *uint    // stok güncellemesi için, opsiyonel
	Product   *Product `gorm:"foreignKey:ProductID"`

	Description string          `gorm:"size:500"`
	Quantity    int             `gorm:"not null;default:1"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Date        time.Time       `gorm:"index;not null"`

	CreatedBy uint `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
