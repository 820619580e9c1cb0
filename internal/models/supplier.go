package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Supplier - tedarikçi cari hesabı. CurrentBalance tedarikçiye olan borcu
// tutar ve yalnızca ledger kayıtlarıyla birlikte güncellenir.
type Supplier struct {
	ID     uint `gorm:"primaryKey"`
	ShopID uint `gorm:"not null;index:idx_supplier_shop_name,unique"`
	Shop   Shop `gorm:"foreignKey:ShopID"`

	Name          string `gorm:"size:100;not null;index:idx_supplier_shop_name,unique"`
	ContactPerson string `gorm:"size:100"`
	Phone         string `gorm:"size:50"`
	Email         string `gorm:"size:100"`
	Address       string `gorm:"size:255"`

	CurrentBalance decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Version        int             `gorm:"not null;default:0"` // her yazmada artar

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}
