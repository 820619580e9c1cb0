package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Customer - müşteri cari hesabı. CurrentBalance müşterinin kalan
// taksit/veresiye borcunu tutar.
type Customer struct {
	ID     uint `gorm:"primaryKey"`
	ShopID uint `gorm:"index;not null"`
	Shop   Shop `gorm:"foreignKey:ShopID"`

	Name       string `gorm:"size:100;not null"`
	Phone      string `gorm:"size:50;index"`
	Email      string `gorm:"size:100"`
	Address    string `gorm:"size:255"`
	NationalID string `gorm:"size:20"` // TC kimlik, opsiyonel

	CurrentBalance decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Version        int             `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}
