package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreditPool - dükkanın yapay zeka asistanı kredi havuzu.
// Debit = kredi yükleme (bakiye artar), credit = kredi tüketimi (bakiye azalır).
type CreditPool struct {
	ID     uint `gorm:"primaryKey"`
	ShopID uint `gorm:"not null;index:idx_credit_pool_shop_name,unique"`
	Shop   Shop `gorm:"foreignKey:ShopID"`

	Name string `gorm:"size:100;not null;index:idx_credit_pool_shop_name,unique"`

	CurrentBalance decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Version        int             `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}
