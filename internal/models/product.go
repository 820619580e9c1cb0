package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductCategory struct {
	ID     uint `gorm:"primaryKey"`
	ShopID uint `gorm:"not null;index:idx_product_category_shop_name,unique"`
	Shop   Shop `gorm:"foreignKey:ShopID"`

	Name string `gorm:"size:100;not null;index:idx_product_category_shop_name,unique"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Product - kuyum ürünü (bilezik, kolye, yüzük vs.)
type Product struct {
	ID         uint            `gorm:"primaryKey"`
	ShopID     uint            `gorm:"index;not null"`
	Shop       Shop            `gorm:"foreignKey:ShopID"`
	CategoryID uint            `gorm:"index;not null"`
	Category   ProductCategory `gorm:"foreignKey:CategoryID"`

	Name      string          `gorm:"size:150;not null"`
	StockCode string          `gorm:"size:50;index"` // barkod / stok kodu, opsiyonel
	Karat     int             `gorm:"not null"`      // ayar: 8, 14, 18, 22, 24
	GramWeight decimal.Decimal `gorm:"type:decimal(12,3);not null"`

	CostPrice  decimal.Decimal `gorm:"type:decimal(18,2);not null"` // maliyet
	SalePrice  decimal.Decimal `gorm:"type:decimal(18,2);not null"` // etiket fiyatı
	StockCount int             `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}
