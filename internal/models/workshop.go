package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Workshop - atölye cari hesabı (sadeleştirme, tamir, üretim işleri)
type Workshop struct {
	ID     uint `gorm:"primaryKey"`
	ShopID uint `gorm:"not null;index:idx_workshop_shop_name,unique"`
	Shop   Shop `gorm:"foreignKey:ShopID"`

	Name      string `gorm:"size:100;not null;index:idx_workshop_shop_name,unique"`
	Specialty string `gorm:"size:100"` // örn: "sade işçilik", "mıhlama", "cila"
	Phone     string `gorm:"size:50"`
	Address   string `gorm:"size:255"`

	CurrentBalance decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Version        int             `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	Orders []WorkshopOrder `gorm:"foreignKey:WorkshopID"`
}

type WorkshopOrderStatus string

const (
	WorkshopOrderPending   WorkshopOrderStatus = "pending"
	WorkshopOrderInProcess WorkshopOrderStatus = "in_process"
	WorkshopOrderCompleted WorkshopOrderStatus = "completed"
	WorkshopOrderCancelled WorkshopOrderStatus = "cancelled"
)

// WorkshopOrder - atölyeye verilen iş emri. Tamamlandığında tutarı
// atölye hesabına borç (debit) olarak işlenir.
type WorkshopOrder struct {
	ID         uint     `gorm:"primaryKey"`
	ShopID     uint     `gorm:"index;not null"`
	Shop       Shop     `gorm:"foreignKey:ShopID"`
	WorkshopID uint     `gorm:"index;not null"`
	Workshop   Workshop `gorm:"foreignKey:WorkshopID"`

	Description string              `gorm:"size:500;not null"`
	GramWeight  decimal.Decimal     `gorm:"type:decimal(12,3)"` // altın gramajı
	Amount      decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	Status      WorkshopOrderStatus `gorm:"size:20;not null;index"`
	OrderDate   time.Time           `gorm:"index;not null"`
	DueDate     *time.Time

	Version int `gorm:"not null;default:0"` // durum güncellemelerinde CAS

	CreatedBy uint `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
