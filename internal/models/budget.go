package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Budget - dönemsel bütçe (örn: "2026 Ocak"). Kalemleri BudgetAllocation.
type Budget struct {
	ID     uint `gorm:"primaryKey"`
	ShopID uint `gorm:"not null;index:idx_budget_shop_period,unique"`
	Shop   Shop `gorm:"foreignKey:ShopID"`

	Name  string `gorm:"size:100;not null"`
	Year  int    `gorm:"not null;index:idx_budget_shop_period,unique"`
	Month int    `gorm:"not null;index:idx_budget_shop_period,unique"` // 1-12

	CreatedBy uint `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Allocations []BudgetAllocation `gorm:"foreignKey:BudgetID"`
}

// BudgetAllocation - bütçe kalemi. RemainingAmount her zaman
// Allocated + Rollover - Used olmalı; ledger kayıtları tahsis
// hareketlerini (opening/adjust/transfer) ve harcamaları (spend) tutar.
type BudgetAllocation struct {
	ID       uint   `gorm:"primaryKey"`
	ShopID   uint   `gorm:"index;not null"`
	Shop     Shop   `gorm:"foreignKey:ShopID"`
	BudgetID uint   `gorm:"not null;index:idx_allocation_budget_category,unique"`
	Budget   Budget `gorm:"foreignKey:BudgetID"`

	Category string `gorm:"size:100;not null;index:idx_allocation_budget_category,unique"`

	AllocatedAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	RolloverAmount  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"` // önceki dönemden devir
	UsedAmount      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`

	Version int `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}
