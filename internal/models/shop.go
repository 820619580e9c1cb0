package models

import "time"

// Shop - platformdaki her kuyumcu dükkanı bir tenant
type Shop struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:100;not null;unique"`
	Address   string `gorm:"size:255"`
	Phone     string `gorm:"size:50"` // Opsiyonel telefon
	TaxNumber string `gorm:"size:50"` // Vergi numarası
	CreatedAt time.Time
	UpdatedAt time.Time

	Users []User
}
