package database

import (
	"kuyumcu-backend/internal/config"
	"kuyumcu-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	log := config.GetLogger()

	var err error
	// TranslateError: unique ihlalleri sürücüden gorm.ErrDuplicatedKey
	// olarak döner, handler'lar buna göre 409 üretir
	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("Veritabanına bağlanılamadı: %v", err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatalf("AutoMigrate hatası: %v", err)
	}

	log.Info("Veritabanı bağlantısı başarılı. Migration tamamlandı.")
}

// Migrate - tüm modelleri migrate eder. Testler bunu in-memory sqlite
// üzerinde de çağırır.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Shop{},
		&models.User{},
		&models.Supplier{},
		&models.Workshop{},
		&models.WorkshopOrder{},
		&models.Customer{},
		&models.CreditPool{},
		&models.Budget{},
		&models.BudgetAllocation{},
		&models.ProductCategory{},
		&models.Product{},
		&models.Purchase{},
		&models.Sale{},
		&models.SaleItem{},
		&models.LedgerEntry{},
		&models.AuditLog{},
	)
}
