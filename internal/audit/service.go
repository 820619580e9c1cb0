package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"kuyumcu-backend/internal/database"
	"kuyumcu-backend/internal/models"
)

type LogOptions struct {
	ShopID      *uint
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func WriteLog(opts LogOptions) error {
	// PostgreSQL jsonb için boş string yerine "null" JSON string'i kullanmalıyız
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	log := models.AuditLog{
		ShopID:      opts.ShopID,
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
		Undone:      false,
		IsUndone:    false,
	}

	if err := database.DB.Create(&log).Error; err != nil {
		return fmt.Errorf("audit log kaydedilemedi: %w", err)
	}

	return nil
}

// UndoLog - bir audit log'u geri alır. Defter kayıtları ve onlara bağlı
// finansal belgeler (purchase, sale, payment, bütçe hareketleri) geri
// alınamaz; defter append-only'dir, düzeltme ters kayıtla yapılır.
func UndoLog(logID uint, userID uint, userName string) error {
	var log models.AuditLog
	if err := database.DB.First(&log, "id = ?", logID).Error; err != nil {
		return fmt.Errorf("log bulunamadı: %w", err)
	}

	if log.IsUndone {
		return fmt.Errorf("bu işlem zaten geri alınmış")
	}

	switch log.Action {
	case models.AuditActionCreate:
		if err := deleteEntity(log.EntityType, log.EntityID); err != nil {
			return fmt.Errorf("entity silinemedi: %w", err)
		}

	case models.AuditActionUpdate:
		if err := restoreEntity(log.EntityType, log.EntityID, log.BeforeData); err != nil {
			return fmt.Errorf("entity geri yüklenemedi: %w", err)
		}

	default:
		return fmt.Errorf("bu işlem türü geri alınamaz")
	}

	now := time.Now()
	log.IsUndone = true
	log.UndoneBy = &userID
	log.UndoneAt = &now

	if err := database.DB.Save(&log).Error; err != nil {
		return fmt.Errorf("log güncellenemedi: %w", err)
	}

	undoLog := models.AuditLog{
		ShopID:      log.ShopID,
		UserID:      userID,
		UserName:    userName,
		EntityType:  log.EntityType,
		EntityID:    log.EntityID,
		Action:      models.AuditActionUndo,
		Description: fmt.Sprintf("Geri alındı: %s", log.Description),
		BeforeData:  log.AfterData,
		AfterData:   log.BeforeData,
		Undone:      true,
		IsUndone:    false,
	}

	if err := database.DB.Create(&undoLog).Error; err != nil {
		return fmt.Errorf("undo log kaydedilemedi: %w", err)
	}

	return nil
}

// Geri alınabilir entity'ler: bakiyeye dokunmayan profil kayıtları.
// Cari hesaplar yalnızca bakiyeleri sıfırken silinebilir.

func deleteEntity(entityType string, entityID uint) error {
	switch entityType {
	case "supplier":
		return deleteAccountIfZero(&models.Supplier{}, entityID)
	case "workshop":
		return deleteAccountIfZero(&models.Workshop{}, entityID)
	case "customer":
		return deleteAccountIfZero(&models.Customer{}, entityID)
	case "product":
		return database.DB.Delete(&models.Product{}, "id = ?", entityID).Error
	case "product_category":
		return database.DB.Delete(&models.ProductCategory{}, "id = ?", entityID).Error
	default:
		return fmt.Errorf("geri alınamayan entity tipi: %s", entityType)
	}
}

func deleteAccountIfZero(model any, entityID uint) error {
	var count int64
	if err := database.DB.Model(&models.LedgerEntry{}).
		Where("account_id = ?", entityID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("hesapta defter hareketi var, geri alınamaz")
	}
	return database.DB.Delete(model, "id = ?", entityID).Error
}

func restoreEntity(entityType string, entityID uint, dataJSON string) error {
	switch entityType {
	case "supplier":
		var s models.Supplier
		if err := json.Unmarshal([]byte(dataJSON), &s); err != nil {
			return err
		}
		// bakiye ve version'a dokunma, sadece profil alanları
		return database.DB.Model(&models.Supplier{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"name":           s.Name,
			"contact_person": s.ContactPerson,
			"phone":          s.Phone,
			"email":          s.Email,
			"address":        s.Address,
		}).Error

	case "workshop":
		var w models.Workshop
		if err := json.Unmarshal([]byte(dataJSON), &w); err != nil {
			return err
		}
		return database.DB.Model(&models.Workshop{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"name":      w.Name,
			"specialty": w.Specialty,
			"phone":     w.Phone,
			"address":   w.Address,
		}).Error

	case "customer":
		var cu models.Customer
		if err := json.Unmarshal([]byte(dataJSON), &cu); err != nil {
			return err
		}
		return database.DB.Model(&models.Customer{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"name":        cu.Name,
			"phone":       cu.Phone,
			"email":       cu.Email,
			"address":     cu.Address,
			"national_id": cu.NationalID,
		}).Error

	case "product":
		var p models.Product
		if err := json.Unmarshal([]byte(dataJSON), &p); err != nil {
			return err
		}
		return database.DB.Model(&models.Product{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"name":        p.Name,
			"stock_code":  p.StockCode,
			"karat":       p.Karat,
			"gram_weight": p.GramWeight,
			"cost_price":  p.CostPrice,
			"sale_price":  p.SalePrice,
			"stock_count": p.StockCount,
		}).Error

	case "product_category":
		var pc models.ProductCategory
		if err := json.Unmarshal([]byte(dataJSON), &pc); err != nil {
			return err
		}
		return database.DB.Model(&models.ProductCategory{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"name": pc.Name,
		}).Error

	default:
		return fmt.Errorf("geri alınamayan entity tipi: %s", entityType)
	}
}
