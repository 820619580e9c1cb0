package customer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"kuyumcu-backend/internal/action"
	"kuyumcu-backend/internal/audit"
	"kuyumcu-backend/internal/cache"
	"kuyumcu-backend/internal/database"
	"kuyumcu-backend/internal/ledger"
	"kuyumcu-backend/internal/models"
	"kuyumcu-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateCustomerRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	Phone      string `json:"phone" validate:"max=50"`
	Email      string `json:"email" validate:"omitempty,email,max=100"`
	Address    string `json:"address" validate:"max=255"`
	NationalID string `json:"national_id" validate:"max=20"`
	ShopID     *uint  `json:"shop_id"` // super_admin için opsiyonel
}

type UpdateCustomerRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	Phone      string `json:"phone" validate:"max=50"`
	Email      string `json:"email" validate:"omitempty,email,max=100"`
	Address    string `json:"address" validate:"max=255"`
	NationalID string `json:"national_id" validate:"max=20"`
	Version    int    `json:"version"`
	ShopID     *uint  `json:"shop_id"`
}

type CustomerResponse struct {
	ID             uint            `json:"id"`
	ShopID         uint            `json:"shop_id"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone"`
	Email          string          `json:"email"`
	Address        string          `json:"address"`
	NationalID     string          `json:"national_id"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Version        int             `json:"version"`
	CreatedAt      string          `json:"created_at"`
}

func toCustomerResponse(m *models.Customer) CustomerResponse {
	return CustomerResponse{
		ID:             m.ID,
		ShopID:         m.ShopID,
		Name:           m.Name,
		Phone:          m.Phone,
		Email:          m.Email,
		Address:        m.Address,
		NationalID:     m.NationalID,
		CurrentBalance: m.CurrentBalance,
		Version:        m.Version,
		CreatedAt:      m.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// POST /api/customers
func CreateCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateCustomerRequest
		if err := c.BodyParser(&body); err != nil {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "Geçersiz istek gövdesi"))
		}
		body.Name = strings.TrimSpace(body.Name)
		if aerr := validation.Struct(body); aerr != nil {
			return action.RespondError(c, aerr)
		}

		shopID, err := resolveShopIDFromBodyOrRole(c, body.ShopID)
		if err != nil {
			return err
		}

		m := models.Customer{
			ShopID:         shopID,
			Name:           body.Name,
			Phone:          body.Phone,
			Email:          body.Email,
			Address:        body.Address,
			NationalID:     body.NationalID,
			CurrentBalance: decimal.Zero,
		}
		if err := database.DB.Create(&m).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Müşteri oluşturulamadı"))
		}

		if userID, userName, _, uerr := getUserInfo(c); uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				ShopID:      &shopID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "customer",
				EntityID:    m.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Müşteri eklendi: %s", m.Name),
				Before:      nil,
				After:       m,
			})
		}

		cache.Invalidate("customers")

		return action.Created(c, toCustomerResponse(&m), "Müşteri oluşturuldu")
	}
}

// GET /api/customers?shop_id=...&q=...
func ListCustomersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Where("shop_id = ?", shopID)
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			like := "%" + q + "%"
			dbq = dbq.Where("name LIKE ? OR phone LIKE ?", like, like)
		}

		var rows []models.Customer
		if err := dbq.Order("name asc").Find(&rows).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Müşteriler listelenemedi"))
		}

		res := make([]CustomerResponse, 0, len(rows))
		for i := range rows {
			res = append(res, toCustomerResponse(&rows[i]))
		}
		return action.Respond(c, res, "")
	}
}

// GET /api/customers/:id
func GetCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var m models.Customer
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "Müşteri bulunamadı"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Müşteri yüklenemedi"))
		}
		return action.Respond(c, toCustomerResponse(&m), "")
	}
}

// PUT /api/customers/:id
// Profil alanları version CAS ile güncellenir; bakiye sadece defterden değişir.
func UpdateCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body UpdateCustomerRequest
		if err := c.BodyParser(&body); err != nil {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "Geçersiz istek gövdesi"))
		}
		body.Name = strings.TrimSpace(body.Name)
		if aerr := validation.Struct(body); aerr != nil {
			return action.RespondError(c, aerr)
		}

		shopID, err := resolveShopIDFromBodyOrRole(c, body.ShopID)
		if err != nil {
			return err
		}

		var m models.Customer
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "Müşteri bulunamadı"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Müşteri yüklenemedi"))
		}
		before := m

		res := database.DB.Model(&models.Customer{}).
			Where("shop_id = ? AND id = ? AND version = ?", shopID, m.ID, body.Version).
			Updates(map[string]any{
				"name":        body.Name,
				"phone":       body.Phone,
				"email":       body.Email,
				"address":     body.Address,
				"national_id": body.NationalID,
				"version":     gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Müşteri güncellenemedi"))
		}
		if res.RowsAffected == 0 {
			return action.RespondError(c, action.NewError(action.CodeConcurrentModification, "Kayıt başka bir işlem tarafından değiştirildi"))
		}

		database.DB.Where("shop_id = ? AND id = ?", shopID, m.ID).First(&m)

		if userID, userName, _, uerr := getUserInfo(c); uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				ShopID:      &shopID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "customer",
				EntityID:    m.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Müşteri güncellendi: %s", m.Name),
				Before:      before,
				After:       m,
			})
		}

		cache.Invalidate("customers", fmt.Sprintf("customers/%d", m.ID))

		return action.Respond(c, toCustomerResponse(&m), "Müşteri güncellendi")
	}
}

// DELETE /api/customers/:id
func DeleteCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var m models.Customer
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "Müşteri bulunamadı"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Müşteri yüklenemedi"))
		}

		if !m.CurrentBalance.IsZero() {
			return action.RespondError(c, action.NewError(action.CodeHasBalance, "Borcu sıfır olmayan müşteri silinemez"))
		}

		if err := database.DB.Delete(&m).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Müşteri silinemedi"))
		}

		if userID, userName, _, uerr := getUserInfo(c); uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				ShopID:      &shopID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "customer",
				EntityID:    m.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Müşteri silindi: %s", m.Name),
				Before:      m,
				After:       nil,
			})
		}

		cache.Invalidate("customers", fmt.Sprintf("customers/%d", m.ID))

		return action.Respond(c, nil, "Müşteri silindi")
	}
}

type CreateCustomerPaymentRequest struct {
	CustomerID  uint            `json:"customer_id" validate:"required"`
	SaleID      *uint           `json:"sale_id"` // opsiyonel belge referansı
	Amount      decimal.Decimal `json:"amount"`
	PaymentType string          `json:"payment_type" validate:"required,oneof=cash card transfer"`
	Notes       string          `json:"notes" validate:"max=500"`
	ShopID      *uint           `json:"shop_id"`
}

// POST /api/customer-payments
// Müşteriden gelen tahsilat; müşterinin borç bakiyesini düşürür.
func CreateCustomerPaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateCustomerPaymentRequest
		if err := c.BodyParser(&body); err != nil {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "Geçersiz istek gövdesi"))
		}
		if aerr := validation.Struct(body); aerr != nil {
			return action.RespondError(c, aerr)
		}
		if !body.Amount.IsPositive() {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "amount 0'dan büyük olmalı"))
		}

		shopID, err := resolveShopIDFromBodyOrRole(c, body.ShopID)
		if err != nil {
			return err
		}

		userID, userName, _, uerr := getUserInfo(c)
		if uerr != nil {
			return uerr
		}

		referenceType := ""
		if body.SaleID != nil {
			referenceType = "sale"
		}

		entry, appErr := ledger.RecordPayment(database.DB, ledger.PaymentInput{
			ShopID:        shopID,
			AccountType:   models.AccountTypeCustomer,
			AccountID:     body.CustomerID,
			Amount:        body.Amount,
			PaymentType:   body.PaymentType,
			ReferenceType: referenceType,
			ReferenceID:   body.SaleID,
			Notes:         body.Notes,
			CreatedBy:     userID,
		})
		if appErr != nil {
			return action.RespondError(c, appErr)
		}

		_ = audit.WriteLog(audit.LogOptions{
			ShopID:      &shopID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "customer_payment",
			EntityID:    entry.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Müşteri tahsilatı: %s TL (%s)", body.Amount.StringFixed(2), body.PaymentType),
			Before:      nil,
			After:       entry,
		})

		return action.Created(c, entry, "Tahsilat kaydedildi")
	}
}

// GET /api/customers/:id/statement?shop_id=...&from=...&to=...
func CustomerStatementHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var m models.Customer
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "Müşteri bulunamadı"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Müşteri yüklenemedi"))
		}

		var from, to *time.Time
		if fromStr := c.Query("from"); fromStr != "" {
			t, perr := time.Parse("2006-01-02", fromStr)
			if perr != nil {
				return action.RespondError(c, action.NewError(action.CodeValidationError, "from geçersiz"))
			}
			from = &t
		}
		if toStr := c.Query("to"); toStr != "" {
			t, perr := time.Parse("2006-01-02", toStr)
			if perr != nil {
				return action.RespondError(c, action.NewError(action.CodeValidationError, "to geçersiz"))
			}
			to = &t
		}

		entries, aerr := ledger.EntriesForAccount(database.DB, shopID, models.AccountTypeCustomer, m.ID, from, to)
		if aerr != nil {
			return action.RespondError(c, aerr)
		}

		derived, aerr := ledger.DeriveBalance(database.DB, shopID, models.AccountTypeCustomer, m.ID)
		if aerr != nil {
			return action.RespondError(c, aerr)
		}

		return action.Respond(c, fiber.Map{
			"customer":        toCustomerResponse(&m),
			"entries":         entries,
			"derived_balance": derived,
		}, "")
	}
}
