package supplier

import (
	"errors"
	"fmt"
	"time"

	"kuyumcu-backend/internal/action"
	"kuyumcu-backend/internal/audit"
	"kuyumcu-backend/internal/database"
	"kuyumcu-backend/internal/ledger"
	"kuyumcu-backend/internal/models"
	"kuyumcu-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreatePurchaseRequest struct {
	SupplierID  uint            `json:"supplier_id" validate:"required"`
	ProductID   *uint           `json:"product_id"` // stok artışı için opsiyonel
	Description string          `json:"description" validate:"max=500"`
	Quantity    int             `json:"quantity" validate:"required,min=1"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Date        string          `json:"date" validate:"required"` // "2026-01-15"
	ShopID      *uint           `json:"shop_id"`                  // super_admin için opsiyonel
}

type PurchaseResponse struct {
	ID           uint            `json:"id"`
	ShopID       uint            `json:"shop_id"`
	SupplierID   uint            `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"`
	ProductID    *uint           `json:"product_id"`
	Description  string          `json:"description"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Date         string          `json:"date"`
	LedgerNo     string          `json:"ledger_no"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}

type CreateSupplierPaymentRequest struct {
	SupplierID  uint            `json:"supplier_id" validate:"required"`
	PurchaseID  *uint           `json:"purchase_id"` // opsiyonel belge referansı
	Amount      decimal.Decimal `json:"amount"`
	PaymentType string          `json:"payment_type" validate:"required,oneof=cash transfer gold"`
	Notes       string          `json:"notes" validate:"max=500"`
	ShopID      *uint           `json:"shop_id"`
}

type LedgerEntryResponse struct {
	ID              uint            `json:"id"`
	ReferenceNo     string          `json:"reference_no"`
	Debit           decimal.Decimal `json:"debit"`
	Credit          decimal.Decimal `json:"credit"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	TransactionType string          `json:"transaction_type"`
	Description     string          `json:"description"`
	ReferenceType   string          `json:"reference_type,omitempty"`
	ReferenceID     *uint           `json:"reference_id,omitempty"`
	CreatedAt       string          `json:"created_at"`
}

func toEntryResponse(e *models.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:              e.ID,
		ReferenceNo:     e.ReferenceNo,
		Debit:           e.Debit,
		Credit:          e.Credit,
		BalanceAfter:    e.BalanceAfter,
		TransactionType: e.TransactionType,
		Description:     e.Description,
		ReferenceType:   e.ReferenceType,
		ReferenceID:     e.ReferenceID,
		CreatedAt:       e.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// POST /api/purchases
// Alım belgesi + tedarikçi hesabına borç kaydı tek transaction'da yazılır.
func CreatePurchaseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreatePurchaseRequest
		if err := c.BodyParser(&body); err != nil {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "Geçersiz istek gövdesi"))
		}
		if aerr := validation.Struct(body); aerr != nil {
			return action.RespondError(c, aerr)
		}
		if !body.UnitPrice.IsPositive() {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "unit_price 0'dan büyük olmalı"))
		}

		shopID, err := resolveShopIDFromBodyOrRole(c, body.ShopID)
		if err != nil {
			return err
		}

		d, perr := time.Parse("2006-01-02", body.Date)
		if perr != nil {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "Tarih formatı 'YYYY-MM-DD' olmalı"))
		}

		var s models.Supplier
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, body.SupplierID).First(&s).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeNotFound, "Tedarikçi bulunamadı"))
		}

		userID, userName, _, uerr := getUserInfo(c)
		if uerr != nil {
			return uerr
		}

		totalAmount := body.UnitPrice.Mul(decimal.NewFromInt(int64(body.Quantity)))

		purchase := models.Purchase{
			ShopID:      shopID,
			SupplierID:  body.SupplierID,
			ProductID:   body.ProductID,
			Description: body.Description,
			Quantity:    body.Quantity,
			UnitPrice:   body.UnitPrice,
			TotalAmount: totalAmount,
			Date:        d,
			CreatedBy:   userID,
		}

		var (
			entry  *models.LedgerEntry
			appErr *action.Error
		)

		txErr := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&purchase).Error; err != nil {
				return err
			}

			entry, appErr = ledger.RecordTransaction(tx, ledger.RecordInput{
				ShopID:          shopID,
				AccountType:     models.AccountTypeSupplier,
				AccountID:       body.SupplierID,
				Amount:          totalAmount,
				Direction:       ledger.DirectionDebit,
				TransactionType: "purchase",
				Description:     fmt.Sprintf("Alım: %s", body.Description),
				ReferenceType:   "purchase",
				ReferenceID:     &purchase.ID,
				CreatedBy:       userID,
			})
			if appErr != nil {
				return appErr
			}

			// Ürün bağlıysa stok artır
			if body.ProductID != nil {
				res := tx.Model(&models.Product{}).
					Where("shop_id = ? AND id = ?", shopID, *body.ProductID).
					Update("stock_count", gorm.Expr("stock_count + ?", body.Quantity))
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					appErr = action.NewError(action.CodeNotFound, "Ürün bulunamadı")
					return appErr
				}
			}
			return nil
		})

		if txErr != nil {
			if appErr != nil {
				return action.RespondError(c, appErr)
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Alım kaydedilemedi"))
		}

		ledger.SignalRecorded(entry)

		_ = audit.WriteLog(audit.LogOptions{
			ShopID:      &shopID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "purchase",
			EntityID:    purchase.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Alım eklendi: %s - %s TL", s.Name, totalAmount.StringFixed(2)),
			Before:      nil,
			After:       purchase,
		})

		return action.Created(c, PurchaseResponse{
			ID:           purchase.ID,
			ShopID:       purchase.ShopID,
			SupplierID:   purchase.SupplierID,
			SupplierName: s.Name,
			ProductID:    purchase.ProductID,
			Description:  purchase.Description,
			Quantity:     purchase.Quantity,
			UnitPrice:    purchase.UnitPrice,
			TotalAmount:  purchase.TotalAmount,
			Date:         purchase.Date.Format("2006-01-02"),
			LedgerNo:     entry.ReferenceNo,
			BalanceAfter: entry.BalanceAfter,
		}, "Alım kaydedildi")
	}
}

// GET /api/purchases?shop_id=...&supplier_id=...&from=...&to=...
func ListPurchasesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Model(&models.Purchase{}).
			Preload("Supplier").
			Where("shop_id = ?", shopID)

		if sidStr := c.Query("supplier_id"); sidStr != "" {
			var sid uint
			if _, err := fmt.Sscan(sidStr, &sid); err != nil || sid == 0 {
				return action.RespondError(c, action.NewError(action.CodeValidationError, "supplier_id geçersiz"))
			}
			dbq = dbq.Where("supplier_id = ?", sid)
		}
		if fromStr := c.Query("from"); fromStr != "" {
			from, err := time.Parse("2006-01-02", fromStr)
			if err != nil {
				return action.RespondError(c, action.NewError(action.CodeValidationError, "from geçersiz"))
			}
			dbq = dbq.Where("date >= ?", from)
		}
		if toStr := c.Query("to"); toStr != "" {
			to, err := time.Parse("2006-01-02", toStr)
			if err != nil {
				return action.RespondError(c, action.NewError(action.CodeValidationError, "to geçersiz"))
			}
			dbq = dbq.Where("date <= ?", to)
		}

		var rows []models.Purchase
		if err := dbq.Order("date desc, id desc").Find(&rows).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Alımlar listelenemedi"))
		}

		res := make([]PurchaseResponse, 0, len(rows))
		for _, r := range rows {
			res = append(res, PurchaseResponse{
				ID:           r.ID,
				ShopID:       r.ShopID,
				SupplierID:   r.SupplierID,
				SupplierName: r.Supplier.Name,
				ProductID:    r.ProductID,
				Description:  r.Description,
				Quantity:     r.Quantity,
				UnitPrice:    r.UnitPrice,
				TotalAmount:  r.TotalAmount,
				Date:         r.Date.Format("2006-01-02"),
			})
		}
		return action.Respond(c, res, "")
	}
}

// POST /api/supplier-payments
func CreateSupplierPaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateSupplierPaymentRequest
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
		if body.PurchaseID != nil {
			referenceType = "purchase"
		}

		entry, appErr := ledger.RecordPayment(database.DB, ledger.PaymentInput{
			ShopID:        shopID,
			AccountType:   models.AccountTypeSupplier,
			AccountID:     body.SupplierID,
			Amount:        body.Amount,
			PaymentType:   body.PaymentType,
			ReferenceType: referenceType,
			ReferenceID:   body.PurchaseID,
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
			EntityType:  "supplier_payment",
			EntityID:    entry.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Tedarikçi ödemesi: %s TL (%s)", body.Amount.StringFixed(2), body.PaymentType),
			Before:      nil,
			After:       entry,
		})

		return action.Created(c, toEntryResponse(entry), "Ödeme kaydedildi")
	}
}

// GET /api/suppliers/:id/statement?shop_id=...&from=...&to=...
// Tedarikçinin defter dökümü + türetilmiş bakiye.
func SupplierStatementHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var s models.Supplier
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&s).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "Tedarikçi bulunamadı"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Tedarikçi yüklenemedi"))
		}

		var from, to *time.Time
		if fromStr := c.Query("from"); fromStr != "" {
			t, err := time.Parse("2006-01-02", fromStr)
			if err != nil {
				return action.RespondError(c, action.NewError(action.CodeValidationError, "from geçersiz"))
			}
			from = &t
		}
		if toStr := c.Query("to"); toStr != "" {
			t, err := time.Parse("2006-01-02", toStr)
			if err != nil {
				return action.RespondError(c, action.NewError(action.CodeValidationError, "to geçersiz"))
			}
			to = &t
		}

		entries, aerr := ledger.EntriesForAccount(database.DB, shopID, models.AccountTypeSupplier, s.ID, from, to)
		if aerr != nil {
			return action.RespondError(c, aerr)
		}

		derived, aerr := ledger.DeriveBalance(database.DB, shopID, models.AccountTypeSupplier, s.ID)
		if aerr != nil {
			return action.RespondError(c, aerr)
		}

		res := make([]LedgerEntryResponse, 0, len(entries))
		for i := range entries {
			res = append(res, toEntryResponse(&entries[i]))
		}

		return action.Respond(c, fiber.Map{
			"supplier":        toSupplierResponse(&s),
			"entries":         res,
			"derived_balance": derived,
		}, "")
	}
}
