package workshop

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

type CreateOrderRequest struct {
	WorkshopID  uint            `json:"workshop_id" validate:"required"`
	Description string          `json:"description" validate:"required,max=500"`
	GramWeight  decimal.Decimal `json:"gram_weight"`
	Amount      decimal.Decimal `json:"amount"`
	OrderDate   string          `json:"order_date" validate:"required"`
	DueDate     *string         `json:"due_date"`
	ShopID      *uint           `json:"shop_id"`
}

type UpdateOrderStatusRequest struct {
	Status  models.WorkshopOrderStatus `json:"status" validate:"required,oneof=pending in_process completed cancelled"`
	Version int                        `json:"version"`
	ShopID  *uint                      `json:"shop_id"`
}

type OrderResponse struct {
	ID           uint            `json:"id"`
	ShopID       uint            `json:"shop_id"`
	WorkshopID   uint            `json:"workshop_id"`
	WorkshopName string          `json:"workshop_name,omitempty"`
	Description  string          `json:"description"`
	GramWeight   decimal.Decimal `json:"gram_weight"`
	Amount       decimal.Decimal `json:"amount"`
	Status       string          `json:"status"`
	OrderDate    string          `json:"order_date"`
	DueDate      *string         `json:"due_date,omitempty"`
	Version      int             `json:"version"`
}

func toOrderResponse(o *models.WorkshopOrder) OrderResponse {
	res := OrderResponse{
		ID:           o.ID,
		ShopID:       o.ShopID,
		WorkshopID:   o.WorkshopID,
		WorkshopName: o.Workshop.Name,
		Description:  o.Description,
		GramWeight:   o.GramWeight,
		Amount:       o.Amount,
		Status:       string(o.Status),
		OrderDate:    o.OrderDate.Format("2006-01-02"),
		Version:      o.Version,
	}
	if o.DueDate != nil {
		d := o.DueDate.Format("2006-01-02")
		res.DueDate = &d
	}
	return res
}

// Sıraya konmuş iş emri durum geçişleri. Tamamlanan/iptal edilen emir bir
// daha değişmez; defter kaydı sadece completed geçişinde yazılır.
func statusTransitionAllowed(from, to models.WorkshopOrderStatus) bool {
	switch from {
	case models.WorkshopOrderPending:
		return to == models.WorkshopOrderInProcess || to == models.WorkshopOrderCompleted || to == models.WorkshopOrderCancelled
	case models.WorkshopOrderInProcess:
		return to == models.WorkshopOrderCompleted || to == models.WorkshopOrderCancelled
	default:
		return false
	}
}

// POST /api/workshop-orders
func CreateOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateOrderRequest
		if err := c.BodyParser(&body); err != nil {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "Geçersiz istek gövdesi"))
		}
		if aerr := validation.Struct(body); aerr != nil {
			return action.RespondError(c, aerr)
		}
		if !body.Amount.IsPositive() {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "amount 0'dan büyük olmalı"))
		}
		if body.GramWeight.IsNegative() {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "gram_weight negatif olamaz"))
		}

		shopID, err := resolveShopIDFromBodyOrRole(c, body.ShopID)
		if err != nil {
			return err
		}

		orderDate, perr := time.Parse("2006-01-02", body.OrderDate)
		if perr != nil {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "Tarih formatı 'YYYY-MM-DD' olmalı"))
		}
		var dueDate *time.Time
		if body.DueDate != nil && *body.DueDate != "" {
			d, perr := time.Parse("2006-01-02", *body.DueDate)
			if perr != nil {
				return action.RespondError(c, action.NewError(action.CodeValidationError, "due_date formatı 'YYYY-MM-DD' olmalı"))
			}
			dueDate = &d
		}

		var w models.Workshop
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, body.WorkshopID).First(&w).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeNotFound, "Atölye bulunamadı"))
		}

		userID, userName, _, uerr := getUserInfo(c)
		if uerr != nil {
			return uerr
		}

		order := models.WorkshopOrder{
			ShopID:      shopID,
			WorkshopID:  body.WorkshopID,
			Description: body.Description,
			GramWeight:  body.GramWeight,
			Amount:      body.Amount,
			Status:      models.WorkshopOrderPending,
			OrderDate:   orderDate,
			DueDate:     dueDate,
			CreatedBy:   userID,
		}
		if err := database.DB.Create(&order).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "İş emri oluşturulamadı"))
		}
		order.Workshop = w

		_ = audit.WriteLog(audit.LogOptions{
			ShopID:      &shopID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "workshop_order",
			EntityID:    order.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("İş emri açıldı: %s (%s)", w.Name, body.Description),
			Before:      nil,
			After:       order,
		})

		return action.Created(c, toOrderResponse(&order), "İş emri oluşturuldu")
	}
}

// GET /api/workshop-orders?shop_id=...&workshop_id=...&status=...
func ListOrdersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Model(&models.WorkshopOrder{}).
			Preload("Workshop").
			Where("shop_id = ?", shopID)

		if widStr := c.Query("workshop_id"); widStr != "" {
			var wid uint
			if _, err := fmt.Sscan(widStr, &wid); err != nil || wid == 0 {
				return action.RespondError(c, action.NewError(action.CodeValidationError, "workshop_id geçersiz"))
			}
			dbq = dbq.Where("workshop_id = ?", wid)
		}
		if status := c.Query("status"); status != "" {
			dbq = dbq.Where("status = ?", status)
		}

		var rows []models.WorkshopOrder
		if err := dbq.Order("order_date desc, id desc").Find(&rows).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "İş emirleri listelenemedi"))
		}

		res := make([]OrderResponse, 0, len(rows))
		for i := range rows {
			res = append(res, toOrderResponse(&rows[i]))
		}
		return action.Respond(c, res, "")
	}
}

// PUT /api/workshop-orders/:id/status
// Durum geçişi version CAS ile korunur; completed geçişi iş emri tutarını
// atölye hesabına borç yazar. CAS güncellemesi ve defter kaydı tek
// transaction'dadır: ikisi birlikte geçer ya da birlikte geri alınır.
func UpdateOrderStatusHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body UpdateOrderStatusRequest
		if err := c.BodyParser(&body); err != nil {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "Geçersiz istek gövdesi"))
		}
		if aerr := validation.Struct(body); aerr != nil {
			return action.RespondError(c, aerr)
		}

		shopID, err := resolveShopIDFromBodyOrRole(c, body.ShopID)
		if err != nil {
			return err
		}

		userID, userName, _, uerr := getUserInfo(c)
		if uerr != nil {
			return uerr
		}

		var order models.WorkshopOrder
		if err := database.DB.Preload("Workshop").
			Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "İş emri bulunamadı"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "İş emri yüklenemedi"))
		}
		before := order

		if !statusTransitionAllowed(order.Status, body.Status) {
			return action.RespondError(c, action.NewError(action.CodeValidationError,
				fmt.Sprintf("'%s' durumundan '%s' durumuna geçilemez", order.Status, body.Status)))
		}

		var (
			entry  *models.LedgerEntry
			appErr *action.Error
		)
		txErr := database.DB.Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.WorkshopOrder{}).
				Where("shop_id = ? AND id = ? AND version = ?", shopID, order.ID, body.Version).
				Updates(map[string]any{
					"status":  body.Status,
					"version": gorm.Expr("version + 1"),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				appErr = action.NewError(action.CodeConcurrentModification, "Kayıt başka bir işlem tarafından değiştirildi")
				return appErr
			}

			if body.Status == models.WorkshopOrderCompleted {
				refID := order.ID
				e, aerr := ledger.RecordTransaction(tx, ledger.RecordInput{
					ShopID:          shopID,
					AccountType:     models.AccountTypeWorkshop,
					AccountID:       order.WorkshopID,
					Amount:          order.Amount,
					Direction:       ledger.DirectionDebit,
					TransactionType: "workshop_order",
					Description:     fmt.Sprintf("İş emri tamamlandı: %s", order.Description),
					ReferenceType:   "workshop_order",
					ReferenceID:     &refID,
					CreatedBy:       userID,
				})
				if aerr != nil {
					appErr = aerr
					return aerr
				}
				entry = e
			}
			return nil
		})

		if txErr != nil {
			if appErr != nil {
				return action.RespondError(c, appErr)
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "İş emri güncellenemedi"))
		}

		ledger.SignalRecorded(entry)

		database.DB.Preload("Workshop").
			Where("shop_id = ? AND id = ?", shopID, order.ID).First(&order)

		_ = audit.WriteLog(audit.LogOptions{
			ShopID:      &shopID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "workshop_order",
			EntityID:    order.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("İş emri durumu: %s -> %s", before.Status, order.Status),
			Before:      before,
			After:       order,
		})

		return action.Respond(c, toOrderResponse(&order), "İş emri güncellendi")
	}
}

type CreateWorkshopPaymentRequest struct {
	WorkshopID  uint            `json:"workshop_id" validate:"required"`
	OrderID     *uint           `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentType string          `json:"payment_type" validate:"required,oneof=cash transfer gold"`
	Notes       string          `json:"notes" validate:"max=500"`
	ShopID      *uint           `json:"shop_id"`
}

// POST /api/workshop-payments
func CreateWorkshopPaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateWorkshopPaymentRequest
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
		if body.OrderID != nil {
			referenceType = "workshop_order"
		}

		entry, appErr := ledger.RecordPayment(database.DB, ledger.PaymentInput{
			ShopID:        shopID,
			AccountType:   models.AccountTypeWorkshop,
			AccountID:     body.WorkshopID,
			Amount:        body.Amount,
			PaymentType:   body.PaymentType,
			ReferenceType: referenceType,
			ReferenceID:   body.OrderID,
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
			EntityType:  "workshop_payment",
			EntityID:    entry.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Atölye ödemesi: %s TL (%s)", body.Amount.StringFixed(2), body.PaymentType),
			Before:      nil,
			After:       entry,
		})

		return action.Created(c, entry, "Ödeme kaydedildi")
	}
}

// GET /api/workshops/:id/statement?shop_id=...&from=...&to=...
func WorkshopStatementHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var w models.Workshop
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&w).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "Atölye bulunamadı"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Atölye yüklenemedi"))
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

		entries, aerr := ledger.EntriesForAccount(database.DB, shopID, models.AccountTypeWorkshop, w.ID, from, to)
		if aerr != nil {
			return action.RespondError(c, aerr)
		}

		derived, aerr := ledger.DeriveBalance(database.DB, shopID, models.AccountTypeWorkshop, w.ID)
		if aerr != nil {
			return action.RespondError(c, aerr)
		}

		return action.Respond(c, fiber.Map{
			"workshop":        toWorkshopResponse(&w),
			"entries":         entries,
			"derived_balance": derived,
		}, "")
	}
}
