package budget

import (
	"errors"
	"fmt"
	"strings"

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

type CreateAllocationRequest struct {
	BudgetID        uint            `json:"budget_id" validate:"required"`
	Category        string          `json:"category" validate:"required,max=100"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount"`
	// true ise önceki dönemin aynı kalemindeki kalan tutar devir alınır
	RolloverFromPrevious bool  `json:"rollover_from_previous"`
	ShopID               *uint `json:"shop_id"`
}

type AdjustAllocationRequest struct {
	Delta  decimal.Decimal `json:"delta"`
	Reason string          `json:"reason" validate:"required,max=255"`
	ShopID *uint           `json:"shop_id"`
}

type TransferAllocationRequest struct {
	FromID uint            `json:"from_id" validate:"required"`
	ToID   uint            `json:"to_id" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" validate:"required,max=255"`
	ShopID *uint           `json:"shop_id"`
}

type SpendAllocationRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"required,max=500"`
	ShopID      *uint           `json:"shop_id"`
}

// Önceki dönemin aynı kategorideki kaleminden kalan tutar.
// Ocak ayının devri bir önceki yılın Aralık'ından gelir.
func previousPeriodRemaining(shopID uint, b *models.Budget, category string) decimal.Decimal {
	prevYear, prevMonth := b.Year, b.Month-1
	if prevMonth == 0 {
		prevYear, prevMonth = b.Year-1, 12
	}

	var prev models.BudgetAllocation
	err := database.DB.
		Joins("JOIN budgets ON budgets.id = budget_allocations.budget_id").
		Where("budget_allocations.shop_id = ? AND budgets.year = ? AND budgets.month = ? AND budget_allocations.category = ?",
			shopID, prevYear, prevMonth, category).
		First(&prev).Error
	if err != nil {
		return decimal.Zero
	}
	if prev.RemainingAmount.IsNegative() {
		return decimal.Zero
	}
	return prev.RemainingAmount
}

// POST /api/budget-allocations
// Kalem satırı + açılış defter kaydı tek transaction'da oluşur.
func CreateAllocationHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateAllocationRequest
		if err := c.BodyParser(&body); err != nil {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "Geçersiz istek gövdesi"))
		}
		body.Category = strings.TrimSpace(body.Category)
		if aerr := validation.Struct(body); aerr != nil {
			return action.RespondError(c, aerr)
		}
		if body.AllocatedAmount.IsNegative() {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "allocated_amount negatif olamaz"))
		}

		shopID, err := resolveShopIDFromBodyOrRole(c, body.ShopID)
		if err != nil {
			return err
		}

		userID, userName, _, uerr := getUserInfo(c)
		if uerr != nil {
			return uerr
		}

		var b models.Budget
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, body.BudgetID).First(&b).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeNotFound, "Bütçe bulunamadı"))
		}

		var count int64
		database.DB.Model(&models.BudgetAllocation{}).
			Where("budget_id = ? AND category = ?", b.ID, body.Category).
			Count(&count)
		if count > 0 {
			return action.RespondError(c, action.NewError(action.CodeDuplicateName, "Bu kategoride bir kalem zaten var"))
		}

		rollover := decimal.Zero
		if body.RolloverFromPrevious {
			rollover = previousPeriodRemaining(shopID, &b, body.Category)
		}

		alloc := models.BudgetAllocation{
			ShopID:          shopID,
			BudgetID:        b.ID,
			Category:        body.Category,
			AllocatedAmount: body.AllocatedAmount,
			RolloverAmount:  rollover,
			UsedAmount:      decimal.Zero,
			RemainingAmount: body.AllocatedAmount.Add(rollover),
		}

		var entry *models.LedgerEntry
		txErr := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&alloc).Error; err != nil {
				return err
			}
			e, err := ledger.OpenAllocationLedger(tx, &alloc, userID)
			if err != nil {
				return err
			}
			entry = e
			return nil
		})
		if txErr != nil {
			if errors.Is(txErr, gorm.ErrDuplicatedKey) {
				return action.RespondError(c, action.NewError(action.CodeDuplicateName, "Bu kategoride bir kalem zaten var"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Kalem oluşturulamadı"))
		}

		ledger.SignalRecorded(entry)

		_ = audit.WriteLog(audit.LogOptions{
			ShopID:      &shopID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "budget_allocation",
			EntityID:    alloc.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Bütçe kalemi açıldı: %s - %s TL", alloc.Category, alloc.AllocatedAmount.StringFixed(2)),
			Before:      nil,
			After:       alloc,
		})

		cache.Invalidate("budgets", fmt.Sprintf("budgets/%d", b.ID))

		return action.Created(c, toAllocationResponse(&alloc), "Kalem oluşturuldu")
	}
}

// PUT /api/budget-allocations/:id/adjust
func AdjustAllocationHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body AdjustAllocationRequest
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

		var allocID uint
		if _, err := fmt.Sscan(c.Params("id"), &allocID); err != nil || allocID == 0 {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "id geçersiz"))
		}

		userID, userName, _, uerr := getUserInfo(c)
		if uerr != nil {
			return uerr
		}

		entry, appErr := ledger.AdjustAllocationAmount(database.DB, ledger.AdjustInput{
			ShopID:       shopID,
			AllocationID: allocID,
			Delta:        body.Delta,
			Reason:       body.Reason,
			CreatedBy:    userID,
		})
		if appErr != nil {
			return action.RespondError(c, appErr)
		}

		_ = audit.WriteLog(audit.LogOptions{
			ShopID:      &shopID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "budget_allocation",
			EntityID:    allocID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Tahsis değişikliği: %s TL (%s)", body.Delta.StringFixed(2), body.Reason),
			Before:      nil,
			After:       entry,
		})

		return action.Respond(c, entry, "Tahsis güncellendi")
	}
}

// POST /api/budget-allocations/transfer
func TransferAllocationHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body TransferAllocationRequest
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

		result, appErr := ledger.TransferBetweenAllocations(database.DB, ledger.TransferInput{
			ShopID:    shopID,
			FromID:    body.FromID,
			ToID:      body.ToID,
			Amount:    body.Amount,
			Reason:    body.Reason,
			CreatedBy: userID,
		})
		if appErr != nil {
			return action.RespondError(c, appErr)
		}

		_ = audit.WriteLog(audit.LogOptions{
			ShopID:      &shopID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "budget_allocation",
			EntityID:    body.FromID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Kalemler arası aktarım: %s TL (%d -> %d)", body.Amount.StringFixed(2), body.FromID, body.ToID),
			Before:      nil,
			After:       result,
		})

		return action.Respond(c, result, "Aktarım tamamlandı")
	}
}

// POST /api/budget-allocations/:id/spend
func SpendAllocationHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SpendAllocationRequest
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

		var allocID uint
		if _, err := fmt.Sscan(c.Params("id"), &allocID); err != nil || allocID == 0 {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "id geçersiz"))
		}

		userID, userName, _, uerr := getUserInfo(c)
		if uerr != nil {
			return uerr
		}

		entry, appErr := ledger.RecordAllocationSpend(database.DB, ledger.SpendInput{
			ShopID:       shopID,
			AllocationID: allocID,
			Amount:       body.Amount,
			Description:  body.Description,
			CreatedBy:    userID,
		})
		if appErr != nil {
			return action.RespondError(c, appErr)
		}

		_ = audit.WriteLog(audit.LogOptions{
			ShopID:      &shopID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "budget_allocation",
			EntityID:    allocID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Bütçe harcaması: %s TL (%s)", body.Amount.StringFixed(2), body.Description),
			Before:      nil,
			After:       entry,
		})

		return action.Created(c, entry, "Harcama kaydedildi")
	}
}

// GET /api/budget-allocations/:id/history?shop_id=...
func AllocationHistoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var alloc models.BudgetAllocation
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&alloc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "Bütçe kalemi bulunamadı"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Bütçe kalemi yüklenemedi"))
		}

		entries, aerr := ledger.EntriesForAccount(database.DB, shopID, models.AccountTypeBudgetAllocation, alloc.ID, nil, nil)
		if aerr != nil {
			return action.RespondError(c, aerr)
		}

		return action.Respond(c, fiber.Map{
			"allocation": toAllocationResponse(&alloc),
			"entries":    entries,
		}, "")
	}
}
