package budget

import (
	"errors"
	"fmt"
	"strings"

	"kuyumcu-backend/internal/action"
	"kuyumcu-backend/internal/audit"
	"kuyumcu-backend/internal/cache"
	"kuyumcu-backend/internal/database"
	"kuyumcu-backend/internal/models"
	"kuyumcu-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateBudgetRequest struct {
	Name   string `json:"name" validate:"required,max=100"`
	Year   int    `json:"year" validate:"required,min=2000,max=2100"`
	Month  int    `json:"month" validate:"required,min=1,max=12"`
	ShopID *uint  `json:"shop_id"` // super_admin için opsiyonel
}

type BudgetResponse struct {
	ID          uint                 `json:"id"`
	ShopID      uint                 `json:"shop_id"`
	Name        string               `json:"name"`
	Year        int                  `json:"year"`
	Month       int                  `json:"month"`
	Allocations []AllocationResponse `json:"allocations,omitempty"`
}

type AllocationResponse struct {
	ID              uint            `json:"id"`
	BudgetID        uint            `json:"budget_id"`
	Category        string          `json:"category"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount"`
	RolloverAmount  decimal.Decimal `json:"rollover_amount"`
	UsedAmount      decimal.Decimal `json:"used_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Version         int             `json:"version"`
}

func toAllocationResponse(a *models.BudgetAllocation) AllocationResponse {
	return AllocationResponse{
		ID:              a.ID,
		BudgetID:        a.BudgetID,
		Category:        a.Category,
		AllocatedAmount: a.AllocatedAmount,
		RolloverAmount:  a.RolloverAmount,
		UsedAmount:      a.UsedAmount,
		RemainingAmount: a.RemainingAmount,
		Version:         a.Version,
	}
}

func toBudgetResponse(b *models.Budget) BudgetResponse {
	res := BudgetResponse{
		ID:     b.ID,
		ShopID: b.ShopID,
		Name:   b.Name,
		Year:   b.Year,
		Month:  b.Month,
	}
	for i := range b.Allocations {
		res.Allocations = append(res.Allocations, toAllocationResponse(&b.Allocations[i]))
	}
	return res
}

// POST /api/budgets
func CreateBudgetHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateBudgetRequest
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

		userID, userName, _, uerr := getUserInfo(c)
		if uerr != nil {
			return uerr
		}

		// Aynı dönem için ikinci bütçe açılamaz
		var count int64
		database.DB.Model(&models.Budget{}).
			Where("shop_id = ? AND year = ? AND month = ?", shopID, body.Year, body.Month).
			Count(&count)
		if count > 0 {
			return action.RespondError(c, action.NewError(action.CodeDuplicateName, "Bu dönem için bütçe zaten var"))
		}

		b := models.Budget{
			ShopID:    shopID,
			Name:      body.Name,
			Year:      body.Year,
			Month:     body.Month,
			CreatedBy: userID,
		}
		if err := database.DB.Create(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return action.RespondError(c, action.NewError(action.CodeDuplicateName, "Bu dönem için bütçe zaten var"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Bütçe oluşturulamadı"))
		}

		_ = audit.WriteLog(audit.LogOptions{
			ShopID:      &shopID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "budget",
			EntityID:    b.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Bütçe oluşturuldu: %s (%d/%d)", b.Name, b.Month, b.Year),
			Before:      nil,
			After:       b,
		})

		cache.Invalidate("budgets")

		return action.Created(c, toBudgetResponse(&b), "Bütçe oluşturuldu")
	}
}

// GET /api/budgets?shop_id=...&year=...&month=...
func ListBudgetsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Model(&models.Budget{}).
			Preload("Allocations").
			Where("shop_id = ?", shopID)

		if yearStr := c.Query("year"); yearStr != "" {
			var year int
			if _, err := fmt.Sscan(yearStr, &year); err != nil {
				return action.RespondError(c, action.NewError(action.CodeValidationError, "year geçersiz"))
			}
			dbq = dbq.Where("year = ?", year)
		}
		if monthStr := c.Query("month"); monthStr != "" {
			var month int
			if _, err := fmt.Sscan(monthStr, &month); err != nil {
				return action.RespondError(c, action.NewError(action.CodeValidationError, "month geçersiz"))
			}
			dbq = dbq.Where("month = ?", month)
		}

		var rows []models.Budget
		if err := dbq.Order("year desc, month desc").Find(&rows).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Bütçeler listelenemedi"))
		}

		res := make([]BudgetResponse, 0, len(rows))
		for i := range rows {
			res = append(res, toBudgetResponse(&rows[i]))
		}
		return action.Respond(c, res, "")
	}
}

// GET /api/budgets/:id
func GetBudgetHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var b models.Budget
		if err := database.DB.Preload("Allocations").
			Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "Bütçe bulunamadı"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Bütçe yüklenemedi"))
		}
		return action.Respond(c, toBudgetResponse(&b), "")
	}
}

// GET /api/budgets/:id/summary
// Dönem özeti: toplam tahsis, devir, kullanım, kalan ve kalem kırılımı.
func BudgetSummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var b models.Budget
		if err := database.DB.Preload("Allocations").
			Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "Bütçe bulunamadı"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Bütçe yüklenemedi"))
		}

		totalAllocated := decimal.Zero
		totalRollover := decimal.Zero
		totalUsed := decimal.Zero
		totalRemaining := decimal.Zero

		items := make([]fiber.Map, 0, len(b.Allocations))
		for i := range b.Allocations {
			a := &b.Allocations[i]
			totalAllocated = totalAllocated.Add(a.AllocatedAmount)
			totalRollover = totalRollover.Add(a.RolloverAmount)
			totalUsed = totalUsed.Add(a.UsedAmount)
			totalRemaining = totalRemaining.Add(a.RemainingAmount)

			utilization := decimal.Zero
			available := a.AllocatedAmount.Add(a.RolloverAmount)
			if available.IsPositive() {
				utilization = a.UsedAmount.Div(available).Mul(decimal.NewFromInt(100)).Round(1)
			}
			items = append(items, fiber.Map{
				"allocation":      toAllocationResponse(a),
				"utilization_pct": utilization,
			})
		}

		return action.Respond(c, fiber.Map{
			"budget":          toBudgetResponse(&b),
			"total_allocated": totalAllocated,
			"total_rollover":  totalRollover,
			"total_used":      totalUsed,
			"total_remaining": totalRemaining,
			"items":           items,
		}, "")
	}
}
