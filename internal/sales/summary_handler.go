package sales

import (
	"fmt"
	"time"

	"kuyumcu-backend/internal/action"
	"kuyumcu-backend/internal/database"
	"kuyumcu-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type methodTotal struct {
	Method string          `json:"method"`
	Count  int64           `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

// GET /api/sales/summary/daily?shop_id=...&date=2026-08-26
// Günün satış toplamları, ödeme yöntemine göre kırılım.
func DailySummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		dateStr := c.Query("date")
		if dateStr == "" {
			dateStr = time.Now().Format("2006-01-02")
		}
		day, perr := time.Parse("2006-01-02", dateStr)
		if perr != nil {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "date geçersiz"))
		}
		next := day.AddDate(0, 0, 1)

		summary, aerr := summarize(shopID, day, next)
		if aerr != nil {
			return action.RespondError(c, aerr)
		}
		summary["date"] = dateStr
		return action.Respond(c, summary, "")
	}
}

// GET /api/sales/summary/monthly?shop_id=...&year=2026&month=8
func MonthlySummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		now := time.Now()
		year, month := now.Year(), int(now.Month())
		if yearStr := c.Query("year"); yearStr != "" {
			if _, err := fmt.Sscan(yearStr, &year); err != nil {
				return action.RespondError(c, action.NewError(action.CodeValidationError, "year geçersiz"))
			}
		}
		if monthStr := c.Query("month"); monthStr != "" {
			if _, err := fmt.Sscan(monthStr, &month); err != nil || month < 1 || month > 12 {
				return action.RespondError(c, action.NewError(action.CodeValidationError, "month geçersiz"))
			}
		}

		start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0)

		summary, aerr := summarize(shopID, start, end)
		if aerr != nil {
			return action.RespondError(c, aerr)
		}
		summary["year"] = year
		summary["month"] = month
		return action.Respond(c, summary, "")
	}
}

func summarize(shopID uint, from, to time.Time) (fiber.Map, *action.Error) {
	type row struct {
		Method string
		Count  int64
		Total  decimal.Decimal
		Paid   decimal.Decimal
	}
	var rows []row
	err := database.DB.Model(&models.Sale{}).
		Select("method, COUNT(*) as count, COALESCE(SUM(total_amount), 0) as total, COALESCE(SUM(paid_amount), 0) as paid").
		Where("shop_id = ? AND date >= ? AND date < ?", shopID, from, to).
		Group("method").
		Scan(&rows).Error
	if err != nil {
		return nil, action.NewError(action.CodeDatabaseError, "Özet hesaplanamadı")
	}

	grandTotal := decimal.Zero
	grandPaid := decimal.Zero
	var totalCount int64
	byMethod := make([]methodTotal, 0, len(rows))
	for _, r := range rows {
		grandTotal = grandTotal.Add(r.Total)
		grandPaid = grandPaid.Add(r.Paid)
		totalCount += r.Count
		byMethod = append(byMethod, methodTotal{Method: r.Method, Count: r.Count, Total: r.Total})
	}

	return fiber.Map{
		"sale_count":  totalCount,
		"total":       grandTotal,
		"collected":   grandPaid,
		"outstanding": grandTotal.Sub(grandPaid),
		"by_method":   byMethod,
	}, nil
}
