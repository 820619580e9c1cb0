package analytics

import (
	"time"

	"kuyumcu-backend/internal/action"
	"kuyumcu-backend/internal/database"
	"kuyumcu-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type MonthlySalesPoint struct {
	Year  int             `json:"year"`
	Month int             `json:"month"`
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

type DebtorView struct {
	CustomerID uint            `json:"customer_id"`
	Name       string          `json:"name"`
	Phone      string          `json:"phone"`
	Balance    decimal.Decimal `json:"balance"`
}

type BudgetUtilizationView struct {
	BudgetID       uint            `json:"budget_id"`
	Name           string          `json:"name"`
	Year           int             `json:"year"`
	Month          int             `json:"month"`
	TotalAllocated decimal.Decimal `json:"total_allocated"`
	TotalUsed      decimal.Decimal `json:"total_used"`
	TotalRemaining decimal.Decimal `json:"total_remaining"`
	UtilizationPct decimal.Decimal `json:"utilization_pct"`
}

// GET /api/analytics/dashboard?shop_id=...
// Tek ekranlık özet: son 12 ay satış grafiği, en borçlu müşteriler,
// tedarikçi/atölye borç toplamları, aktif dönem bütçe kullanımı.
func DashboardHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		salesTrend, aerr := monthlySalesTrend(shopID, 12)
		if aerr != nil {
			return action.RespondError(c, aerr)
		}

		debtors, aerr := topDebtors(shopID, 10)
		if aerr != nil {
			return action.RespondError(c, aerr)
		}

		var supplierPayable, workshopPayable decimal.Decimal
		if err := database.DB.Model(&models.Supplier{}).
			Where("shop_id = ?", shopID).
			Select("COALESCE(SUM(current_balance), 0)").
			Scan(&supplierPayable).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Tedarikçi borcu hesaplanamadı"))
		}
		if err := database.DB.Model(&models.Workshop{}).
			Where("shop_id = ?", shopID).
			Select("COALESCE(SUM(current_balance), 0)").
			Scan(&workshopPayable).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Atölye borcu hesaplanamadı"))
		}

		now := time.Now()
		utilization, aerr := budgetUtilization(shopID, now.Year(), int(now.Month()))
		if aerr != nil {
			return action.RespondError(c, aerr)
		}

		return action.Respond(c, fiber.Map{
			"sales_trend":        salesTrend,
			"top_debtors":        debtors,
			"supplier_payable":   supplierPayable,
			"workshop_payable":   workshopPayable,
			"budget_utilization": utilization,
		}, "")
	}
}

// GET /api/analytics/sales-trend?shop_id=...&months=12
func SalesTrendHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		months := c.QueryInt("months", 12)
		if months < 1 || months > 36 {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "months 1-36 arasında olmalı"))
		}

		trend, aerr := monthlySalesTrend(shopID, months)
		if aerr != nil {
			return action.RespondError(c, aerr)
		}
		return action.Respond(c, trend, "")
	}
}

// GET /api/analytics/top-debtors?shop_id=...&limit=10
func TopDebtorsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		limit := c.QueryInt("limit", 10)
		if limit < 1 || limit > 100 {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "limit 1-100 arasında olmalı"))
		}

		debtors, aerr := topDebtors(shopID, limit)
		if aerr != nil {
			return action.RespondError(c, aerr)
		}
		return action.Respond(c, debtors, "")
	}
}

// Ay kırılımlı satış toplamları. Ay anahtarları Go tarafında üretilir ki
// satışsız aylar da sıfır satırla dönsün.
func monthlySalesTrend(shopID uint, months int) ([]MonthlySalesPoint, *action.Error) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)

	var sales []models.Sale
	if err := database.DB.
		Select("date, total_amount").
		Where("shop_id = ? AND date >= ?", shopID, start).
		Find(&sales).Error; err != nil {
		return nil, action.NewError(action.CodeDatabaseError, "Satış trendi hesaplanamadı")
	}

	type key struct{ year, month int }
	buckets := make(map[key]*MonthlySalesPoint, months)
	points := make([]MonthlySalesPoint, 0, months)
	for i := 0; i < months; i++ {
		t := start.AddDate(0, i, 0)
		points = append(points, MonthlySalesPoint{Year: t.Year(), Month: int(t.Month()), Total: decimal.Zero})
	}
	for i := range points {
		buckets[key{points[i].Year, points[i].Month}] = &points[i]
	}

	for _, s := range sales {
		if p, ok := buckets[key{s.Date.Year(), int(s.Date.Month())}]; ok {
			p.Count++
			p.Total = p.Total.Add(s.TotalAmount)
		}
	}
	return points, nil
}

func topDebtors(shopID uint, limit int) ([]DebtorView, *action.Error) {
	var customers []models.Customer
	if err := database.DB.
		Where("shop_id = ? AND current_balance > 0", shopID).
		Order("current_balance desc").
		Limit(limit).
		Find(&customers).Error; err != nil {
		return nil, action.NewError(action.CodeDatabaseError, "Borçlu listesi hesaplanamadı")
	}

	res := make([]DebtorView, 0, len(customers))
	for _, m := range customers {
		res = append(res, DebtorView{
			CustomerID: m.ID,
			Name:       m.Name,
			Phone:      m.Phone,
			Balance:    m.CurrentBalance,
		})
	}
	return res, nil
}

func budgetUtilization(shopID uint, year, month int) (*BudgetUtilizationView, *action.Error) {
	var b models.Budget
	err := database.DB.Preload("Allocations").
		Where("shop_id = ? AND year = ? AND month = ?", shopID, year, month).
		First(&b).Error
	if err != nil {
		// Aktif dönem için bütçe açılmamış olabilir
		return nil, nil
	}

	view := &BudgetUtilizationView{
		BudgetID:       b.ID,
		Name:           b.Name,
		Year:           b.Year,
		Month:          b.Month,
		TotalAllocated: decimal.Zero,
		TotalUsed:      decimal.Zero,
		TotalRemaining: decimal.Zero,
		UtilizationPct: decimal.Zero,
	}
	for _, a := range b.Allocations {
		view.TotalAllocated = view.TotalAllocated.Add(a.AllocatedAmount).Add(a.RolloverAmount)
		view.TotalUsed = view.TotalUsed.Add(a.UsedAmount)
		view.TotalRemaining = view.TotalRemaining.Add(a.RemainingAmount)
	}
	if view.TotalAllocated.IsPositive() {
		view.UtilizationPct = view.TotalUsed.Div(view.TotalAllocated).Mul(decimal.NewFromInt(100)).Round(1)
	}
	return view, nil
}
