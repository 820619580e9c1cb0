package sales

import (
	"fmt"
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

type SaleItemRequest struct {
	ProductID uint            `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CreateSaleRequest struct {
	CustomerID  *uint                `json:"customer_id"` // taksitli satışta zorunlu
	Method      models.PaymentMethod `json:"method" validate:"required,oneof=cash card installment"`
	PaidAmount  decimal.Decimal      `json:"paid_amount"` // taksitli satışta peşinat
	Date        string               `json:"date" validate:"required"`
	Description string               `json:"description" validate:"max=500"`
	Items       []SaleItemRequest    `json:"items" validate:"required,min=1,dive"`
	ShopID      *uint                `json:"shop_id"` // super_admin için opsiyonel
}

type SaleResponse struct {
	ID           uint            `json:"id"`
	ShopID       uint            `json:"shop_id"`
	CustomerID   *uint           `json:"customer_id,omitempty"`
	CustomerName string          `json:"customer_name,omitempty"`
	Method       string          `json:"method"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	Date         string          `json:"date"`
	Description  string          `json:"description"`
	Items        []SaleItemView  `json:"items"`
}

type SaleItemView struct {
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

func toSaleResponse(s *models.Sale) SaleResponse {
	res := SaleResponse{
		ID:          s.ID,
		ShopID:      s.ShopID,
		CustomerID:  s.CustomerID,
		Method:      string(s.Method),
		TotalAmount: s.TotalAmount,
		PaidAmount:  s.PaidAmount,
		Date:        s.Date.Format("2006-01-02"),
		Description: s.Description,
	}
	if s.Customer != nil {
		res.CustomerName = s.Customer.Name
	}
	for _, item := range s.Items {
		res.Items = append(res.Items, SaleItemView{
			ProductID:   item.ProductID,
			ProductName: item.Product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.Total,
		})
	}
	return res
}

// POST /api/sales
// Satış + kalemler + stok düşümü (+ taksitli satışta müşteri borç kaydı)
// tek transaction'da yazılır.
func CreateSaleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateSaleRequest
		if err := c.BodyParser(&body); err != nil {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "Geçersiz istek gövdesi"))
		}
		if aerr := validation.Struct(body); aerr != nil {
			return action.RespondError(c, aerr)
		}
		if body.PaidAmount.IsNegative() {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "paid_amount negatif olamaz"))
		}
		for _, item := range body.Items {
			if !item.UnitPrice.IsPositive() {
				return action.RespondError(c, action.NewError(action.CodeValidationError, "unit_price 0'dan büyük olmalı"))
			}
		}

		shopID, err := resolveShopIDFromBodyOrRole(c, body.ShopID)
		if err != nil {
			return err
		}

		d, perr := time.Parse("2006-01-02", body.Date)
		if perr != nil {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "Tarih formatı 'YYYY-MM-DD' olmalı"))
		}

		if body.Method == models.PaymentMethodInstallment && body.CustomerID == nil {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "Taksitli satışta customer_id zorunlu"))
		}

		var customer *models.Customer
		if body.CustomerID != nil {
			var m models.Customer
			if err := database.DB.Where("shop_id = ? AND id = ?", shopID, *body.CustomerID).First(&m).Error; err != nil {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "Müşteri bulunamadı"))
			}
			customer = &m
		}

		userID, userName, _, uerr := getUserInfo(c)
		if uerr != nil {
			return uerr
		}

		totalAmount := decimal.Zero
		items := make([]models.SaleItem, 0, len(body.Items))
		for _, item := range body.Items {
			lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
			totalAmount = totalAmount.Add(lineTotal)
			items = append(items, models.SaleItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				Total:     lineTotal,
			})
		}

		paidAmount := body.PaidAmount
		if body.Method != models.PaymentMethodInstallment {
			// Peşin satışta tamamı tahsil edilmiş sayılır
			paidAmount = totalAmount
		}
		if paidAmount.GreaterThan(totalAmount) {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "paid_amount toplam tutarı aşamaz"))
		}

		sale := models.Sale{
			ShopID:      shopID,
			CustomerID:  body.CustomerID,
			Method:      body.Method,
			TotalAmount: totalAmount,
			PaidAmount:  paidAmount,
			Date:        d,
			Description: body.Description,
			Items:       items,
			CreatedBy:   userID,
		}

		var (
			entry  *models.LedgerEntry
			appErr *action.Error
		)
		txErr := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&sale).Error; err != nil {
				return err
			}

			for _, item := range sale.Items {
				res := tx.Model(&models.Product{}).
					Where("shop_id = ? AND id = ? AND stock_count >= ?", shopID, item.ProductID, item.Quantity).
					Update("stock_count", gorm.Expr("stock_count - ?", item.Quantity))
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					appErr = action.NewError(action.CodeValidationError,
						fmt.Sprintf("Ürün %d için yeterli stok yok", item.ProductID))
					return appErr
				}
			}

			// Taksitli satışta kalan tutar müşteri hesabına borç yazılır
			remaining := totalAmount.Sub(paidAmount)
			if body.Method == models.PaymentMethodInstallment && remaining.IsPositive() {
				refID := sale.ID
				e, aerr := ledger.RecordTransaction(tx, ledger.RecordInput{
					ShopID:          shopID,
					AccountType:     models.AccountTypeCustomer,
					AccountID:       *body.CustomerID,
					Amount:          remaining,
					Direction:       ledger.DirectionDebit,
					TransactionType: "installment_sale",
					Description:     fmt.Sprintf("Taksitli satış #%d", sale.ID),
					ReferenceType:   "sale",
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
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Satış kaydedilemedi"))
		}

		ledger.SignalRecorded(entry)

		sale.Customer = customer
		database.DB.Preload("Items.Product").First(&sale, sale.ID)

		_ = audit.WriteLog(audit.LogOptions{
			ShopID:      &shopID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "sale",
			EntityID:    sale.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Satış: %s TL (%s)", totalAmount.StringFixed(2), body.Method),
			Before:      nil,
			After:       sale,
		})

		cache.Invalidate("sales", "products")

		return action.Created(c, toSaleResponse(&sale), "Satış kaydedildi")
	}
}

// GET /api/sales?shop_id=...&from=...&to=...&customer_id=...&method=...
func ListSalesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Model(&models.Sale{}).
			Preload("Customer").
			Preload("Items.Product").
			Where("shop_id = ?", shopID)

		if cidStr := c.Query("customer_id"); cidStr != "" {
			var cid uint
			if _, err := fmt.Sscan(cidStr, &cid); err != nil || cid == 0 {
				return action.RespondError(c, action.NewError(action.CodeValidationError, "customer_id geçersiz"))
			}
			dbq = dbq.Where("customer_id = ?", cid)
		}
		if method := c.Query("method"); method != "" {
			dbq = dbq.Where("method = ?", method)
		}
		if fromStr := c.Query("from"); fromStr != "" {
			from, perr := time.Parse("2006-01-02", fromStr)
			if perr != nil {
				return action.RespondError(c, action.NewError(action.CodeValidationError, "from geçersiz"))
			}
			dbq = dbq.Where("date >= ?", from)
		}
		if toStr := c.Query("to"); toStr != "" {
			to, perr := time.Parse("2006-01-02", toStr)
			if perr != nil {
				return action.RespondError(c, action.NewError(action.CodeValidationError, "to geçersiz"))
			}
			dbq = dbq.Where("date <= ?", to)
		}

		var rows []models.Sale
		if err := dbq.Order("date desc, id desc").Find(&rows).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Satışlar listelenemedi"))
		}

		res := make([]SaleResponse, 0, len(rows))
		for i := range rows {
			res = append(res, toSaleResponse(&rows[i]))
		}
		return action.Respond(c, res, "")
	}
}
