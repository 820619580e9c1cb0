package inventory

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

type ProductRequest struct {
	CategoryID uint            `json:"category_id" validate:"required"`
	Name       string          `json:"name" validate:"required,max=150"`
	StockCode  string          `json:"stock_code" validate:"max=50"`
	Karat      int             `json:"karat" validate:"required,oneof=8 14 18 22 24"`
	GramWeight decimal.Decimal `json:"gram_weight"`
	CostPrice  decimal.Decimal `json:"cost_price"`
	SalePrice  decimal.Decimal `json:"sale_price"`
	StockCount int             `json:"stock_count" validate:"min=0"`
	ShopID     *uint           `json:"shop_id"` // super_admin için opsiyonel
}

type AdjustStockRequest struct {
	Delta  int    `json:"delta" validate:"required"` // pozitif = giriş, negatif = çıkış
	Reason string `json:"reason" validate:"required,max=255"`
	ShopID *uint  `json:"shop_id"`
}

type ProductResponse struct {
	ID           uint            `json:"id"`
	ShopID       uint            `json:"shop_id"`
	CategoryID   uint            `json:"category_id"`
	CategoryName string          `json:"category_name,omitempty"`
	Name         string          `json:"name"`
	StockCode    string          `json:"stock_code"`
	Karat        int             `json:"karat"`
	GramWeight   decimal.Decimal `json:"gram_weight"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SalePrice    decimal.Decimal `json:"sale_price"`
	StockCount   int             `json:"stock_count"`
}

func toProductResponse(p *models.Product) ProductResponse {
	return ProductResponse{
		ID:           p.ID,
		ShopID:       p.ShopID,
		CategoryID:   p.CategoryID,
		CategoryName: p.Category.Name,
		Name:         p.Name,
		StockCode:    p.StockCode,
		Karat:        p.Karat,
		GramWeight:   p.GramWeight,
		CostPrice:    p.CostPrice,
		SalePrice:    p.SalePrice,
		StockCount:   p.StockCount,
	}
}

func validateProductBody(body *ProductRequest) *action.Error {
	body.Name = strings.TrimSpace(body.Name)
	if aerr := validation.Struct(*body); aerr != nil {
		return aerr
	}
	if !body.GramWeight.IsPositive() {
		return action.NewError(action.CodeValidationError, "gram_weight 0'dan büyük olmalı")
	}
	if body.CostPrice.IsNegative() || body.SalePrice.IsNegative() {
		return action.NewError(action.CodeValidationError, "Fiyatlar negatif olamaz")
	}
	return nil
}

// POST /api/products
func CreateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ProductRequest
		if err := c.BodyParser(&body); err != nil {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "Geçersiz istek gövdesi"))
		}
		if aerr := validateProductBody(&body); aerr != nil {
			return action.RespondError(c, aerr)
		}

		shopID, err := resolveShopIDFromBodyOrRole(c, body.ShopID)
		if err != nil {
			return err
		}

		var cat models.ProductCategory
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, body.CategoryID).First(&cat).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeNotFound, "Kategori bulunamadı"))
		}

		p := models.Product{
			ShopID:     shopID,
			CategoryID: body.CategoryID,
			Name:       body.Name,
			StockCode:  body.StockCode,
			Karat:      body.Karat,
			GramWeight: body.GramWeight,
			CostPrice:  body.CostPrice,
			SalePrice:  body.SalePrice,
			StockCount: body.StockCount,
		}
		if err := database.DB.Create(&p).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Ürün oluşturulamadı"))
		}
		p.Category = cat

		if userID, userName, _, uerr := getUserInfo(c); uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				ShopID:      &shopID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "product",
				EntityID:    p.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Ürün eklendi: %s (%d ayar, %s gr)", p.Name, p.Karat, p.GramWeight.String()),
				Before:      nil,
				After:       p,
			})
		}

		cache.Invalidate("products")

		return action.Created(c, toProductResponse(&p), "Ürün oluşturuldu")
	}
}

// GET /api/products?shop_id=...&category_id=...&q=...
func ListProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Preload("Category").Where("shop_id = ?", shopID)
		if cidStr := c.Query("category_id"); cidStr != "" {
			var cid uint
			if _, err := fmt.Sscan(cidStr, &cid); err != nil || cid == 0 {
				return action.RespondError(c, action.NewError(action.CodeValidationError, "category_id geçersiz"))
			}
			dbq = dbq.Where("category_id = ?", cid)
		}
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			like := "%" + q + "%"
			dbq = dbq.Where("name LIKE ? OR stock_code LIKE ?", like, like)
		}

		var rows []models.Product
		if err := dbq.Order("name asc").Find(&rows).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Ürünler listelenemedi"))
		}

		res := make([]ProductResponse, 0, len(rows))
		for i := range rows {
			res = append(res, toProductResponse(&rows[i]))
		}
		return action.Respond(c, res, "")
	}
}

// GET /api/products/:id
func GetProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var p models.Product
		if err := database.DB.Preload("Category").
			Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "Ürün bulunamadı"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Ürün yüklenemedi"))
		}
		return action.Respond(c, toProductResponse(&p), "")
	}
}

// PUT /api/products/:id
func UpdateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ProductRequest
		if err := c.BodyParser(&body); err != nil {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "Geçersiz istek gövdesi"))
		}
		if aerr := validateProductBody(&body); aerr != nil {
			return action.RespondError(c, aerr)
		}

		shopID, err := resolveShopIDFromBodyOrRole(c, body.ShopID)
		if err != nil {
			return err
		}

		var p models.Product
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "Ürün bulunamadı"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Ürün yüklenemedi"))
		}
		before := p

		if body.CategoryID != p.CategoryID {
			var cat models.ProductCategory
			if err := database.DB.Where("shop_id = ? AND id = ?", shopID, body.CategoryID).First(&cat).Error; err != nil {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "Kategori bulunamadı"))
			}
		}

		// StockCount kasıtlı olarak hariç: stok satış/alım/düzeltme ile değişir
		updates := map[string]any{
			"category_id": body.CategoryID,
			"name":        body.Name,
			"stock_code":  body.StockCode,
			"karat":       body.Karat,
			"gram_weight": body.GramWeight,
			"cost_price":  body.CostPrice,
			"sale_price":  body.SalePrice,
		}
		if err := database.DB.Model(&p).Updates(updates).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Ürün güncellenemedi"))
		}

		database.DB.Preload("Category").Where("shop_id = ? AND id = ?", shopID, p.ID).First(&p)

		if userID, userName, _, uerr := getUserInfo(c); uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				ShopID:      &shopID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "product",
				EntityID:    p.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Ürün güncellendi: %s", p.Name),
				Before:      before,
				After:       p,
			})
		}

		cache.Invalidate("products", fmt.Sprintf("products/%d", p.ID))

		return action.Respond(c, toProductResponse(&p), "Ürün güncellendi")
	}
}

// PUT /api/products/:id/stock
// Elle stok düzeltmesi (sayım farkı vs.); satış ve alım kendi stok
// hareketini kendisi yazar.
func AdjustStockHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body AdjustStockRequest
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

		var p models.Product
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "Ürün bulunamadı"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Ürün yüklenemedi"))
		}
		before := p

		if p.StockCount+body.Delta < 0 {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "Stok eksiye düşemez"))
		}

		if err := database.DB.Model(&p).
			Update("stock_count", gorm.Expr("stock_count + ?", body.Delta)).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Stok güncellenemedi"))
		}

		database.DB.Where("shop_id = ? AND id = ?", shopID, p.ID).First(&p)

		if userID, userName, _, uerr := getUserInfo(c); uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				ShopID:      &shopID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "product",
				EntityID:    p.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Stok düzeltildi: %s (%+d, %s)", p.Name, body.Delta, body.Reason),
				Before:      before,
				After:       p,
			})
		}

		cache.Invalidate("products", fmt.Sprintf("products/%d", p.ID))

		return action.Respond(c, toProductResponse(&p), "Stok güncellendi")
	}
}

// DELETE /api/products/:id
func DeleteProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var p models.Product
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "Ürün bulunamadı"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Ürün yüklenemedi"))
		}

		if err := database.DB.Delete(&p).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Ürün silinemedi"))
		}

		if userID, userName, _, uerr := getUserInfo(c); uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				ShopID:      &shopID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "product",
				EntityID:    p.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Ürün silindi: %s", p.Name),
				Before:      p,
				After:       nil,
			})
		}

		cache.Invalidate("products", fmt.Sprintf("products/%d", p.ID))

		return action.Respond(c, nil, "Ürün silindi")
	}
}
