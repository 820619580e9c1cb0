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
	"gorm.io/gorm"
)

type CategoryRequest struct {
	Name   string `json:"name" validate:"required,max=100"`
	ShopID *uint  `json:"shop_id"` // super_admin için opsiyonel
}

type CategoryResponse struct {
	ID     uint   `json:"id"`
	ShopID uint   `json:"shop_id"`
	Name   string `json:"name"`
}

// POST /api/product-categories
func CreateCategoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CategoryRequest
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

		var count int64
		database.DB.Model(&models.ProductCategory{}).
			Where("shop_id = ? AND name = ?", shopID, body.Name).
			Count(&count)
		if count > 0 {
			return action.RespondError(c, action.NewError(action.CodeDuplicateName, "Bu isimde bir kategori zaten var"))
		}

		cat := models.ProductCategory{ShopID: shopID, Name: body.Name}
		if err := database.DB.Create(&cat).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return action.RespondError(c, action.NewError(action.CodeDuplicateName, "Bu isimde bir kategori zaten var"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Kategori oluşturulamadı"))
		}

		if userID, userName, _, uerr := getUserInfo(c); uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				ShopID:      &shopID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "product_category",
				EntityID:    cat.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Kategori eklendi: %s", cat.Name),
				Before:      nil,
				After:       cat,
			})
		}

		cache.Invalidate("product-categories")

		return action.Created(c, CategoryResponse{ID: cat.ID, ShopID: cat.ShopID, Name: cat.Name}, "Kategori oluşturuldu")
	}
}

// GET /api/product-categories?shop_id=...
func ListCategoriesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var rows []models.ProductCategory
		if err := database.DB.Where("shop_id = ?", shopID).Order("name asc").Find(&rows).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Kategoriler listelenemedi"))
		}

		res := make([]CategoryResponse, 0, len(rows))
		for _, r := range rows {
			res = append(res, CategoryResponse{ID: r.ID, ShopID: r.ShopID, Name: r.Name})
		}
		return action.Respond(c, res, "")
	}
}

// PUT /api/product-categories/:id
func UpdateCategoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CategoryRequest
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

		var cat models.ProductCategory
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&cat).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "Kategori bulunamadı"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Kategori yüklenemedi"))
		}
		before := cat

		if body.Name != cat.Name {
			var count int64
			database.DB.Model(&models.ProductCategory{}).
				Where("shop_id = ? AND name = ? AND id <> ?", shopID, body.Name, cat.ID).
				Count(&count)
			if count > 0 {
				return action.RespondError(c, action.NewError(action.CodeDuplicateName, "Bu isimde bir kategori zaten var"))
			}
		}

		cat.Name = body.Name
		if err := database.DB.Save(&cat).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Kategori güncellenemedi"))
		}

		if userID, userName, _, uerr := getUserInfo(c); uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				ShopID:      &shopID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "product_category",
				EntityID:    cat.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Kategori güncellendi: %s", cat.Name),
				Before:      before,
				After:       cat,
			})
		}

		cache.Invalidate("product-categories")

		return action.Respond(c, CategoryResponse{ID: cat.ID, ShopID: cat.ShopID, Name: cat.Name}, "Kategori güncellendi")
	}
}

// DELETE /api/product-categories/:id
func DeleteCategoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var cat models.ProductCategory
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&cat).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "Kategori bulunamadı"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Kategori yüklenemedi"))
		}

		var count int64
		database.DB.Model(&models.Product{}).Where("category_id = ?", cat.ID).Count(&count)
		if count > 0 {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "Kategoride ürün varken silinemez"))
		}

		if err := database.DB.Delete(&cat).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Kategori silinemedi"))
		}

		if userID, userName, _, uerr := getUserInfo(c); uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				ShopID:      &shopID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "product_category",
				EntityID:    cat.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Kategori silindi: %s", cat.Name),
				Before:      cat,
				After:       nil,
			})
		}

		cache.Invalidate("product-categories")

		return action.Respond(c, nil, "Kategori silindi")
	}
}
