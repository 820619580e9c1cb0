package workshop

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

type CreateWorkshopRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	Specialty string `json:"specialty" validate:"max=100"`
	Phone     string `json:"phone" validate:"max=50"`
	Address   string `json:"address" validate:"max=255"`
	ShopID    *uint  `json:"shop_id"` // super_admin için opsiyonel
}

type UpdateWorkshopRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	Specialty string `json:"specialty" validate:"max=100"`
	Phone     string `json:"phone" validate:"max=50"`
	Address   string `json:"address" validate:"max=255"`
	Version   int    `json:"version"`
	ShopID    *uint  `json:"shop_id"`
}

type WorkshopResponse struct {
	ID             uint            `json:"id"`
	ShopID         uint            `json:"shop_id"`
	Name           string          `json:"name"`
	Specialty      string          `json:"specialty"`
	Phone          string          `json:"phone"`
	Address        string          `json:"address"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Version        int             `json:"version"`
	CreatedAt      string          `json:"created_at"`
}

func toWorkshopResponse(w *models.Workshop) WorkshopResponse {
	return WorkshopResponse{
		ID:             w.ID,
		ShopID:         w.ShopID,
		Name:           w.Name,
		Specialty:      w.Specialty,
		Phone:          w.Phone,
		Address:        w.Address,
		CurrentBalance: w.CurrentBalance,
		Version:        w.Version,
		CreatedAt:      w.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// POST /api/workshops
func CreateWorkshopHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateWorkshopRequest
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
		database.DB.Model(&models.Workshop{}).
			Where("shop_id = ? AND name = ?", shopID, body.Name).
			Count(&count)
		if count > 0 {
			return action.RespondError(c, action.NewError(action.CodeDuplicateName, "Bu isimde bir atölye zaten var"))
		}

		w := models.Workshop{
			ShopID:         shopID,
			Name:           body.Name,
			Specialty:      body.Specialty,
			Phone:          body.Phone,
			Address:        body.Address,
			CurrentBalance: decimal.Zero,
		}
		if err := database.DB.Create(&w).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return action.RespondError(c, action.NewError(action.CodeDuplicateName, "Bu isimde bir atölye zaten var"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Atölye oluşturulamadı"))
		}

		if userID, userName, _, uerr := getUserInfo(c); uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				ShopID:      &shopID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "workshop",
				EntityID:    w.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Atölye eklendi: %s", w.Name),
				Before:      nil,
				After:       w,
			})
		}

		cache.Invalidate("workshops")

		return action.Created(c, toWorkshopResponse(&w), "Atölye oluşturuldu")
	}
}

// GET /api/workshops?shop_id=...
func ListWorkshopsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var rows []models.Workshop
		if err := database.DB.Where("shop_id = ?", shopID).Order("name asc").Find(&rows).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Atölyeler listelenemedi"))
		}

		res := make([]WorkshopResponse, 0, len(rows))
		for i := range rows {
			res = append(res, toWorkshopResponse(&rows[i]))
		}
		return action.Respond(c, res, "")
	}
}

// GET /api/workshops/:id
func GetWorkshopHandler() fiber.Handler {
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
		return action.Respond(c, toWorkshopResponse(&w), "")
	}
}

// PUT /api/workshops/:id
// Profil alanları version CAS ile güncellenir; bakiye defter dışı değişmez.
func UpdateWorkshopHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body UpdateWorkshopRequest
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

		var w models.Workshop
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&w).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "Atölye bulunamadı"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Atölye yüklenemedi"))
		}
		before := w

		if body.Name != w.Name {
			var count int64
			database.DB.Model(&models.Workshop{}).
				Where("shop_id = ? AND name = ? AND id <> ?", shopID, body.Name, w.ID).
				Count(&count)
			if count > 0 {
				return action.RespondError(c, action.NewError(action.CodeDuplicateName, "Bu isimde bir atölye zaten var"))
			}
		}

		res := database.DB.Model(&models.Workshop{}).
			Where("shop_id = ? AND id = ? AND version = ?", shopID, w.ID, body.Version).
			Updates(map[string]any{
				"name":      body.Name,
				"specialty": body.Specialty,
				"phone":     body.Phone,
				"address":   body.Address,
				"version":   gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Atölye güncellenemedi"))
		}
		if res.RowsAffected == 0 {
			return action.RespondError(c, action.NewError(action.CodeConcurrentModification, "Kayıt başka bir işlem tarafından değiştirildi"))
		}

		database.DB.Where("shop_id = ? AND id = ?", shopID, w.ID).First(&w)

		if userID, userName, _, uerr := getUserInfo(c); uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				ShopID:      &shopID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "workshop",
				EntityID:    w.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Atölye güncellendi: %s", w.Name),
				Before:      before,
				After:       w,
			})
		}

		cache.Invalidate("workshops", fmt.Sprintf("workshops/%d", w.ID))

		return action.Respond(c, toWorkshopResponse(&w), "Atölye güncellendi")
	}
}

// DELETE /api/workshops/:id
func DeleteWorkshopHandler() fiber.Handler {
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

		if !w.CurrentBalance.IsZero() {
			return action.RespondError(c, action.NewError(action.CodeHasBalance, "Bakiyesi sıfır olmayan atölye silinemez"))
		}

		if err := database.DB.Delete(&w).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Atölye silinemedi"))
		}

		if userID, userName, _, uerr := getUserInfo(c); uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				ShopID:      &shopID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "workshop",
				EntityID:    w.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Atölye silindi: %s", w.Name),
				Before:      w,
				After:       nil,
			})
		}

		cache.Invalidate("workshops", fmt.Sprintf("workshops/%d", w.ID))

		return action.Respond(c, nil, "Atölye silindi")
	}
}
