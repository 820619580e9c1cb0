package supplier

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

// -------------------------
// Request/Response Types
// -------------------------

type CreateSupplierRequest struct {
	Name          string `json:"name" validate:"required,max=100"`
	ContactPerson string `json:"contact_person" validate:"max=100"`
	Phone         string `json:"phone" validate:"max=50"`
	Email         string `json:"email" validate:"omitempty,email"`
	Address       string `json:"address" validate:"max=255"`
	ShopID        *uint  `json:"shop_id"` // super_admin için opsiyonel
}

type UpdateSupplierRequest struct {
	Name          *string `json:"name"`
	ContactPerson *string `json:"contact_person"`
	Phone         *string `json:"phone"`
	Email         *string `json:"email"`
	Address       *string `json:"address"`
	Version       int     `json:"version"` // eşzamanlı değişiklik kontrolü
}

type SupplierResponse struct {
	ID             uint            `json:"id"`
	ShopID         uint            `json:"shop_id"`
	Name           string          `json:"name"`
	ContactPerson  string          `json:"contact_person"`
	Phone          string          `json:"phone"`
	Email          string          `json:"email"`
	Address        string          `json:"address"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Version        int             `json:"version"`
	CreatedAt      string          `json:"created_at"`
}

func toSupplierResponse(s *models.Supplier) SupplierResponse {
	return SupplierResponse{
		ID:             s.ID,
		ShopID:         s.ShopID,
		Name:           s.Name,
		ContactPerson:  s.ContactPerson,
		Phone:          s.Phone,
		Email:          s.Email,
		Address:        s.Address,
		CurrentBalance: s.CurrentBalance,
		Version:        s.Version,
		CreatedAt:      s.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// -------------------------
// Supplier CRUD
// -------------------------

// POST /api/suppliers
func CreateSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateSupplierRequest
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

		// Aynı dükkanda aynı isimli tedarikçi olamaz
		var count int64
		database.DB.Model(&models.Supplier{}).
			Where("shop_id = ? AND name = ?", shopID, body.Name).
			Count(&count)
		if count > 0 {
			return action.RespondError(c, action.NewError(action.CodeDuplicateName, "Bu isimde bir tedarikçi zaten var"))
		}

		s := models.Supplier{
			ShopID:         shopID,
			Name:           body.Name,
			ContactPerson:  body.ContactPerson,
			Phone:          body.Phone,
			Email:          body.Email,
			Address:        body.Address,
			CurrentBalance: decimal.Zero,
		}

		if err := database.DB.Create(&s).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return action.RespondError(c, action.NewError(action.CodeDuplicateName, "Bu isimde bir tedarikçi zaten var"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Tedarikçi kaydedilemedi"))
		}

		userID, userName, _, uerr := getUserInfo(c)
		if uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				ShopID:      &s.ShopID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "supplier",
				EntityID:    s.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Tedarikçi eklendi: %s", s.Name),
				Before:      nil,
				After:       s,
			})
		}

		cache.Invalidate("suppliers")

		return action.Created(c, toSupplierResponse(&s), "Tedarikçi oluşturuldu")
	}
}

// GET /api/suppliers?shop_id=...
func ListSuppliersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var rows []models.Supplier
		if err := database.DB.
			Where("shop_id = ?", shopID).
			Order("name asc").
			Find(&rows).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Tedarikçiler listelenemedi"))
		}

		res := make([]SupplierResponse, 0, len(rows))
		for i := range rows {
			res = append(res, toSupplierResponse(&rows[i]))
		}
		return action.Respond(c, res, "")
	}
}

// GET /api/suppliers/:id
func GetSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var s models.Supplier
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&s).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeNotFound, "Tedarikçi bulunamadı"))
		}

		return action.Respond(c, toSupplierResponse(&s), "")
	}
}

// PUT /api/suppliers/:id
// Profil güncellemesi version CAS ile korunur; bakiye alanına dokunmaz.
func UpdateSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var s models.Supplier
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&s).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeNotFound, "Tedarikçi bulunamadı"))
		}

		var body UpdateSupplierRequest
		if err := c.BodyParser(&body); err != nil {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "Geçersiz istek gövdesi"))
		}

		before := s

		updates := map[string]any{}
		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return action.RespondError(c, action.NewError(action.CodeValidationError, "İsim boş olamaz"))
			}
			var count int64
			database.DB.Model(&models.Supplier{}).
				Where("shop_id = ? AND name = ? AND id <> ?", shopID, name, s.ID).
				Count(&count)
			if count > 0 {
				return action.RespondError(c, action.NewError(action.CodeDuplicateName, "Bu isimde bir tedarikçi zaten var"))
			}
			updates["name"] = name
		}
		if body.ContactPerson != nil {
			updates["contact_person"] = *body.ContactPerson
		}
		if body.Phone != nil {
			updates["phone"] = *body.Phone
		}
		if body.Email != nil {
			updates["email"] = *body.Email
		}
		if body.Address != nil {
			updates["address"] = *body.Address
		}

		if len(updates) == 0 {
			return action.Respond(c, toSupplierResponse(&s), "Değişiklik yok")
		}
		updates["version"] = gorm.Expr("version + 1")

		res := database.DB.Model(&models.Supplier{}).
			Where("shop_id = ? AND id = ? AND version = ?", shopID, s.ID, body.Version).
			Updates(updates)
		if res.Error != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Tedarikçi güncellenemedi"))
		}
		if res.RowsAffected == 0 {
			return action.RespondError(c, action.NewError(action.CodeConcurrentModification, "Kayıt başka bir kullanıcı tarafından değiştirildi"))
		}

		if err := database.DB.Where("id = ?", s.ID).First(&s).Error; err == nil {
			userID, userName, _, uerr := getUserInfo(c)
			if uerr == nil {
				_ = audit.WriteLog(audit.LogOptions{
					ShopID:      &s.ShopID,
					UserID:      userID,
					UserName:    userName,
					EntityType:  "supplier",
					EntityID:    s.ID,
					Action:      models.AuditActionUpdate,
					Description: fmt.Sprintf("Tedarikçi güncellendi: %s", s.Name),
					Before:      before,
					After:       s,
				})
			}
		}

		cache.Invalidate("suppliers", fmt.Sprintf("suppliers/%d", s.ID))

		return action.Respond(c, toSupplierResponse(&s), "Tedarikçi güncellendi")
	}
}

// DELETE /api/suppliers/:id
// Bakiyesi sıfır olmayan tedarikçi silinemez (soft delete).
func DeleteSupplierHandler() fiber.Handler {
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

		if !s.CurrentBalance.IsZero() {
			return action.RespondError(c, action.NewError(action.CodeHasBalance, "Bakiyesi sıfır olmayan tedarikçi silinemez"))
		}

		if err := database.DB.Delete(&s).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Tedarikçi silinemedi"))
		}

		userID, userName, _, uerr := getUserInfo(c)
		if uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				ShopID:      &s.ShopID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "supplier",
				EntityID:    s.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Tedarikçi silindi: %s", s.Name),
				Before:      s,
				After:       nil,
			})
		}

		cache.Invalidate("suppliers", fmt.Sprintf("suppliers/%d", s.ID))

		return action.Respond(c, nil, "Tedarikçi silindi")
	}
}
