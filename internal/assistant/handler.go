package assistant

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

// Kredi havuzu defter sözleşmesi: debit = yükleme (bakiye artar),
// credit = tüketim (bakiye azalır). Tüketim bakiyeyi eksiye düşüremez.

type CreatePoolRequest struct {
	Name   string `json:"name" validate:"required,max=100"`
	ShopID *uint  `json:"shop_id"` // super_admin için opsiyonel
}

type TopUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Notes  string          `json:"notes" validate:"max=255"`
	ShopID *uint           `json:"shop_id"`
}

type ConsumeRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"required,max=255"` // örn: "fiyat önerisi sorgusu"
	ShopID      *uint           `json:"shop_id"`
}

type PoolResponse struct {
	ID             uint            `json:"id"`
	ShopID         uint            `json:"shop_id"`
	Name           string          `json:"name"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Version        int             `json:"version"`
}

func toPoolResponse(p *models.CreditPool) PoolResponse {
	return PoolResponse{
		ID:             p.ID,
		ShopID:         p.ShopID,
		Name:           p.Name,
		CurrentBalance: p.CurrentBalance,
		Version:        p.Version,
	}
}

// POST /api/credit-pools
func CreatePoolHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreatePoolRequest
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
		database.DB.Model(&models.CreditPool{}).
			Where("shop_id = ? AND name = ?", shopID, body.Name).
			Count(&count)
		if count > 0 {
			return action.RespondError(c, action.NewError(action.CodeDuplicateName, "Bu isimde bir kredi havuzu zaten var"))
		}

		p := models.CreditPool{
			ShopID:         shopID,
			Name:           body.Name,
			CurrentBalance: decimal.Zero,
		}
		if err := database.DB.Create(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return action.RespondError(c, action.NewError(action.CodeDuplicateName, "Bu isimde bir kredi havuzu zaten var"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Kredi havuzu oluşturulamadı"))
		}

		if userID, userName, _, uerr := getUserInfo(c); uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				ShopID:      &shopID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "credit_pool",
				EntityID:    p.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Kredi havuzu açıldı: %s", p.Name),
				Before:      nil,
				After:       p,
			})
		}

		cache.Invalidate("credit-pools")

		return action.Created(c, toPoolResponse(&p), "Kredi havuzu oluşturuldu")
	}
}

// GET /api/credit-pools?shop_id=...
func ListPoolsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var rows []models.CreditPool
		if err := database.DB.Where("shop_id = ?", shopID).Order("name asc").Find(&rows).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Kredi havuzları listelenemedi"))
		}

		res := make([]PoolResponse, 0, len(rows))
		for i := range rows {
			res = append(res, toPoolResponse(&rows[i]))
		}
		return action.Respond(c, res, "")
	}
}

// POST /api/credit-pools/:id/top-up
func TopUpPoolHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body TopUpRequest
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

		var poolID uint
		if _, err := fmt.Sscan(c.Params("id"), &poolID); err != nil || poolID == 0 {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "id geçersiz"))
		}

		userID, userName, _, uerr := getUserInfo(c)
		if uerr != nil {
			return uerr
		}

		description := body.Notes
		if description == "" {
			description = "Kredi yüklemesi"
		}

		entry, appErr := ledger.RecordTransaction(database.DB, ledger.RecordInput{
			ShopID:          shopID,
			AccountType:     models.AccountTypeCreditPool,
			AccountID:       poolID,
			Amount:          body.Amount,
			Direction:       ledger.DirectionDebit,
			TransactionType: "credit_topup",
			Description:     description,
			CreatedBy:       userID,
		})
		if appErr != nil {
			return action.RespondError(c, appErr)
		}

		_ = audit.WriteLog(audit.LogOptions{
			ShopID:      &shopID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "credit_pool",
			EntityID:    poolID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Kredi yüklendi: %s", body.Amount.StringFixed(2)),
			Before:      nil,
			After:       entry,
		})

		return action.Created(c, entry, "Kredi yüklendi")
	}
}

// POST /api/credit-pools/:id/consume
// Bakiye yetersizse insufficient_budget döner, hiçbir kayıt yazılmaz.
func ConsumePoolHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ConsumeRequest
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

		var poolID uint
		if _, err := fmt.Sscan(c.Params("id"), &poolID); err != nil || poolID == 0 {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "id geçersiz"))
		}

		userID, userName, _, uerr := getUserInfo(c)
		if uerr != nil {
			return uerr
		}

		entry, appErr := ledger.RecordTransaction(database.DB, ledger.RecordInput{
			ShopID:           shopID,
			AccountType:      models.AccountTypeCreditPool,
			AccountID:        poolID,
			Amount:           body.Amount,
			Direction:        ledger.DirectionCredit,
			TransactionType:  "credit_consume",
			Description:      body.Description,
			CreatedBy:        userID,
			DisallowNegative: true,
		})
		if appErr != nil {
			return action.RespondError(c, appErr)
		}

		_ = audit.WriteLog(audit.LogOptions{
			ShopID:      &shopID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "credit_pool",
			EntityID:    poolID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Kredi tüketildi: %s (%s)", body.Amount.StringFixed(2), body.Description),
			Before:      nil,
			After:       entry,
		})

		return action.Created(c, entry, "Kredi tüketildi")
	}
}

// GET /api/credit-pools/:id/usage?shop_id=...
func PoolUsageHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopID, err := resolveShopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var p models.CreditPool
		if err := database.DB.Where("shop_id = ? AND id = ?", shopID, c.Params("id")).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return action.RespondError(c, action.NewError(action.CodeNotFound, "Kredi havuzu bulunamadı"))
			}
			return action.RespondError(c, action.NewError(action.CodeDatabaseError, "Kredi havuzu yüklenemedi"))
		}

		entries, aerr := ledger.EntriesForAccount(database.DB, shopID, models.AccountTypeCreditPool, p.ID, nil, nil)
		if aerr != nil {
			return action.RespondError(c, aerr)
		}

		return action.Respond(c, fiber.Map{
			"pool":    toPoolResponse(&p),
			"entries": entries,
		}, "")
	}
}
