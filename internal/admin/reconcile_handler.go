package admin

import (
	"fmt"

	"kuyumcu-backend/internal/action"
	"kuyumcu-backend/internal/audit"
	"kuyumcu-backend/internal/auth"
	"kuyumcu-backend/internal/database"
	"kuyumcu-backend/internal/ledger"
	"kuyumcu-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type ReconcileResponse struct {
	ShopID         uint                 `json:"shop_id"`
	CorrectedCount int                  `json:"corrected_count"`
	Reports        []ledger.DriftReport `json:"reports"`
}

// POST /api/admin/shops/:id/reconcile
// Dükkanın tüm hesap bakiyelerini defterle mutabakata sokar.
func ReconcileShopHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var shopID uint
		if _, err := fmt.Sscan(c.Params("id"), &shopID); err != nil || shopID == 0 {
			return action.RespondError(c, action.NewError(action.CodeValidationError, "id geçersiz"))
		}

		var shop models.Shop
		if err := database.DB.First(&shop, "id = ?", shopID).Error; err != nil {
			return action.RespondError(c, action.NewError(action.CodeNotFound, "Dükkan bulunamadı"))
		}

		reports, aerr := ledger.ReconcileShop(database.DB, shopID)
		if aerr != nil {
			return action.RespondError(c, aerr)
		}

		if len(reports) > 0 {
			userIDVal := c.Locals(auth.CtxUserIDKey)
			if userID, ok := userIDVal.(uint); ok {
				var user models.User
				_ = database.DB.First(&user, "id = ?", userID).Error
				_ = audit.WriteLog(audit.LogOptions{
					ShopID:      &shopID,
					UserID:      userID,
					UserName:    user.Name,
					EntityType:  "reconciliation",
					EntityID:    shopID,
					Action:      models.AuditActionUpdate,
					Description: fmt.Sprintf("Mutabakat: %d hesapta sapma düzeltildi", len(reports)),
					Before:      nil,
					After:       reports,
				})
			}
		}

		return action.Respond(c, ReconcileResponse{
			ShopID:         shopID,
			CorrectedCount: len(reports),
			Reports:        reports,
		}, "Mutabakat tamamlandı")
	}
}
