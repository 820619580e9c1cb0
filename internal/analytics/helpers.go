package analytics

import (
	"fmt"

	"kuyumcu-backend/internal/auth"
	"kuyumcu-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// query'den gelen shop_id + role
func resolveShopIDFromQueryOrRole(c *fiber.Ctx) (uint, error) {
	roleVal := c.Locals(auth.CtxUserRoleKey)
	role, ok := roleVal.(models.UserRole)
	if !ok {
		return 0, fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
	}

	if role == models.RoleShopAdmin {
		sVal := c.Locals(auth.CtxShopIDKey)
		sPtr, ok := sVal.(*uint)
		if !ok || sPtr == nil {
			return 0, fiber.NewError(fiber.StatusForbidden, "Dükkan bilgisi bulunamadı")
		}
		return *sPtr, nil
	}

	// super_admin
	sidStr := c.Query("shop_id")
	if sidStr == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, "shop_id zorunlu")
	}
	var sid uint
	if _, err := fmt.Sscan(sidStr, &sid); err != nil || sid == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "shop_id geçersiz")
	}
	return sid, nil
}
