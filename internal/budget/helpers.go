package budget

import (
	"fmt"

	"kuyumcu-backend/internal/auth"
	"kuyumcu-backend/internal/database"
	"kuyumcu-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// -------------------------
// Yardımcı Fonksiyonlar
// -------------------------

func getUserInfo(c *fiber.Ctx) (uint, string, *uint, error) {
	userIDVal := c.Locals(auth.CtxUserIDKey)
	userID, ok := userIDVal.(uint)
	if !ok {
		return 0, "", nil, fiber.NewError(fiber.StatusForbidden, "Kullanıcı bilgisi alınamadı")
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return 0, "", nil, fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı bulunamadı")
	}

	var shopID *uint
	sVal := c.Locals(auth.CtxShopIDKey)
	if sPtr, ok := sVal.(*uint); ok && sPtr != nil {
		shopID = sPtr
	}

	return userID, user.Name, shopID, nil
}

// body'den gelen shop_id + role
func resolveShopIDFromBodyOrRole(c *fiber.Ctx, bodyShopID *uint) (uint, error) {
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
	if bodyShopID == nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "shop_id zorunlu")
	}
	return *bodyShopID, nil
}

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
