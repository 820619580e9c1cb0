package admin

import (
	"errors"
	"strings"

	"kuyumcu-backend/internal/database"
	"kuyumcu-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type ShopResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	TaxNumber string `json:"tax_number"`
	CreatedAt string `json:"created_at"`
}

type CreateShopRequest struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Phone     *string `json:"phone"` // Opsiyonel
	TaxNumber string  `json:"tax_number"`
}

type UpdateShopRequest struct {
	Name      *string `json:"name"`
	Address   *string `json:"address"`
	Phone     *string `json:"phone"`
	TaxNumber *string `json:"tax_number"`
}

type CreateShopAdminRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ShopAdminResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	ShopID    *uint  `json:"shop_id"`
	CreatedAt string `json:"created_at"`
}

// ----------------------------------------
// DÜKKAN CRUD
// ----------------------------------------

func CreateShopHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateShopRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri gönderildi")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Dükkan adı boş olamaz")
		}

		shop := models.Shop{
			Name:      body.Name,
			Address:   body.Address,
			TaxNumber: strings.TrimSpace(body.TaxNumber),
		}
		if body.Phone != nil {
			shop.Phone = strings.TrimSpace(*body.Phone)
		}

		if err := database.DB.Create(&shop).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fiber.NewError(fiber.StatusConflict, "Bu isimde bir dükkan zaten var")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Dükkan oluşturulamadı")
		}

		return c.Status(fiber.StatusCreated).JSON(ShopResponse{
			ID:        shop.ID,
			Name:      shop.Name,
			Address:   shop.Address,
			Phone:     shop.Phone,
			TaxNumber: shop.TaxNumber,
			CreatedAt: shop.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

func ListShopsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var shops []models.Shop
		if err := database.DB.Find(&shops).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Dükkanlar listelenemedi")
		}

		res := make([]ShopResponse, 0, len(shops))
		for _, s := range shops {
			res = append(res, ShopResponse{
				ID:        s.ID,
				Name:      s.Name,
				Address:   s.Address,
				Phone:     s.Phone,
				TaxNumber: s.TaxNumber,
				CreatedAt: s.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}

		return c.JSON(res)
	}
}

func GetShopHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var shop models.Shop
		if err := database.DB.First(&shop, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Dükkan bulunamadı")
		}

		return c.JSON(ShopResponse{
			ID:        shop.ID,
			Name:      shop.Name,
			Address:   shop.Address,
			Phone:     shop.Phone,
			TaxNumber: shop.TaxNumber,
			CreatedAt: shop.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

func UpdateShopHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var shop models.Shop
		if err := database.DB.First(&shop, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Dükkan bulunamadı")
		}

		var body UpdateShopRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri gönderildi")
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Dükkan adı boş olamaz")
			}
			shop.Name = name
		}
		if body.Address != nil {
			shop.Address = *body.Address
		}
		if body.Phone != nil {
			shop.Phone = strings.TrimSpace(*body.Phone)
		}
		if body.TaxNumber != nil {
			shop.TaxNumber = strings.TrimSpace(*body.TaxNumber)
		}

		if err := database.DB.Save(&shop).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Dükkan güncellenemedi")
		}

		return c.JSON(ShopResponse{
			ID:        shop.ID,
			Name:      shop.Name,
			Address:   shop.Address,
			Phone:     shop.Phone,
			TaxNumber: shop.TaxNumber,
			CreatedAt: shop.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

func DeleteShopHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		// Kullanıcıları olan dükkan silinemez
		var userCount int64
		database.DB.Model(&models.User{}).Where("shop_id = ?", id).Count(&userCount)
		if userCount > 0 {
			return fiber.NewError(fiber.StatusConflict, "Dükkana bağlı kullanıcılar var, önce onları silin")
		}

		if err := database.DB.Delete(&models.Shop{}, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Dükkan silinemedi")
		}

		return c.JSON(fiber.Map{"message": "Dükkan silindi"})
	}
}

// ----------------------------------------
// DÜKKAN ADMIN KULLANICILARI
// ----------------------------------------

func CreateShopAdminHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var shop models.Shop
		if err := database.DB.First(&shop, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Dükkan bulunamadı")
		}

		var body CreateShopAdminRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri gönderildi")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))
		body.Name = strings.TrimSpace(body.Name)

		if body.Name == "" || body.Email == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "İsim, email ve şifre zorunlu")
		}

		var existing models.User
		if err := database.DB.Where("email = ?", body.Email).First(&existing).Error; err == nil {
			return fiber.NewError(fiber.StatusConflict, "Bu email ile kayıtlı kullanıcı var")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şifre hashlenemedi")
		}

		user := models.User{
			ShopID:       &shop.ID,
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: string(hash),
			Role:         models.RoleShopAdmin,
		}

		if err := database.DB.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fiber.NewError(fiber.StatusConflict, "Bu e-posta ile bir kullanıcı zaten var")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı oluşturulamadı")
		}

		return c.Status(fiber.StatusCreated).JSON(ShopAdminResponse{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			Role:      string(user.Role),
			ShopID:    user.ShopID,
			CreatedAt: user.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

func ListShopAdminsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var users []models.User
		if err := database.DB.Where("shop_id = ? AND role = ?", id, models.RoleShopAdmin).Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcılar listelenemedi")
		}

		res := make([]ShopAdminResponse, 0, len(users))
		for _, u := range users {
			res = append(res, ShopAdminResponse{
				ID:        u.ID,
				Name:      u.Name,
				Email:     u.Email,
				Role:      string(u.Role),
				ShopID:    u.ShopID,
				CreatedAt: u.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}

		return c.JSON(res)
	}
}
