package supplier

import (
	"net/http"
	"testing"

	"kuyumcu-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSupplierHandler_RejectsDuplicateName(t *testing.T) {
	env := setupEnv(t)
	env.app.Post("/api/suppliers", CreateSupplierHandler())

	resp, envelope := env.request(t, http.MethodPost, "/api/suppliers", fiber.Map{
		"name": env.supplier.Name,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "duplicate_name", envelope["code"])
}

// Soft-silinmiş kayıt unique index'i hâlâ işgal eder ama isim ön kontrolünün
// kapsamı dışındadır; insert'teki unique ihlali de duplicate_name dönmeli.
func TestCreateSupplierHandler_SoftDeletedNameStillConflicts(t *testing.T) {
	env := setupEnv(t)
	env.app.Post("/api/suppliers", CreateSupplierHandler())

	require.NoError(t, env.db.Delete(&models.Supplier{}, env.supplier.ID).Error)

	resp, envelope := env.request(t, http.MethodPost, "/api/suppliers", fiber.Map{
		"name": env.supplier.Name,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "duplicate_name", envelope["code"])

	var count int64
	require.NoError(t, env.db.Model(&models.Supplier{}).Count(&count).Error)
	assert.Equal(t, int64(0), count, "çakışan insert kalıcı kayıt bırakmamalı")
}
