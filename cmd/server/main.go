package main

import (
	"strings"

	"kuyumcu-backend/internal/admin"
	"kuyumcu-backend/internal/analytics"
	"kuyumcu-backend/internal/assistant"
	"kuyumcu-backend/internal/audit"
	"kuyumcu-backend/internal/auth"
	"kuyumcu-backend/internal/budget"
	"kuyumcu-backend/internal/cache"
	"kuyumcu-backend/internal/config"
	"kuyumcu-backend/internal/customer"
	"kuyumcu-backend/internal/database"
	"kuyumcu-backend/internal/events"
	"kuyumcu-backend/internal/inventory"
	"kuyumcu-backend/internal/models"
	"kuyumcu-backend/internal/sales"
	"kuyumcu-backend/internal/supplier"
	"kuyumcu-backend/internal/workshop"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg := config.Load()
	log := config.GetLogger()

	database.Init(cfg)
	cache.Init(cfg)
	events.Init(cfg)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Errorln("Unexpected error:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Beklenmeyen sunucu hatası",
			})
		},
	})

	// CORS origins'i virgülle ayrılmış string'den array'e çevir
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-super-admin", auth.RegisterSuperAdminHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())

	// Super admin routes
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleSuperAdmin))

	// Dükkan yönetimi
	adminRoutes.Post("/shops", admin.CreateShopHandler())
	adminRoutes.Get("/shops", admin.ListShopsHandler())
	adminRoutes.Get("/shops/:id", admin.GetShopHandler())
	adminRoutes.Put("/shops/:id", admin.UpdateShopHandler())
	adminRoutes.Delete("/shops/:id", admin.DeleteShopHandler())
	adminRoutes.Post("/shops/:id/admin", admin.CreateShopAdminHandler())
	adminRoutes.Get("/shops/:id/admins", admin.ListShopAdminsHandler())

	// Bakiye mutabakatı (defterden yeniden türet, sapmayı düzelt)
	adminRoutes.Post("/shops/:id/reconcile", admin.ReconcileShopHandler())

	// Tedarikçiler
	protected.Post("/suppliers", supplier.CreateSupplierHandler())
	protected.Get("/suppliers", supplier.ListSuppliersHandler())
	protected.Get("/suppliers/:id", supplier.GetSupplierHandler())
	protected.Put("/suppliers/:id", supplier.UpdateSupplierHandler())
	protected.Delete("/suppliers/:id", supplier.DeleteSupplierHandler())
	protected.Get("/suppliers/:id/statement", supplier.SupplierStatementHandler())

	// Alımlar & tedarikçi ödemeleri
	protected.Post("/purchases", supplier.CreatePurchaseHandler())
	protected.Get("/purchases", supplier.ListPurchasesHandler())
	protected.Post("/supplier-payments", supplier.CreateSupplierPaymentHandler())

	// Atölyeler
	protected.Post("/workshops", workshop.CreateWorkshopHandler())
	protected.Get("/workshops", workshop.ListWorkshopsHandler())
	protected.Get("/workshops/:id", workshop.GetWorkshopHandler())
	protected.Put("/workshops/:id", workshop.UpdateWorkshopHandler())
	protected.Delete("/workshops/:id", workshop.DeleteWorkshopHandler())
	protected.Get("/workshops/:id/statement", workshop.WorkshopStatementHandler())

	// İş emirleri & atölye ödemeleri
	protected.Post("/workshop-orders", workshop.CreateOrderHandler())
	protected.Get("/workshop-orders", workshop.ListOrdersHandler())
	protected.Put("/workshop-orders/:id/status", workshop.UpdateOrderStatusHandler())
	protected.Post("/workshop-payments", workshop.CreateWorkshopPaymentHandler())

	// Müşteriler
	protected.Post("/customers", customer.CreateCustomerHandler())
	protected.Get("/customers", customer.ListCustomersHandler())
	protected.Get("/customers/:id", customer.GetCustomerHandler())
	protected.Put("/customers/:id", customer.UpdateCustomerHandler())
	protected.Delete("/customers/:id", customer.DeleteCustomerHandler())
	protected.Get("/customers/:id/statement", customer.CustomerStatementHandler())
	protected.Post("/customer-payments", customer.CreateCustomerPaymentHandler())

	// Bütçeler
	protected.Post("/budgets", budget.CreateBudgetHandler())
	protected.Get("/budgets", budget.ListBudgetsHandler())
	protected.Get("/budgets/:id", budget.GetBudgetHandler())
	protected.Get("/budgets/:id/summary", budget.BudgetSummaryHandler())
	protected.Post("/budget-allocations", budget.CreateAllocationHandler())
	protected.Put("/budget-allocations/:id/adjust", budget.AdjustAllocationHandler())
	protected.Post("/budget-allocations/transfer", budget.TransferAllocationHandler())
	protected.Post("/budget-allocations/:id/spend", budget.SpendAllocationHandler())
	protected.Get("/budget-allocations/:id/history", budget.AllocationHistoryHandler())

	// Asistan kredi havuzları
	protected.Post("/credit-pools", assistant.CreatePoolHandler())
	protected.Get("/credit-pools", assistant.ListPoolsHandler())
	protected.Post("/credit-pools/:id/top-up", assistant.TopUpPoolHandler())
	protected.Post("/credit-pools/:id/consume", assistant.ConsumePoolHandler())
	protected.Get("/credit-pools/:id/usage", assistant.PoolUsageHandler())

	// Ürün kategorileri & ürünler
	protected.Post("/product-categories", inventory.CreateCategoryHandler())
	protected.Get("/product-categories", inventory.ListCategoriesHandler())
	protected.Put("/product-categories/:id", inventory.UpdateCategoryHandler())
	protected.Delete("/product-categories/:id", inventory.DeleteCategoryHandler())
	protected.Post("/products", inventory.CreateProductHandler())
	protected.Get("/products", inventory.ListProductsHandler())
	protected.Get("/products/:id", inventory.GetProductHandler())
	protected.Put("/products/:id", inventory.UpdateProductHandler())
	protected.Put("/products/:id/stock", inventory.AdjustStockHandler())
	protected.Delete("/products/:id", inventory.DeleteProductHandler())

	// Satışlar
	protected.Post("/sales", sales.CreateSaleHandler())
	protected.Get("/sales", sales.ListSalesHandler())
	protected.Get("/sales/summary/daily", sales.DailySummaryHandler())
	protected.Get("/sales/summary/monthly", sales.MonthlySummaryHandler())

	// Analitik
	protected.Get("/analytics/dashboard", analytics.DashboardHandler())
	protected.Get("/analytics/sales-trend", analytics.SalesTrendHandler())
	protected.Get("/analytics/top-debtors", analytics.TopDebtorsHandler())

	// Audit logs
	protected.Get("/audit-logs", audit.ListAuditLogsHandler())
	protected.Post("/audit-logs/:id/undo", audit.UndoAuditLogHandler())

	log.Infoln("Server çalışıyor port:", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
