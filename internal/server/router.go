// Package server wires handlers and middleware into the gin engine.
package server

import (
	"net/http"
	"time"

	"grocery-checkout/internal/auth"
	"grocery-checkout/internal/checkout"
	"grocery-checkout/internal/handlers"
	"grocery-checkout/internal/idempotency"
	"grocery-checkout/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Deps are the collaborators the routes need. Guard, Limiter and Agent are
// optional.
type Deps struct {
	DB             *gorm.DB
	Checkout       *checkout.Service
	Tokens         *auth.TokenManager
	Guard          *idempotency.Guard
	Limiter        *middleware.RateLimiter
	Agent          handlers.Asker
	AllowedOrigins []string
	Log            zerolog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(d.Log))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", idempotency.Header},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		status, code := "online", http.StatusOK
		if sqlDB, err := d.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "time": time.Now().Format(time.RFC3339)})
	})

	orderH := handlers.NewOrderHandler(d.Checkout, d.Log)
	productH := handlers.NewProductHandler(d.DB, d.Log)
	reportH := handlers.NewReportHandler(d.Checkout, d.Log)
	aiH := handlers.NewAIHandler(d.Agent, d.Log)

	// --- PROTECTED ROUTES ---
	api := r.Group("/api")
	if d.Limiter != nil {
		api.Use(d.Limiter.Middleware())
	}
	api.Use(middleware.AuthMiddleware(d.Tokens))
	{
		api.GET("/products", productH.GetProducts)

		create := []gin.HandlerFunc{orderH.CreateOrder}
		if d.Guard != nil {
			create = append([]gin.HandlerFunc{idempotency.Middleware(d.Guard, d.Log)}, create...)
		}
		api.POST("/orders", create...)
		api.GET("/orders", orderH.ListMyOrders)
		api.GET("/orders/:id", orderH.GetOrder)
		api.POST("/orders/:id/cancel", orderH.CancelOrder)

		// ADMIN ONLY
		admin := api.Group("/admin")
		admin.Use(middleware.RequireRole(auth.RoleAdmin))
		{
			admin.GET("/orders", orderH.ListAllOrders)
			admin.PUT("/orders/:id/status", orderH.UpdateStatus)
			admin.PUT("/orders/:id/payment", orderH.UpdatePayment)
			admin.PUT("/orders/:id/manual-payment", orderH.VerifyManualPayment)

			admin.POST("/products", productH.AddProduct)
			admin.PUT("/products/:id/stock", productH.SetStock)

			admin.GET("/reports/sales", reportH.GetSalesReport)
			admin.POST("/ask", aiH.AskAI)
		}
	}

	return r
}
