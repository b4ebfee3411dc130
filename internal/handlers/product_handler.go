package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"grocery-checkout/internal/inventory"
	"grocery-checkout/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ProductHandler is the minimal catalog surface: enough to list products,
// add them and set stock.
type ProductHandler struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewProductHandler(db *gorm.DB, log zerolog.Logger) *ProductHandler {
	return &ProductHandler{db: db, log: log}
}

// --- GET: /api/products ---
func (h *ProductHandler) GetProducts(c *gin.Context) {
	products := []models.Product{}
	err := h.db.WithContext(c.Request.Context()).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("name ASC").Find(&products).Error
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// --- POST: /api/admin/products ---
func (h *ProductHandler) AddProduct(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	product.ID = 0
	for i := range product.Variants {
		product.Variants[i].ID = 0
		product.Variants[i].ProductID = 0
	}
	if err := product.Validate(); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&product).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	h.log.Info().Uint("product_id", product.ID).Str("name", product.Name).Int("variants", len(product.Variants)).Msg("product created")
	c.JSON(http.StatusCreated, product)
}

type stockRequest struct {
	Variant string `json:"variant"`
	Stock   *int   `json:"stock" binding:"required"`
}

// --- PUT: /api/admin/products/:id/stock ---
// Sets the stock of the product, or of one of its variants by label.
func (h *ProductHandler) SetStock(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Invalid Product ID")
		return
	}
	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "stock is required")
		return
	}
	if *req.Stock < 0 {
		badRequest(c, "stock must not be negative")
		return
	}

	ctx := c.Request.Context()
	var product models.Product
	err = h.db.WithContext(ctx).Preload("Variants").Take(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found", "code": "PRODUCT_NOT_FOUND"})
		return
	}
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	pool := inventory.Pool{ProductID: product.ID}
	if product.HasVariants() {
		for i := range product.Variants {
			if product.Variants[i].Label == req.Variant {
				pool.VariantID = &product.Variants[i].ID
			}
		}
		if pool.VariantID == nil {
			badRequest(c, "variant must name one of the product's variants")
			return
		}
	} else if req.Variant != "" {
		badRequest(c, "product has no variants")
		return
	}

	if err := inventory.NewStore(h.db).SetStock(ctx, pool, *req.Stock); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Stock updated", "pool": pool.String(), "stock": *req.Stock})
}
