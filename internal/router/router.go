package router

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"digi_market/internal/config"
	"digi_market/internal/middleware"
	"digi_market/internal/model"
	"digi_market/internal/stock"
	"digi_market/internal/storage"
)

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, db *gorm.DB, rdb *rd.Client, store storage.Store, cfg config.AppConfig) {
	allocator := stock.NewAllocator(store)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	// Accounts（认证在网关层，这里只管余额账户）
	r.POST("/api/users", createUser(db))
	r.GET("/api/users/:user_id", getUser(db))

	// Products
	r.GET("/api/products", listProducts(db))
	r.POST("/api/products", createProduct(db))

	// Seller stock management
	r.POST("/api/seller/products/:product_id/files", uploadFiles(db, store, cfg))
	r.DELETE("/api/seller/products/:product_id/files/:file_id", deleteFile(db, store))
	r.PUT("/api/seller/products/:product_id/files/:file_id/content", editFileContent(db, store))
	r.GET("/api/seller/products/:product_id/files/:file_id/download", downloadStockFile(db, store))
	r.POST("/api/seller/products/:product_id/manual-entry", manualEntry(db, store))
	r.GET("/api/seller/products/:product_id/stock", stockDetails(db, store))
	r.POST("/api/seller/products/:product_id/stock/clear", clearStock(db, store))

	// Purchase & fulfillment
	r.POST("/api/purchase",
		middleware.PurchaseRateLimit(rdb, cfg.BuyRateLimit, cfg.BuyRateWindow),
		purchase(db, rdb, allocator, cfg))
	r.POST("/api/orders/:order_no/fulfill", retryFulfill(db, rdb, allocator, cfg))
	r.GET("/api/orders/:order_no", getOrder(db))
	r.GET("/api/stats/:product_id", getSaleStats(db))

	// Buyer download
	r.GET("/download/:order_no/:product_id", downloadPurchase(db, store))
}

// createUser 创建余额账户（买家/卖家/平台）。
func createUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name    string         `json:"name" binding:"required"`
			Role    model.UserRole `json:"role"`
			Balance int64          `json:"balance" binding:"min=0"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		if req.Role < model.RoleBuyer || req.Role > model.RoleAdmin {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "invalid role"})
			return
		}

		u := &model.User{Name: req.Name, Role: req.Role, Balance: req.Balance}
		if err := db.Create(u).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": u})
	}
}

func getUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUintParam(c, "user_id")
		if !ok {
			return
		}
		var u model.User
		if err := db.First(&u, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "user not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": u})
	}
}

// listProducts 查询商品列表。
func listProducts(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var list []model.Product
		if err := db.Preload("Files").Find(&list).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

// createProduct 创建商品；库存从 0 开始，由上传/手工录入填充。
func createProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name     string `json:"name" binding:"required"`
			SellerID uint   `json:"seller_id" binding:"required,min=1"`
			Price    int64  `json:"price" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		p := &model.Product{
			Name:     req.Name,
			SellerID: req.SellerID,
			Price:    req.Price,
		}
		if err := db.Create(p).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": p})
	}
}

// loadProduct 取商品及其文件记录；nil 表示已写出错误响应。
func loadProduct(c *gin.Context, db *gorm.DB) *model.Product {
	id, ok := parseUintParam(c, "product_id")
	if !ok {
		return nil
	}
	var p model.Product
	err := db.Preload("Files").Preload("ManualEntry").First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "product not found"})
			return nil
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
		return nil
	}
	return &p
}

// parseUintParam 解析路径上的数字参数；失败时写出 400。
func parseUintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "invalid " + name})
		return 0, false
	}
	return uint(v), true
}
