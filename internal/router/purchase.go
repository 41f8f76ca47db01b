package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"digi_market/internal/config"
	"digi_market/internal/model"
	"digi_market/internal/queue"
	"digi_market/internal/stock"
	"digi_market/internal/storage"
	rdlock "digi_market/pkg/redis"
)

type purchaseRequest struct {
	ProductID uint  `json:"product_id" binding:"required"`
	BuyerID   uint  `json:"buyer_id" binding:"required"`
	Quantity  int64 `json:"quantity" binding:"required,min=1"`
}

// purchase 下单：条件扣减库存 + 买家扣款 + 卖家/平台分账，全部在一个事务里。
// 事务提交后同步尝试交付，交付失败订单保持已完成、稍后可补发。
func purchase(db *gorm.DB, rdb *rd.Client, allocator *stock.Allocator, cfg config.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req purchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		eventID := uuid.New().String()
		orderNo := "DM" + strings.ReplaceAll(eventID, "-", "")[:12]

		var order model.Order
		err := db.Transaction(func(tx *gorm.DB) error {
			var p model.Product
			if err := tx.First(&p, req.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errProductNotFound
				}
				return err
			}

			amount := p.Price * req.Quantity

			// 条件扣减是防超卖的唯一权威判断，RowsAffected=0 即库存不足。
			// 两个库存字段一起扣，交付被推迟时计数也保持一致。
			res := tx.Model(&model.Product{}).
				Where("id = ? AND available_quantity >= ?", req.ProductID, req.Quantity).
				Updates(map[string]interface{}{
					"stock_quantity":     gorm.Expr("stock_quantity - ?", req.Quantity),
					"available_quantity": gorm.Expr("available_quantity - ?", req.Quantity),
					"sold_count":         gorm.Expr("sold_count + ?", req.Quantity),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return stock.ErrInsufficientStock
			}

			// 买家余额同样用条件扣减，避免并发下单透支
			debit := tx.Model(&model.User{}).
				Where("id = ? AND balance >= ?", req.BuyerID, amount).
				Update("balance", gorm.Expr("balance - ?", amount))
			if debit.Error != nil {
				return debit.Error
			}
			if debit.RowsAffected == 0 {
				return errInsufficientBalance
			}

			commission := amount * cfg.CommissionBP / 10000
			sellerShare := amount - commission
			if err := tx.Model(&model.User{}).Where("id = ?", p.SellerID).
				Update("balance", gorm.Expr("balance + ?", sellerShare)).Error; err != nil {
				return err
			}
			if commission > 0 {
				if err := creditAdmin(tx, commission); err != nil {
					return err
				}
			}

			order = model.Order{
				OrderNo:   orderNo,
				BuyerID:   req.BuyerID,
				SellerID:  p.SellerID,
				ProductID: p.ID,
				Quantity:  req.Quantity,
				Amount:    amount,
				Status:    model.OrderCompleted,
			}
			return tx.Create(&order).Error
		})
		if err != nil {
			switch {
			case errors.Is(err, errProductNotFound):
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "product not found"})
			case errors.Is(err, stock.ErrInsufficientStock):
				c.JSON(http.StatusConflict, gin.H{"code": 409, "msg": "insufficient stock"})
			case errors.Is(err, errInsufficientBalance):
				c.JSON(http.StatusPaymentRequired, gin.H{"code": 402, "msg": "insufficient balance"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			}
			return
		}

		deliverErr := fulfillOrder(c.Request.Context(), db, rdb, allocator, cfg, &order)
		if deliverErr != nil {
			log.Printf("order %s fulfillment deferred: %v", orderNo, deliverErr)
		}

		publishSaleEvent(c.Request.Context(), rdb, cfg, eventID, &order)

		resp := gin.H{
			"order_no":       order.OrderNo,
			"amount":         order.Amount,
			"download_ready": order.DownloadReady,
		}
		if !order.DownloadReady {
			resp["msg"] = "order completed, download will be available shortly"
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": resp})
	}
}

var (
	errProductNotFound     = errors.New("product not found")
	errInsufficientBalance = errors.New("insufficient balance")
)

// creditAdmin 平台佣金记到第一个管理员账户，没有管理员则佣金沉淀（只记日志）。
func creditAdmin(tx *gorm.DB, commission int64) error {
	var admin model.User
	err := tx.Where("role = ?", model.RoleAdmin).Order("id").First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("no admin account, commission %d kept unassigned", commission)
			return nil
		}
		return err
	}
	return tx.Model(&model.User{}).Where("id = ?", admin.ID).
		Update("balance", gorm.Expr("balance + ?", commission)).Error
}

// fulfillOrder 从权威数据文件切出买家份额并生成交付文件。
// 流程：订单级幂等闸 → 商品级互斥锁 → 分配 → 落库并按剩余内容重算库存。
func fulfillOrder(ctx context.Context, db *gorm.DB, rdb *rd.Client, allocator *stock.Allocator, cfg config.AppConfig, order *model.Order) error {
	if order.DownloadReady {
		return nil
	}

	// 同一笔订单只允许一次在途分配
	first, err := rdlock.MarkAllocOnce(ctx, rdb, order.OrderNo, cfg.AllocLockTTL)
	if err != nil {
		return fmt.Errorf("allocation latch: %w", err)
	}
	if !first {
		return fmt.Errorf("order %s allocation already in flight", order.OrderNo)
	}
	succeeded := false
	defer func() {
		if !succeeded {
			rdlock.UnmarkAllocOnce(context.Background(), rdb, order.OrderNo)
		}
	}()

	ok, err := rdlock.AcquireAllocLock(ctx, rdb, order.ProductID, order.OrderNo, cfg.AllocLockTTL)
	if err != nil {
		return fmt.Errorf("product lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("product %d allocation busy", order.ProductID)
	}
	defer rdlock.ReleaseAllocLock(context.Background(), rdb, order.ProductID, order.OrderNo)

	var p model.Product
	if err := db.Preload("Files").First(&p, order.ProductID).Error; err != nil {
		return err
	}
	authFile := p.AuthoritativeFile()
	if authFile == nil {
		return fmt.Errorf("product %d has no stock file", p.ID)
	}

	alloc, allocErr := allocator.Allocate(ctx, authFile, order.OrderNo, order.Quantity)
	if alloc.ArtifactKey == "" {
		// 交付文件未落地，分配彻底失败
		return allocErr
	}
	if allocErr != nil {
		// 交付文件已写成，库存池回写失败：交付照常，池子下次分配前自愈
		log.Printf("order %s: pool rewrite failed after artifact write: %v", order.OrderNo, allocErr)
	}

	if err := applyAllocation(db, order, &p, authFile, alloc); err != nil {
		return err
	}

	order.DownloadReady = true
	order.DownloadFileName = alloc.ArtifactKey
	succeeded = true
	return nil
}

// applyAllocation 分配成功后的落库：订单置为可下载、维护文件记录、
// 库存从剩余文件重算。权威池被清空时顺位提升下一个文件，
// 多文件商品不会因此断供。
func applyAllocation(db *gorm.DB, order *model.Order, p *model.Product, authFile *model.StockFile, alloc stock.Allocation) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(order).Updates(map[string]interface{}{
			"download_ready":     true,
			"download_file_name": alloc.ArtifactKey,
		}).Error; err != nil {
			return err
		}

		if alloc.PoolDeleted {
			if err := tx.Unscoped().Delete(&model.StockFile{}, authFile.ID).Error; err != nil {
				return err
			}
			p.Files = removeFileByID(p.Files, authFile.ID)
			if len(p.Files) > 0 {
				p.Files[0].IsAuthoritative = true
				if err := tx.Model(&model.StockFile{}).Where("id = ?", p.Files[0].ID).
					Update("is_authoritative", true).Error; err != nil {
					return err
				}
			}
		} else {
			authFile.EntryCount = alloc.RemainingCount
			if err := tx.Model(&model.StockFile{}).Where("id = ?", authFile.ID).
				Update("entry_count", alloc.RemainingCount).Error; err != nil {
				return err
			}
		}

		// 库存量从文件实际内容重算，纠正任何计数漂移
		stock.RecomputeFromFiles(p)
		return tx.Model(p).Updates(map[string]interface{}{
			"stock_quantity":     p.StockQuantity,
			"available_quantity": p.AvailableQuantity,
		}).Error
	})
}

func removeFileByID(files []model.StockFile, id uint) []model.StockFile {
	out := files[:0]
	for _, f := range files {
		if f.ID != id {
			out = append(out, f)
		}
	}
	return out
}

// publishSaleEvent 把成交事件写进 Redis Stream 出箱，由 Relay 转投 Kafka。
// 出箱失败不影响订单，统计属于旁路。
func publishSaleEvent(ctx context.Context, rdb *rd.Client, cfg config.AppConfig, eventID string, order *model.Order) {
	msg := queue.FulfillmentMessage{
		EventID:       eventID,
		OrderNo:       order.OrderNo,
		ProductID:     order.ProductID,
		Quantity:      order.Quantity,
		Amount:        order.Amount,
		DownloadReady: order.DownloadReady,
	}
	if err := queue.PublishToStream(ctx, rdb, cfg.FulfillEventStream, msg); err != nil {
		log.Printf("publish sale event %s: %v", eventID, err)
	}
}

// retryFulfill 对已完成但未出货的订单补发。
func retryFulfill(db *gorm.DB, rdb *rd.Client, allocator *stock.Allocator, cfg config.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := loadOrder(c, db)
		if !ok {
			return
		}
		if order.Status != model.OrderCompleted {
			c.JSON(http.StatusConflict, gin.H{"code": 409, "msg": "order is not completed"})
			return
		}
		if order.DownloadReady {
			c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
				"order_no":       order.OrderNo,
				"download_ready": true,
			}})
			return
		}

		if err := fulfillOrder(c.Request.Context(), db, rdb, allocator, cfg, order); err != nil {
			c.JSON(http.StatusConflict, gin.H{"code": 409, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
			"order_no":       order.OrderNo,
			"download_ready": order.DownloadReady,
		}})
	}
}

func loadOrder(c *gin.Context, db *gorm.DB) (*model.Order, bool) {
	orderNo := c.Param("order_no")
	var order model.Order
	if err := db.Where("order_no = ?", orderNo).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "order not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
		}
		return nil, false
	}
	return &order, true
}

func getOrder(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := loadOrder(c, db)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": order})
	}
}

func getSaleStats(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := parseUintParam(c, "product_id")
		if !ok {
			return
		}
		var stat model.SaleStat
		if err := db.Where("product_id = ?", productID).First(&stat).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusOK, gin.H{"code": 0, "data": model.SaleStat{ProductID: productID}})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": stat})
	}
}

// downloadPurchase 买家下载已购数据，format=txt|csv 控制导出格式。
func downloadPurchase(db *gorm.DB, store storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := loadOrder(c, db)
		if !ok {
			return
		}
		productID, ok := parseUintParam(c, "product_id")
		if !ok {
			return
		}
		if order.ProductID != productID {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "order does not match product"})
			return
		}
		if !order.DownloadReady || order.DownloadFileName == "" {
			c.JSON(http.StatusConflict, gin.H{"code": 409,
				"msg": "download will be available shortly, contact the seller if it does not arrive"})
			return
		}

		data, err := store.ReadFile(c.Request.Context(), order.DownloadFileName)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "purchase file missing, contact support"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}

		format := c.DefaultQuery("format", stock.RenderTXT)
		entries := stock.NonBlankLines(string(data))
		rendered := stock.Render(entries, format)

		filename := fmt.Sprintf("your_data_%d_items.%s", len(entries), rendered.Extension)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Data(http.StatusOK, rendered.MimeType, []byte(rendered.Content))
	}
}
