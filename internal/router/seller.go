package router

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"digi_market/internal/config"
	"digi_market/internal/model"
	"digi_market/internal/stock"
	"digi_market/internal/storage"
)

// fileReport 单个上传文件的处理结果，聚合进响应让卖家看到告警。
type fileReport struct {
	Filename string `json:"filename"`
	Entries  int64  `json:"entries"`
	Format   string `json:"format"`
	Warning  string `json:"warning,omitempty"`
	Error    string `json:"error,omitempty"`
}

// uploadFiles 批量上传库存文件：解析计数、替换既有文件集、库存按解析结果覆盖。
// 解析降级（估算、二进制记 1 条）不算失败，Warning 随响应返回。
func uploadFiles(db *gorm.DB, store storage.Store, cfg config.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := loadProduct(c, db)
		if p == nil {
			return
		}

		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "invalid multipart form: " + err.Error()})
			return
		}
		uploads := form.File["files"]
		if len(uploads) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "upload at least one file"})
			return
		}
		if len(uploads) > cfg.MaxUploadFiles {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400,
				"msg": fmt.Sprintf("at most %d files per upload", cfg.MaxUploadFiles)})
			return
		}

		reports := make([]fileReport, 0, len(uploads))
		newFiles := make([]model.StockFile, 0, len(uploads))
		var totalQuantity int64
		now := time.Now()

		for _, fh := range uploads {
			report := fileReport{Filename: fh.Filename}
			if fh.Size > cfg.MaxUploadBytes {
				report.Error = fmt.Sprintf("file exceeds %d MB limit", cfg.MaxUploadBytes>>20)
				reports = append(reports, report)
				continue
			}

			data, err := readUpload(fh)
			if err != nil {
				report.Error = "read failed: " + err.Error()
				reports = append(reports, report)
				continue
			}

			res := stock.Parse(data, fh.Filename)
			report.Entries = res.TotalCount
			report.Format = res.FormatTag
			report.Warning = res.Warning
			if res.TotalCount == 0 {
				report.Error = "no valid entries"
				reports = append(reports, report)
				continue
			}

			// 解析抽取出了字面条目（文本、结构化表格）就落归一化内容，
			// 保证存储的非空行数与 entry_count 一致，分配才不会把表头当条目卖掉。
			// 仅计数的格式（sql/xml/二进制/估算回退）保留原始字节。
			blob := data
			if len(res.Entries) > 0 && res.FormatTag != stock.TagBinary {
				blob = []byte(strings.Join(res.Entries, "\n") + "\n")
			}

			key := fmt.Sprintf("stock_%d_%s%s", p.ID, uuid.New().String(), filepath.Ext(fh.Filename))
			if err := store.WriteFile(c.Request.Context(), key, blob); err != nil {
				report.Error = "store failed: " + err.Error()
				reports = append(reports, report)
				continue
			}

			newFiles = append(newFiles, model.StockFile{
				ProductID:       p.ID,
				Filename:        fh.Filename,
				StorageKey:      key,
				EntryCount:      res.TotalCount,
				Format:          res.FormatTag,
				UploadedAt:      now,
				IsAuthoritative: len(newFiles) == 0, // 第一个有效文件为权威数据文件
			})
			totalQuantity += res.TotalCount
			reports = append(reports, report)
		}

		if len(newFiles) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "no file produced valid entries", "data": reports})
			return
		}

		// 上传是整组替换：清掉旧文件集，库存覆盖为新解析总数。
		oldFiles := p.Files
		err = db.Transaction(func(tx *gorm.DB) error {
			if len(oldFiles) > 0 {
				// 硬删除：storage_key 唯一索引不能被软删除行占用
				if err := tx.Unscoped().Where("product_id = ?", p.ID).Delete(&model.StockFile{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Create(&newFiles).Error; err != nil {
				return err
			}
			stock.SetFromParse(p, totalQuantity)
			return tx.Model(p).Updates(map[string]interface{}{
				"stock_quantity":        p.StockQuantity,
				"available_quantity":    p.AvailableQuantity,
				"is_quantity_validated": true,
			}).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}

		// 数据库切换成功后再清理旧内容，清理失败只记日志。
		for _, f := range oldFiles {
			if err := store.DeleteFile(c.Request.Context(), f.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
				log.Printf("upload cleanup %s: %v", f.StorageKey, err)
			}
		}

		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
			"total_stock": totalQuantity,
			"files":       reports,
		}})
	}
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// deleteFile 删除单个库存文件，库存按剩余文件记录重算。
func deleteFile(db *gorm.DB, store storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := loadProduct(c, db)
		if p == nil {
			return
		}
		fileID, ok := parseUintParam(c, "file_id")
		if !ok {
			return
		}

		idx := -1
		for i := range p.Files {
			if p.Files[i].ID == fileID {
				idx = i
				break
			}
		}
		if idx < 0 {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "file not found"})
			return
		}
		removed := p.Files[idx]

		rest := make([]model.StockFile, 0, len(p.Files)-1)
		rest = append(rest, p.Files[:idx]...)
		rest = append(rest, p.Files[idx+1:]...)

		// 删除的是权威文件时，顺位提升下一个文件
		var promote *model.StockFile
		if removed.IsAuthoritative && len(rest) > 0 {
			promote = &rest[0]
			promote.IsAuthoritative = true
		}

		p.Files = rest
		stock.RecomputeFromFiles(p)

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Unscoped().Delete(&model.StockFile{}, removed.ID).Error; err != nil {
				return err
			}
			if promote != nil {
				if err := tx.Model(&model.StockFile{}).Where("id = ?", promote.ID).
					Update("is_authoritative", true).Error; err != nil {
					return err
				}
			}
			return tx.Model(p).Updates(map[string]interface{}{
				"stock_quantity":     p.StockQuantity,
				"available_quantity": p.AvailableQuantity,
			}).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}

		if err := store.DeleteFile(c.Request.Context(), removed.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.Printf("delete stock file %s: %v", removed.StorageKey, err)
		}

		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
			"deleted":     removed.Filename,
			"total_stock": p.StockQuantity,
		}})
	}
}

// editFileContent 覆盖写某个库存文件的原始内容，条目数从新内容重算。
func editFileContent(db *gorm.DB, store storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := loadProduct(c, db)
		if p == nil {
			return
		}
		fileID, ok := parseUintParam(c, "file_id")
		if !ok {
			return
		}
		var req struct {
			Content string `json:"content"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		var target *model.StockFile
		for i := range p.Files {
			if p.Files[i].ID == fileID {
				target = &p.Files[i]
				break
			}
		}
		if target == nil {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "file not found"})
			return
		}

		if err := store.WriteFile(c.Request.Context(), target.StorageKey, []byte(req.Content)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}

		target.EntryCount = stock.CountEntries([]byte(req.Content))
		target.UploadedAt = time.Now()
		stock.RecomputeFromFiles(p)

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&model.StockFile{}).Where("id = ?", target.ID).Updates(map[string]interface{}{
				"entry_count": target.EntryCount,
				"uploaded_at": target.UploadedAt,
			}).Error; err != nil {
				return err
			}
			return tx.Model(p).Updates(map[string]interface{}{
				"stock_quantity":     p.StockQuantity,
				"available_quantity": p.AvailableQuantity,
			}).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
			"entries":     target.EntryCount,
			"total_stock": p.StockQuantity,
		}})
	}
}

// downloadStockFile 卖家取回自己的原始库存文件。
func downloadStockFile(db *gorm.DB, store storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := loadProduct(c, db)
		if p == nil {
			return
		}
		fileID, ok := parseUintParam(c, "file_id")
		if !ok {
			return
		}

		var target *model.StockFile
		for i := range p.Files {
			if p.Files[i].ID == fileID {
				target = &p.Files[i]
				break
			}
		}
		if target == nil {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "file not found"})
			return
		}

		data, err := store.ReadFile(c.Request.Context(), target.StorageKey)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "file missing from storage"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", target.Filename))
		c.Data(http.StatusOK, "application/octet-stream", data)
	}
}

// manualEntry 手工录入：校验→合并→回写权威文件→库存按合并后内容重算。
// 任何一行校验失败整体拒绝，权威文件保持原样。
func manualEntry(db *gorm.DB, store storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := loadProduct(c, db)
		if p == nil {
			return
		}
		var req struct {
			Format   string `json:"format" binding:"required"`
			Content  string `json:"content" binding:"required"`
			Validate bool   `json:"validate"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		authFile := p.AuthoritativeFile()
		var existing []byte
		if authFile != nil {
			data, err := store.ReadFile(c.Request.Context(), authFile.StorageKey)
			if err != nil {
				if !errors.Is(err, storage.ErrNotFound) {
					c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
					return
				}
				// 文件记录在、内容丢了：从零开始重建，合并后计数会自我修正
				log.Printf("manual entry: authoritative content %s missing, rebuilding", authFile.StorageKey)
			} else {
				existing = data
			}
		}

		res, err := stock.Merge(existing, req.Content, req.Format, req.Validate)
		if err != nil {
			var vErr *stock.ValidationError
			switch {
			case errors.Is(err, stock.ErrNoValidEntries):
				c.JSON(http.StatusBadRequest, gin.H{"code": 400,
					"msg": "no valid data entries found, enter one entry per line"})
			case errors.As(err, &vErr):
				c.JSON(http.StatusBadRequest, gin.H{"code": 400,
					"msg":  "data validation failed",
					"data": gin.H{"violations": vErr.Violations}})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			}
			return
		}

		now := time.Now()
		created := false
		if authFile == nil {
			p.Files = append(p.Files, model.StockFile{
				ProductID:       p.ID,
				Filename:        "manual_data.txt",
				StorageKey:      fmt.Sprintf("manual_%d_%d.txt", p.ID, now.UnixNano()),
				Format:          req.Format,
				UploadedAt:      now,
				IsAuthoritative: true,
			})
			authFile = &p.Files[len(p.Files)-1]
			created = true
		}

		if err := store.WriteFile(c.Request.Context(), authFile.StorageKey, []byte(res.CombinedContent)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}

		authFile.EntryCount = res.NewTotal
		authFile.UploadedAt = now
		stock.RecomputeFromFiles(p)
		p.IsQuantityValidated = true

		err = db.Transaction(func(tx *gorm.DB) error {
			if created {
				if err := tx.Create(authFile).Error; err != nil {
					return err
				}
			} else {
				if err := tx.Model(&model.StockFile{}).Where("id = ?", authFile.ID).Updates(map[string]interface{}{
					"entry_count": authFile.EntryCount,
					"uploaded_at": authFile.UploadedAt,
				}).Error; err != nil {
					return err
				}
			}

			info := &model.ManualEntryInfo{ProductID: p.ID}
			if err := tx.Where("product_id = ?", p.ID).FirstOrCreate(info).Error; err != nil {
				return err
			}
			info.Format = req.Format
			info.EntryCount = res.NewTotal
			info.TotalUploads++
			info.LastUpdated = now
			if err := tx.Save(info).Error; err != nil {
				return err
			}

			return tx.Model(p).Updates(map[string]interface{}{
				"stock_quantity":        p.StockQuantity,
				"available_quantity":    p.AvailableQuantity,
				"is_quantity_validated": true,
			}).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
			"added":       res.Added,
			"total_stock": p.StockQuantity,
			"format":      req.Format,
			"validated":   req.Validate,
		}})
	}
}

// stockDetails 库存详情：计数、文件清单、手工录入元信息，
// 以及权威文件内容是否真的还在存储里（记录与内容脱节时卖家能看到）。
func stockDetails(db *gorm.DB, store storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := loadProduct(c, db)
		if p == nil {
			return
		}

		authPresent := false
		if auth := p.AuthoritativeFile(); auth != nil {
			ok, err := store.Exists(c.Request.Context(), auth.StorageKey)
			if err != nil {
				log.Printf("stock details stat %s: %v", auth.StorageKey, err)
			}
			authPresent = ok
		}

		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
			"total_stock":           p.StockQuantity,
			"available_stock":       p.AvailableQuantity,
			"sold_count":            p.SoldCount,
			"validated":             p.IsQuantityValidated,
			"authoritative_present": authPresent,
			"files":                 p.Files,
			"manual_entry":          p.ManualEntry,
		}})
	}
}

// clearStock “删除全部库存”：清文件、清手工录入元数据、计数归零。
func clearStock(db *gorm.DB, store storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := loadProduct(c, db)
		if p == nil {
			return
		}

		oldFiles := p.Files
		stock.Reset(p)

		err := db.Transaction(func(tx *gorm.DB) error {
			// 硬删除：product_id / storage_key 唯一索引不能被软删除行占用
			if err := tx.Unscoped().Where("product_id = ?", p.ID).Delete(&model.StockFile{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Where("product_id = ?", p.ID).Delete(&model.ManualEntryInfo{}).Error; err != nil {
				return err
			}
			return tx.Model(p).Updates(map[string]interface{}{
				"stock_quantity":        0,
				"available_quantity":    0,
				"is_quantity_validated": false,
			}).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}

		for _, f := range oldFiles {
			if err := store.DeleteFile(c.Request.Context(), f.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
				log.Printf("clear stock delete %s: %v", f.StorageKey, err)
			}
		}

		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"total_stock": 0}})
	}
}
