package stock

import (
	"fmt"

	"digi_market/internal/model"
)

// 账本操作：商品的 StockQuantity/AvailableQuantity 只经由这里写入，
// 两个字段永远一起变，杜绝“只更新一个”造成的漂移。
// 口径统一为权威内容的非空行数，能重算就重算，不做增量算术。

// setQuantities 双字段同写。
func setQuantities(p *model.Product, n int64) {
	if n < 0 {
		n = 0
	}
	p.StockQuantity = n
	p.AvailableQuantity = n
}

// SetFromParse 用解析结果覆盖库存计数，并标记已校验。
func SetFromParse(p *model.Product, totalCount int64) {
	setQuantities(p, totalCount)
	p.IsQuantityValidated = true
}

// RecomputeFromFiles 以文件记录的 entry_count 之和重算库存。
// 删除单个文件、编辑文件内容之后都走这里。
func RecomputeFromFiles(p *model.Product) {
	var total int64
	for i := range p.Files {
		total += p.Files[i].EntryCount
	}
	setQuantities(p, total)
}

// Decrement 扣减 n 条；可用量不足时拒绝且不改任何字段。
// 该内存路径用于单测与防御性复查，购买主路径用数据库条件更新。
func Decrement(p *model.Product, n int64) error {
	if n <= 0 {
		return fmt.Errorf("stock: decrement amount must be > 0, got %d", n)
	}
	if n > p.AvailableQuantity {
		return fmt.Errorf("%w: need %d, available %d", ErrInsufficientStock, n, p.AvailableQuantity)
	}
	setQuantities(p, p.AvailableQuantity-n)
	p.SoldCount += n
	return nil
}

// Reset “删除全部库存”：双字段清零并摘除文件与手工录入元数据。
// 存储与数据库里的清理由调用方完成。
func Reset(p *model.Product) {
	setQuantities(p, 0)
	p.Files = nil
	p.ManualEntry = nil
	p.IsQuantityValidated = false
}

// CountEntries 内容的非空行数，即该内容可售的条目数。
func CountEntries(content []byte) int64 {
	return int64(len(NonBlankLines(string(content))))
}
