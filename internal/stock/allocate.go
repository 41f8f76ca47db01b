package stock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"digi_market/internal/model"
	"digi_market/internal/storage"
)

// Allocator 购买成交后从权威池中按 FIFO 切出条目并生成买家交付文件。
// 余额/库存校验属于调用方，这里只负责文件级的切分与持久化。
type Allocator struct {
	store storage.Store
}

func NewAllocator(store storage.Store) *Allocator {
	return &Allocator{store: store}
}

// Allocation 一次分配的结果。
type Allocation struct {
	BuyerEntries   []string
	ArtifactKey    string
	RemainingCount int64
	PoolDeleted    bool // 剩余为零时权威文件被整体删除
}

// Allocate 从 file 指向的权威内容切出前 quantity 条：
//  1. 读权威内容（缺文件原样返回 storage.ErrNotFound）
//  2. 非空行切分
//  3. 行数不足返回 ErrInsufficientData（对调用方校验的防御性复查）
//  4. 前 quantity 行给买家，其余保持原顺序
//  5. 先写买家交付文件——这是耐久点，此后任何失败都不丢交付物
//  6. 回写剩余池；为空则删除权威文件
//
// 调用方必须持有该商品的分配锁，并保证每个订单至多调用一次。
func (a *Allocator) Allocate(ctx context.Context, file *model.StockFile, orderNo string, quantity int64) (Allocation, error) {
	if quantity <= 0 {
		return Allocation{}, fmt.Errorf("stock: allocate quantity must be > 0, got %d", quantity)
	}

	content, err := a.store.ReadFile(ctx, file.StorageKey)
	if err != nil {
		return Allocation{}, err
	}

	allLines := NonBlankLines(string(content))
	if int64(len(allLines)) < quantity {
		return Allocation{}, fmt.Errorf("%w: pool has %d, order needs %d",
			ErrInsufficientData, len(allLines), quantity)
	}

	buyer := allLines[:quantity]
	remaining := allLines[quantity:]

	alloc := Allocation{
		BuyerEntries:   buyer,
		ArtifactKey:    ArtifactKey(orderNo),
		RemainingCount: int64(len(remaining)),
		PoolDeleted:    len(remaining) == 0,
	}

	// 耐久点：交付文件必须先落地。
	if err := a.store.WriteFile(ctx, alloc.ArtifactKey, []byte(strings.Join(buyer, "\n"))); err != nil {
		return Allocation{}, fmt.Errorf("write buyer artifact: %w", err)
	}

	if len(remaining) > 0 {
		if err := a.store.WriteFile(ctx, file.StorageKey, []byte(strings.Join(remaining, "\n"))); err != nil {
			// 交付文件已写好，返回分配结果让调用方照常标记可下载，
			// 池回写失败单独上报修复。
			return alloc, fmt.Errorf("rewrite pool %s: %w", file.StorageKey, err)
		}
	} else {
		if err := a.store.DeleteFile(ctx, file.StorageKey); err != nil {
			return alloc, fmt.Errorf("delete emptied pool %s: %w", file.StorageKey, err)
		}
	}

	return alloc, nil
}

// ArtifactKey 买家交付文件键：订单号 + 时间戳，每单唯一。
func ArtifactKey(orderNo string) string {
	return fmt.Sprintf("purchase_%s_%d.txt", orderNo, time.Now().UnixNano())
}
