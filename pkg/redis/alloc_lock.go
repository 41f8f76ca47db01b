package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaReleaseAllocLockIfMatch 仅当锁值匹配持有者时才删除，避免误删他人新锁。
const luaReleaseAllocLockIfMatch = `
local lockKey = KEYS[1]
local owner = ARGV[1]
if redis.call('GET', lockKey) == owner then
  return redis.call('DEL', lockKey)
end
return 0
`

// AcquireAllocLock 获取商品级分配锁。owner 用订单号，方便排查持锁方。
// 返回 false 表示已有其他请求在分配该商品。
func AcquireAllocLock(ctx context.Context, rdb *rd.Client, productID uint, owner string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, AllocLockKey(productID), owner, ttl).Result()
}

// ReleaseAllocLock 安全释放分配锁（owner 匹配才删）。
func ReleaseAllocLock(ctx context.Context, rdb *rd.Client, productID uint, owner string) error {
	_, err := rdb.Eval(ctx, luaReleaseAllocLockIfMatch, []string{AllocLockKey(productID)}, owner).Int()
	return err
}

// MarkAllocOnce 将订单标记为“已分配”。首次标记返回 true；
// 重复调用返回 false，调用方应跳过分配（幂等保护）。
func MarkAllocOnce(ctx context.Context, rdb *rd.Client, orderNo string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, AllocOnceKey(orderNo), "1", ttl).Result()
}

// UnmarkAllocOnce 分配失败时撤销标记，允许后续重试交付。
func UnmarkAllocOnce(ctx context.Context, rdb *rd.Client, orderNo string) error {
	return rdb.Del(ctx, AllocOnceKey(orderNo)).Err()
}
