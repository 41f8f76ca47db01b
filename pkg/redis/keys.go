package redis

import "fmt"

// AllocLockKey 商品分配互斥锁：持锁期间才允许读池、写交付文件、回写剩余池。
func AllocLockKey(productID uint) string {
	return fmt.Sprintf("digi_market:alloc:lock:%d", productID)
}

// AllocOnceKey 标记某订单是否已执行过分配，保证至多一次。
func AllocOnceKey(orderNo string) string {
	return fmt.Sprintf("digi_market:alloc:done:%s", orderNo)
}

// BuyRateKey 购买接口限流键（按买家或 IP）。
func BuyRateKey(scope string) string {
	return fmt.Sprintf("digi_market:rate:buy:%s", scope)
}
