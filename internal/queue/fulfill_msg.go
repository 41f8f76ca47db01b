package queue

import "fmt"

// FulfillmentMessage 购买成交后发布的交付事件，消费端做销售统计。
// EventID 即订单生成时的 uuid，整条链路的幂等主键。
type FulfillmentMessage struct {
	EventID       string `json:"event_id"`
	OrderNo       string `json:"order_no"`
	ProductID     uint   `json:"product_id"`
	Quantity      int64  `json:"quantity"`
	Amount        int64  `json:"amount"` // 分
	DownloadReady bool   `json:"download_ready"`
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (m FulfillmentMessage) Validate() error {
	if m.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if m.OrderNo == "" {
		return fmt.Errorf("order_no is required")
	}
	if m.ProductID == 0 {
		return fmt.Errorf("product_id is required")
	}
	if m.Quantity <= 0 {
		return fmt.Errorf("quantity must be > 0")
	}
	if m.Amount < 0 {
		return fmt.Errorf("amount must be >= 0")
	}
	return nil
}
