package queue

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"

	"digi_market/internal/model"
)

// Consumer 消费交付事件，聚合写入 sale_stats。
// 统计只做展示，库存判定永远以 products 表与权威文件为准。
type Consumer struct {
	r  *kafka.Reader
	db *gorm.DB
}

func NewConsumer(brokers []string, topic, groupID string, db *gorm.DB) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		db: db,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}

		var msg FulfillmentMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			log.Printf("consumer unmarshal: %v", err)
			continue
		}
		if err := msg.Validate(); err != nil {
			log.Printf("consumer drop invalid message: %v", err)
			continue
		}

		if err := c.apply(msg); err != nil {
			log.Printf("consumer apply event %s: %v", msg.EventID, err)
		}
	}
}

// apply 在单个事务里做“event_id 去重 + 统计累加”，重复消息天然幂等。
func (c *Consumer) apply(msg FulfillmentMessage) error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		event := &model.SaleEvent{
			EventID:   msg.EventID,
			OrderNo:   msg.OrderNo,
			ProductID: msg.ProductID,
		}
		if err := tx.Create(event).Error; err != nil {
			// 重复消息导致 UNIQUE 冲突：已统计过，当作成功
			if errorsLikeUnique(err) {
				return nil
			}
			return err
		}

		stat := &model.SaleStat{ProductID: msg.ProductID}
		if err := tx.Where("product_id = ?", msg.ProductID).FirstOrCreate(stat).Error; err != nil {
			return err
		}
		stat.TotalOrders++
		stat.TotalEntries += msg.Quantity
		stat.TotalAmount += msg.Amount
		if !msg.DownloadReady {
			stat.FailedDeliver++
		}
		return tx.Save(stat).Error
	})
}

func errorsLikeUnique(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE") || strings.Contains(s, "unique")
}
