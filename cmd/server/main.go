package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"digi_market/internal/config"
	"digi_market/internal/model"
	"digi_market/internal/queue"
	"digi_market/internal/router"
	"digi_market/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 连接 SQLite，自动建表
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.StockFile{},
		&model.ManualEntryInfo{},
		&model.Order{},
		&model.SaleStat{},
		&model.SaleEvent{},
	); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// 2. Redis：分配锁、限流、事件出箱
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis connect: %v", err)
	}
	defer rdb.Close()

	// 3. 内容存储：本地磁盘或 MinIO
	var store storage.Store
	switch cfg.StorageBackend {
	case config.StorageMinio:
		store, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	default:
		store, err = storage.NewDiskStore(cfg.UploadDir)
	}
	if err != nil {
		log.Fatalf("storage init: %v", err)
	}

	// 4. Kafka 生产者 + 出箱中继 + 统计消费者
	producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	relay := queue.NewRelay(rdb, producer, cfg.FulfillEventStream, cfg.FulfillEventGroup, cfg.FulfillEventConsumer)
	go relay.Run(ctx)

	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, db)
	defer consumer.Close()
	go consumer.Run(ctx)

	r := gin.Default()
	router.Setup(r, db, rdb, store, cfg)

	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("http server: %v", err)
	}
}
