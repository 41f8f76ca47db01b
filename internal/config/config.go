package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 存储后端标识。
const (
	StorageDisk  = "disk"
	StorageMinio = "minio"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string
	DBPath   string

	RedisAddr string
	RedisDB   int

	// 库存文件与买家交付文件的内容存储
	StorageBackend string // disk | minio
	UploadDir      string // disk 后端的根目录
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Kafka 集群地址（逗号分隔）、Topic、消费者组
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox（购买接口原子入流，Relay 异步转 Kafka）
	FulfillEventStream   string
	FulfillEventGroup    string
	FulfillEventConsumer string

	// 购买接口限流与分配锁
	BuyRateLimit  int
	BuyRateWindow time.Duration
	AllocLockTTL  time.Duration

	// 单文件上传大小上限（字节）与单次上传文件数上限
	MaxUploadBytes int64
	MaxUploadFiles int

	// 平台佣金比例（万分比，默认 1000 = 10%）
	CommissionBP int64
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DBPath:               getEnv("DB_PATH", "digi_market.db"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              0,
		StorageBackend:       getEnv("STORAGE_BACKEND", StorageDisk),
		UploadDir:            getEnv("UPLOAD_DIR", "uploads"),
		MinioEndpoint:        getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:       getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:       getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:          getEnv("MINIO_BUCKET", "digi-market-stock"),
		MinioUseSSL:          getEnv("MINIO_USE_SSL", "") == "true",
		KafkaBrokers:         splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:           getEnv("KAFKA_TOPIC", "digi-market-fulfillments"),
		KafkaGroupID:         getEnv("KAFKA_GROUP_ID", "digi-market-stats-consumer"),
		FulfillEventStream:   getEnv("FULFILL_EVENT_STREAM", "digi_market:fulfill_events"),
		FulfillEventGroup:    getEnv("FULFILL_EVENT_GROUP", "digi-market-relay-group"),
		FulfillEventConsumer: getEnv("FULFILL_EVENT_CONSUMER", "digi-market-relay-1"),
		BuyRateLimit:         100,
		BuyRateWindow:        time.Second,
		AllocLockTTL:         30 * time.Second,
		MaxUploadBytes:       32 << 20,
		MaxUploadFiles:       10,
		CommissionBP:         1000,
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	rateLimit, err := getEnvInt("BUY_RATE_LIMIT", cfg.BuyRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid BUY_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("BUY_RATE_LIMIT must be > 0")
	}
	cfg.BuyRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("BUY_RATE_WINDOW_SEC", int(cfg.BuyRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid BUY_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("BUY_RATE_WINDOW_SEC must be > 0")
	}
	cfg.BuyRateWindow = time.Duration(rateWindowSec) * time.Second

	lockTTLSec, err := getEnvInt("ALLOC_LOCK_TTL_SEC", int(cfg.AllocLockTTL.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ALLOC_LOCK_TTL_SEC: %w", err)
	}
	if lockTTLSec <= 0 {
		return AppConfig{}, fmt.Errorf("ALLOC_LOCK_TTL_SEC must be > 0")
	}
	cfg.AllocLockTTL = time.Duration(lockTTLSec) * time.Second

	maxUploadMB, err := getEnvInt("MAX_UPLOAD_MB", int(cfg.MaxUploadBytes>>20))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid MAX_UPLOAD_MB: %w", err)
	}
	if maxUploadMB <= 0 {
		return AppConfig{}, fmt.Errorf("MAX_UPLOAD_MB must be > 0")
	}
	cfg.MaxUploadBytes = int64(maxUploadMB) << 20

	maxFiles, err := getEnvInt("MAX_UPLOAD_FILES", cfg.MaxUploadFiles)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid MAX_UPLOAD_FILES: %w", err)
	}
	if maxFiles <= 0 {
		return AppConfig{}, fmt.Errorf("MAX_UPLOAD_FILES must be > 0")
	}
	cfg.MaxUploadFiles = maxFiles

	commissionBP, err := getEnvInt("COMMISSION_BP", int(cfg.CommissionBP))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid COMMISSION_BP: %w", err)
	}
	if commissionBP < 0 || commissionBP > 10000 {
		return AppConfig{}, fmt.Errorf("COMMISSION_BP must be in [0,10000]")
	}
	cfg.CommissionBP = int64(commissionBP)

	switch cfg.StorageBackend {
	case StorageDisk:
		if cfg.UploadDir == "" {
			return AppConfig{}, fmt.Errorf("UPLOAD_DIR must not be empty")
		}
	case StorageMinio:
		if cfg.MinioEndpoint == "" {
			return AppConfig{}, fmt.Errorf("MINIO_ENDPOINT must not be empty")
		}
		if cfg.MinioBucket == "" {
			return AppConfig{}, fmt.Errorf("MINIO_BUCKET must not be empty")
		}
	default:
		return AppConfig{}, fmt.Errorf("STORAGE_BACKEND must be disk or minio, got %q", cfg.StorageBackend)
	}

	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.KafkaGroupID == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
	}
	if cfg.FulfillEventStream == "" {
		return AppConfig{}, fmt.Errorf("FULFILL_EVENT_STREAM must not be empty")
	}
	if cfg.FulfillEventGroup == "" {
		return AppConfig{}, fmt.Errorf("FULFILL_EVENT_GROUP must not be empty")
	}
	if cfg.FulfillEventConsumer == "" {
		return AppConfig{}, fmt.Errorf("FULFILL_EVENT_CONSUMER must not be empty")
	}

	return cfg, nil
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
