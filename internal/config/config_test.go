package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StorageDisk, cfg.StorageBackend)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 100, cfg.BuyRateLimit)
	assert.Equal(t, time.Second, cfg.BuyRateWindow)
	assert.Equal(t, 30*time.Second, cfg.AllocLockTTL)
	assert.Equal(t, int64(32<<20), cfg.MaxUploadBytes)
	assert.Equal(t, int64(1000), cfg.CommissionBP, "默认佣金 10%")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("BUY_RATE_LIMIT", "5")
	t.Setenv("ALLOC_LOCK_TTL_SEC", "60")
	t.Setenv("MAX_UPLOAD_MB", "8")
	t.Setenv("COMMISSION_BP", "500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers, "逗号分隔并剔除空项")
	assert.Equal(t, 5, cfg.BuyRateLimit)
	assert.Equal(t, time.Minute, cfg.AllocLockTTL)
	assert.Equal(t, int64(8<<20), cfg.MaxUploadBytes)
	assert.Equal(t, int64(500), cfg.CommissionBP)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"限流非数字", "BUY_RATE_LIMIT", "abc"},
		{"限流为零", "BUY_RATE_LIMIT", "0"},
		{"锁 TTL 为负", "ALLOC_LOCK_TTL_SEC", "-1"},
		{"上传上限为零", "MAX_UPLOAD_MB", "0"},
		{"佣金超过万分比", "COMMISSION_BP", "10001"},
		{"未知存储后端", "STORAGE_BACKEND", "s3"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Setenv(c.key, c.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadMinioBackendRequiresEndpoint(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "minio")
	t.Setenv("MINIO_ENDPOINT", "minio.local:9000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMinio, cfg.StorageBackend)
}
