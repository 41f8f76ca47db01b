package storage

import (
	"context"
	"errors"
)

// ErrNotFound 统一的“内容不存在”错误，两个后端都映射到它。
// 调用方必须显式处理，不允许把缺文件当作零库存。
var ErrNotFound = errors.New("storage: object not found")

// Store 库存文件与买家交付文件的内容存储。
// key 由上层生成并保证唯一；内容按整体读写（条目文件都很小）。
type Store interface {
	ReadFile(ctx context.Context, key string) ([]byte, error)
	WriteFile(ctx context.Context, key string, data []byte) error
	DeleteFile(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
