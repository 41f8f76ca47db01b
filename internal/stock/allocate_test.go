package stock

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digi_market/internal/model"
	"digi_market/internal/storage"
)

func newTestPool(t *testing.T, lines ...string) (*Allocator, storage.Store, *model.StockFile) {
	t.Helper()
	store, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	file := &model.StockFile{StorageKey: "pool.txt", EntryCount: int64(len(lines))}
	require.NoError(t, store.WriteFile(context.Background(), file.StorageKey, []byte(strings.Join(lines, "\n"))))
	return NewAllocator(store), store, file
}

func TestAllocateFIFO(t *testing.T) {
	alloc, store, file := newTestPool(t, "e1", "e2", "e3", "e4", "e5")

	res, err := alloc.Allocate(context.Background(), file, "DM001", 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"e1", "e2"}, res.BuyerEntries, "按 FIFO 取最早的行")
	assert.Equal(t, int64(3), res.RemainingCount)
	assert.False(t, res.PoolDeleted)

	// 交付文件内容就是买家的两行
	artifact, err := store.ReadFile(context.Background(), res.ArtifactKey)
	require.NoError(t, err)
	assert.Equal(t, "e1\ne2", string(artifact))

	// 池子剩余保持原顺序
	pool, err := store.ReadFile(context.Background(), file.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, "e3\ne4\ne5", string(pool))
}

func TestAllocateDrainsPool(t *testing.T) {
	alloc, store, file := newTestPool(t, "only1", "only2")

	res, err := alloc.Allocate(context.Background(), file, "DM002", 2)
	require.NoError(t, err)
	assert.True(t, res.PoolDeleted, "剩余为零时删除权威文件")

	_, err = store.ReadFile(context.Background(), file.StorageKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAllocateInsufficientData(t *testing.T) {
	alloc, store, file := newTestPool(t, "e1")

	_, err := alloc.Allocate(context.Background(), file, "DM003", 5)
	assert.ErrorIs(t, err, ErrInsufficientData)

	// 失败时池子原样不动，也没有交付文件
	pool, rerr := store.ReadFile(context.Background(), file.StorageKey)
	require.NoError(t, rerr)
	assert.Equal(t, "e1", string(pool))
}

func TestAllocateMissingPool(t *testing.T) {
	store, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	alloc := NewAllocator(store)

	file := &model.StockFile{StorageKey: "ghost.txt"}
	_, err = alloc.Allocate(context.Background(), file, "DM004", 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAllocateSkipsBlankLines(t *testing.T) {
	store, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	alloc := NewAllocator(store)

	file := &model.StockFile{StorageKey: "pool.txt"}
	require.NoError(t, store.WriteFile(context.Background(), file.StorageKey, []byte("e1\n\n  \ne2\ne3\n")))

	res, err := alloc.Allocate(context.Background(), file, "DM007", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, res.BuyerEntries, "空白行不占条目")
	assert.Equal(t, int64(1), res.RemainingCount)
}

func TestAllocateQuantityMustBePositive(t *testing.T) {
	alloc, _, file := newTestPool(t, "e1")
	_, err := alloc.Allocate(context.Background(), file, "DM005", 0)
	assert.Error(t, err)
}

func TestArtifactKeyUniquePerCall(t *testing.T) {
	k1 := ArtifactKey("DM006")
	k2 := ArtifactKey("DM006")
	assert.NotEqual(t, k1, k2)
	assert.True(t, strings.HasPrefix(k1, "purchase_DM006_"))
	assert.True(t, strings.HasSuffix(k1, ".txt"))
}
