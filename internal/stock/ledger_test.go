package stock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digi_market/internal/model"
)

func TestSetFromParse(t *testing.T) {
	p := &model.Product{}
	SetFromParse(p, 42)

	assert.Equal(t, int64(42), p.StockQuantity)
	assert.Equal(t, int64(42), p.AvailableQuantity, "两个计数字段永远一起写")
	assert.True(t, p.IsQuantityValidated)
}

func TestRecomputeFromFiles(t *testing.T) {
	p := &model.Product{
		StockQuantity:     999, // 预置漂移值，重算必须覆盖
		AvailableQuantity: 1,
		Files: []model.StockFile{
			{EntryCount: 10},
			{EntryCount: 5},
		},
	}
	RecomputeFromFiles(p)

	assert.Equal(t, int64(15), p.StockQuantity)
	assert.Equal(t, int64(15), p.AvailableQuantity)
}

func TestRecomputeFromFilesEmpty(t *testing.T) {
	p := &model.Product{StockQuantity: 7, AvailableQuantity: 7}
	RecomputeFromFiles(p)
	assert.Equal(t, int64(0), p.StockQuantity)
}

func TestDecrement(t *testing.T) {
	p := &model.Product{StockQuantity: 10, AvailableQuantity: 10}

	require.NoError(t, Decrement(p, 3))
	assert.Equal(t, int64(7), p.AvailableQuantity)
	assert.Equal(t, int64(7), p.StockQuantity)
	assert.Equal(t, int64(3), p.SoldCount)
}

func TestDecrementInsufficient(t *testing.T) {
	p := &model.Product{StockQuantity: 2, AvailableQuantity: 2, SoldCount: 1}

	err := Decrement(p, 3)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	// 拒绝时任何字段都不动
	assert.Equal(t, int64(2), p.AvailableQuantity)
	assert.Equal(t, int64(2), p.StockQuantity)
	assert.Equal(t, int64(1), p.SoldCount)
}

func TestDecrementZeroRejected(t *testing.T) {
	p := &model.Product{AvailableQuantity: 5, StockQuantity: 5}
	assert.Error(t, Decrement(p, 0))
	assert.Error(t, Decrement(p, -1))
}

func TestReset(t *testing.T) {
	p := &model.Product{
		StockQuantity:       9,
		AvailableQuantity:   9,
		IsQuantityValidated: true,
		Files:               []model.StockFile{{EntryCount: 9}},
		ManualEntry:         &model.ManualEntryInfo{EntryCount: 9},
	}
	Reset(p)

	assert.Zero(t, p.StockQuantity)
	assert.Zero(t, p.AvailableQuantity)
	assert.Nil(t, p.Files)
	assert.Nil(t, p.ManualEntry)
	assert.False(t, p.IsQuantityValidated)
}

func TestCountEntries(t *testing.T) {
	assert.Equal(t, int64(3), CountEntries([]byte("a\n\nb\nc\n")))
	assert.Equal(t, int64(0), CountEntries(nil))
}
