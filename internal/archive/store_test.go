package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathanyu/trading-oms/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "executions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleExecution(id string) domain.Execution {
	return domain.Execution{
		ExecutionID: id,
		OrderID:     "ORD-abc",
		Symbol:      "AAPL",
		Side:        domain.SideBuy,
		Price:       decimal.RequireFromString("172.53"),
		Quantity:    40,
		Commission:  decimal.RequireFromString("0.6901"),
		Venue:       "SIM",
		Timestamp:   time.Date(2024, 3, 15, 14, 30, 0, 123456000, time.UTC),
	}
}

func TestSaveAndLoadExecutions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := sampleExecution("exec-1")
	second := sampleExecution("exec-2")
	second.Side = domain.SideSell
	second.Quantity = 60

	require.NoError(t, store.SaveExecution(ctx, first))
	require.NoError(t, store.SaveExecution(ctx, second))

	got, err := store.LoadExecutions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "exec-1", got[0].ExecutionID)
	assert.Equal(t, "ORD-abc", got[0].OrderID)
	assert.Equal(t, domain.SideBuy, got[0].Side)
	assert.True(t, got[0].Price.Equal(first.Price), "price %s", got[0].Price)
	assert.True(t, got[0].Commission.Equal(first.Commission), "commission %s", got[0].Commission)
	assert.Equal(t, int64(40), got[0].Quantity)
	assert.Equal(t, "SIM", got[0].Venue)
	assert.True(t, got[0].Timestamp.Equal(first.Timestamp), "timestamp %s", got[0].Timestamp)

	assert.Equal(t, domain.SideSell, got[1].Side)
	assert.Equal(t, int64(60), got[1].Quantity)
}

func TestSaveExecution_DuplicateIDFails(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveExecution(ctx, sampleExecution("exec-1")))
	assert.Error(t, store.SaveExecution(ctx, sampleExecution("exec-1")))
}

func TestLoadExecutions_Empty(t *testing.T) {
	store := openTestStore(t)

	got, err := store.LoadExecutions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "executions.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveExecution(ctx, sampleExecution("exec-1")))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.LoadExecutions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "exec-1", got[0].ExecutionID)
}
