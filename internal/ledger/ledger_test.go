package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathanyu/trading-oms/internal/domain"
)

func testOrder(side domain.Side) *domain.Order {
	return &domain.Order{
		OrderID: "ORD-1",
		Symbol:  "AAPL",
		Side:    side,
	}
}

func testFill(id string, qty int64, price string, ts time.Time) domain.Fill {
	return domain.Fill{
		FillID:    id,
		Price:     decimal.RequireFromString(price),
		Quantity:  qty,
		Timestamp: ts,
		Venue:     "SIM",
	}
}

func TestRecord_CommissionExact(t *testing.T) {
	led := New(1, nil) // 1 bps

	exec := led.Record(testOrder(domain.SideBuy), testFill("F1", 40, "49.95", time.Now()))

	assert.Equal(t, "F1", exec.ExecutionID)
	assert.Equal(t, "ORD-1", exec.OrderID)
	assert.Equal(t, "AAPL", exec.Symbol)
	// 40 * 49.95 * 0.0001 = 0.1998
	assert.True(t, exec.Commission.Equal(decimal.RequireFromString("0.1998")),
		"commission, got %s", exec.Commission)
}

func TestRecord_ZeroRate(t *testing.T) {
	led := New(0, nil)

	exec := led.Record(testOrder(domain.SideBuy), testFill("F1", 40, "49.95", time.Now()))
	assert.True(t, exec.Commission.IsZero())
}

func TestLedger_AppendOnly(t *testing.T) {
	led := New(1, nil)

	now := time.Now()
	for i, id := range []string{"F1", "F2", "F3"} {
		led.Record(testOrder(domain.SideBuy), testFill(id, int64(10+i), "50.00", now))
	}

	require.Equal(t, 3, led.Len())
	execs := led.Executions(Filter{})
	require.Len(t, execs, 3)
	assert.Equal(t, "F1", execs[0].ExecutionID)
	assert.Equal(t, "F3", execs[2].ExecutionID)

	// Mutating a returned slice never touches the ledger
	execs[0].Quantity = 999
	assert.Equal(t, int64(10), led.Executions(Filter{})[0].Quantity)
}

func TestExecutions_FilterAndPaging(t *testing.T) {
	led := New(1, nil)
	now := time.Now()

	led.Record(testOrder(domain.SideBuy), testFill("F1", 10, "50.00", now))
	led.Record(testOrder(domain.SideSell), testFill("F2", 20, "50.00", now))
	led.Record(testOrder(domain.SideBuy), testFill("F3", 30, "50.00", now))
	led.Record(testOrder(domain.SideBuy), testFill("F4", 40, "50.00", now))

	buys := led.Executions(Filter{Side: domain.SideBuy})
	require.Len(t, buys, 3)

	page := led.Executions(Filter{Side: domain.SideBuy, Limit: 2, Offset: 1})
	require.Len(t, page, 2)
	assert.Equal(t, "F3", page[0].ExecutionID)
	assert.Equal(t, "F4", page[1].ExecutionID)

	assert.Empty(t, led.Executions(Filter{Offset: 10}))
}

func TestTotalFilledNotional_Window(t *testing.T) {
	led := New(1, nil)

	old := time.Now().Add(-48 * time.Hour)
	led.Record(testOrder(domain.SideBuy), testFill("F1", 10, "100.00", old))
	led.Record(testOrder(domain.SideBuy), testFill("F2", 10, "50.00", time.Now()))

	// Unbounded: 1000 + 500
	assert.True(t, led.TotalFilledNotional(0).Equal(decimal.RequireFromString("1500")),
		"all-time notional")

	// Trailing 24h excludes the old execution
	assert.True(t, led.TotalFilledNotional(24*time.Hour).Equal(decimal.RequireFromString("500")),
		"windowed notional")
}

func TestTotalCommissions(t *testing.T) {
	led := New(1, nil)
	now := time.Now()

	led.Record(testOrder(domain.SideBuy), testFill("F1", 40, "49.95", now))
	led.Record(testOrder(domain.SideSell), testFill("F2", 60, "50.05", now))

	// 0.1998 + 0.3003 = 0.5001
	assert.True(t, led.TotalCommissions().Equal(decimal.RequireFromString("0.5001")),
		"total commissions, got %s", led.TotalCommissions())
}
