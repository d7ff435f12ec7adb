//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/hype-store/internal/domain/order"
)

var testDatabaseURL string

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "store",
				"POSTGRES_PASSWORD": "store",
				"POSTGRES_DB":       "store",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := ctr.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := ctr.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}
	testDatabaseURL = fmt.Sprintf("postgres://store:store@%s:%s/store?sslmode=disable", host, port.Port())

	return m.Run()
}

// --- Helpers ---

func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pool, err := NewPool(ctx, testDatabaseURL, PoolConfig{MaxConns: 16})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Applying the schema twice must be harmless.
	require.NoError(t, RunMigrations(ctx, pool))

	_, err = pool.Exec(ctx, `TRUNCATE TABLE produtos_pedido, pedidos RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

func newTestService(t *testing.T, pool *pgxpool.Pool) *order.Service {
	t.Helper()
	svc, err := order.NewService(NewOrderRepository(pool), tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	return svc
}

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func request(total string, cart ...order.CartEntry) order.ConfirmRequest {
	return order.ConfirmRequest{
		CustomerName: "Ana",
		Address:      "Rua das Flores, 10",
		Phone:        "11999990000",
		Total:        price(total),
		Cart:         cart,
	}
}

func camiseta(qty int) order.CartEntry {
	return order.CartEntry{Name: "Camiseta", Price: price("29.90"), Quantity: qty}
}

// --- Tests ---

func TestConfirm_PersistsHeaderAndLines(t *testing.T) {
	ctx := context.Background()
	pool := openTestPool(t)
	svc := newTestService(t, pool)

	note := "entregar após 18h"
	req := request("75.80", camiseta(2), order.CartEntry{Name: "Boné", Price: price("16.00")})
	req.Note = &note

	result, err := svc.Confirm(ctx, req)
	require.NoError(t, err)
	assert.NotZero(t, result.Order.ID)
	assert.Equal(t, order.StatusPending, result.Order.Status)
	assert.False(t, result.Order.CreatedAt.IsZero())

	got, err := svc.Get(ctx, result.Order.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Order.Note)
	assert.Equal(t, note, *got.Order.Note)
	assert.True(t, decimal.RequireFromString("75.80").Equal(got.Order.Total))
	require.Len(t, got.Lines, 2)
	assert.Equal(t, result.Lines, got.Lines)
	assert.Equal(t, 2, got.Lines[0].Quantity)
	assert.Equal(t, 1, got.Lines[1].Quantity)
	assert.Equal(t, "Boné", got.Lines[1].ProductName)
}

func TestConfirm_RollbackOnConstraintViolation(t *testing.T) {
	tests := []struct {
		name  string
		entry order.CartEntry
	}{
		{"blank product name", order.CartEntry{Name: "", Price: price("5.00"), Quantity: 1}},
		{"whitespace-only product name", order.CartEntry{Name: "   ", Price: price("5.00"), Quantity: 1}},
		{"missing price", order.CartEntry{Name: "Meia", Quantity: 1}},
		{"price out of range", order.CartEntry{Name: "Relógio", Price: price("123456789.00"), Quantity: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := openTestPool(t)
			svc := newTestService(t, pool)

			_, err := svc.Confirm(context.Background(), request("29.90", camiseta(1), tt.entry))

			var txErr *order.TxError
			require.ErrorAs(t, err, &txErr)
			assert.Zero(t, countRows(t, pool, "pedidos"), "header must be rolled back")
			assert.Zero(t, countRows(t, pool, "produtos_pedido"), "lines must be rolled back")
		})
	}
}

func TestConfirm_HeaderViolationOpensNoPartialState(t *testing.T) {
	pool := openTestPool(t)
	svc := newTestService(t, pool)

	req := request("10.00", camiseta(1))
	req.Phone = "+55 (11) 99999-0000 ramal 12"

	_, err := svc.Confirm(context.Background(), req)
	var txErr *order.TxError
	require.ErrorAs(t, err, &txErr)
	assert.Contains(t, err.Error(), "insert order")
	assert.Zero(t, countRows(t, pool, "pedidos"))
	assert.Zero(t, countRows(t, pool, "produtos_pedido"))
}

func TestWithinTx_CancelledContextRollsBack(t *testing.T) {
	pool := openTestPool(t)
	repo := NewOrderRepository(pool)

	ctx, cancel := context.WithCancel(context.Background())
	err := repo.WithinTx(ctx, func(tx order.Tx) error {
		o := &order.Order{CustomerName: "Ana", Address: "Rua", Phone: "1", Total: decimal.NewFromInt(1)}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return err
		}
		cancel()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, countRows(t, pool, "pedidos"))
}

func TestConfirm_Concurrent(t *testing.T) {
	const workers = 24
	ctx := context.Background()
	pool := openTestPool(t)
	svc := newTestService(t, pool)

	g, gctx := errgroup.WithContext(ctx)
	for i := range workers {
		g.Go(func() error {
			cart := []order.CartEntry{camiseta(1), camiseta(2), camiseta(3)}
			if i%3 == 0 {
				// Every third submission carries a malformed last entry.
				cart[2].Name = ""
			}
			_, err := svc.Confirm(gctx, request("10.00", cart...))
			var txErr *order.TxError
			if i%3 == 0 && errors.As(err, &txErr) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	const committed = workers - workers/3
	assert.Equal(t, committed, countRows(t, pool, "pedidos"))
	assert.Equal(t, committed*3, countRows(t, pool, "produtos_pedido"))

	summaries, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, committed)
	for _, s := range summaries {
		assert.Equal(t, int64(3), s.LineCount, "order %d is partial", s.ID)
	}

	report, err := svc.SalesReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(committed), report.OrderCount)
	assert.True(t, decimal.NewFromInt(10*committed).Equal(report.TotalSales))
	assert.True(t, decimal.NewFromInt(10).Equal(report.AverageOrder))
}

func TestSalesReport(t *testing.T) {
	ctx := context.Background()
	pool := openTestPool(t)
	svc := newTestService(t, pool)

	report, err := svc.SalesReport(ctx)
	require.NoError(t, err)
	assert.True(t, report.TotalSales.IsZero())
	assert.Zero(t, report.OrderCount)
	assert.True(t, report.AverageOrder.IsZero(), "average of no orders is zero")

	first, err := svc.Confirm(ctx, request("10.00"))
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, request("20.00"))
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, request("30.50"))
	require.NoError(t, err)

	report, err = svc.SalesReport(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("60.50").Equal(report.TotalSales))
	assert.Equal(t, int64(3), report.OrderCount)
	assert.Equal(t,
		report.TotalSales.Div(decimal.NewFromInt(3)).Round(8).String(),
		report.AverageOrder.Round(8).String(),
	)

	_, err = svc.SetStatus(ctx, first.Order.ID, order.StatusCancelled)
	require.NoError(t, err)

	report, err = svc.SalesReport(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("50.50").Equal(report.TotalSales))
	assert.Equal(t, int64(2), report.OrderCount)
	assert.True(t, decimal.RequireFromString("25.25").Equal(report.AverageOrder))

	_, err = svc.SetStatus(ctx, first.Order.ID, order.StatusShipped)
	require.NoError(t, err)

	report, err = svc.SalesReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.OrderCount)
}

func TestList_LineDerivedTotal(t *testing.T) {
	ctx := context.Background()
	pool := openTestPool(t)
	svc := newTestService(t, pool)

	older, err := svc.Confirm(ctx, request("1.00", camiseta(2)))
	require.NoError(t, err)
	newer, err := svc.Confirm(ctx, request("5.00"))
	require.NoError(t, err)

	summaries, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, newer.Order.ID, summaries[0].ID, "most recent first")
	assert.Zero(t, summaries[0].LineCount)
	assert.True(t, summaries[0].LinesTotal.IsZero())

	assert.Equal(t, older.Order.ID, summaries[1].ID)
	assert.Equal(t, int64(1), summaries[1].LineCount)
	assert.True(t, decimal.RequireFromString("59.80").Equal(summaries[1].LinesTotal))
	assert.True(t, decimal.RequireFromString("1.00").Equal(summaries[1].Total), "stored total is not reconciled")
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	pool := openTestPool(t)
	svc := newTestService(t, pool)

	_, err := svc.Get(ctx, 999)
	require.ErrorIs(t, err, order.ErrNotFound)

	_, err = svc.SetStatus(ctx, 999, order.StatusShipped)
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestUpdateStatus_TooLong(t *testing.T) {
	ctx := context.Background()
	pool := openTestPool(t)
	svc := newTestService(t, pool)

	created, err := svc.Confirm(ctx, request("1.00"))
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, created.Order.ID, "aguardando confirmação do pagamento")
	require.Error(t, err)
	assert.NotErrorIs(t, err, order.ErrNotFound)

	got, err := svc.Get(ctx, created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.Order.Status)
}
