package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
	"time"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/hype-store/internal/domain/order"
)

func TestWriteOrders(t *testing.T) {
	summaries := []order.Summary{
		{
			Order: order.Order{
				ID: 2, CustomerName: "Bruno", Address: "Av. Central, 5", Phone: "21988887777",
				Total: decimal.RequireFromString("10.00"), CreatedAt: time.Now(), Status: order.StatusCancelled,
			},
		},
		{
			Order: order.Order{
				ID: 1, CustomerName: "Ana", Address: "Rua das Flores, 10", Phone: "11999990000",
				Total: decimal.RequireFromString("59.80"), CreatedAt: time.Now(), Status: order.StatusPending,
			},
			LineCount:  1,
			LinesTotal: decimal.RequireFromString("59.80"),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeOrders(&buf, summaries))

	zr, err := pgzip.NewReader(&buf)
	require.NoError(t, err)
	defer zr.Close()

	var ids []float64
	sc := bufio.NewScanner(zr)
	for sc.Scan() {
		var row map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &row))
		ids = append(ids, row["id"].(float64))
		assert.Contains(t, row, "valor_total")
		assert.Contains(t, row, "total_produtos")
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []float64{2, 1}, ids)
}

func TestWriteOrders_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOrders(&buf, nil))

	zr, err := pgzip.NewReader(&buf)
	require.NoError(t, err)
	defer zr.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(zr)
	require.NoError(t, err)
	assert.Zero(t, out.Len())
}
