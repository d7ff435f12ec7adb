// Command export-orders dumps the order list view as gzip-compressed JSON lines.
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"

	"github.com/xenking/hype-store/internal/domain/order"
	"github.com/xenking/hype-store/internal/handler"
	"github.com/xenking/hype-store/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		out         string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&out, "out", "orders.jsonl.gz", "output file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, out); err != nil {
		slog.Error("order export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL, out string) error {
	pool, err := postgres.NewPool(ctx, databaseURL, postgres.PoolConfig{MaxConns: 2})
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	summaries, err := postgres.NewOrderRepository(pool).List(ctx)
	if err != nil {
		return errors.Wrap(err, "list orders")
	}

	f, err := os.Create(out)
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	if err := writeOrders(f, summaries); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close output")
	}

	slog.Info("orders exported", slog.Int("count", len(summaries)), slog.String("out", out))
	return nil
}

// writeOrders writes one JSON object per order through a parallel gzip writer.
func writeOrders(w io.Writer, summaries []order.Summary) error {
	zw := pgzip.NewWriter(w)
	bw := bufio.NewWriter(zw)

	e := new(jx.Encoder)
	for _, s := range summaries {
		e.Reset()
		handler.EncodeOrderSummary(e, s)
		if _, err := bw.Write(e.Bytes()); err != nil {
			return errors.Wrapf(err, "write order %d", s.ID)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return errors.Wrapf(err, "write order %d", s.ID)
		}
	}

	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "flush")
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "close gzip")
	}
	return nil
}
