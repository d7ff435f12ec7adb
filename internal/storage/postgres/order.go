package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/hype-store/internal/domain/order"
)

const orderColumns = `id, nome_cliente, endereco_cliente, telefone_cliente, mensagem_cliente,
		total, data_pedido, status`

const (
	insertOrderSQL = `INSERT INTO pedidos (nome_cliente, endereco_cliente, telefone_cliente, mensagem_cliente, total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, data_pedido, status`

	insertLineSQL = `INSERT INTO produtos_pedido (pedido_id, produto_nome, produto_preco, quantidade)
		VALUES ($1, $2, $3, $4)
		RETURNING id, produto_preco`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM pedidos WHERE id = $1`

	listLinesSQL = `SELECT id, pedido_id, produto_nome, produto_preco, quantidade
		FROM produtos_pedido WHERE pedido_id = $1 ORDER BY id`

	listSummariesSQL = `SELECT p.id, p.nome_cliente, p.endereco_cliente, p.telefone_cliente, p.mensagem_cliente,
		p.total, p.data_pedido, p.status,
		COUNT(pp.id),
		COALESCE(SUM(pp.produto_preco * pp.quantidade), 0)
		FROM pedidos p
		LEFT JOIN produtos_pedido pp ON p.id = pp.pedido_id
		GROUP BY p.id
		ORDER BY p.data_pedido DESC, p.id DESC`

	updateStatusSQL = `UPDATE pedidos SET status = $1 WHERE id = $2 RETURNING ` + orderColumns

	salesReportSQL = `SELECT COALESCE(SUM(total), 0),
		COUNT(id),
		CASE WHEN COUNT(id) > 0 THEN SUM(total) / COUNT(id) ELSE 0 END
		FROM pedidos
		WHERE status <> $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// WithinTx runs fn in a READ COMMITTED transaction on a connection borrowed
// from the pool. The transaction is rolled back on any error or panic in fn,
// even when ctx has already been cancelled.
func (r *OrderRepository) WithinTx(ctx context.Context, fn func(tx order.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		// No-op once committed.
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(&orderTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// orderTx performs the confirmation writes on an open transaction.
type orderTx struct {
	q DBTX
}

func (t *orderTx) CreateOrder(ctx context.Context, o *order.Order) error {
	var status string
	err := t.q.QueryRow(ctx, insertOrderSQL,
		o.CustomerName, o.Address, o.Phone, o.Note, o.Total,
	).Scan(&o.ID, &o.CreatedAt, &status)
	if err != nil {
		return describe(err)
	}
	o.Status = order.Status(status)
	return nil
}

func (t *orderTx) AddLine(ctx context.Context, orderID int64, e order.CartEntry) (*order.Line, error) {
	l := order.Line{
		OrderID:     orderID,
		ProductName: e.Name,
		Quantity:    e.Quantity,
	}
	err := t.q.QueryRow(ctx, insertLineSQL,
		orderID, e.Name, e.Price, e.Quantity,
	).Scan(&l.ID, &l.UnitPrice)
	if err != nil {
		return nil, describe(err)
	}
	return &l, nil
}

// Get returns the order header with the given id or order.ErrNotFound.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	return &o, nil
}

// Lines returns the lines of an order in insertion order.
func (r *OrderRepository) Lines(ctx context.Context, orderID int64) ([]order.Line, error) {
	rows, err := r.pool.Query(ctx, listLinesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing lines of order %d: %w", orderID, err)
	}
	return pgx.CollectRows(rows, scanLine)
}

// List returns every order with its line count and line-derived total,
// most recent first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Summary, error) {
	rows, err := r.pool.Query(ctx, listSummariesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanSummary)
}

// UpdateStatus overwrites the status of an order and returns the updated row.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status order.Status) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, updateStatusSQL, string(status), id)
	if err != nil {
		return nil, fmt.Errorf("updating status of order %d: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("updating status of order %d: %w", id, describe(err))
	}
	return &o, nil
}

// SalesReport computes the sales aggregate in a single query over the
// committed orders whose status counts as a sale.
func (r *OrderRepository) SalesReport(ctx context.Context) (*order.SalesReport, error) {
	var rep order.SalesReport
	err := r.pool.QueryRow(ctx, salesReportSQL, string(order.StatusCancelled)).Scan(
		&rep.TotalSales, &rep.OrderCount, &rep.AverageOrder,
	)
	if err != nil {
		return nil, fmt.Errorf("computing sales report: %w", err)
	}
	return &rep, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.CustomerName, &o.Address, &o.Phone, &o.Note,
		&o.Total, &o.CreatedAt, &status,
	)
	o.Status = order.Status(status)
	return o, err
}

func scanLine(row pgx.CollectableRow) (order.Line, error) {
	var l order.Line
	err := row.Scan(&l.ID, &l.OrderID, &l.ProductName, &l.UnitPrice, &l.Quantity)
	return l, err
}

func scanSummary(row pgx.CollectableRow) (order.Summary, error) {
	var (
		s      order.Summary
		status string
	)
	err := row.Scan(
		&s.ID, &s.CustomerName, &s.Address, &s.Phone, &s.Note,
		&s.Total, &s.CreatedAt, &status,
		&s.LineCount, &s.LinesTotal,
	)
	s.Status = order.Status(status)
	return s, err
}

// describe keeps the driver error in the chain and prefixes constraint
// violations with the offending constraint or column.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.ConstraintName != "":
		return errors.Wrapf(err, "constraint %s", pgErr.ConstraintName)
	case pgErr.ColumnName != "":
		return errors.Wrapf(err, "column %s", pgErr.ColumnName)
	default:
		return err
	}
}
