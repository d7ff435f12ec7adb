package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the order status stored on the header row. The set of values is
// open: callers may write any non-empty string.
type Status string

// Well-known status values. Only StatusPending (assigned by the store) and
// StatusCancelled (excluded from sales) carry meaning for this package.
const (
	StatusPending   Status = "pendente"
	StatusConfirmed Status = "confirmado"
	StatusShipped   Status = "enviado"
	StatusDelivered Status = "entregue"
	StatusCancelled Status = "cancelado"
)

// CountsAsSale reports whether an order in this status contributes to the
// sales aggregate.
func (s Status) CountsAsSale() bool {
	return s != StatusCancelled
}

// Order is one confirmed checkout (the order header).
type Order struct {
	ID           int64
	CustomerName string
	Address      string
	Phone        string
	// Note is the optional free-text message; nil means none was sent.
	Note *string
	// Total is caller-supplied and persisted verbatim. It is never derived
	// from the lines.
	Total     decimal.Decimal
	CreatedAt time.Time
	Status    Status
}

// Line is one product entry within an order, with the name and price
// captured at order time.
type Line struct {
	ID          int64
	OrderID     int64
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
}

// CartEntry is one product line as submitted by the caller.
type CartEntry struct {
	Name string
	// Price is invalid when the caller did not send a usable price. Such an
	// entry is rejected by the store and rolls back the whole order.
	Price    decimal.NullDecimal
	Quantity int
}

// NormalizeQuantity coerces a requested quantity to an integer >= 1.
func NormalizeQuantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

// Summary is an order header enriched with figures derived from its lines.
// LinesTotal is informational and may disagree with Order.Total.
type Summary struct {
	Order
	LineCount  int64
	LinesTotal decimal.Decimal
}

// Details is an order header together with its lines.
type Details struct {
	Order *Order
	Lines []Line
}

// SalesReport aggregates every order whose status counts as a sale.
type SalesReport struct {
	TotalSales   decimal.Decimal
	OrderCount   int64
	AverageOrder decimal.Decimal
}

// Tx exposes the writes allowed inside a confirmation transaction.
type Tx interface {
	// CreateOrder inserts the header and fills in ID, CreatedAt and Status
	// as assigned by the store.
	CreateOrder(ctx context.Context, o *Order) error
	// AddLine inserts one line for an order created in the same transaction.
	AddLine(ctx context.Context, orderID int64, e CartEntry) (*Line, error)
}

// Repository defines persistence operations for orders.
type Repository interface {
	// WithinTx runs fn in a single transaction. Writes made through tx are
	// committed together when fn returns nil and rolled back otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Get(ctx context.Context, id int64) (*Order, error)
	Lines(ctx context.Context, orderID int64) ([]Line, error)
	List(ctx context.Context) ([]Summary, error)
	UpdateStatus(ctx context.Context, id int64, status Status) (*Order, error)
	SalesReport(ctx context.Context) (*SalesReport, error)
}
