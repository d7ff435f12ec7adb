package order

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/xenking/hype-store/internal/domain/order"

// ConfirmRequest holds the input for confirming a cart as an order.
type ConfirmRequest struct {
	CustomerName string
	Address      string
	Phone        string
	Note         *string
	Total        decimal.NullDecimal
	Cart         []CartEntry
}

// Validate checks the header fields. Cart entries are left to the store.
func (r ConfirmRequest) Validate() error {
	required := []struct {
		field, value string
	}{
		{"nome_cliente", r.CustomerName},
		{"endereco_cliente", r.Address},
		{"telefone_cliente", r.Phone},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.field, Reason: "required"}
		}
	}
	if !r.Total.Valid {
		return &ValidationError{Field: "total", Reason: "must be a number"}
	}
	return nil
}

// Service owns the confirmation workflow, status updates and reporting.
type Service struct {
	orders Repository
	tracer trace.Tracer

	confirmed     metric.Int64Counter
	rolledBack    metric.Int64Counter
	statusChanges metric.Int64Counter
}

// NewService creates an order Service on top of the given repository.
func NewService(orders Repository, tp trace.TracerProvider, mp metric.MeterProvider) (*Service, error) {
	meter := mp.Meter(instrumentationName)

	confirmed, err := meter.Int64Counter("store.orders.confirmed",
		metric.WithDescription("Orders committed by the confirmation workflow"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders confirmed counter")
	}
	rolledBack, err := meter.Int64Counter("store.orders.rolled_back",
		metric.WithDescription("Confirmation transactions rolled back"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders rolled back counter")
	}
	statusChanges, err := meter.Int64Counter("store.orders.status_changes",
		metric.WithDescription("Order status overwrites"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "status changes counter")
	}

	return &Service{
		orders:        orders,
		tracer:        tp.Tracer(instrumentationName),
		confirmed:     confirmed,
		rolledBack:    rolledBack,
		statusChanges: statusChanges,
	}, nil
}

// Confirm persists the order header and all of its lines in one
// transaction. Either everything is committed or nothing is.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*Details, error) {
	ctx, span := s.tracer.Start(ctx, "order.Confirm",
		trace.WithAttributes(attribute.Int("order.cart_size", len(req.Cart))),
	)
	defer span.End()

	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	o := &Order{
		CustomerName: req.CustomerName,
		Address:      req.Address,
		Phone:        req.Phone,
		Note:         req.Note,
		Total:        req.Total.Decimal,
	}
	var lines []Line
	err := s.orders.WithinTx(ctx, func(tx Tx) error {
		if err := tx.CreateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "insert order")
		}
		lines = make([]Line, 0, len(req.Cart))
		for i, entry := range req.Cart {
			entry.Quantity = NormalizeQuantity(entry.Quantity)
			line, err := tx.AddLine(ctx, o.ID, entry)
			if err != nil {
				return errors.Wrapf(err, "insert line %d", i)
			}
			lines = append(lines, *line)
		}
		return nil
	})
	if err != nil {
		s.rolledBack.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction rolled back")
		zctx.From(ctx).Warn("Order confirmation rolled back",
			zap.Int("cart_size", len(req.Cart)),
			zap.Error(err),
		)
		return nil, &TxError{Err: err}
	}

	s.confirmed.Add(ctx, 1)
	span.SetAttributes(attribute.Int64("order.id", o.ID))
	zctx.From(ctx).Info("Order confirmed",
		zap.Int64("order_id", o.ID),
		zap.Int("lines", len(lines)),
		zap.Stringer("total", o.Total),
	)

	return &Details{Order: o, Lines: lines}, nil
}

// Get returns the order header and the lines inserted at confirmation time.
func (s *Service) Get(ctx context.Context, id int64) (*Details, error) {
	ctx, span := s.tracer.Start(ctx, "order.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	o, err := s.orders.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
		}
		return nil, err
	}
	lines, err := s.orders.Lines(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "get lines")
	}
	return &Details{Order: o, Lines: lines}, nil
}

// List returns every order with its line count and line-derived total,
// most recent first.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	ctx, span := s.tracer.Start(ctx, "order.List")
	defer span.End()

	summaries, err := s.orders.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "list orders")
	}
	return summaries, nil
}

// SetStatus overwrites the status of an order. No transition rules apply.
func (s *Service) SetStatus(ctx context.Context, id int64, status Status) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.SetStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	if strings.TrimSpace(string(status)) == "" {
		return nil, &ValidationError{Field: "status", Reason: "required"}
	}

	o, err := s.orders.UpdateStatus(ctx, id, status)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
		}
		return nil, err
	}

	s.statusChanges.Add(ctx, 1, metric.WithAttributes(attribute.Bool("counts_as_sale", status.CountsAsSale())))
	zctx.From(ctx).Info("Order status updated",
		zap.Int64("order_id", id),
		zap.String("status", string(status)),
	)
	return o, nil
}

// SalesReport returns the live sales aggregate over orders that count as sales.
func (s *Service) SalesReport(ctx context.Context) (*SalesReport, error) {
	ctx, span := s.tracer.Start(ctx, "order.SalesReport")
	defer span.End()

	report, err := s.orders.SalesReport(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "sales report")
	}
	return report, nil
}
