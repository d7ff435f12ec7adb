// Package handler exposes the order service over HTTP.
package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/hype-store/internal/domain/order"
)

// maxBodyBytes limits request bodies accepted by the API.
const maxBodyBytes = 1 << 20

// Orders is the subset of the order service used by the handlers.
type Orders interface {
	Confirm(ctx context.Context, req order.ConfirmRequest) (*order.Details, error)
	Get(ctx context.Context, id int64) (*order.Details, error)
	List(ctx context.Context) ([]order.Summary, error)
	SetStatus(ctx context.Context, id int64, status order.Status) (*order.Order, error)
	SalesReport(ctx context.Context) (*order.SalesReport, error)
}

var _ Orders = (*order.Service)(nil)

// Handler serves the storefront order endpoints.
type Handler struct {
	orders Orders
}

// NewHandler constructs a Handler on top of the order service.
func NewHandler(orders Orders) *Handler {
	return &Handler{orders: orders}
}

// Register mounts the order and report routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/confirmar-pedido", h.ConfirmOrder)
	r.Get("/pedidos", h.ListOrders)
	r.Get("/pedidos/{id}", h.GetOrder)
	r.Put("/pedidos/{id}/status", h.UpdateStatus)
	r.Get("/relatorios/vendas", h.SalesReport)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if _, err := w.Write(e.Bytes()); err != nil {
		zctx.From(r.Context()).Debug("Write response failed", zap.Error(err))
	}
}

// apiError is the error body shared by all endpoints. Success is only
// rendered for the confirmation endpoint, details only when set.
type apiError struct {
	withSuccess bool
	message     string
	details     string
}

func writeError(w http.ResponseWriter, r *http.Request, code int, body apiError) {
	writeJSON(w, r, code, func(e *jx.Encoder) {
		e.ObjStart()
		if body.withSuccess {
			e.FieldStart("success")
			e.Bool(false)
		}
		e.FieldStart("error")
		e.Str(body.message)
		if body.details != "" {
			e.FieldStart("details")
			e.Str(body.details)
		}
		e.ObjEnd()
	})
}
