package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/hype-store/internal/domain/order"
)

const (
	msgConfirmed     = "Pedido confirmado com sucesso!"
	msgInvalidOrder  = "Dados do pedido inválidos"
	msgConfirmFailed = "Erro ao confirmar pedido"
	msgListFailed    = "Erro ao buscar pedidos"
	msgNotFound      = "Pedido não encontrado"
	msgGetFailed     = "Erro ao buscar pedido"
	msgInvalidStatus = "Status inválido"
	msgStatusFailed  = "Erro ao atualizar status"
)

// ConfirmOrder handles POST /confirmar-pedido.
func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, apiError{withSuccess: true, message: msgInvalidOrder, details: err.Error()})
		return
	}
	req, err := decodeConfirmRequest(data)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, apiError{withSuccess: true, message: msgInvalidOrder, details: err.Error()})
		return
	}

	result, err := h.orders.Confirm(r.Context(), req)
	if err != nil {
		var vErr *order.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, r, http.StatusBadRequest, apiError{withSuccess: true, message: msgInvalidOrder, details: vErr.Error()})
			return
		}
		zctx.From(r.Context()).Error("Confirm order failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, apiError{withSuccess: true, message: msgConfirmFailed, details: err.Error()})
		return
	}

	writeJSON(w, r, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("message")
		e.Str(msgConfirmed)
		e.FieldStart("pedidoId")
		e.Int64(result.Order.ID)
		e.ObjEnd()
	})
}

// ListOrders handles GET /pedidos.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.orders.List(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("List orders failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, apiError{message: msgListFailed, details: err.Error()})
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, s := range summaries {
			EncodeOrderSummary(e, s)
		}
		e.ArrEnd()
	})
}

// GetOrder handles GET /pedidos/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, apiError{message: msgNotFound})
		return
	}

	details, err := h.orders.Get(r.Context(), id)
	switch {
	case errors.Is(err, order.ErrNotFound):
		writeError(w, r, http.StatusNotFound, apiError{message: msgNotFound})
		return
	case err != nil:
		zctx.From(r.Context()).Error("Get order failed", zap.Int64("order_id", id), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, apiError{message: msgGetFailed})
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		encodeDetails(e, details)
	})
}

// UpdateStatus handles PUT /pedidos/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, apiError{message: msgNotFound})
		return
	}

	data, err := readBody(w, r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, apiError{message: msgInvalidStatus, details: err.Error()})
		return
	}
	status, err := decodeStatus(data)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, apiError{message: msgInvalidStatus, details: err.Error()})
		return
	}

	updated, err := h.orders.SetStatus(r.Context(), id, status)
	if err != nil {
		var vErr *order.ValidationError
		switch {
		case errors.As(err, &vErr):
			writeError(w, r, http.StatusBadRequest, apiError{message: msgInvalidStatus, details: vErr.Error()})
		case errors.Is(err, order.ErrNotFound):
			writeError(w, r, http.StatusNotFound, apiError{message: msgNotFound})
		default:
			zctx.From(r.Context()).Error("Update status failed", zap.Int64("order_id", id), zap.Error(err))
			writeError(w, r, http.StatusInternalServerError, apiError{message: msgStatusFailed})
		}
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, updated)
	})
}

// orderID parses the {id} path parameter. Identifiers that are not
// positive integers within the SERIAL column range cannot match any order.
func orderID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 32)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}
