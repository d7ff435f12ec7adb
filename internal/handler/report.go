package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

const msgReportFailed = "Erro ao gerar relatório"

// SalesReport handles GET /relatorios/vendas.
func (h *Handler) SalesReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.orders.SalesReport(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("Sales report failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, apiError{message: msgReportFailed, details: err.Error()})
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		encodeSalesReport(e, report)
	})
}
