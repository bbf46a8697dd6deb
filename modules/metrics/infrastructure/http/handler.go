// Package http exposes the dashboard aggregates over HTTP.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rai/storefront-triggers/modules/metrics/application/queries"
	"github.com/rai/storefront-triggers/modules/metrics/domain"
)

type Handler struct {
	getGlobal       *queries.GetGlobalMetricsHandler
	getDaily        *queries.GetDailyStatsHandler
	listDaily       *queries.ListDailyStatsHandler
	getProductSales *queries.GetProductSalesHandler
}

// RegisterRoutes registers the metrics module routes to the given mux.
func RegisterRoutes(
	mux *http.ServeMux,
	getGlobal *queries.GetGlobalMetricsHandler,
	getDaily *queries.GetDailyStatsHandler,
	listDaily *queries.ListDailyStatsHandler,
	getProductSales *queries.GetProductSalesHandler,
) {
	h := &Handler{
		getGlobal:       getGlobal,
		getDaily:        getDaily,
		listDaily:       listDaily,
		getProductSales: getProductSales,
	}

	mux.HandleFunc("GET /api/v1/metrics/global", h.handleGetGlobal)
	mux.HandleFunc("GET /api/v1/metrics/daily", h.handleListDaily)
	mux.HandleFunc("GET /api/v1/metrics/daily/{date}", h.handleGetDaily)
	mux.HandleFunc("GET /api/v1/metrics/products/{productID}", h.handleGetProductSales)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleGetGlobal(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.getGlobal.Handle(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (h *Handler) handleGetDaily(w http.ResponseWriter, r *http.Request) {
	query := queries.GetDailyStatsQuery{Date: r.PathValue("date")}
	stats, err := h.getDaily.Handle(r.Context(), query)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleListDaily(w http.ResponseWriter, r *http.Request) {
	query := queries.ListDailyStatsQuery{
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	}
	result, err := h.listDaily.Handle(r.Context(), query)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetProductSales(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productID")
	if productID == "" {
		writeError(w, http.StatusBadRequest, "product ID is required")
		return
	}

	summary, err := h.getProductSales.Handle(r.Context(), queries.GetProductSalesQuery{ProductID: productID})
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrGlobalMetricsNotFound),
		errors.Is(err, domain.ErrDailyStatsNotFound),
		errors.Is(err, domain.ErrProductSalesNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidDate), errors.Is(err, domain.ErrInvalidDateRange):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
