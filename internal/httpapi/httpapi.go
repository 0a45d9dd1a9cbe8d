// Package httpapi serves the read-only order listing over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/lastclick/internal/metrics"
	"github.com/roach88/lastclick/internal/model"
	"github.com/roach88/lastclick/internal/store"
)

// DefaultPageSize applies when page_size is omitted.
const DefaultPageSize = 50

// MaxPageSize caps page_size.
const MaxPageSize = 1000

// OrderReader is the read side of the store.
type OrderReader interface {
	PageOrders(ctx context.Context, page, pageSize int) ([]model.Order, error)
	CountOrders(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// OrdersPage is the body of GET /orders.
type OrdersPage struct {
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Total    int64         `json:"total"`
	Orders   []model.Order `json:"orders"`
}

type Handler struct {
	orders  OrderReader
	metrics http.Handler
}

func NewHandler(orders OrderReader, metrics http.Handler) *Handler {
	return &Handler{orders: orders, metrics: metrics}
}

func (h *Handler) RegisterRoutes(router *chi.Mux) {
	router.Get("/orders", h.listOrders)
	router.Get("/healthz", h.healthz)
	if h.metrics != nil {
		router.Method(http.MethodGet, "/metrics", h.metrics)
	}
}

// NewRouter builds the full read API. With a non-nil registry every request
// is counted and the registry is exposed on /metrics.
func NewRouter(orders OrderReader, reg *metrics.Registry) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(reg))

	var metricsHandler http.Handler
	if reg != nil {
		metricsHandler = reg.Handler()
	}
	NewHandler(orders, metricsHandler).RegisterRoutes(router)
	return router
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	pageSize, err := intParam(r, "page_size", DefaultPageSize)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	orders, err := h.orders.PageOrders(r.Context(), page, pageSize)
	if err != nil {
		if errors.Is(err, store.ErrInvalidPage) {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		slog.Error("page orders failed", "error", err)
		respondError(w, http.StatusInternalServerError, errors.New("storage unavailable"))
		return
	}
	total, err := h.orders.CountOrders(r.Context())
	if err != nil {
		slog.Error("count orders failed", "error", err)
		respondError(w, http.StatusInternalServerError, errors.New("storage unavailable"))
		return
	}

	respond(w, http.StatusOK, OrdersPage{
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		Orders:   orders,
	})
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("storage unavailable"))
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return n, nil
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respond(w, status, map[string]string{"error": err.Error()})
}

func requestLogger(reg *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			if reg != nil {
				reg.ObserveRequest(r.Method, route, status, elapsed)
			}
			slog.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", elapsed,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
