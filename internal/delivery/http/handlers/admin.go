// Package handlers serves the operator HTTP surface: health, metrics and read-only
// views of the market state.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	bridgedto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/bridge"
	marketdto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/market"
	"github.com/LavaJover/shvark-market-service/internal/usecase/bridge"
	"github.com/LavaJover/shvark-market-service/internal/usecase/market"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestTimeout = 10 * time.Second

// AuditReader is the slice of the audit recorder the admin surface needs.
type AuditReader interface {
	Read(ctx context.Context, limit int) ([]*domain.AuditEvent, error)
}

type AdminHandler struct {
	market   market.MarketUsecase
	bridge   bridge.BridgeUsecase
	audit    AuditReader
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

func NewAdminHandler(
	marketUC market.MarketUsecase,
	bridgeUC bridge.BridgeUsecase,
	auditReader AuditReader,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		market:   marketUC,
		bridge:   bridgeUC,
		audit:    auditReader,
		gatherer: gatherer,
		logger:   logger,
	}
}

func (h *AdminHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", h.status)
		r.Get("/reputation", h.reputation)
		r.Get("/trace", h.trace)
		r.Get("/resources/index", h.resourceIndex)
		r.Get("/audit", h.auditTail)
		r.Get("/bridge/routes", h.bridgeRoutes)
		r.Post("/repair", h.repair)
	})
	return r
}

func (h *AdminHandler) status(w http.ResponseWriter, r *http.Request) {
	snap, err := h.market.StatusSnapshot(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *AdminHandler) reputation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := &marketdto.ReputationInput{
		ProviderActorID: q.Get("providerActorId"),
		ResourceID:      q.Get("resourceId"),
	}
	var err error
	if in.Since, err = queryTime(r, "since"); err != nil {
		h.writeError(w, err)
		return
	}
	if in.Until, err = queryTime(r, "until"); err != nil {
		h.writeError(w, err)
		return
	}
	if in.Limit, err = queryInt(r, "limit", 0); err != nil {
		h.writeError(w, err)
		return
	}
	rep, err := h.market.Reputation(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *AdminHandler) trace(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out, err := h.market.Trace(r.Context(), &marketdto.TraceInput{
		OfferID:      q.Get("offerId"),
		AssetID:      q.Get("assetId"),
		OrderID:      q.Get("orderId"),
		BuyerID:      q.Get("buyerId"),
		ConsentID:    q.Get("consentId"),
		DeliveryID:   q.Get("deliveryId"),
		SettlementID: q.Get("settlementId"),
		Limit:        limit,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) resourceIndex(w http.ResponseWriter, r *http.Request) {
	index, err := h.market.ResourceIndex(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, index)
}

func (h *AdminHandler) auditTail(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", domain.DefaultAuditReadLimit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	events, err := h.audit.Read(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *AdminHandler) bridgeRoutes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.bridge.Routes(r.Context(), &bridgedto.RoutesInput{
		FromChain:   q.Get("fromChain"),
		ToChain:     q.Get("toChain"),
		AssetSymbol: q.Get("asset"),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) repair(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.writeError(w, err)
		return
	}
	report, err := h.market.Repair(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.InvalidArgument("%s must be an integer", key)
	}
	return n, nil
}

func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, domain.InvalidArgument("%s must be an RFC 3339 timestamp", key)
	}
	return &t, nil
}

type errorBody struct {
	Code    domain.ErrorKind  `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (h *AdminHandler) writeError(w http.ResponseWriter, err error) {
	e := domain.Normalize(err)
	code := httpStatus(e.Kind)
	if code >= http.StatusInternalServerError {
		h.logger.Error("admin request failed", "error", err, "cause", errors.Unwrap(e))
	}
	writeJSON(w, code, errorBody{Code: e.Kind, Message: e.Message, Details: e.Details})
}

func httpStatus(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	case domain.KindAuthRequired:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict, domain.KindExpired, domain.KindRevoked:
		return http.StatusConflict
	case domain.KindQuotaExceeded:
		return http.StatusTooManyRequests
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
