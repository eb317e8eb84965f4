package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/clock"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	marketdto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/market"
	"github.com/LavaJover/shvark-market-service/internal/usecase/bridge"
	"github.com/LavaJover/shvark-market-service/internal/usecase/market"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type marketStub struct {
	market.MarketUsecase
	repairLimit int
	reputation  *marketdto.ReputationInput
	trace       *marketdto.TraceInput
}

func (m *marketStub) Reputation(_ context.Context, in *marketdto.ReputationInput) (*marketdto.Reputation, error) {
	m.reputation = in
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &marketdto.Reputation{ResourceID: in.ResourceID, Score: 90, Signals: []string{}}, nil
}

func (m *marketStub) Trace(_ context.Context, in *marketdto.TraceInput) (*marketdto.Trace, error) {
	m.trace = in
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &marketdto.Trace{Orders: []*domain.Order{{OrderID: in.OrderID}}}, nil
}

func (m *marketStub) StatusSnapshot(context.Context) (*marketdto.StatusSnapshot, error) {
	return &marketdto.StatusSnapshot{Leases: marketdto.LeaseStats{StatusCount: marketdto.StatusCount{Total: 3}}}, nil
}

func (m *marketStub) ResourceIndex(context.Context) (*marketdto.ResourceIndex, error) {
	return nil, errors.New("open /var/lib/market/state.cbor: permission denied")
}

func (m *marketStub) Repair(_ context.Context, limit int) (*marketdto.RepairReport, error) {
	m.repairLimit = limit
	if limit < 0 {
		return nil, domain.InvalidArgument("limit must be >= 0")
	}
	return &marketdto.RepairReport{Processed: 2, Succeeded: 2}, nil
}

type auditStub struct{ limit int }

func (a *auditStub) Read(_ context.Context, limit int) ([]*domain.AuditEvent, error) {
	a.limit = limit
	return []*domain.AuditEvent{{ID: "evt-1", Kind: domain.AuditKind("order_created")}}, nil
}

type harness struct {
	server *httptest.Server
	market *marketStub
	audit  *auditStub
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "market_admin_requests_total"}))

	h := &harness{market: &marketStub{}, audit: &auditStub{}}
	bridgeUC := bridge.NewDefaultBridgeUsecase(nil, nil, nil, clock.Real(), quiet)
	admin := NewAdminHandler(h.market, bridgeUC, h.audit, reg, quiet)
	h.server = httptest.NewServer(admin.Router())
	t.Cleanup(h.server.Close)
	return h
}

func (h *harness) do(t *testing.T, method, path string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, h.server.URL+path, nil)
	require.NoError(t, err)
	resp, err := h.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	var health map[string]string
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/healthz", &health))
	assert.Equal(t, "ok", health["status"])

	resp, err := h.server.Client().Get(h.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "market_admin_requests_total")
}

func TestStatusAndAudit(t *testing.T) {
	h := newHarness(t)

	var snap marketdto.StatusSnapshot
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/v1/status", &snap))
	assert.Equal(t, 3, snap.Leases.Total)

	var tail struct {
		Events []domain.AuditEvent `json:"events"`
	}
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/v1/audit?limit=5", &tail))
	assert.Equal(t, 5, h.audit.limit)
	require.Len(t, tail.Events, 1)
	assert.Equal(t, "evt-1", tail.Events[0].ID)

	var bad errorBody
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/v1/audit?limit=ten", &bad))
	assert.Equal(t, domain.KindInvalidArgument, bad.Code)
}

func TestErrorsAreRedacted(t *testing.T) {
	h := newHarness(t)

	var body errorBody
	assert.Equal(t, http.StatusInternalServerError, h.do(t, http.MethodGet, "/v1/resources/index", &body))
	assert.Equal(t, domain.KindInternal, body.Code)
	assert.NotContains(t, body.Message, "/var/lib")
}

func TestBridgeRoutesAndRepair(t *testing.T) {
	h := newHarness(t)

	var routes struct {
		Routes []struct {
			FromChain string `json:"fromChain"`
		} `json:"routes"`
	}
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/v1/bridge/routes?fromChain=ton", &routes))
	require.NotEmpty(t, routes.Routes)
	for _, r := range routes.Routes {
		assert.Equal(t, "ton", r.FromChain)
	}

	var report marketdto.RepairReport
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/v1/repair?limit=10", &report))
	assert.Equal(t, 10, h.market.repairLimit)
	assert.Equal(t, 2, report.Succeeded)

	var body errorBody
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPost, "/v1/repair?limit=-1", &body))
	assert.Equal(t, http.StatusMethodNotAllowed, h.do(t, http.MethodGet, "/v1/repair", nil))
}

func TestReputationAndTrace(t *testing.T) {
	h := newHarness(t)

	var rep marketdto.Reputation
	path := "/v1/reputation?resourceId=R1&since=2026-03-01T00:00:00Z&until=2026-03-02T00:00:00Z&limit=50"
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, path, &rep))
	assert.Equal(t, 90, rep.Score)
	require.NotNil(t, h.market.reputation)
	assert.Equal(t, "R1", h.market.reputation.ResourceID)
	assert.Equal(t, 50, h.market.reputation.Limit)
	require.NotNil(t, h.market.reputation.Since)
	assert.True(t, h.market.reputation.Since.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))

	var bad errorBody
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/v1/reputation?resourceId=R1&since=yesterday", &bad))
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/v1/reputation", &bad))

	var trace marketdto.Trace
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/v1/trace?orderId=O1&limit=20", &trace))
	require.Len(t, trace.Orders, 1)
	assert.Equal(t, "O1", trace.Orders[0].OrderID)
	assert.Equal(t, 20, h.market.trace.Limit)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/v1/trace", &bad))
	assert.Equal(t, domain.KindInvalidArgument, bad.Code)
}
