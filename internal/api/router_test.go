package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastprodman/ledgerengine/internal/metrics"
	"github.com/fastprodman/ledgerengine/internal/repos/accounts"
	"github.com/fastprodman/ledgerengine/internal/repos/accounts/memory"
	"github.com/fastprodman/ledgerengine/internal/services/engine"
	"github.com/fastprodman/ledgerengine/pkg/boundedqueue"
)

type testEnv struct {
	handler http.Handler
	queue   *boundedqueue.Queue[engine.Request]
	store   *memory.Store
	agg     *metrics.Aggregator
}

func newTestEnv(t *testing.T, capacity int) *testEnv {
	t.Helper()

	queue := boundedqueue.New[engine.Request](capacity)
	agg := metrics.New(queue.Len)
	store := memory.New(map[string]int64{"6219 8619 0001 8640": 5000})

	reg := prometheus.NewRegistry()
	reg.MustRegister(agg)

	h := NewHandler(engine.NewAdmission(queue, agg), agg, store)

	return &testEnv{
		handler: NewRouter(h, reg),
		queue:   queue,
		store:   store,
		agg:     agg,
	}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	return rec
}

func TestSubmitTransaction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantQueued int
	}{
		{name: "account_id", body: `{"account_id":"a","amount":100}`, wantStatus: http.StatusAccepted, wantQueued: 1},
		{name: "card_number_alias", body: `{"card_number":"a","amount":-5}`, wantStatus: http.StatusAccepted, wantQueued: 1},
		{name: "zero_amount", body: `{"account_id":"a","amount":0}`, wantStatus: http.StatusAccepted, wantQueued: 1},
		{name: "missing_amount", body: `{"account_id":"a"}`, wantStatus: http.StatusBadRequest},
		{name: "missing_account", body: `{"amount":10}`, wantStatus: http.StatusBadRequest},
		{name: "nul_in_account", body: `{"account_id":"x\u0000","amount":10}`, wantStatus: http.StatusBadRequest},
		{name: "fractional_amount", body: `{"account_id":"a","amount":1.5}`, wantStatus: http.StatusBadRequest},
		{name: "not_json", body: `amount=10`, wantStatus: http.StatusBadRequest},
		{name: "empty", body: ``, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, 10)
			rec := env.do(t, http.MethodPost, "/transaction", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantQueued, env.queue.Len())

			if tt.wantStatus != http.StatusAccepted {
				return
			}

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "queued", resp["status"])

			_, err := uuid.Parse(resp["request_id"])
			assert.NoError(t, err)
		})
	}
}

func TestSubmitTransaction_QueueFull(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 1)

	rec := env.do(t, http.MethodPost, "/transaction", `{"account_id":"a","amount":1}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(t, http.MethodPost, "/transaction", `{"account_id":"a","amount":1}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	assert.Equal(t, uint64(1), env.agg.Snapshot().Counters[metrics.AdmissionRejected])
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 10)
	env.do(t, http.MethodPost, "/transaction", `{"account_id":"a","amount":1}`)
	env.agg.ObserveAverageBalance(5000)

	rec := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	for _, key := range []string{
		"transaction_counts", "total_requests", "average_balance_history",
		"transaction_times", "queue_size_history", "current_queue_size",
	} {
		assert.Contains(t, resp, key)
	}

	var m metricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, uint64(1), m.TotalRequests)
	assert.Equal(t, 1, m.CurrentQueueSize)
	assert.Equal(t, []int{1}, m.QueueSizeHistory)
	assert.Equal(t, []float64{5000}, m.AverageBalanceHistory)
	assert.Contains(t, m.TransactionCounts, "insufficient_funds")
}

func TestPrometheusEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 10)
	env.agg.Inc(metrics.Deposits)

	rec := env.do(t, http.MethodGet, "/metrics/prometheus", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ledger_transactions_total{outcome="deposits"} 1`)
}

func TestGetBalanceHandler(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 10)

	rec := env.do(t, http.MethodGet, "/accounts/6219%208619%200001%208640/balance", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		AccountID string `json:"account_id"`
		Balance   int64  `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(5000), resp.Balance)

	rec = env.do(t, http.MethodGet, "/accounts/ghost/balance", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListEntriesHandler(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 10)

	for i := range 3 {
		err := env.store.WithinTx(t.Context(), func(tx accounts.Tx) error {
			return tx.AppendEntry(t.Context(), accounts.Entry{RequestID: uuid.New(), AccountID: "a", Amount: int64(i), Success: true})
		})
		require.NoError(t, err)
	}

	rec := env.do(t, http.MethodGet, "/accounts/a/entries?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Entries []entryResponse `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, int64(2), resp.Entries[0].Amount)

	for _, bad := range []string{"0", "abc", "1001"} {
		rec = env.do(t, http.MethodGet, "/accounts/a/entries?limit="+bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", bad)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 1)
	rec := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
