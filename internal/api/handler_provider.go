package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fastprodman/ledgerengine/internal/metrics"
	"github.com/fastprodman/ledgerengine/internal/repos/accounts"
	"github.com/fastprodman/ledgerengine/internal/services/engine"
)

const (
	defaultEntriesLimit = 50
	maxEntriesLimit     = 1000
)

type Submitter interface {
	Submit(accountID string, amount *int64) (engine.Request, error)
}

type MetricsSource interface {
	Snapshot() metrics.Snapshot
}

type AccountReader interface {
	Balance(ctx context.Context, accountID string) (int64, error)
	Entries(ctx context.Context, accountID string, limit uint64) ([]accounts.Entry, error)
}

// HandlerProvider exposes the engine over HTTP.
type HandlerProvider struct {
	admission Submitter
	metrics   MetricsSource
	accounts  AccountReader
}

func NewHandler(admission Submitter, m MetricsSource, acc AccountReader) *HandlerProvider {
	return &HandlerProvider{admission: admission, metrics: m, accounts: acc}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": msg})
}

// txRequest accepts card_number as an older name for account_id.
type txRequest struct {
	AccountID  string `json:"account_id"`
	CardNumber string `json:"card_number"`
	Amount     *int64 `json:"amount"`
}

func (r txRequest) accountID() string {
	if r.AccountID != "" {
		return r.AccountID
	}

	return r.CardNumber
}

type metricsResponse struct {
	TransactionCounts     map[string]uint64 `json:"transaction_counts"`
	TotalRequests         uint64            `json:"total_requests"`
	AverageBalanceHistory []float64         `json:"average_balance_history"`
	TransactionTimes      []float64         `json:"transaction_times"`
	QueueSizeHistory      []int             `json:"queue_size_history"`
	CurrentQueueSize      int               `json:"current_queue_size"`
}

type entryResponse struct {
	RequestID string    `json:"request_id"`
	Amount    int64     `json:"amount"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

// --- Handlers ---

// SubmitTransactionHandler handles POST /transaction
func (h *HandlerProvider) SubmitTransactionHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	defer r.Body.Close()

	var req txRequest

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "empty body")
			return
		}

		writeError(w, http.StatusBadRequest, "Invalid input")
		return
	}

	queued, err := h.admission.Submit(req.accountID(), req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "Invalid input")
		case errors.Is(err, engine.ErrQueueFull):
			writeError(w, http.StatusServiceUnavailable, "Queue is full, please try again later")
		default:
			slog.Error("submit transaction", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}

		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "queued",
		"message":    "Transaction queued for processing",
		"request_id": queued.ID.String(),
	})
}

// MetricsHandler handles GET /metrics
func (h *HandlerProvider) MetricsHandler(w http.ResponseWriter, _ *http.Request) {
	snap := h.metrics.Snapshot()

	counts := make(map[string]uint64, len(snap.Counters))
	for c, n := range snap.Counters {
		counts[string(c)] = n
	}

	writeJSON(w, http.StatusOK, metricsResponse{
		TransactionCounts:     counts,
		TotalRequests:         snap.TotalAdmitted,
		AverageBalanceHistory: snap.AverageBalanceHistory,
		TransactionTimes:      snap.LatencySeconds,
		QueueSizeHistory:      snap.QueueDepthHistory,
		CurrentQueueSize:      snap.QueueDepth,
	})
}

// GetBalanceHandler handles GET /accounts/{accountId}/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	bal, err := h.accounts.Balance(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}

		slog.Error("get balance", "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"balance":    bal,
	})
}

// ListEntriesHandler handles GET /accounts/{accountId}/entries?limit=N
func (h *HandlerProvider) ListEntriesHandler(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	limit := uint64(defaultEntriesLimit)

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || n == 0 || n > maxEntriesLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}

		limit = n
	}

	entries, err := h.accounts.Entries(r.Context(), accountID, limit)
	if err != nil {
		slog.Error("list entries", "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	out := make([]entryResponse, len(entries))
	for i, e := range entries {
		out[i] = entryResponse{
			RequestID: e.RequestID.String(),
			Amount:    e.Amount,
			Success:   e.Success,
			CreatedAt: e.CreatedAt,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"entries":    out,
	})
}
