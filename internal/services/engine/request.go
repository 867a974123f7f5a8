package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/ledgerengine/internal/metrics"
	"github.com/fastprodman/ledgerengine/internal/repos/accounts"
)

// Request is an admitted balance change. Positive amounts are deposits.
type Request struct {
	ID         uuid.UUID
	AccountID  string
	Amount     int64
	EnqueuedAt time.Time
}

func NewRequest(accountID string, amount int64) Request {
	return Request{
		ID:         uuid.New(),
		AccountID:  accountID,
		Amount:     amount,
		EnqueuedAt: time.Now(),
	}
}

// Outcome is the business result of applying a request. Rejections are
// permanent and never retried.
type Outcome int

const (
	Applied Outcome = iota
	InsufficientFunds
	UnknownAccount
	// BalanceOverflow is a deposit whose result does not fit in int64.
	BalanceOverflow
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case InsufficientFunds:
		return "insufficient_funds"
	case UnknownAccount:
		return "unknown_account"
	case BalanceOverflow:
		return "balance_overflow"
	default:
		return "unknown"
	}
}

func (o Outcome) counter(amount int64) metrics.Counter {
	switch o {
	case InsufficientFunds:
		return metrics.InsufficientFunds
	case UnknownAccount:
		return metrics.UnknownAccount
	case BalanceOverflow:
		return metrics.BalanceOverflow
	}

	if amount > 0 {
		return metrics.Deposits
	}

	return metrics.Withdrawals
}

// rejection classifies an amount whose wrapped int64 sum came out negative.
// Balances are never negative, so a positive amount only gets there by
// overflowing.
func rejection(amount int64) Outcome {
	if amount > 0 {
		return BalanceOverflow
	}

	return InsufficientFunds
}

func (r Request) entry(o Outcome, at time.Time) accounts.Entry {
	return accounts.Entry{
		RequestID: r.ID,
		AccountID: r.AccountID,
		Amount:    r.Amount,
		Success:   o == Applied,
		CreatedAt: at,
	}
}
