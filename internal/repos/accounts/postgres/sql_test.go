package postgres

import (
	"database/sql/driver"
	"errors"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/fastprodman/ledgerengine/internal/repos/accounts"
)

// passthrough lets slice arguments reach the mock unchanged, the way the pgx
// driver accepts them.
type passthrough struct{}

func (passthrough) ConvertValue(v any) (driver.Value, error) { return v, nil }

// equal matches slice arguments by deep equality.
type equal struct{ want any }

func (e equal) Match(v driver.Value) bool { return reflect.DeepEqual(e.want, v) }

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(passthrough{}))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return New(db), mock
}

func TestGetBalances_LocksInIDOrder(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	ids := []string{"b", "a", "missing"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, balance FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
	)).
		WithArgs(equal{ids}).
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance"}).
			AddRow("a", int64(10)).
			AddRow("b", int64(20)))
	mock.ExpectCommit()

	var got map[string]int64

	err := store.WithinTx(t.Context(), func(tx accounts.Tx) error {
		var err error
		got, err = tx.GetBalances(t.Context(), ids)
		return err
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}

	if len(got) != 2 || got["a"] != 10 || got["b"] != 20 {
		t.Fatalf("unexpected balances: %v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetBalances_EmptyInputSkipsQuery(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := store.WithinTx(t.Context(), func(tx accounts.Tx) error {
		got, err := tx.GetBalances(t.Context(), nil)
		if len(got) != 0 {
			t.Errorf("want empty map, got %v", got)
		}
		return err
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSetBalances_SortedColumnArrays(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`FROM unnest($1::text[], $2::bigint[])`)).
		WithArgs(equal{[]string{"a", "b", "c"}}, equal{[]int64{1, 2, 3}}).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := store.WithinTx(t.Context(), func(tx accounts.Tx) error {
		return tx.SetBalances(t.Context(), map[string]int64{"c": 3, "a": 1, "b": 2})
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAppendEntries_SingleStatement(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	id1, id2 := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO ledger_entries`)).
		WithArgs(
			equal{[]string{id1.String(), id2.String()}},
			equal{[]string{"a", "b"}},
			equal{[]int64{5, -7}},
			equal{[]bool{true, false}},
			equal{[]time.Time{ts, ts}},
		).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := store.WithinTx(t.Context(), func(tx accounts.Tx) error {
		return tx.AppendEntries(t.Context(), []accounts.Entry{
			{RequestID: id1, AccountID: "a", Amount: 5, Success: true, CreatedAt: ts},
			{RequestID: id2, AccountID: "b", Amount: -7, Success: false, CreatedAt: ts},
		})
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	errBoom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM accounts`)).
		WithArgs("a").
		WillReturnError(errBoom)
	mock.ExpectRollback()

	err := store.WithinTx(t.Context(), func(tx accounts.Tx) error {
		_, err := tx.GetBalance(t.Context(), "a")
		return err
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("want boom, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMeanBalance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		value  any
		want   float64
		wantOK bool
	}{
		{name: "no_accounts", value: nil, wantOK: false},
		{name: "numeric", value: "1250.5000000000000000", want: 1250.5, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, mock := newMockStore(t)

			mock.ExpectQuery(regexp.QuoteMeta(`SELECT AVG(balance) FROM accounts`)).
				WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(tt.value))

			got, ok, err := store.MeanBalance(t.Context())
			if err != nil {
				t.Fatalf("mean balance: %v", err)
			}

			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("want (%v,%v), got (%v,%v)", tt.want, tt.wantOK, got, ok)
			}
		})
	}
}
