package memory

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/fastprodman/ledgerengine/internal/repos/accounts"
)

func TestWithinTx_CommitAndRollback(t *testing.T) {
	t.Parallel()

	errAbort := errors.New("abort")

	tests := []struct {
		name        string
		failNext    int
		fnErr       error
		wantErr     error
		wantBalance int64
		wantEntries int
	}{
		{name: "commit", wantBalance: 40, wantEntries: 1},
		{name: "fn_error_rolls_back", fnErr: errAbort, wantErr: errAbort, wantBalance: 100},
		{name: "injected_failure_rolls_back", failNext: 1, wantErr: ErrInjected, wantBalance: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := New(map[string]int64{"a": 100})
			s.FailNext(tt.failNext)

			err := s.WithinTx(t.Context(), func(tx accounts.Tx) error {
				bal, err := tx.GetBalance(t.Context(), "a")
				if err != nil {
					return err
				}

				err = tx.SetBalance(t.Context(), "a", bal-60)
				if err != nil {
					return err
				}

				err = tx.AppendEntry(t.Context(), accounts.Entry{RequestID: uuid.New(), AccountID: "a", Amount: -60, Success: true})
				if err != nil {
					return err
				}

				return tt.fnErr
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}

			bal, _ := s.Balance(t.Context(), "a")
			if bal != tt.wantBalance {
				t.Fatalf("balance: want %d, got %d", tt.wantBalance, bal)
			}

			if got := len(s.Ledger()); got != tt.wantEntries {
				t.Fatalf("entries: want %d, got %d", tt.wantEntries, got)
			}

			if s.Attempts() != 1 {
				t.Fatalf("attempts: want 1, got %d", s.Attempts())
			}
		})
	}
}

func TestTx_ReadsOwnWritesAndSkipsUnknown(t *testing.T) {
	t.Parallel()

	s := New(map[string]int64{"a": 1, "b": 2})

	err := s.WithinTx(t.Context(), func(tx accounts.Tx) error {
		err := tx.SetBalances(t.Context(), map[string]int64{"a": 10, "ghost": 99})
		if err != nil {
			return err
		}

		got, err := tx.GetBalances(t.Context(), []string{"a", "b", "ghost"})
		if err != nil {
			return err
		}

		if len(got) != 2 || got["a"] != 10 || got["b"] != 2 {
			t.Errorf("unexpected staged view: %v", got)
		}

		_, err = tx.GetBalance(t.Context(), "ghost")
		if !errors.Is(err, accounts.ErrAccountNotFound) {
			t.Errorf("ghost: want ErrAccountNotFound, got %v", err)
		}

		return nil
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}

	_, err = s.Balance(t.Context(), "ghost")
	if !errors.Is(err, accounts.ErrAccountNotFound) {
		t.Fatalf("ghost must not be created, got %v", err)
	}
}

func TestMeanBalanceAndEntries(t *testing.T) {
	t.Parallel()

	empty := New(nil)

	_, ok, err := empty.MeanBalance(t.Context())
	if err != nil || ok {
		t.Fatalf("empty store: want ok=false, got ok=%v err=%v", ok, err)
	}

	s := New(map[string]int64{"a": 100, "b": 300})

	mean, ok, err := s.MeanBalance(t.Context())
	if err != nil || !ok || mean != 200 {
		t.Fatalf("mean: want (200,true), got (%v,%v,%v)", mean, ok, err)
	}

	for i := range 4 {
		_ = s.WithinTx(t.Context(), func(tx accounts.Tx) error {
			return tx.AppendEntry(t.Context(), accounts.Entry{AccountID: "a", Amount: int64(i)})
		})
	}

	got, err := s.Entries(t.Context(), "a", 2)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}

	if len(got) != 2 || got[0].Amount != 3 || got[1].Amount != 2 {
		t.Fatalf("want newest two entries, got %+v", got)
	}
}

func TestPoison_FailsReadsTouchingAccount(t *testing.T) {
	t.Parallel()

	errBad := errors.New("bad value")

	s := New(map[string]int64{"a": 1, "b": 2})
	s.Poison("b", errBad)

	err := s.WithinTx(t.Context(), func(tx accounts.Tx) error {
		_, err := tx.GetBalances(t.Context(), []string{"a", "b"})
		return err
	})
	if !errors.Is(err, errBad) {
		t.Fatalf("batch read: want %v, got %v", errBad, err)
	}

	err = s.WithinTx(t.Context(), func(tx accounts.Tx) error {
		_, err := tx.GetBalance(t.Context(), "b")
		return err
	})
	if !errors.Is(err, errBad) {
		t.Fatalf("single read: want %v, got %v", errBad, err)
	}

	err = s.WithinTx(t.Context(), func(tx accounts.Tx) error {
		_, err := tx.GetBalance(t.Context(), "a")
		return err
	})
	if err != nil {
		t.Fatalf("other accounts unaffected, got %v", err)
	}
}
