package engine

import (
	"context"
	"fmt"
)

// batchPlan is the decision for every request of one batch.
type batchPlan struct {
	outcomes []Outcome
	// balances holds the final balance of every account that changed.
	balances map[string]int64
}

// planBatch decides a batch against one balance snapshot. Requests for the
// same account are split into occurrence rounds: round k holds the k-th
// request of each account, so a round never touches an account twice and can
// go through the kernel as one vector. Accepted results feed the next round.
// The outcome matches applying the batch one request at a time in order.
func planBatch(ctx context.Context, kernel Kernel, reqs []Request, snapshot map[string]int64) (batchPlan, error) {
	plan := batchPlan{
		outcomes: make([]Outcome, len(reqs)),
		balances: make(map[string]int64),
	}

	running := make(map[string]int64, len(snapshot))
	seen := make(map[string]int, len(snapshot))

	var rounds [][]int

	for i, r := range reqs {
		bal, ok := snapshot[r.AccountID]
		if !ok {
			plan.outcomes[i] = UnknownAccount
			continue
		}

		running[r.AccountID] = bal

		k := seen[r.AccountID]
		seen[r.AccountID] = k + 1

		if k == len(rounds) {
			rounds = append(rounds, nil)
		}

		rounds[k] = append(rounds[k], i)
	}

	for _, round := range rounds {
		balances := make([]int64, len(round))
		amounts := make([]int64, len(round))

		for j, i := range round {
			balances[j] = running[reqs[i].AccountID]
			amounts[j] = reqs[i].Amount
		}

		next, accepted, err := kernel.Apply(ctx, balances, amounts)
		if err != nil {
			return batchPlan{}, fmt.Errorf("kernel: %w", err)
		}

		for j, i := range round {
			if !accepted[j] {
				plan.outcomes[i] = rejection(amounts[j])
				continue
			}

			plan.outcomes[i] = Applied
			running[reqs[i].AccountID] = next[j]
			plan.balances[reqs[i].AccountID] = next[j]
		}
	}

	return plan, nil
}

func distinctAccounts(reqs []Request) []string {
	seen := make(map[string]struct{}, len(reqs))
	out := make([]string, 0, len(reqs))

	for _, r := range reqs {
		if _, ok := seen[r.AccountID]; ok {
			continue
		}

		seen[r.AccountID] = struct{}{}
		out = append(out, r.AccountID)
	}

	return out
}
