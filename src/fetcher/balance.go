package fetcher

import (
	"context"
	"sync"
)

type BalanceFetcher interface {
	Exchange() string
	Balance(ctx context.Context) (float64, error)
}

type BalanceResult struct {
	Exchange string  `json:"exchange"`
	Balance  float64 `json:"balance"`
	Err      error   `json:"-"`
}

// balanceAdapter lifts a connector balance method into a BalanceFetcher.
type balanceAdapter struct {
	exchange string
	fn       func(ctx context.Context) (float64, error)
}

func (a balanceAdapter) Exchange() string {
	return a.exchange
}

func (a balanceAdapter) Balance(ctx context.Context) (float64, error) {
	return a.fn(ctx)
}

// FetchBalances queries every broker concurrently. A failed broker appears
// in the result with its error set; it is never fatal to the others.
func FetchBalances(ctx context.Context, fetchers []BalanceFetcher) []BalanceResult {
	results := make([]BalanceResult, len(fetchers))

	var wg sync.WaitGroup
	for i, f := range fetchers {
		wg.Add(1)
		go func(i int, f BalanceFetcher) {
			defer wg.Done()
			balance, err := f.Balance(ctx)
			results[i] = BalanceResult{Exchange: f.Exchange(), Balance: balance, Err: err}
		}(i, f)
	}
	wg.Wait()

	return results
}
