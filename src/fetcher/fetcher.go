package fetcher

import (
	"context"
	"errors"
	"strings"
	"sync"

	logger "github.com/sirupsen/logrus"

	"tradedash/src/connectors"
	"tradedash/src/model"
)

// Status is the tri-state outcome of one broker fetch. Only StatusOK
// snapshots are authoritative: an empty position list under StatusOK means
// the account is genuinely flat, while Unavailable/Unauthorized mean the
// open set is unknown and must not be used to infer closures.
type Status string

const (
	StatusOK           Status = "ok"
	StatusUnavailable  Status = "unavailable"
	StatusUnauthorized Status = "unauthorized"
)

type Snapshot struct {
	Exchange  string
	Status    Status
	Positions []model.Position
	Err       error
}

// Authoritative reports whether the snapshot can stand in for the broker's
// true open set.
func (s Snapshot) Authoritative() bool {
	return s.Status == StatusOK
}

type PositionFetcher interface {
	Exchange() string
	Fetch(ctx context.Context) Snapshot
}

// Capability describes what a broker's API can be trusted for. P&L policy
// and quote sourcing key off this table instead of per-exchange branching.
type Capability struct {
	ReportsAccurateUnrealizedPnL bool
	ProvidesLiveQuote            bool
}

var capabilities = map[string]Capability{
	"aster":      {ReportsAccurateUnrealizedPnL: true, ProvidesLiveQuote: true},
	"oanda":      {ReportsAccurateUnrealizedPnL: true, ProvidesLiveQuote: false},
	"tastytrade": {ReportsAccurateUnrealizedPnL: false, ProvidesLiveQuote: false},
}

// CapabilityFor returns the capability set for an exchange. Unknown
// exchanges get the zero capability: derive P&L from prices, no live quote.
func CapabilityFor(exchange string) Capability {
	return capabilities[strings.ToLower(exchange)]
}

// FetchAll runs every fetcher concurrently and returns once all have
// settled. A failed broker produces a non-authoritative snapshot; it never
// cancels or blocks its siblings.
func FetchAll(ctx context.Context, fetchers []PositionFetcher) []Snapshot {
	snapshots := make([]Snapshot, len(fetchers))

	var wg sync.WaitGroup
	for i, f := range fetchers {
		wg.Add(1)
		go func(i int, f PositionFetcher) {
			defer wg.Done()
			snapshots[i] = f.Fetch(ctx)
		}(i, f)
	}
	wg.Wait()

	return snapshots
}

func classify(exchange string, positions []model.Position, err error) Snapshot {
	switch {
	case err == nil:
		return Snapshot{Exchange: exchange, Status: StatusOK, Positions: positions}
	case errors.Is(err, connectors.ErrUnauthorized):
		// Invalid credentials mean the broker is effectively disabled for
		// this user; keep the log quiet.
		logger.WithField("exchange", exchange).Debug("Broker rejected credentials, treating as disabled")
		return Snapshot{Exchange: exchange, Status: StatusUnauthorized, Err: err}
	default:
		logger.WithField("exchange", exchange).WithError(err).Error("Broker fetch failed")
		return Snapshot{Exchange: exchange, Status: StatusUnavailable, Err: err}
	}
}
