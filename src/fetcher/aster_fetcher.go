package fetcher

import (
	"context"

	"tradedash/src/connectors"
	"tradedash/src/mapper"
)

type AsterFetcher struct {
	client *connectors.AsterClient
}

func NewAsterFetcher(client *connectors.AsterClient) *AsterFetcher {
	return &AsterFetcher{client: client}
}

func (f *AsterFetcher) Exchange() string {
	return "aster"
}

func (f *AsterFetcher) Fetch(ctx context.Context) Snapshot {
	account, err := f.client.GetAccount(ctx)
	if err != nil {
		return classify(f.Exchange(), nil, err)
	}
	return classify(f.Exchange(), mapper.MapAsterPositions(account), nil)
}
