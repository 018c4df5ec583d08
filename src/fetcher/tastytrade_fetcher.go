package fetcher

import (
	"context"

	"tradedash/src/connectors"
	"tradedash/src/mapper"
)

type TastytradeFetcher struct {
	client *connectors.TastytradeClient
}

func NewTastytradeFetcher(client *connectors.TastytradeClient) *TastytradeFetcher {
	return &TastytradeFetcher{client: client}
}

func (f *TastytradeFetcher) Exchange() string {
	return "tastytrade"
}

func (f *TastytradeFetcher) Fetch(ctx context.Context) Snapshot {
	items, err := f.client.GetPositions(ctx)
	if err != nil {
		return classify(f.Exchange(), nil, err)
	}
	return classify(f.Exchange(), mapper.MapTastytradePositions(items), nil)
}
