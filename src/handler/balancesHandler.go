package handler

import (
	"encoding/json"
	"net/http"

	"tradedash/src/auth"
	"tradedash/src/fetcher"
	"tradedash/src/repository"

	logger "github.com/sirupsen/logrus"
)

type balanceEntry struct {
	Exchange string  `json:"exchange"`
	Balance  float64 `json:"balance"`
}

// GetBalancesHandler returns a handler that queries every configured broker
// for its account balance. Brokers that fail are omitted from the response
// rather than failing the whole request.
func GetBalancesHandler(creds credentialLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		stored, err := creds.FindByUser(r.Context(), user.ID)
		if err != nil {
			logger.WithError(err).Error("failed to load credentials for balances")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		fetchers := fetcher.BuildBalanceFetchers(stored)
		results := fetcher.FetchBalances(r.Context(), fetchers)

		entries := make([]balanceEntry, 0, len(results))
		total := 0.0
		for _, res := range results {
			if res.Err != nil {
				logger.WithField("exchange", res.Exchange).WithError(res.Err).Warn("balance fetch failed")
				continue
			}
			entries = append(entries, balanceEntry{Exchange: res.Exchange, Balance: res.Balance})
			total += res.Balance
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"balances": entries,
			"total":    total,
		}); err != nil {
			logger.WithError(err).Error("failed to encode balances response")
		}
	}
}

// DefaultGetBalancesHandler wires the handler to the production repository implementation.
func DefaultGetBalancesHandler() http.HandlerFunc {
	return GetBalancesHandler(repository.NewBotCredentialRepository())
}
