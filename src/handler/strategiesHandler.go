package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"tradedash/src/auth"
	"tradedash/src/model"
	"tradedash/src/repository"

	logger "github.com/sirupsen/logrus"
)

type strategyLister interface {
	FindByUser(ctx context.Context, userID uint) ([]model.Strategy, error)
}

// GetStrategiesHandler returns a handler that lists the authenticated
// user's bot strategies.
func GetStrategiesHandler(repo strategyLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		strategies, err := repo.FindByUser(r.Context(), user.ID)
		if err != nil {
			logger.WithError(err).Error("failed to list strategies")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if strategies == nil {
			strategies = []model.Strategy{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(strategies); err != nil {
			logger.WithError(err).Error("failed to encode strategies response")
		}
	}
}

// DefaultGetStrategiesHandler wires the handler to the production repository implementation.
func DefaultGetStrategiesHandler() http.HandlerFunc {
	return GetStrategiesHandler(repository.NewStrategyRepository())
}
