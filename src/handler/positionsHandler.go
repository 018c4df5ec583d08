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

type positionLister interface {
	FindOpenByUser(ctx context.Context, userID uint) ([]model.Position, error)
}

type positionSaver interface {
	Save(ctx context.Context, position *model.Position) error
}

// GetPositionsHandler returns a handler that lists the authenticated user's
// open positions as last reconciled.
func GetPositionsHandler(repo positionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		positions, err := repo.FindOpenByUser(r.Context(), user.ID)
		if err != nil {
			logger.WithError(err).Error("failed to list open positions")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if positions == nil {
			positions = []model.Position{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(positions); err != nil {
			logger.WithError(err).Error("failed to encode positions response")
		}
	}
}

// SavePositionHandler returns a handler that stores a manually supplied
// position row for the authenticated user.
func SavePositionHandler(repo positionSaver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var position model.Position
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&position); err != nil {
			logger.WithError(err).Warn("invalid position payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		if position.Symbol == "" || position.Exchange == "" {
			http.Error(w, "symbol and exchange are required", http.StatusBadRequest)
			return
		}
		if position.Side != model.SideBuy && position.Side != model.SideSell {
			http.Error(w, "invalid side", http.StatusBadRequest)
			return
		}

		position.UserID = user.ID
		if position.Status == "" {
			position.Status = model.PositionStatusOpen
		}

		if err := repo.Save(r.Context(), &position); err != nil {
			logger.WithError(err).Error("failed to save position")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(position); err != nil {
			logger.WithError(err).Error("failed to encode position response")
		}
	}
}

// DefaultGetPositionsHandler wires the handler to the production repository implementation.
func DefaultGetPositionsHandler() http.HandlerFunc {
	return GetPositionsHandler(repository.NewPositionRepository())
}

// DefaultSavePositionHandler wires the handler to the production repository implementation.
func DefaultSavePositionHandler() http.HandlerFunc {
	return SavePositionHandler(repository.NewPositionRepository())
}
