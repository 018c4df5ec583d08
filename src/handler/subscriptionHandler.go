package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"tradedash/src/auth"
	"tradedash/src/model"
	"tradedash/src/repository"

	logger "github.com/sirupsen/logrus"
)

type subscriptionResolver interface {
	FindActiveByUser(ctx context.Context, userID uint) (*model.Subscription, error)
}

type webhookCounter interface {
	CountSince(ctx context.Context, userID uint, since time.Time) (int64, error)
}

// GetSubscriptionHandler returns the user's effective plan plus the webhook
// usage against its monthly allowance. Users without a subscription row are
// on the free tier.
func GetSubscriptionHandler(subs subscriptionResolver, usage webhookCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		sub, err := subs.FindActiveByUser(r.Context(), user.ID)
		if err != nil {
			logger.WithError(err).Error("failed to load subscription")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		plan := model.PlanFree
		if sub != nil {
			plan = sub.Plan
		}

		now := time.Now().UTC()
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		used, err := usage.CountSince(r.Context(), user.ID, monthStart)
		if err != nil {
			logger.WithError(err).Error("failed to count webhook usage")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		response := map[string]interface{}{
			"plan":          plan,
			"webhook_limit": model.WebhookLimit(plan),
			"webhook_used":  used,
		}
		if sub != nil {
			response["subscription"] = sub
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			logger.WithError(err).Error("failed to encode subscription response")
		}
	}
}

// DefaultGetSubscriptionHandler wires the handler to the production repositories.
func DefaultGetSubscriptionHandler() http.HandlerFunc {
	return GetSubscriptionHandler(
		repository.NewSubscriptionRepository(),
		repository.NewWebhookRequestRepository(),
	)
}
