package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"tradedash/src/auth"
	"tradedash/src/model"
	"tradedash/src/repository"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
)

const maxWebhookBody = 64 * 1024

type webhookCredentialResolver interface {
	FindByWebhookSecret(ctx context.Context, secret string) (*model.BotCredential, error)
}

type webhookAuditStore interface {
	Create(ctx context.Context, req *model.WebhookRequest) error
	CountSince(ctx context.Context, userID uint, since time.Time) (int64, error)
	FindRecentByUser(ctx context.Context, userID uint, limit int) ([]model.WebhookRequest, error)
	MarkProcessed(ctx context.Context, id uint, status, errorMessage string) error
}

type planResolver interface {
	PlanForUser(ctx context.Context, userID uint) (string, error)
}

type webhookPayload struct {
	Secret   string `json:"secret"`
	Action   string `json:"action"`
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
}

// WebhookHandler returns the unauthenticated intake endpoint for bot
// webhooks. The caller is identified by its webhook secret; every accepted
// request is audited and counted against the user's monthly plan allowance.
func WebhookHandler(
	creds webhookCredentialResolver,
	audit webhookAuditStore,
	plans planResolver,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			logger.WithError(err).Warn("invalid webhook payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		secret := payload.Secret
		if headerSecret := r.Header.Get("X-Webhook-Secret"); headerSecret != "" {
			secret = headerSecret
		}
		if secret == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		cred, err := creds.FindByWebhookSecret(r.Context(), secret)
		if err != nil {
			logger.WithError(err).Error("failed to resolve webhook secret")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if cred == nil {
			// Unknown secrets get the same answer as a missing one so the
			// endpoint cannot be used to probe for valid secrets.
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		exchange := payload.Exchange
		if exchange == "" {
			exchange = cred.Exchange
		}

		plan, err := plans.PlanForUser(r.Context(), cred.UserID)
		if err != nil {
			logger.WithError(err).Error("failed to resolve plan")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		now := time.Now().UTC()
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		used, err := audit.CountSince(r.Context(), cred.UserID, monthStart)
		if err != nil {
			logger.WithError(err).Error("failed to count webhook usage")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		request := model.WebhookRequest{
			RequestID: uuid.NewString(),
			UserID:    cred.UserID,
			Exchange:  exchange,
			Action:    payload.Action,
			Symbol:    payload.Symbol,
			Payload:   string(body),
			Status:    model.WebhookStatusReceived,
		}

		limit := model.WebhookLimit(plan)
		if used >= int64(limit) {
			request.Status = model.WebhookStatusRateLimited
			request.ErrorMessage = "monthly webhook limit reached"
			if err := audit.Create(r.Context(), &request); err != nil {
				logger.WithError(err).Error("failed to audit rate-limited webhook")
			}
			logger.WithFields(map[string]interface{}{
				"user_id": cred.UserID,
				"plan":    plan,
				"used":    used,
			}).Warn("webhook over plan limit")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			if err := json.NewEncoder(w).Encode(map[string]interface{}{
				"error": "monthly webhook limit reached",
				"plan":  plan,
				"limit": limit,
			}); err != nil {
				logger.WithError(err).Error("failed to encode rate limit response")
			}
			return
		}

		if err := audit.Create(r.Context(), &request); err != nil {
			logger.WithError(err).Error("failed to audit webhook")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		// Intake only: order placement happens downstream. Mark the row
		// processed so the activity feed shows a terminal status.
		if err := audit.MarkProcessed(r.Context(), request.ID, model.WebhookStatusProcessed, ""); err != nil {
			logger.WithError(err).WithField("request_id", request.RequestID).Error("failed to mark webhook processed")
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"request_id": request.RequestID,
			"status":     model.WebhookStatusProcessed,
		}); err != nil {
			logger.WithError(err).Error("failed to encode webhook response")
		}
	}
}

// WebhookActivityHandler returns a handler that lists the authenticated
// user's recent webhook requests.
func WebhookActivityHandler(audit webhookAuditStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		requests, err := audit.FindRecentByUser(r.Context(), user.ID, 50)
		if err != nil {
			logger.WithError(err).Error("failed to list webhook activity")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if requests == nil {
			requests = []model.WebhookRequest{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(requests); err != nil {
			logger.WithError(err).Error("failed to encode webhook activity response")
		}
	}
}

// DefaultWebhookHandler wires the handler to the production repositories.
func DefaultWebhookHandler() http.HandlerFunc {
	return WebhookHandler(
		repository.NewBotCredentialRepository(),
		repository.NewWebhookRequestRepository(),
		repository.NewSubscriptionRepository(),
	)
}

// DefaultWebhookActivityHandler wires the handler to the production repository implementation.
func DefaultWebhookActivityHandler() http.HandlerFunc {
	return WebhookActivityHandler(repository.NewWebhookRequestRepository())
}
