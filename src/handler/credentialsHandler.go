package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"tradedash/src/auth"
	"tradedash/src/model"
	"tradedash/src/repository"
	"tradedash/src/security"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type credentialStore interface {
	Upsert(ctx context.Context, cred *model.BotCredential) error
	FindByUser(ctx context.Context, userID uint) ([]model.BotCredential, error)
	Delete(ctx context.Context, userID uint, id uint) error
}

// credentialResponse is the safe projection of a stored credential: secrets
// never leave the server, only the key's last four characters do.
type credentialResponse struct {
	ID            uint   `json:"id"`
	Exchange      string `json:"exchange"`
	Label         string `json:"label"`
	AccountID     string `json:"account_id,omitempty"`
	APIKeyTail    string `json:"api_key_tail"`
	WebhookSecret string `json:"webhook_secret"`
}

type credentialPayload struct {
	Exchange   string `json:"exchange"`
	Label      string `json:"label"`
	AccountID  string `json:"account_id"`
	APIKey     string `json:"api_key"`
	APISecret  string `json:"api_secret"`
	Passphrase string `json:"passphrase"`
}

var supportedExchanges = map[string]bool{
	"aster":      true,
	"oanda":      true,
	"tastytrade": true,
	"tradier":    true,
	"apex":       true,
}

// ListCredentialsHandler returns a handler that lists the authenticated
// user's broker credentials without their secrets.
func ListCredentialsHandler(repo credentialStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		creds, err := repo.FindByUser(r.Context(), user.ID)
		if err != nil {
			logger.WithError(err).Error("failed to list credentials")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		responses := make([]credentialResponse, 0, len(creds))
		for _, cred := range creds {
			responses = append(responses, credentialResponse{
				ID:            cred.ID,
				Exchange:      cred.Exchange,
				Label:         cred.Label,
				AccountID:     cred.AccountID,
				APIKeyTail:    apiKeyTail(cred.APIKeyHash),
				WebhookSecret: cred.WebhookSecret,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(responses); err != nil {
			logger.WithError(err).Error("failed to encode credentials response")
		}
	}
}

// SaveCredentialHandler returns a handler that creates or replaces the
// user's credential for an exchange. Secrets are encrypted at rest and a
// webhook secret is minted on first save.
func SaveCredentialHandler(repo credentialStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var payload credentialPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid credential payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		exchange := strings.ToLower(strings.TrimSpace(payload.Exchange))
		if !supportedExchanges[exchange] {
			http.Error(w, "unsupported exchange", http.StatusBadRequest)
			return
		}
		if payload.APIKey == "" {
			http.Error(w, "api_key is required", http.StatusBadRequest)
			return
		}

		apiKey, err := security.EncryptString(payload.APIKey)
		if err != nil {
			logger.WithError(err).Error("failed to encrypt api key")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		apiSecret, err := security.EncryptString(payload.APISecret)
		if err != nil {
			logger.WithError(err).Error("failed to encrypt api secret")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		passphrase, err := security.EncryptString(payload.Passphrase)
		if err != nil {
			logger.WithError(err).Error("failed to encrypt passphrase")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		// Re-saves keep the existing webhook secret so bots configured
		// with it keep working across key rotations.
		existing, err := repo.FindByUser(r.Context(), user.ID)
		if err != nil {
			logger.WithError(err).Error("failed to load existing credentials")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		webhookSecret := uuid.NewString()
		for _, prior := range existing {
			if prior.Exchange == exchange {
				webhookSecret = prior.WebhookSecret
				break
			}
		}

		cred := model.BotCredential{
			UserID:         user.ID,
			Exchange:       exchange,
			Environment:    model.EnvironmentProduction,
			Label:          strings.TrimSpace(payload.Label),
			AccountID:      strings.TrimSpace(payload.AccountID),
			APIKeyHash:     apiKey,
			APISecretHash:  apiSecret,
			PassphraseHash: passphrase,
			WebhookSecret:  webhookSecret,
		}

		if err := repo.Upsert(r.Context(), &cred); err != nil {
			logger.WithError(err).Error("failed to save credential")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(credentialResponse{
			ID:            cred.ID,
			Exchange:      cred.Exchange,
			Label:         cred.Label,
			AccountID:     cred.AccountID,
			APIKeyTail:    tail(payload.APIKey),
			WebhookSecret: cred.WebhookSecret,
		}); err != nil {
			logger.WithError(err).Error("failed to encode credential response")
		}
	}
}

// DeleteCredentialHandler returns a handler that removes one of the user's
// stored credentials.
func DeleteCredentialHandler(repo credentialStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		idParam := chi.URLParam(r, "id")
		id, err := strconv.ParseUint(idParam, 10, 64)
		if err != nil {
			http.Error(w, "invalid credential id", http.StatusBadRequest)
			return
		}

		if err := repo.Delete(r.Context(), user.ID, uint(id)); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				http.Error(w, "Not Found", http.StatusNotFound)
				return
			}
			logger.WithError(err).Error("failed to delete credential")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// apiKeyTail decrypts just enough to show the key's last four characters.
func apiKeyTail(encrypted string) string {
	plain, err := security.DecryptString(encrypted)
	if err != nil {
		return ""
	}
	return tail(plain)
}

func tail(s string) string {
	if len(s) <= 4 {
		return s
	}
	return "..." + s[len(s)-4:]
}

// DefaultListCredentialsHandler wires the handler to the production repository implementation.
func DefaultListCredentialsHandler() http.HandlerFunc {
	return ListCredentialsHandler(repository.NewBotCredentialRepository())
}

// DefaultSaveCredentialHandler wires the handler to the production repository implementation.
func DefaultSaveCredentialHandler() http.HandlerFunc {
	return SaveCredentialHandler(repository.NewBotCredentialRepository())
}

// DefaultDeleteCredentialHandler wires the handler to the production repository implementation.
func DefaultDeleteCredentialHandler() http.HandlerFunc {
	return DeleteCredentialHandler(repository.NewBotCredentialRepository())
}
