package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"tradedash/src/model"
	"tradedash/src/repository"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type userStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

type registerPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterUserHandler returns the public sign-up endpoint. The response
// includes the API token the dashboard authenticates with; it is shown
// exactly once.
func RegisterUserHandler(repo userStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload registerPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid register payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		email := strings.ToLower(strings.TrimSpace(payload.Email))
		if email == "" || !strings.Contains(email, "@") {
			http.Error(w, "valid email is required", http.StatusBadRequest)
			return
		}
		if len(payload.Password) < 8 {
			http.Error(w, "password must be at least 8 characters", http.StatusBadRequest)
			return
		}

		existing, err := repo.FindByEmail(r.Context(), email)
		if err != nil {
			logger.WithError(err).Error("failed to check existing user")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if existing != nil {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
		if err != nil {
			logger.WithError(err).Error("failed to hash password")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		user := model.User{
			Email:    email,
			Password: string(hashedPassword),
			APIToken: uuid.NewString(),
		}

		if err := repo.Create(r.Context(), &user); err != nil {
			logger.WithError(err).Error("failed to create user")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"user":      user.ToResponse(),
			"api_token": user.APIToken,
		}); err != nil {
			logger.WithError(err).Error("failed to encode register response")
		}
	}
}

// DefaultRegisterUserHandler wires the handler to the production repository implementation.
func DefaultRegisterUserHandler() http.HandlerFunc {
	return RegisterUserHandler(repository.NewUserRepository())
}
