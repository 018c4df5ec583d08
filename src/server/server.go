package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	logger "github.com/sirupsen/logrus"

	"tradedash/src/auth"
	"tradedash/src/handler"
	"tradedash/src/repository"
)

func StartServer(port string) {
	config := GetConfig()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Webhook-Secret"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck write error")
		}
	})
	r.Post("/api/webhook", handler.DefaultWebhookHandler())
	r.Post("/api/users/register", handler.DefaultRegisterUserHandler())

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(repository.NewUserRepository()))

		r.Get("/api/balances", handler.DefaultGetBalancesHandler())

		r.Get("/api/positions", handler.DefaultGetPositionsHandler())
		r.Post("/api/positions/save", handler.DefaultSavePositionHandler())

		r.Get("/api/trades", handler.DefaultSearchTradesHandler())
		r.Post("/api/trades/save", handler.DefaultSaveTradeHandler())
		r.Post("/api/trades/sync", handler.DefaultSyncTradesHandler())
		r.Post("/api/trades/fix-pnl", handler.DefaultFixPnlHandler())

		r.Get("/api/bot/credentials", handler.DefaultListCredentialsHandler())
		r.Post("/api/bot/credentials", handler.DefaultSaveCredentialHandler())
		r.Delete("/api/bot/credentials/{id}", handler.DefaultDeleteCredentialHandler())

		r.Get("/api/webhook/activity", handler.DefaultWebhookActivityHandler())
		r.Get("/api/subscription", handler.DefaultGetSubscriptionHandler())
		r.Get("/api/strategies", handler.DefaultGetStrategiesHandler())
		r.Get("/api/crypto-data", handler.DefaultGetCryptoDataHandler())

		r.Get("/ws/positions", handler.DefaultPositionsStreamHandler())
	})

	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
