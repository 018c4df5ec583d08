package handler

import (
	"net/http"
	"time"

	"tradedash/src/auth"
	"tradedash/src/repository"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"
)

const (
	wsWriteTimeout  = 10 * time.Second
	wsPushInterval  = 5 * time.Second
	wsPingInterval  = 30 * time.Second
	wsMaxMessageLen = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Auth happens via the bearer token, the dashboard origin varies per
	// deployment.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// PositionsStreamHandler returns a websocket endpoint that pushes the
// user's open position set on an interval until the client disconnects.
func PositionsStreamHandler(repo positionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WithError(err).Warn("websocket upgrade failed")
			return
		}
		defer func() {
			if err := conn.Close(); err != nil {
				logger.WithError(err).Debug("websocket close error")
			}
		}()

		conn.SetReadLimit(wsMaxMessageLen)

		// Reader goroutine: we never expect client messages, but reading is
		// required to process close frames and detect disconnects.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		push := time.NewTicker(wsPushInterval)
		defer push.Stop()
		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()

		send := func() error {
			positions, err := repo.FindOpenByUser(r.Context(), user.ID)
			if err != nil {
				logger.WithError(err).Error("failed to load positions for stream")
				return nil
			}
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
				return err
			}
			return conn.WriteJSON(positions)
		}

		if err := send(); err != nil {
			return
		}

		for {
			select {
			case <-done:
				return
			case <-r.Context().Done():
				return
			case <-push.C:
				if err := send(); err != nil {
					return
				}
			case <-ping.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

// DefaultPositionsStreamHandler wires the handler to the production repository implementation.
func DefaultPositionsStreamHandler() http.HandlerFunc {
	return PositionsStreamHandler(repository.NewPositionRepository())
}
