package live

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/dukerupert/larder/internal/auth"
)

// Handler upgrades an authenticated request and runs it as a hub client.
func Handler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == 0 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// Callers authenticate with a bearer token, not cookies, so any
		// origin may connect.
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			hub.logger.Warn("accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		NewClient(hub, conn, userID).Run(r.Context())
	}
}
