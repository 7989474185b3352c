package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"dirauth/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// watchInterval is how often the watch stream pushes a stats snapshot.
const watchInterval = 2 * time.Second

// HandlePoolWatch streams pool stats snapshots over a websocket until the
// client disconnects.
func (h *Handler) HandlePoolWatch(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Get().WarnWith("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Drain client frames so close/ping handling works
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	// Push one snapshot immediately so clients don't wait a full tick
	if err := conn.WriteJSON(h.pool.Stats()); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(h.pool.Stats()); err != nil {
				return
			}
		}
	}
}
