package rest

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"agentsplatform/internal/metrics"
)

// handleStatusStream pushes the system health summary every streamInterval
// until the client goes away
func (h *Handler) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("Status stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.StatusStreams.Inc()
	defer metrics.StatusStreams.Dec()

	// The read loop only notices the close frame
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.streamInterval)
	defer ticker.Stop()

	for {
		if err := h.pushHealth(conn); err != nil {
			h.log.Debugw("Status stream closed", "error", err)
			return
		}

		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Handler) pushHealth(conn *websocket.Conn) error {
	var health metrics.SystemHealth
	if h.monitor != nil {
		health = h.monitor.GetSystemHealth()
	}
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(health)
}
