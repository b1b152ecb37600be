package httpapi

import (
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/valyala/bytebufferpool"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StreamScores upgrades to a websocket and pushes the match's player score
// updates as they land: one JSON message per update, bonus awards included.
func (h *Handler) StreamScores(w http.ResponseWriter, r *http.Request) {
	matchID := strings.TrimSpace(r.PathValue("matchID"))
	if matchID == "" {
		http.Error(w, "match id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "match_id", matchID, "error", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.hub.Subscribe(matchID)
	defer cancel()

	h.logger.Info("score stream opened",
		"match_id", matchID,
		"remote_addr", r.RemoteAddr,
		"subscribers", h.hub.SubscriberCount(matchID),
	)

	// Reader goroutine: we never expect data from the client, but reading
	// is what surfaces close frames and connection loss.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pings := time.NewTicker(wsPingInterval)
	defer pings.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-pings.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case update, ok := <-updates:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed"))
				return
			}

			buf := bytebufferpool.Get()
			raw, err := sonic.Marshal(update)
			if err != nil {
				bytebufferpool.Put(buf)
				h.logger.Error("encode score update failed", "match_id", matchID, "error", err)
				continue
			}
			_, _ = buf.Write(raw)

			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			writeErr := conn.WriteMessage(websocket.TextMessage, buf.B)
			bytebufferpool.Put(buf)
			if writeErr != nil {
				h.logger.Debug("score stream write failed", "match_id", matchID, "error", writeErr)
				return
			}
		}
	}
}
