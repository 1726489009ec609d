package api

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/luma/imubridge/storage"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  256,
	WriteBufferSize: 1024,
}

// QuantityUpdate is pushed to websocket clients whenever the store changes.
// A full reading arrives in Reading, a single quantity in Quantity and Value.
type QuantityUpdate struct {
	Quantity string          `json:"quantity,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
	Reading  json.RawMessage `json:"reading,omitempty"`
}

func newQuantityUpdate(update *storage.Update) QuantityUpdate {
	if len(update.Key) == 0 {
		return QuantityUpdate{Reading: json.RawMessage(update.Value)}
	}

	return QuantityUpdate{
		Quantity: string(update.Key),
		Value:    json.RawMessage(update.Value),
	}
}

// stream upgrades to a websocket and pushes one QuantityUpdate per store
// update until the client goes away.
func (h *handlers) stream(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	log := h.log.Named("stream").With(zap.String("remote", c.Request.RemoteAddr))

	updates := h.store.ListenToUpdates()
	defer h.store.StopListening(updates)

	// We never expect messages from the client, reading only notices it leaving.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			log.Debug("Websocket client left")
			return

		case update, ok := <-updates:
			if !ok {
				return
			}

			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := ws.WriteJSON(newQuantityUpdate(update))
			if err != nil {
				log.Debug("Failed to push update", zap.Error(err))
				return
			}

		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
