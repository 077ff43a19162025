package push

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades r to a websocket, subscribes it to topic on hub, and
// pumps queued payloads to the client until the connection drops, the hub
// disconnects it, or the client sends anything (this fabric is outbound
// only; inbound frames just keep the read loop alive to detect close).
func ServeWS(hub *Hub, topic string, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[push] upgrade failed for topic %s: %v", topic, err)
		return
	}

	sub := hub.Subscribe(topic)
	go readPump(conn, hub, sub)
	writePump(conn, hub, sub)
}

func writePump(conn *websocket.Conn, hub *Hub, sub *Subscriber) {
	defer conn.Close()
	for {
		select {
		case <-sub.Done():
			return
		case payload, ok := <-sub.Messages():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(hub.cfg.SendDeadline))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				hub.Unsubscribe(sub)
				return
			}
		}
	}
}

// readPump drains and discards client messages; its only job is to notice
// the connection closing so the subscriber can be cleaned up quietly.
func readPump(conn *websocket.Conn, hub *Hub, sub *Subscriber) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			hub.Unsubscribe(sub)
			return
		}
	}
}
