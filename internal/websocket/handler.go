package websocket

import (
	"context"

	"github.com/gofiber/websocket/v2"
)

// ServeWs runs a session connection until the peer goes away. The context
// passed to handler is cancelled as soon as the connection cannot be written to.
func ServeWs(hub *Hub, conn *websocket.Conn, sessionId string, handler MessageHandler) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newClient(hub, conn, sessionId)
	if !hub.join(client) {
		return
	}
	defer hub.leave(client)

	go client.writePump(cancel)
	client.readPump(ctx, handler)
}
