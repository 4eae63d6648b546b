package live

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // restrict in production
	},
}

// WSHandler upgrades the request and keeps the socket subscribed to the
// hub until the peer goes away. Incoming frames are drained and ignored;
// the feed is one-way.
func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		// greet before registering; broadcasts must not interleave
		// with the welcome write
		hub.WelcomeWS(ws)
		hub.AddWS(ws)
		log.Printf("[ws] client connected: %s", ws.RemoteAddr())
		defer func() {
			hub.RemoveWS(ws)
			log.Printf("[ws] client disconnected: %s", ws.RemoteAddr())
		}()

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}
}
