package sockets

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var AllowedOrigins = []string{}

func init() {
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins != "" {
		for _, origin := range strings.Split(allowedOrigins, ",") {
			AllowedOrigins = append(AllowedOrigins, strings.TrimSpace(origin))
		}
		log.Info().Interface("AllowedOrigins", AllowedOrigins).Msg("set allowed origins")
	}
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 15 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = 5 * time.Second

	// Maximum message size allowed from peer. Chat content is short, but
	// LoginJWT frames carry a whole token.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		if len(AllowedOrigins) == 0 {
			return true
		}
		originHeader := r.Header.Get("Origin")
		for _, origin := range AllowedOrigins {
			if originHeader == origin {
				return true
			}
		}
		return false
	},
}

// Client is a middleman between one websocket connection and the hub. It
// holds no chat state; everything goes through hub messages.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound frames; the hub's sink for this
	// connection.
	send chan []byte

	id InternalId
}

// readPump pumps decoded packets from the websocket connection to the hub.
//
// There is at most one reader on a connection: this goroutine.
func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c.id)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway,
				websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Err(err).Stringer("id", c.id).Msg("unexpected-close")
			}
			log.Debug().Stringer("id", c.id).Err(err).Msg("read-loop-ending")
			break
		}
		if msgType == websocket.BinaryMessage {
			log.Warn().Stringer("id", c.id).Msg("cannot-decode-binary-messages")
			continue
		}
		packet, err := DecodeServerPacket(data)
		if err != nil {
			// Dropped silently on the wire to avoid amplifying garbage.
			log.Warn().Err(err).Stringer("id", c.id).Msg("could-not-decode-packet")
			continue
		}
		c.hub.HandlePacket(c.id, packet)
	}
}

// writePump pumps frames from the hub to the websocket connection.
//
// There is at most one writer to a connection: this goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the sink.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS handles one websocket request. This runs in the server's handler
// goroutine; the pumps it starts carry on afterwards.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Err(err).Msg("upgrading-socket")
		return
	}

	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	client.id = hub.Connect(client.send)
	if client.id == 0 {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
	log.Debug().Stringer("id", client.id).Msg("session-started")
}
