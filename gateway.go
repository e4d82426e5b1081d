package main

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection. The room field is written only
// by this connection's readPump. The send channel is never closed;
// done is closed exactly once when the connection drops, and room
// actors check it before queueing messages.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan any
	done    chan struct{}
	limiter *rate.Limiter
	room    *Room
}

func serveWS(cfg *Config, reg *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "WS: Upgrade error from %s: %v", realIP(r), err)
			return
		}

		client := &Client{
			id:      uuid.NewString(),
			conn:    conn,
			send:    make(chan any, 16),
			done:    make(chan struct{}),
			limiter: rate.NewLimiter(10, 20),
		}

		logf(cfg, "WS: Client %s connected from %s", client.id, realIP(r))

		go client.writePump()
		client.readPump(cfg, reg)
	}
}

func (c *Client) readPump(cfg *Config, reg *Registry) {
	defer func() {
		close(c.done)
		if c.room != nil {
			c.room.depart(c)
		}
		_ = c.conn.Close()

		logf(cfg, "WS: Client %s disconnected", c.id)
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		if !c.limiter.Allow() {
			logf(cfg, "WS: Client %s rate limited, dropping %q", c.id, msg.Type)
			continue
		}

		c.dispatch(cfg, reg, msg)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// dispatch routes one inbound message. Errors from direct user actions
// (create/join/rejoin/get-state) are surfaced as error events; stale
// in-room messages for unknown rooms are dropped silently.
func (c *Client) dispatch(cfg *Config, reg *Registry, msg ClientMessage) {
	switch msg.Type {
	case "create-room":
		if c.room != nil {
			return
		}

		room, player, err := reg.Create(c, msg.PlayerName, msg.UserID, msg.Theme)
		if err != nil {
			logf(cfg, "WS: Create failed for client %s: %v", c.id, err)
			c.sendError("Failed to create room")
			return
		}

		c.room = room
		c.send <- RoomCreatedMessage{
			Type:     "room-created",
			RoomCode: room.code,
			Player:   player,
		}

	case "join-room":
		if c.room != nil {
			return
		}

		room, err := reg.Get(msg.RoomCode)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		if err := room.requestJoin(c, msg.PlayerName, msg.UserID); err != nil {
			c.sendError(err.Error())
			return
		}

		c.room = room

	case "rejoin-room":
		if c.room != nil {
			return
		}

		room, err := reg.Get(msg.RoomCode)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		if err := room.requestRejoin(c, msg.UserID); err != nil {
			c.sendError(err.Error())
			return
		}

		c.room = room

	case "get-room-state":
		room, err := reg.Get(msg.RoomCode)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		if !room.deliver(envelope{from: c, msg: msg}) {
			c.sendError(errRoomNotFound.Error())
		}

	case "start-game", "submit-answer", "next-round", "theme-selected":
		room, err := reg.Get(msg.RoomCode)
		if err != nil {
			logf(cfg, "WS: Dropping %q for unknown room %q", msg.Type, msg.RoomCode)
			return
		}
		room.deliver(envelope{from: c, msg: msg})

	default:
		// Unknown types are ignored.
	}
}

func (c *Client) sendError(message string) {
	select {
	case c.send <- ErrorMessage{Type: "error", Message: message}:
	default:
	}
}
