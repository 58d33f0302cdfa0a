package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sukalov/lyricstudio/internal/logger"
	"github.com/sukalov/lyricstudio/internal/studio"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	maxMessage = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// same policy as the CORS middleware
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientMessage is what an editor sends over the socket: the same edit and
// select events the REST endpoints accept, with code point offsets.
type clientMessage struct {
	Type      string            `json:"type"`
	Text      string            `json:"text"`
	Selection *studio.Selection `json:"selection"`
}

type wsClient struct {
	hub     *Hub
	session *studio.Session
	conn    *websocket.Conn
	send    chan []byte
	// events up to this seq are already in the snapshot
	after uint64
}

type envelope struct {
	sessionID string
	seq       uint64
	data      []byte
}

// Hub fans studio events out to the sockets watching each session.
type Hub struct {
	clients      map[string]map[*wsClient]bool
	broadcast    chan envelope
	register     chan *wsClient
	unregister   chan *wsClient
	closeSession chan string
	done         chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:      make(map[string]map[*wsClient]bool),
		broadcast:    make(chan envelope, 256),
		register:     make(chan *wsClient),
		unregister:   make(chan *wsClient),
		closeSession: make(chan string, 16),
		done:         make(chan struct{}),
	}
}

// Run owns the client registry until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			id := c.session.ID()
			if h.clients[id] == nil {
				h.clients[id] = make(map[*wsClient]bool)
			}
			h.clients[id][c] = true
			logger.Debug(fmt.Sprintf("websocket connected to session %s (%d watching)", id, len(h.clients[id])))

		case c := <-h.unregister:
			h.drop(c)

		case id := <-h.closeSession:
			for c := range h.clients[id] {
				h.drop(c)
			}

		case msg := <-h.broadcast:
			for c := range h.clients[msg.sessionID] {
				if msg.seq <= c.after {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					// slow reader
					h.drop(c)
				}
			}

		case <-ctx.Done():
			for _, clients := range h.clients {
				for c := range clients {
					h.drop(c)
				}
			}
			return
		}
	}
}

func (h *Hub) drop(c *wsClient) {
	id := c.session.ID()
	if _, ok := h.clients[id][c]; !ok {
		return
	}
	delete(h.clients[id], c)
	if len(h.clients[id]) == 0 {
		delete(h.clients, id)
	}
	close(c.send)
}

// Listen is a studio.Listener. Events are dropped when the hub is backed up.
func (h *Hub) Listen(ev studio.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to marshal %s event: %v", ev.Kind, err))
		return
	}
	select {
	case h.broadcast <- envelope{sessionID: ev.SessionID, seq: ev.Seq, data: data}:
	default:
		logger.Error(fmt.Sprintf("websocket broadcast full, dropping %s for %s", ev.Kind, ev.SessionID))
	}
}

// CloseSession disconnects every socket watching id.
func (h *Hub) CloseSession(id string) {
	select {
	case h.closeSession <- id:
	default:
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error(fmt.Sprintf("websocket upgrade failed: %v", err))
		return
	}

	current := sess.Current()
	c := &wsClient{hub: s.hub, session: sess, conn: conn, send: make(chan []byte, 256), after: current.Seq}

	// the current state first so the editor can render right away
	if snapshot, err := json.Marshal(current); err == nil {
		c.send <- snapshot
	}

	select {
	case s.hub.register <- c:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error(fmt.Sprintf("websocket unexpected close: %v", err))
			}
			return
		}
		c.apply(msg)
	}
}

func (c *wsClient) apply(msg clientMessage) {
	var err error
	switch msg.Type {
	case "edit":
		sel := studio.Cursor(len([]rune(msg.Text)))
		if msg.Selection != nil {
			sel = *msg.Selection
		}
		err = c.session.Edit(msg.Text, sel)
	case "select":
		if msg.Selection != nil {
			err = c.session.Select(*msg.Selection)
		}
	case "suggest":
		c.session.RequestSuggestions()
	default:
		logger.Debug(fmt.Sprintf("ignoring websocket message %q", msg.Type))
	}
	if err != nil {
		logger.Debug(fmt.Sprintf("websocket %s on session %s: %v", msg.Type, c.session.ID(), err))
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one event per frame so clients can parse each as JSON
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
