package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"umaka/models"
	"umaka/pkg/capture"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer
	wsWriteWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	wsPongWait = 60 * time.Second

	// Send pings with this period (must be less than wsPongWait)
	wsPingPeriod = (wsPongWait * 9) / 10

	// Maximum inbound message size; overlay frames are tiny
	wsMaxMsgSize = 512

	// Buffer size for outbound messages per client
	wsSendBuffer = 16
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The overlay runs next to the game, not in a browser; accept any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// overlayMsg is the frame format in both directions. Overlays send
// {"type":"capture"} to trigger a scan; the hub pushes sheet and error
// frames back.
type overlayMsg struct {
	Type  string `json:"type"`
	Force bool   `json:"force,omitempty"`
	Error string `json:"error,omitempty"`
}

// Hub fans evaluated sheets out to every connected overlay client and owns
// client registration. A client that cannot keep up is disconnected rather
// than allowed to stall a broadcast.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*overlayClient]bool
	register   chan *overlayClient
	unregister chan *overlayClient
	broadcast  chan []byte
}

func newOverlayHub() *Hub {
	return &Hub{
		clients:    make(map[*overlayClient]bool),
		register:   make(chan *overlayClient),
		unregister: make(chan *overlayClient),
		broadcast:  make(chan []byte, 16),
	}
}

func (h *Hub) run() {
	for {
		select {
		case cl := <-h.register:
			h.mu.Lock()
			h.clients[cl] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.Info().Str("client", cl.id).Int("clients", n).Msg("overlay connected")
		case cl := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[cl]; ok {
				delete(h.clients, cl)
				close(cl.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Info().Str("client", cl.id).Int("clients", n).Msg("overlay disconnected")
		case msg := <-h.broadcast:
			h.mu.Lock()
			for cl := range h.clients {
				select {
				case cl.send <- msg:
				default:
					// client too slow, drop it
					delete(h.clients, cl)
					close(cl.send)
					log.Warn().Str("client", cl.id).Msg("overlay client lagging, dropped")
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount is read by the status endpoint.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastSheet pushes one evaluated sheet to every connected overlay.
func (h *Hub) BroadcastSheet(sheet *models.StatSheet) {
	payload, err := json.Marshal(gin.H{"type": "sheet", "sheet": sheetJSON(sheet)})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		log.Warn().Msg("overlay broadcast queue full, dropping sheet")
	}
}

type overlayClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// overlayWSHandler upgrades the connection and parks the client in the hub.
func overlayWSHandler(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("overlay upgrade failed")
		return
	}
	cl := &overlayClient{id: uuid.NewString(), conn: conn, send: make(chan []byte, wsSendBuffer)}
	overlayHub.register <- cl
	go cl.writePump()
	go cl.readPump()
}

func (cl *overlayClient) readPump() {
	defer func() {
		overlayHub.unregister <- cl
		cl.conn.Close()
	}()
	cl.conn.SetReadLimit(wsMaxMsgSize)
	cl.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	cl.conn.SetPongHandler(func(string) error {
		cl.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		var msg overlayMsg
		if err := cl.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Str("client", cl.id).Err(err).Msg("overlay read error")
			}
			return
		}
		switch msg.Type {
		case "capture":
			go cl.handleCapture(msg.Force)
		default:
			cl.trySend(errorFrame("unknown message type"))
		}
	}
}

// handleCapture runs the scan off the read loop so a long OCR pass cannot
// block further messages. The result reaches every overlay through the
// broadcast; only failures go back to the requesting client alone.
func (cl *overlayClient) handleCapture(force bool) {
	_, err := runDeviceScan(force, "overlay")
	switch {
	case err == nil:
	case errors.Is(err, ErrScanBusy):
		cl.trySend(errorFrame("scan already in progress"))
	case errors.Is(err, capture.ErrUnchanged):
		cl.trySend(errorFrame("screen unchanged since last scan"))
	case errors.Is(err, capture.ErrNoDisplay):
		cl.trySend(errorFrame("no screen source available"))
	default:
		log.Error().Err(err).Str("client", cl.id).Msg("overlay scan failed")
		cl.trySend(errorFrame("scan failed"))
	}
}

func (cl *overlayClient) trySend(b []byte) {
	select {
	case cl.send <- b:
	default:
	}
}

func (cl *overlayClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func errorFrame(msg string) []byte {
	b, _ := json.Marshal(overlayMsg{Type: "error", Error: msg})
	return b
}
