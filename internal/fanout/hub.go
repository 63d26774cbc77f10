// Package fanout streams observer updates to websocket subscribers.
//
// A new subscriber first receives a snapshot of the active puzzle and then
// every update pushed after it joined. Updates that race the join may be
// delivered once more after the snapshot; observers treat updates as merges so
// a repeat is harmless. Subscribers that cannot keep up are disconnected
// rather than slowing down the puzzles.
package fanout

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dyluth/lair/internal/puzzle"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// DefaultBufferSize is the number of updates queued per subscriber.
	DefaultBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans updates out to websocket subscribers. It implements puzzle.Sink
// and http.Handler.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber

	snapshot   func() puzzle.Update
	bufferSize int
	logger     logrus.FieldLogger
}

type subscriber struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// NewHub creates a hub. snapshot is called for every new subscriber and may be nil.
func NewHub(snapshot func() puzzle.Update, bufferSize int, logger logrus.FieldLogger) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if snapshot == nil {
		snapshot = func() puzzle.Update { return puzzle.Update{} }
	}
	return &Hub{
		subscribers: make(map[string]*subscriber),
		snapshot:    snapshot,
		bufferSize:  bufferSize,
		logger:      logger.WithField("component", "fanout"),
	}
}

// Push implements puzzle.Sink. It never blocks: a subscriber whose queue is
// full is dropped.
func (h *Hub) Push(update puzzle.Update) {
	data, err := json.Marshal(update)
	if err != nil {
		h.logger.WithError(err).Warn("failed to encode update")
		return
	}

	var stale []*subscriber
	h.mu.RLock()
	for _, sub := range h.subscribers {
		select {
		case sub.send <- data:
		default:
			stale = append(stale, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range stale {
		h.logger.WithField("subscriber", sub.id).Warn("subscriber too slow, disconnecting")
		h.remove(sub)
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.remove(sub)
	}
}

// ServeHTTP upgrades the request to a websocket and streams updates until the
// peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}

	sub := h.add(conn)
	first, err := json.Marshal(h.snapshot())
	if err != nil {
		h.logger.WithError(err).Warn("failed to encode snapshot")
		h.remove(sub)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"subscriber":  sub.id,
		"remote_addr": r.RemoteAddr,
	}).Info("subscriber connected")

	go h.writePump(sub, first)
	h.readPump(sub)
}

func (h *Hub) add(conn *websocket.Conn) *subscriber {
	sub := &subscriber{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.bufferSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.subscribers[sub.id] = sub
	h.mu.Unlock()
	return sub
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub.id)
	h.mu.Unlock()

	sub.closeOnce.Do(func() {
		close(sub.done)
		if sub.conn != nil {
			sub.conn.Close()
		}
		h.logger.WithField("subscriber", sub.id).Debug("subscriber removed")
	})
}

// readPump consumes control frames so pongs and close messages are seen.
func (h *Hub) readPump(sub *subscriber) {
	defer h.remove(sub)

	sub.conn.SetReadLimit(512)
	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithField("subscriber", sub.id).WithError(err).Debug("subscriber read failed")
			}
			return
		}
	}
}

func (h *Hub) writePump(sub *subscriber, first []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.remove(sub)
	}()

	if err := write(sub.conn, websocket.TextMessage, first); err != nil {
		return
	}

	for {
		select {
		case <-sub.done:
			return
		case data := <-sub.send:
			if err := write(sub.conn, websocket.TextMessage, data); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					h.logger.WithField("subscriber", sub.id).WithError(err).Debug("subscriber write failed")
				}
				return
			}
		case <-ticker.C:
			if err := write(sub.conn, websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func write(conn *websocket.Conn, messageType int, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, data)
}
