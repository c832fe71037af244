package trace

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/colorfulnotion/rv32emu/log"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 54 * time.Second
	pongWait   = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Broadcaster streams trace records to WebSocket subscribers. Slow
// subscribers are disconnected rather than stalling the emulator.
type Broadcaster struct {
	clients    map[*subscriber]struct{}
	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan []byte
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	connected  atomic.Int64
	dropped    atomic.Uint64
}

type subscriber struct {
	hub  *Broadcaster
	conn *websocket.Conn
	send chan []byte
}

func NewBroadcaster(ctx context.Context) *Broadcaster {
	cctx, cancel := context.WithCancel(ctx)
	b := &Broadcaster{
		clients:    make(map[*subscriber]struct{}),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan []byte, 1024),
		ctx:        cctx,
		cancel:     cancel,
	}
	b.wg.Add(1)
	go b.run()
	return b
}

func (b *Broadcaster) run() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			for c := range b.clients {
				close(c.send)
			}
			return
		case c := <-b.register:
			b.clients[c] = struct{}{}
			b.connected.Add(1)
		case c := <-b.unregister:
			if _, ok := b.clients[c]; ok {
				delete(b.clients, c)
				close(c.send)
				b.connected.Add(-1)
			}
		case msg := <-b.broadcast:
			for c := range b.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(b.clients, c)
					b.connected.Add(-1)
				}
			}
		}
	}
}

// Clients is the number of registered subscribers.
func (b *Broadcaster) Clients() int {
	return int(b.connected.Load())
}

// Dropped counts records discarded because the hub was saturated.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// WriteRecord queues rec for every subscriber. It never blocks on the
// network.
func (b *Broadcaster) WriteRecord(rec *Record) error {
	msg, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	select {
	case <-b.ctx.Done():
		return b.ctx.Err()
	case b.broadcast <- msg:
	default:
		b.dropped.Add(1)
	}
	return nil
}

// ServeHTTP upgrades the request and subscribes the connection.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn(log.CLIModule, "trace websocket upgrade", "err", err)
		return
	}
	c := &subscriber{hub: b, conn: conn, send: make(chan []byte, 256)}
	select {
	case b.register <- c:
	case <-b.ctx.Done():
		conn.Close()
		return
	}
	b.wg.Add(2)
	go c.writePump()
	go c.readPump()
}

// Close disconnects every subscriber and stops the hub.
func (b *Broadcaster) Close() {
	b.cancel()
	b.wg.Wait()
}

// readPump only services control frames; subscribers do not send data.
func (c *subscriber) readPump() {
	defer c.hub.wg.Done()
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Trace(log.CLIModule, "trace websocket closed", "err", err)
			}
			return
		}
	}
}

func (c *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.hub.wg.Done()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
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
