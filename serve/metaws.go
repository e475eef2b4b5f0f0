package serve

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	// Time allowed to write message to the client
	writeWait  = 10 * time.Second
	pingPeriod = 10 * time.Second
)

// Updater pushes short text events ("restart", "config") to websocket
// clients so pages can refresh what they show.
type Updater struct {
	upgrader websocket.Upgrader
	cs       map[chan string]bool
	addc     chan chan string
	delc     chan chan string
	countc   chan chan int
	notify   chan string
	done     chan struct{}
}

func NewUpdater() *Updater {
	m := &Updater{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		cs:     make(map[chan string]bool),
		addc:   make(chan chan string),
		delc:   make(chan chan string),
		countc: make(chan chan int),
		notify: make(chan string),
		done:   make(chan struct{}),
	}
	go func() {
		for {
			select {
			case c := <-m.addc:
				m.cs[c] = true
			case c := <-m.delc:
				delete(m.cs, c)
			case r := <-m.countc:
				r <- len(m.cs)
			case msg := <-m.notify:
				for k := range m.cs {
					select {
					case k <- msg:
					default:
						// Client is behind; it will catch up on the next event.
					}
				}
			case <-m.done:
				return
			}
		}
	}()
	return m
}

// Broadcast sends msg to every connected client.
func (m *Updater) Broadcast(msg string) {
	select {
	case m.notify <- msg:
	case <-m.done:
	}
}

// Clients returns the number of connected clients.
func (m *Updater) Clients() int {
	r := make(chan int)
	select {
	case m.countc <- r:
		return <-r
	case <-m.done:
		return 0
	}
}

func (m *Updater) Close() {
	close(m.done)
}

func (m *Updater) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if _, ok := err.(websocket.HandshakeError); !ok {
			log.WithField("addr", r.RemoteAddr).Errorf("Websocket handshake failed for update stream: %v", err)
		}
		return
	}
	go m.serve(ws)
}

func (m *Updater) serve(ws *websocket.Conn) {
	clog := log.WithField("addr", ws.RemoteAddr())
	clog.Info("connected to update socket")
	defer func() {
		ws.Close()
		clog.Info("disconnected from update socket")
	}()
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	notifyc := make(chan string, 4)
	select {
	case m.addc <- notifyc:
	case <-m.done:
		return
	}
	defer func() {
		select {
		case m.delc <- notifyc:
		case <-m.done:
		}
	}()

	// Incoming messages are ignored, but reading is what processes control
	// frames and notices a closed connection.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-m.done:
			return
		case msg := <-notifyc:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		case <-pingTicker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}
