package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"turbo-slide/internal/services"
)

var errSubscriberClosed = errors.New("subscriber closed")

// EventsHandler serves the push channels viewers follow the presenter with
type EventsHandler struct {
	broadcaster  *services.Broadcaster
	registry     *services.DeckRegistry
	writeTimeout time.Duration
	keepalive    time.Duration
	upgrader     websocket.Upgrader
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(broadcaster *services.Broadcaster, registry *services.DeckRegistry, writeTimeout, keepalive time.Duration) *EventsHandler {
	return &EventsHandler{
		broadcaster:  broadcaster,
		registry:     registry,
		writeTimeout: writeTimeout,
		keepalive:    keepalive,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Events streams slide changes of the default deck, or of ?deck=
// GET /events
func (h *EventsHandler) Events(w http.ResponseWriter, r *http.Request) {
	deck, ok := h.deckFromQuery(w, r)
	if !ok {
		return
	}
	h.serveSSE(w, r, deck)
}

// DeckEvents streams slide changes of a named deck
// GET /deck/{name}/events
func (h *EventsHandler) DeckEvents(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !h.registry.DeckExists(name) {
		http.Error(w, "Deck not found", http.StatusNotFound)
		return
	}
	h.serveSSE(w, r, name)
}

func (h *EventsHandler) deckFromQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := r.URL.Query().Get("deck")
	if name == "" {
		return h.registry.DefaultDeck(), true
	}
	if !h.registry.DeckExists(name) {
		http.Error(w, "Deck not found", http.StatusNotFound)
		return "", false
	}
	return name, true
}

// sseSubscriber writes "data: N" frames to one event-stream response
type sseSubscriber struct {
	mu           sync.Mutex
	w            io.Writer
	rc           *http.ResponseController
	writeTimeout time.Duration
	cancel       context.CancelFunc
	closed       bool
}

func (s *sseSubscriber) Send(slide int) error {
	return s.write(fmt.Sprintf("data: %d\n\n", slide))
}

// ping keeps intermediaries from timing the stream out
func (s *sseSubscriber) ping() error {
	return s.write(": keepalive\n\n")
}

func (s *sseSubscriber) write(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSubscriberClosed
	}

	if s.writeTimeout > 0 {
		// not every writer supports deadlines; ignore ErrNotSupported
		_ = s.rc.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		defer s.rc.SetWriteDeadline(time.Time{})
	}

	if _, err := io.WriteString(s.w, frame); err != nil {
		s.fail()
		return err
	}
	if err := s.rc.Flush(); err != nil {
		s.fail()
		return err
	}
	return nil
}

// fail marks the stream dead and ends its handler. Must be called with lock held.
func (s *sseSubscriber) fail() {
	s.closed = true
	s.cancel()
}

func (s *sseSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail()
}

func (h *EventsHandler) serveSSE(w http.ResponseWriter, r *http.Request, deck string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := &sseSubscriber{
		w:            w,
		rc:           http.NewResponseController(w),
		writeTimeout: h.writeTimeout,
		cancel:       cancel,
	}

	unsubscribe, err := h.broadcaster.Subscribe(deck, sub)
	if errors.Is(err, services.ErrBroadcasterClosed) {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		log.Printf("Failed to open event stream for deck %s: %v", deck, err)
		return
	}
	defer unsubscribe()

	var tick <-chan time.Time
	if h.keepalive > 0 {
		ticker := time.NewTicker(h.keepalive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			if err := sub.ping(); err != nil {
				return
			}
		}
	}
}

// SlideMessage is the JSON frame sent over the websocket
type SlideMessage struct {
	Type  string `json:"type"`
	Deck  string `json:"deck"`
	Slide int    `json:"slide"`
}

// wsSubscriber pushes slide changes over a websocket connection
type wsSubscriber struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	deck         string
	writeTimeout time.Duration
}

func (s *wsSubscriber) Send(slide int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := s.conn.WriteJSON(SlideMessage{Type: "slide", Deck: s.deck, Slide: slide}); err != nil {
		// closing the connection ends the read loop, which unsubscribes
		s.conn.Close()
		return err
	}
	return nil
}

func (s *wsSubscriber) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
}

func (s *wsSubscriber) Close() {
	s.conn.Close()
}

// WebSocket is an alternate push channel carrying the same slide changes
// GET /ws?deck={name}
func (h *EventsHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	deck, ok := h.deckFromQuery(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub := &wsSubscriber{conn: conn, deck: deck, writeTimeout: h.writeTimeout}
	unsubscribe, err := h.broadcaster.Subscribe(deck, sub)
	if err != nil {
		log.Printf("Failed to subscribe websocket for deck %s: %v", deck, err)
		return
	}
	defer unsubscribe()

	done := make(chan struct{})
	defer close(done)
	if h.keepalive > 0 {
		go func() {
			ticker := time.NewTicker(h.keepalive)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if err := sub.ping(); err != nil {
						conn.Close()
						return
					}
				}
			}
		}()
	}

	// Inbound frames are ignored; the read loop only detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
