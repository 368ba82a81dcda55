package services

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"turbo-slide/internal/metrics"
)

// Subscriber is one live push connection
type Subscriber interface {
	// Send pushes a slide number. It is called with the broadcaster lock held
	// and must not call back into the Broadcaster.
	Send(slide int) error
	// Close tears the underlying connection down.
	Close()
}

// ChangeListener observes every broadcast after it has been fanned out.
// Listeners run outside the broadcaster lock, one broadcast at a time.
type ChangeListener interface {
	SlideChanged(deck string, slide int)
}

// deckChannel is the broadcast state of one deck key
type deckChannel struct {
	current     int
	subscribers map[string]Subscriber
}

func newDeckChannel() *deckChannel {
	return &deckChannel{
		current:     1,
		subscribers: make(map[string]Subscriber),
	}
}

// Broadcaster owns the "current slide" cursor of every deck and fans changes
// out to subscribers. One mutex guards all state and is held for a whole
// broadcast, so concurrent broadcasts reach every subscriber in the same order.
type Broadcaster struct {
	mu        sync.Mutex
	decks     map[string]*deckChannel
	listeners []ChangeListener
	closed    bool

	// Listener calls are ordered by ticket, taken under mu and served
	// under notifyMu, so mu is never held while a listener runs.
	nextTicket uint64
	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	served     uint64
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster() *Broadcaster {
	b := &Broadcaster{
		decks: make(map[string]*deckChannel),
	}
	b.notifyCond = sync.NewCond(&b.notifyMu)
	return b
}

// channel returns the state for deck, creating it on first use.
// Must be called with lock held.
func (b *Broadcaster) channel(deck string) *deckChannel {
	ch, exists := b.decks[deck]
	if !exists {
		ch = newDeckChannel()
		b.decks[deck] = ch
	}
	return ch
}

// AddListener registers a change listener
func (b *Broadcaster) AddListener(l ChangeListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Subscribe registers sub for deck and synchronously sends it the current
// slide. The returned function unregisters it; calling it more than once is
// harmless.
func (b *Broadcaster) Subscribe(deck string, sub Subscriber) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBroadcasterClosed
	}

	ch := b.channel(deck)
	if err := sub.Send(ch.current); err != nil {
		return nil, fmt.Errorf("failed to send initial slide: %w", err)
	}

	id := uuid.NewString()
	ch.subscribers[id] = sub
	metrics.Subscribers.WithLabelValues(deck).Set(float64(len(ch.subscribers)))

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(deck, id) })
	}, nil
}

func (b *Broadcaster) unsubscribe(deck, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, exists := b.decks[deck]
	if !exists {
		return
	}
	if _, exists := ch.subscribers[id]; !exists {
		return
	}
	delete(ch.subscribers, id)
	metrics.Subscribers.WithLabelValues(deck).Set(float64(len(ch.subscribers)))
}

// SetCurrentSlide updates the cursor without notifying anyone
func (b *Broadcaster) SetCurrentSlide(deck string, index int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channel(deck).current = index
	metrics.CurrentSlide.WithLabelValues(deck).Set(float64(index))
}

// Broadcast sets the cursor and pushes it to every subscriber of deck.
// A failing subscriber is logged and skipped; it is removed when its own
// connection handler unsubscribes. Returns the number of successful pushes.
func (b *Broadcaster) Broadcast(deck string, index int) int {
	b.mu.Lock()

	ch := b.channel(deck)
	ch.current = index
	metrics.CurrentSlide.WithLabelValues(deck).Set(float64(index))
	metrics.BroadcastsTotal.WithLabelValues(deck).Inc()

	delivered := 0
	for id, sub := range ch.subscribers {
		if err := sub.Send(index); err != nil {
			metrics.PushFailuresTotal.WithLabelValues(deck).Inc()
			log.Printf("Warning: push to subscriber %s (deck=%s) failed: %v", id, deck, err)
			continue
		}
		delivered++
	}

	listeners := append([]ChangeListener(nil), b.listeners...)
	ticket := b.nextTicket
	b.nextTicket++
	b.mu.Unlock()

	b.notify(ticket, listeners, deck, index)

	return delivered
}

// notify runs listeners once every earlier ticket has been served
func (b *Broadcaster) notify(ticket uint64, listeners []ChangeListener, deck string, index int) {
	b.notifyMu.Lock()
	for b.served != ticket {
		b.notifyCond.Wait()
	}
	b.notifyMu.Unlock()

	defer func() {
		b.notifyMu.Lock()
		b.served++
		b.notifyCond.Broadcast()
		b.notifyMu.Unlock()
	}()

	for _, l := range listeners {
		l.SlideChanged(deck, index)
	}
}

// CurrentSlide returns the cursor for deck, 1 if nothing was broadcast yet
func (b *Broadcaster) CurrentSlide(deck string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, exists := b.decks[deck]; exists {
		return ch.current
	}
	return 1
}

// SubscriberCount returns the number of subscribers of deck
func (b *Broadcaster) SubscriberCount(deck string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, exists := b.decks[deck]; exists {
		return len(ch.subscribers)
	}
	return 0
}

// TotalSubscribers returns the number of subscribers across all decks
func (b *Broadcaster) TotalSubscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	for _, ch := range b.decks {
		total += len(ch.subscribers)
	}
	return total
}

// Close drains every subscriber. Later Subscribe calls fail with
// ErrBroadcasterClosed.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for deck, ch := range b.decks {
		for _, sub := range ch.subscribers {
			sub.Close()
		}
		ch.subscribers = make(map[string]Subscriber)
		metrics.Subscribers.WithLabelValues(deck).Set(0)
	}

	log.Printf("Broadcaster closed")
}
