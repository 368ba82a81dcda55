package services

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeSubscriber struct {
	mu       sync.Mutex
	received []int
	err      error
	closed   bool
}

func (f *fakeSubscriber) Send(slide int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.received = append(f.received, slide)
	return nil
}

func (f *fakeSubscriber) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSubscriber) messages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.received...)
}

type recordingListener struct {
	changes []string
}

func (l *recordingListener) SlideChanged(deck string, slide int) {
	l.changes = append(l.changes, fmt.Sprintf("%s:%d", deck, slide))
}

func TestSubscribeSendsCurrentSlide(t *testing.T) {
	for _, n := range []int{1, 4, 12} {
		b := NewBroadcaster()
		b.SetCurrentSlide("default", n)

		sub := &fakeSubscriber{}
		if _, err := b.Subscribe("default", sub); err != nil {
			t.Fatalf("Subscribe: %v", err)
		}

		got := sub.messages()
		if len(got) != 1 || got[0] != n {
			t.Errorf("bootstrap with current=%d: got %v", n, got)
		}
	}
}

func TestCurrentSlideDefaultsToOne(t *testing.T) {
	b := NewBroadcaster()
	if got := b.CurrentSlide("default"); got != 1 {
		t.Errorf("CurrentSlide = %d, want 1", got)
	}
}

func TestBroadcastFanOut(t *testing.T) {
	b := NewBroadcaster()
	subs := []*fakeSubscriber{{}, {}, {}}
	for _, s := range subs {
		if _, err := b.Subscribe("default", s); err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
	}

	if delivered := b.Broadcast("default", 5); delivered != 3 {
		t.Errorf("delivered = %d, want 3", delivered)
	}

	for i, s := range subs {
		got := s.messages()
		if len(got) != 2 || got[1] != 5 {
			t.Errorf("subscriber %d got %v, want [1 5]", i, got)
		}
	}
	if got := b.CurrentSlide("default"); got != 5 {
		t.Errorf("CurrentSlide = %d, want 5", got)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := NewBroadcaster()
	first := &fakeSubscriber{}
	second := &fakeSubscriber{}

	unsubscribe, err := b.Subscribe("default", first)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := b.Subscribe("default", second); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	unsubscribe()
	if got := b.SubscriberCount("default"); got != 1 {
		t.Fatalf("SubscriberCount after unsubscribe = %d, want 1", got)
	}

	unsubscribe()
	if got := b.SubscriberCount("default"); got != 1 {
		t.Errorf("second unsubscribe removed another subscriber: count = %d", got)
	}

	b.Broadcast("default", 6)
	if got := first.messages(); len(got) != 1 {
		t.Errorf("unsubscribed subscriber received %v", got)
	}
	if got := second.messages(); len(got) != 2 || got[1] != 6 {
		t.Errorf("remaining subscriber received %v", got)
	}
}

func TestBroadcastIsolatesFailures(t *testing.T) {
	b := NewBroadcaster()
	broken := &fakeSubscriber{}
	healthy := []*fakeSubscriber{{}, {}}

	if _, err := b.Subscribe("default", broken); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	for _, s := range healthy {
		if _, err := b.Subscribe("default", s); err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
	}

	broken.mu.Lock()
	broken.err = errors.New("broken pipe")
	broken.mu.Unlock()

	if delivered := b.Broadcast("default", 3); delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}
	for i, s := range healthy {
		if got := s.messages(); len(got) != 2 || got[1] != 3 {
			t.Errorf("healthy subscriber %d got %v", i, got)
		}
	}
}

func TestSubscribeFailsWhenBootstrapFails(t *testing.T) {
	b := NewBroadcaster()
	sub := &fakeSubscriber{err: errors.New("gone")}

	if _, err := b.Subscribe("default", sub); err == nil {
		t.Fatal("expected error")
	}
	if got := b.SubscriberCount("default"); got != 0 {
		t.Errorf("SubscriberCount = %d, want 0", got)
	}
}

func TestDecksAreIsolated(t *testing.T) {
	b := NewBroadcaster()
	def := &fakeSubscriber{}
	intro := &fakeSubscriber{}

	b.Subscribe("default", def)
	b.Subscribe("intro", intro)

	b.Broadcast("intro", 7)

	if got := def.messages(); len(got) != 1 {
		t.Errorf("default deck subscriber received %v", got)
	}
	if got := b.CurrentSlide("default"); got != 1 {
		t.Errorf("default CurrentSlide = %d, want 1", got)
	}
	if got := b.CurrentSlide("intro"); got != 7 {
		t.Errorf("intro CurrentSlide = %d, want 7", got)
	}
	if got := b.TotalSubscribers(); got != 2 {
		t.Errorf("TotalSubscribers = %d, want 2", got)
	}
}

func TestSetCurrentSlideDoesNotNotify(t *testing.T) {
	b := NewBroadcaster()
	sub := &fakeSubscriber{}
	b.Subscribe("default", sub)

	b.SetCurrentSlide("default", 9)

	if got := sub.messages(); len(got) != 1 {
		t.Errorf("SetCurrentSlide notified subscriber: %v", got)
	}
	if got := b.CurrentSlide("default"); got != 9 {
		t.Errorf("CurrentSlide = %d, want 9", got)
	}
}

func TestCloseDrainsSubscribers(t *testing.T) {
	b := NewBroadcaster()
	subs := []*fakeSubscriber{{}, {}}
	var unsubscribes []func()
	for _, s := range subs {
		unsubscribe, err := b.Subscribe("default", s)
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		unsubscribes = append(unsubscribes, unsubscribe)
	}

	b.Close()

	for i, s := range subs {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if !closed {
			t.Errorf("subscriber %d was not closed", i)
		}
	}
	if got := b.TotalSubscribers(); got != 0 {
		t.Errorf("TotalSubscribers = %d, want 0", got)
	}

	// late unsubscribes from connection handlers are harmless
	for _, unsubscribe := range unsubscribes {
		unsubscribe()
	}

	if _, err := b.Subscribe("default", &fakeSubscriber{}); !errors.Is(err, ErrBroadcasterClosed) {
		t.Errorf("Subscribe after Close: err = %v, want ErrBroadcasterClosed", err)
	}
}

func TestListenersObserveBroadcasts(t *testing.T) {
	b := NewBroadcaster()
	l := &recordingListener{}
	b.AddListener(l)

	b.Broadcast("default", 2)
	b.Broadcast("intro", 3)
	b.SetCurrentSlide("default", 4)

	want := []string{"default:2", "intro:3"}
	if len(l.changes) != len(want) {
		t.Fatalf("changes = %v, want %v", l.changes, want)
	}
	for i := range want {
		if l.changes[i] != want[i] {
			t.Errorf("changes[%d] = %q, want %q", i, l.changes[i], want[i])
		}
	}
}

type blockingListener struct {
	entered chan struct{}
	release chan struct{}
}

func (l *blockingListener) SlideChanged(deck string, slide int) {
	l.entered <- struct{}{}
	<-l.release
}

func TestSlowListenerDoesNotHoldBroadcaster(t *testing.T) {
	b := NewBroadcaster()
	l := &blockingListener{entered: make(chan struct{}, 1), release: make(chan struct{})}
	b.AddListener(l)

	done := make(chan int)
	go func() { done <- b.Broadcast("default", 3) }()

	select {
	case <-l.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("listener was not called")
	}

	// a second broadcast queues its listener call behind the first
	done2 := make(chan int)
	go func() { done2 <- b.Broadcast("default", 4) }()

	// the listener is still blocked; state must stay reachable
	read := make(chan struct{})
	go func() {
		if got := b.CurrentSlide("default"); got != 3 && got != 4 {
			t.Errorf("CurrentSlide = %d, want 3 or 4", got)
		}
		sub := &fakeSubscriber{}
		if _, err := b.Subscribe("default", sub); err != nil {
			t.Errorf("Subscribe: %v", err)
		}
		if got := b.SubscriberCount("default"); got != 1 {
			t.Errorf("SubscriberCount = %d, want 1", got)
		}
		close(read)
	}()

	select {
	case <-read:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcaster state blocked behind a slow listener")
	}

	close(l.release)
	for _, ch := range []chan int{done, done2} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("Broadcast did not return after listener released")
		}
	}
}

func TestConcurrentBroadcastsAreTotallyOrdered(t *testing.T) {
	b := NewBroadcaster()
	subs := []*fakeSubscriber{{}, {}, {}}
	for _, s := range subs {
		b.Subscribe("default", s)
	}

	var wg sync.WaitGroup
	for i := 2; i <= 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b.Broadcast("default", n)
		}(i)
	}
	wg.Wait()

	reference := subs[0].messages()
	if len(reference) != 50 {
		t.Fatalf("subscriber received %d messages, want 50", len(reference))
	}
	for i, s := range subs[1:] {
		got := s.messages()
		for j := range reference {
			if got[j] != reference[j] {
				t.Fatalf("subscriber %d diverged at message %d: %d vs %d", i+1, j, got[j], reference[j])
			}
		}
	}
	if last := reference[len(reference)-1]; b.CurrentSlide("default") != last {
		t.Errorf("CurrentSlide = %d, want last delivered %d", b.CurrentSlide("default"), last)
	}
}
