package broadcast

import (
	"context"
	"sync"

	"netqos/pkg/utils"

	"go.uber.org/zap"
)

// Envelope is one queued broadcast message tagged with its channel.
type Envelope struct {
	Channel string
	Message any
}

// Hub owns the live subscriber set and fans tick output out to it.
// Delivery is best-effort, at-most-once per tick per subscriber: each
// subscriber has a bounded queue that overwrites its oldest entry when
// full, so a slow consumer never blocks the tick driver or its peers.
type Hub struct {
	mu        sync.RWMutex
	subs      map[string]*Subscriber
	queueSize int

	onDrop        func(subscriberID, channel string)
	onCountChange func(count int)

	logger *zap.SugaredLogger
}

func NewHub(queueSize int, logger *zap.SugaredLogger) *Hub {
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Hub{
		subs:      make(map[string]*Subscriber),
		queueSize: queueSize,
		logger:    logger,
	}
}

// OnDrop installs a hook invoked whenever a subscriber's oldest message is
// overwritten. Used for the dropped-message counter.
func (h *Hub) OnDrop(fn func(subscriberID, channel string)) {
	h.onDrop = fn
}

// OnCountChange installs a hook invoked with the subscriber count after each
// register and unregister. Used for the subscriber gauge.
func (h *Hub) OnCountChange(fn func(count int)) {
	h.onCountChange = fn
}

// Register adds a subscriber with no channel filter (receives everything
// until Subscribe narrows it).
func (h *Hub) Register() *Subscriber {
	sub := &Subscriber{
		id:       utils.GenerateSubscriberID(),
		channels: make(map[string]struct{}),
		queue:    make([]Envelope, 0, h.queueSize),
		notify:   make(chan struct{}, 1),
		closed:   make(chan struct{}),
		cap:      h.queueSize,
	}

	h.mu.Lock()
	h.subs[sub.id] = sub
	count := len(h.subs)
	h.mu.Unlock()

	if h.onCountChange != nil {
		h.onCountChange(count)
	}
	h.logger.Infow("subscriber registered", "subscriber_id", sub.id)
	return sub
}

// Unregister removes the subscriber and cancels its pending sends. Other
// subscribers and the tick driver are unaffected. Unregistering twice is a
// no-op.
func (h *Hub) Unregister(sub *Subscriber) {
	h.mu.Lock()
	_, exists := h.subs[sub.id]
	delete(h.subs, sub.id)
	count := len(h.subs)
	h.mu.Unlock()

	if exists {
		sub.close()
		if h.onCountChange != nil {
			h.onCountChange(count)
		}
		h.logger.Infow("subscriber unregistered", "subscriber_id", sub.id)
	}
}

// Broadcast enqueues the message for every subscriber whose filter includes
// the channel. The subscriber-set lock is held only to snapshot the set,
// never across an enqueue.
func (h *Hub) Broadcast(channel string, message any) {
	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	env := Envelope{Channel: channel, Message: message}
	for _, sub := range targets {
		if !sub.wants(channel) {
			continue
		}
		if dropped := sub.enqueue(env); dropped != "" && h.onDrop != nil {
			h.onDrop(sub.id, dropped)
		}
	}
}

// SubscriberCount reports the live subscriber set size.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unregisters every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*Subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

// Subscriber is one connected observer. Its queue preserves FIFO order per
// subscriber; there is no ordering guarantee across subscribers.
type Subscriber struct {
	id string

	mu       sync.Mutex
	channels map[string]struct{} // empty set means all channels
	queue    []Envelope
	head     int
	cap      int

	notify    chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *Subscriber) ID() string { return s.id }

// Subscribe narrows the filter to the given channels. Subscribing to an
// already-subscribed channel is idempotent.
func (s *Subscriber) Subscribe(channels ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		s.channels[ch] = struct{}{}
	}
}

// Unsubscribe removes channels from the filter. Unsubscribing from a
// never-subscribed channel is a no-op, not an error.
func (s *Subscriber) Unsubscribe(channels ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		delete(s.channels, ch)
	}
}

// Channels returns the current filter set.
func (s *Subscriber) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.channels))
	for ch := range s.channels {
		out = append(out, ch)
	}
	return out
}

// Next blocks until a message is queued, the subscriber is closed, or ctx
// is cancelled.
func (s *Subscriber) Next(ctx context.Context) (Envelope, bool) {
	for {
		if env, ok := s.pop(); ok {
			return env, true
		}
		select {
		case <-ctx.Done():
			return Envelope{}, false
		case <-s.closed:
			// Drain what is already queued before reporting closure.
			if env, ok := s.pop(); ok {
				return env, true
			}
			return Envelope{}, false
		case <-s.notify:
		}
	}
}

func (s *Subscriber) wants(channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.channels) == 0 {
		return true
	}
	_, ok := s.channels[channel]
	return ok
}

// enqueue appends the envelope, overwriting the oldest entry when the
// queue is full. Returns the dropped envelope's channel, if any.
func (s *Subscriber) enqueue(env Envelope) (droppedChannel string) {
	s.mu.Lock()
	if len(s.queue)-s.head >= s.cap {
		droppedChannel = s.queue[s.head].Channel
		s.head++
	}
	s.queue = append(s.queue, env)
	if s.head > 0 && s.head*2 >= len(s.queue) {
		s.queue = append([]Envelope(nil), s.queue[s.head:]...)
		s.head = 0
	}
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return droppedChannel
}

func (s *Subscriber) pop() (Envelope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.head >= len(s.queue) {
		return Envelope{}, false
	}
	env := s.queue[s.head]
	s.head++
	if s.head == len(s.queue) {
		s.queue = s.queue[:0]
		s.head = 0
	}
	return env, true
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.closed) })
}
