// Package sse implements a Server-Sent Events broker for real-time updates.
package sse

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/starford/questcard/internal/quest"
)

const (
	clientBuffer   = 64
	defaultHistory = 128
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Frame is one encoded event as delivered to subscribers.
type Frame struct {
	ID   uint64
	Type string
	Data []byte
}

// Format renders the frame in the text/event-stream wire format.
func (f Frame) Format() []byte {
	buf := make([]byte, 0, len(f.Data)+len(f.Type)+32)
	buf = append(buf, "id: "...)
	buf = strconv.AppendUint(buf, f.ID, 10)
	buf = append(buf, "\nevent: "...)
	buf = append(buf, f.Type...)
	buf = append(buf, "\ndata: "...)
	buf = append(buf, f.Data...)
	return append(buf, "\n\n"...)
}

type documentEventReq struct {
	kind string
	id   string
}

type subscribeReq struct {
	ch     chan Frame
	lastID uint64
	replay bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithHistory sets how many recent frames are kept for Last-Event-ID replay.
func WithHistory(n int) Option {
	return func(b *Broker) { b.history = n }
}

// WithKeepAlive sets the interval of comment frames sent to idle streams.
// Zero disables them.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) { b.keepAlive = d }
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop goroutine owns the client set, the replay ring and the
// embeds.updated throttle timestamp. Public methods talk to it through channels.
type Broker struct {
	embedsMin time.Duration
	history   int
	keepAlive time.Duration

	subscribeCh   chan subscribeReq
	unsubscribeCh chan chan Frame
	publishCh     chan Event
	documentCh    chan documentEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. embedsThrottle is the minimum interval
// between two embeds.updated events.
func NewBroker(embedsThrottle time.Duration, opts ...Option) *Broker {
	if embedsThrottle <= 0 {
		embedsThrottle = 2 * time.Second
	}

	b := &Broker{
		embedsMin:     embedsThrottle,
		history:       defaultHistory,
		keepAlive:     15 * time.Second,
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan chan Frame),
		publishCh:     make(chan Event, 256),
		documentCh:    make(chan documentEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan Frame]struct{})
	ring := make([]Frame, 0, b.history)
	var nextID uint64
	var lastEmbeds time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		nextID++
		f := Frame{ID: nextID, Type: event.Type, Data: payload}

		if b.history > 0 {
			if len(ring) == b.history {
				ring = append(ring[:0], ring[1:]...)
			}
			ring = append(ring, f)
		}

		for ch := range clients {
			select {
			case ch <- f:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case req := <-b.subscribeCh:
			clients[req.ch] = struct{}{}
			if !req.replay {
				continue
			}
			for _, f := range ring {
				if f.ID <= req.lastID {
					continue
				}
				select {
				case req.ch <- f:
				default:
				}
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.documentCh:
			data := map[string]string{"id": req.id}
			switch req.kind {
			case "created", "updated", "deleted":
				broadcast(Event{Type: "document." + req.kind, Data: data})
			default:
				continue
			}

			now := time.Now()
			if now.Sub(lastEmbeds) >= b.embedsMin {
				lastEmbeds = now
				broadcast(Event{Type: "embeds.updated", Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan Frame {
	return b.subscribe(subscribeReq{})
}

// SubscribeFrom adds a new client and first delivers the retained frames
// newer than lastID.
func (b *Broker) SubscribeFrom(lastID uint64) chan Frame {
	return b.subscribe(subscribeReq{lastID: lastID, replay: true})
}

func (b *Broker) subscribe(req subscribeReq) chan Frame {
	req.ch = make(chan Frame, clientBuffer)
	if b.closed.Load() {
		close(req.ch)
		return req.ch
	}

	select {
	case b.subscribeCh <- req:
	case <-b.stopped:
		close(req.ch)
	}

	return req.ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan Frame) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishDocumentEvent publishes a document change and a throttled
// embeds.updated event. kind is "created", "updated" or "deleted".
func (b *Broker) PublishDocumentEvent(kind, id string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.documentCh <- documentEventReq{kind: kind, id: id}:
	case <-b.stopped:
	}
}

// QuestResolved is the payload of quest.resolved events.
type QuestResolved struct {
	QuestID    string `json:"quest_id"`
	State      string `json:"state"`
	DurationMS int64  `json:"duration_ms"`
}

// CommitHook returns a view hook publishing quest.resolved for every settled fetch.
func (b *Broker) CommitHook() quest.CommitHook {
	return func(c quest.Commit) {
		b.Publish(Event{Type: "quest.resolved", Data: QuestResolved{
			QuestID:    c.QuestID,
			State:      c.State.String(),
			DurationMS: c.Duration.Milliseconds(),
		}})
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). A Last-Event-ID
// header, or the last_event_id query parameter for clients that cannot set
// headers, resumes the stream from the replay buffer.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var ch chan Frame
	if lastID, ok := lastEventID(r); ok {
		ch = b.SubscribeFrom(lastID)
	} else {
		ch = b.Subscribe()
	}
	defer b.Unsubscribe(ch)

	var tick <-chan time.Time
	if b.keepAlive > 0 {
		ticker := time.NewTicker(b.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case f, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(f.Format())
			flusher.Flush()
		}
	}
}

func lastEventID(r *http.Request) (uint64, bool) {
	v := r.Header.Get("Last-Event-ID")
	if v == "" {
		v = r.URL.Query().Get("last_event_id")
	}
	if v == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
