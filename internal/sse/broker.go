// Package sse implements a Server-Sent Events broker that streams visit
// activity and occupancy updates to report clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event is one SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// VisitData is the payload of a visit event.
type VisitData struct {
	Action string `json:"action"`
	Tag    string `json:"tag"`
	Time   string `json:"time"`
}

// OccupancyData is the payload of a (throttled) occupancy event.
type OccupancyData struct {
	Regular  int `json:"regular"`
	Oversize int `json:"oversize"`
	Combined int `json:"combined"`
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop owns all mutable
// state (clients + occupancy throttle timestamp). Public methods
// communicate with the loop through channels, so no mutexes are needed.
type Broker struct {
	occMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	occupancyCh   chan OccupancyData
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker. occupancyThrottle bounds how often
// occupancy snapshots are re-broadcast; visit events always go out.
func NewBroker(occupancyThrottle time.Duration) *Broker {
	if occupancyThrottle <= 0 {
		occupancyThrottle = 2 * time.Second
	}

	b := &Broker{
		occMin:        occupancyThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		occupancyCh:   make(chan OccupancyData, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastOccupancy time.Time
	var pendingOccupancy *OccupancyData
	var throttle <-chan time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client: drop the event rather than block the loop.
			}
		}
	}

	for {
		select {
		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}
		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}
		case ev := <-b.publishCh:
			broadcast(ev)
		case occ := <-b.occupancyCh:
			if time.Since(lastOccupancy) >= b.occMin {
				lastOccupancy = time.Now()
				pendingOccupancy = nil
				broadcast(Event{Type: "occupancy", Data: occ})
			} else {
				pendingOccupancy = &occ
				if throttle == nil {
					throttle = time.After(b.occMin - time.Since(lastOccupancy))
				}
			}
		case <-throttle:
			throttle = nil
			if pendingOccupancy != nil {
				lastOccupancy = time.Now()
				broadcast(Event{Type: "occupancy", Data: *pendingOccupancy})
				pendingOccupancy = nil
			}
		case ch := <-b.countReqCh:
			ch <- len(clients)
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return
		}
	}
}

// PublishVisit broadcasts a visit mutation to all clients.
func (b *Broker) PublishVisit(action, tag, at string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- Event{Type: "visit", Data: VisitData{Action: action, Tag: tag, Time: at}}:
	default:
	}
}

// PublishOccupancy broadcasts the current on-hand counts, throttled.
func (b *Broker) PublishOccupancy(regular, oversize int) {
	if b.closed.Load() {
		return
	}
	occ := OccupancyData{Regular: regular, Oversize: oversize, Combined: regular + oversize}
	select {
	case b.occupancyCh <- occ:
	default:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	ch := make(chan int, 1)
	select {
	case b.countReqCh <- ch:
		return <-ch
	case <-b.stopped:
		return 0
	}
}

// Stop shuts the broker down and disconnects all clients.
func (b *Broker) Stop() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
		<-b.stopped
	}
}

// ServeHTTP streams events to one client until it disconnects.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := make(chan []byte, 16)
	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer func() {
		select {
		case b.unsubscribeCh <- ch:
		case <-b.stopped:
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
