// Package fanout implements FanOut (§4.5): a lazy, single-producer,
// multiple-consumer broadcast of ProcessValues records with bounded,
// drop-oldest mailboxes so a slow subscriber can never block the
// acquisition loop.
//
// Grounded on the teacher's internal/output/exporter.go fan-out-to-sinks
// shape, generalised from a fixed list of exporters to a dynamic
// subscribe/unsubscribe registry, and on github.com/google/uuid (already in
// the teacher's go.mod) for subscriber identity.
package fanout

import (
	"sync"

	"github.com/google/uuid"

	"eurotherm-supervisor/internal/model"
)

// MailboxCapacity is the suggested per-subscriber buffer size (§4.5).
const MailboxCapacity = 256

// subscriber owns its own mutex so Publish's producer-side send and
// unsubscribe/Complete's consumer-side close can never race: both take s.mu
// before touching s.mailbox, so a send that observes closed==false is
// guaranteed to land before the channel is ever closed.
type subscriber struct {
	id      uuid.UUID
	mailbox chan model.ProcessValues

	mu     sync.Mutex
	closed bool
}

// FanOut broadcasts ProcessValues records to every current subscriber.
type FanOut struct {
	mu        sync.Mutex
	subs      map[uuid.UUID]*subscriber
	completed bool

	dropsMu sync.Mutex
	drops   map[uuid.UUID]uint64
}

// New constructs an empty FanOut.
func New() *FanOut {
	return &FanOut{
		subs:  make(map[uuid.UUID]*subscriber),
		drops: make(map[uuid.UUID]uint64),
	}
}

// Publish enqueues record into every current subscriber's mailbox. It never
// blocks: a full mailbox drops its oldest entry to make room.
func (f *FanOut) Publish(record model.ProcessValues) {
	f.mu.Lock()
	subs := make([]*subscriber, 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	for _, s := range subs {
		f.deliver(s, record)
	}
}

// deliver sends record to s's mailbox under s.mu, so it can never race with
// unsubscribe/Complete closing that same mailbox: a close first sets
// s.closed under the same lock, which deliver always checks before sending.
func (f *FanOut) deliver(s *subscriber, record model.ProcessValues) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.mailbox <- record:
		return
	default:
	}
	// Mailbox full: drop the oldest entry, then retry once.
	select {
	case <-s.mailbox:
		f.dropsMu.Lock()
		f.drops[s.id]++
		f.dropsMu.Unlock()
	default:
	}
	select {
	case s.mailbox <- record:
	default:
		// Every slot was refilled by this same call between the drain and
		// the retry, which cannot happen with a single producer; kept as a
		// safety net rather than an assumption.
		f.dropsMu.Lock()
		f.drops[s.id]++
		f.dropsMu.Unlock()
	}
}

// Subscribe registers a new subscriber and returns its stream (records
// published after this call, no replay) and an unsubscribe function. It
// fails if the FanOut has already been completed.
func (f *FanOut) Subscribe() (<-chan model.ProcessValues, func(), bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completed {
		return nil, func() {}, false
	}
	s := &subscriber{id: uuid.New(), mailbox: make(chan model.ProcessValues, MailboxCapacity)}
	f.subs[s.id] = s
	return s.mailbox, func() { f.unsubscribe(s.id) }, true
}

func (f *FanOut) unsubscribe(id uuid.UUID) {
	f.mu.Lock()
	s, ok := f.subs[id]
	if ok {
		delete(f.subs, id)
	}
	f.mu.Unlock()
	if ok {
		closeSubscriber(s)
	}
	f.dropsMu.Lock()
	delete(f.drops, id)
	f.dropsMu.Unlock()
}

// Complete closes every current subscriber's mailbox and rejects further
// Subscribe calls.
func (f *FanOut) Complete() {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return
	}
	f.completed = true
	subs := f.subs
	f.subs = make(map[uuid.UUID]*subscriber)
	f.mu.Unlock()

	for _, s := range subs {
		closeSubscriber(s)
	}
}

// closeSubscriber marks s closed and closes its mailbox under s.mu, the same
// lock deliver holds while sending — so no send can land after this returns,
// and no send-in-flight can be closed out from under it.
func closeSubscriber(s *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.mailbox)
}

// Drops reports how many records have been dropped for subscriber id due to
// a full mailbox, for diagnostics.
func (f *FanOut) Drops(id uuid.UUID) uint64 {
	f.dropsMu.Lock()
	defer f.dropsMu.Unlock()
	return f.drops[id]
}
