package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Kind names an event type.
type Kind string

const (
	SlackDelivered Kind = "slack.delivered"
	SlackFailed    Kind = "slack.failed"
	MailSent       Kind = "mail.sent"
	MailFailed     Kind = "mail.failed"
	ConfigReloaded Kind = "config.reloaded"
)

// Event is a lightweight, in-memory signal used to decouple components.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Subscribers get buffered channels; slow ones drop events.
type Event struct {
	Kind Kind
	Time time.Time
	Data any
}

// Delivery is the payload of the slack.* and mail.* events.
type Delivery struct {
	Level   string
	Subject string
	Channel string
	Ts      string
	Err     string
}

// Stats is a point-in-time view of bus activity.
type Stats struct {
	Published   uint64
	Dropped     uint64
	Subscribers int
	ByKind      map[Kind]uint64
}

type Bus interface {
	Publish(e Event)
	// Subscribe receives events of the given kinds, or all events when none are given.
	Subscribe(buffer int, kinds ...Kind) (ch <-chan Event, unsubscribe func())
	Stats() Stats
}

// New returns an in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]*subscriber{}, byKind: map[Kind]uint64{}}
}

type subscriber struct {
	ch    chan Event
	kinds map[Kind]struct{}
}

func (s *subscriber) wants(k Kind) bool {
	if len(s.kinds) == 0 {
		return true
	}
	_, ok := s.kinds[k]
	return ok
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]*subscriber
	seq  atomic.Uint64

	published atomic.Uint64
	dropped   atomic.Uint64

	kindMu sync.Mutex
	byKind map[Kind]uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.published.Add(1)
	b.kindMu.Lock()
	b.byKind[e.Kind]++
	b.kindMu.Unlock()

	// Deliver under the read lock; unsubscribe closes channels under the write lock.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !s.wants(e.Kind) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *memBus) Subscribe(buffer int, kinds ...Kind) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &subscriber{ch: make(chan Event, buffer)}
	if len(kinds) > 0 {
		s.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = struct{}{}
		}
	}
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(s.ch)
			b.mu.Unlock()
		})
	}
	return s.ch, unsub
}

func (b *memBus) Stats() Stats {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()

	b.kindMu.Lock()
	byKind := make(map[Kind]uint64, len(b.byKind))
	for k, v := range b.byKind {
		byKind[k] = v
	}
	b.kindMu.Unlock()

	return Stats{
		Published:   b.published.Load(),
		Dropped:     b.dropped.Load(),
		Subscribers: n,
		ByKind:      byKind,
	}
}
