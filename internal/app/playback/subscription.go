package playback

import (
	"sync"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// Subscription is an ordered stream of session events.
// PositionUpdated events are dropped when the buffer is full; other events
// wait for the subscriber.
type Subscription struct {
	id      string
	ch      chan Event
	done    chan struct{}
	once    sync.Once
	session *Session
}

// ID returns the subscription identifier.
func (sub *Subscription) ID() string {
	return sub.id
}

// Events returns the event channel. It is closed when the subscription or
// the session is closed.
func (sub *Subscription) Events() <-chan Event {
	return sub.ch
}

// Close cancels the subscription.
func (sub *Subscription) Close() {
	sub.session.unsubscribe(sub)
}

// Subscribe registers a new event subscriber.
func (s *Session) Subscribe() (*Subscription, error) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	if s.closed || s.ctx.Err() != nil {
		return nil, ErrSessionClosed
	}

	sub := &Subscription{
		id:      uuid.New().String(),
		ch:      make(chan Event, s.cfg.EventBuffer),
		done:    make(chan struct{}),
		session: s,
	}
	s.subs[sub.id] = sub

	zlog.Debug().Msgf("session: subscribed: id=%s subscribers=%d", sub.id, len(s.subs))
	return sub, nil
}

func (s *Session) unsubscribe(sub *Subscription) {
	// Unblock a pending emit before taking the write lock.
	sub.once.Do(func() { close(sub.done) })

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if _, ok := s.subs[sub.id]; ok {
		delete(s.subs, sub.id)
		close(sub.ch)
		zlog.Debug().Msgf("session: unsubscribed: id=%s", sub.id)
	}
}

func (s *Session) closeSubscriptions() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for id, sub := range s.subs {
		sub.once.Do(func() { close(sub.done) })
		close(sub.ch)
		delete(s.subs, id)
	}
	s.closed = true
}

// emit delivers e to every subscriber. During teardown every event is best-effort.
func (s *Session) emit(e Event) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	bestEffort := e.droppable() || s.ctx.Err() != nil
	for _, sub := range s.subs {
		if bestEffort {
			select {
			case sub.ch <- e:
			default:
				zlog.Trace().Msgf("session: dropped %s for subscriber %s", e.Type, sub.id)
			}
			continue
		}

		select {
		case sub.ch <- e:
		case <-sub.done:
		case <-s.ctx.Done():
		}
	}
}
