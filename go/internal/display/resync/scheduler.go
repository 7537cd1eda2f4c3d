// Package resync bounds drift from lost push events by scheduling
// full-snapshot pulls: shortly after the first connect, on a fixed
// interval while connected, and reactively after event classes that
// carry only partial information. The per-reconnect pull is the
// session's own, issued inline; the scheduler just restarts the cadence.
package resync

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bingoboard/go/internal/display/event"
)

// Reason says why a pull was scheduled.
type Reason string

const (
	ReasonInitial   Reason = "initial"
	ReasonReconnect Reason = "reconnect"
	ReasonInterval  Reason = "interval"
	ReasonEvent     Reason = "event"
)

type signalKind int

const (
	sigConnected signalKind = iota
	sigReconnected
	sigDisconnected
	sigEvent
)

type signal struct {
	kind signalKind
	ev   event.Type
}

// Scheduler emits pull reasons on a channel the session loop consumes.
// All timing goes through a clockwork.Clock so tests can drive it.
type Scheduler struct {
	clock        clockwork.Clock
	interval     time.Duration
	initialDelay time.Duration

	pulls   chan Reason
	signals chan signal
	done    chan struct{}
	once    sync.Once
}

// NewScheduler starts the scheduling loop. interval is the periodic pull
// cadence while connected; initialDelay spaces the first pull off the
// connect handshake.
func NewScheduler(clock clockwork.Clock, interval, initialDelay time.Duration) *Scheduler {
	s := &Scheduler{
		clock:        clock,
		interval:     interval,
		initialDelay: initialDelay,
		pulls:        make(chan Reason, 8),
		signals:      make(chan signal, 16),
		done:         make(chan struct{}),
	}
	go s.run()
	return s
}

// Pulls is the channel of scheduled pull reasons.
func (s *Scheduler) Pulls() <-chan Reason {
	return s.pulls
}

// OnConnected arms the initial pull and the periodic cadence. Call once,
// for the first successful connect.
func (s *Scheduler) OnConnected() {
	s.signal(signal{kind: sigConnected})
}

// OnReconnected restarts the periodic cadence after a reconnect. The
// reconnect pull itself is issued synchronously by the session, so no
// push frame from the new connection can be folded ahead of it.
func (s *Scheduler) OnReconnected() {
	s.signal(signal{kind: sigReconnected})
}

// OnDisconnected pauses all periodic pulling until the next reconnect.
func (s *Scheduler) OnDisconnected() {
	s.signal(signal{kind: sigDisconnected})
}

// OnEvent gives the scheduler a chance to pull reactively after event
// classes that leave dependent fields (financials) stale.
func (s *Scheduler) OnEvent(t event.Type) {
	s.signal(signal{kind: sigEvent, ev: t})
}

// Stop shuts the scheduling loop down and cancels outstanding timers.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *Scheduler) signal(sg signal) {
	select {
	case s.signals <- sg:
	case <-s.done:
	}
}

// reactive lists the event classes that warrant an immediate pull: status
// flips that carry no financial payload, and the comprehensive reset,
// whose newGameId is all it tells us.
func reactive(t event.Type) bool {
	switch t {
	case event.TypeGamePaused, event.TypeGameResumed, event.TypeComprehensiveReset:
		return true
	}
	return false
}

func (s *Scheduler) run() {
	var (
		initial clockwork.Timer
		ticker  clockwork.Ticker
	)
	defer func() {
		if initial != nil {
			initial.Stop()
		}
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		var initialCh, tickCh <-chan time.Time
		if initial != nil {
			initialCh = initial.Chan()
		}
		if ticker != nil {
			tickCh = ticker.Chan()
		}

		select {
		case <-s.done:
			return

		case sg := <-s.signals:
			switch sg.kind {
			case sigConnected:
				initial = s.clock.NewTimer(s.initialDelay)
				ticker = s.clock.NewTicker(s.interval)

			case sigReconnected:
				if ticker != nil {
					ticker.Reset(s.interval)
				} else {
					ticker = s.clock.NewTicker(s.interval)
				}

			case sigDisconnected:
				if ticker != nil {
					ticker.Stop()
					ticker = nil
				}
				if initial != nil {
					initial.Stop()
					initial = nil
				}

			case sigEvent:
				if reactive(sg.ev) {
					s.emit(ReasonEvent)
				}
			}

		case <-initialCh:
			initial = nil
			s.emit(ReasonInitial)

		case <-tickCh:
			s.emit(ReasonInterval)
		}
	}
}

// emit queues a pull without blocking the loop. Pulls coalesce: if the
// session is already draining a backlog, dropping one is harmless because
// snapshots are authoritative.
func (s *Scheduler) emit(r Reason) {
	select {
	case s.pulls <- r:
	default:
		log.Debug().Str("reason", string(r)).Msg("pull queue full, coalescing resync request")
	}
}
