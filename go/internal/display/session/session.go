// Package session owns everything scoped to one display session token:
// the push-channel transport, the reconciled state, the resync scheduler,
// the persisted overlay cache and every timer. There is no package-level
// mutable state; Open returns the one object that holds it all and Close
// tears all of it down so late callbacks for an old token can never write
// into a newer session.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bingoboard/go/clients"
	"github.com/mcdev12/bingoboard/go/internal/display/event"
	"github.com/mcdev12/bingoboard/go/internal/display/project"
	"github.com/mcdev12/bingoboard/go/internal/display/reconcile"
	"github.com/mcdev12/bingoboard/go/internal/display/resync"
	"github.com/mcdev12/bingoboard/go/internal/display/store"
)

// Config wires one session together.
type Config struct {
	Token      string
	SocketURL  string
	APIBaseURL string

	Store store.Store
	Clock clockwork.Clock

	Transport TransportConfig

	ResyncInterval     time.Duration
	ResyncInitialDelay time.Duration

	DrawingClearAfter time.Duration
	JustStartedTTL    time.Duration
	WasActiveTTL      time.Duration
}

// DefaultConfig fills in every tunable except the token and endpoints.
func DefaultConfig() Config {
	return Config{
		Clock:              clockwork.NewRealClock(),
		Transport:          DefaultTransportConfig(),
		ResyncInterval:     30 * time.Second,
		ResyncInitialDelay: 2 * time.Second,
		DrawingClearAfter:  2 * time.Second,
		JustStartedTTL:     5 * time.Second,
		WasActiveTTL:       12 * time.Hour,
	}
}

// Session is the reconciliation engine for one display.
type Session struct {
	cfg   Config
	token string
	clock clockwork.Clock

	recon     *reconcile.Reconciler
	transport *Transport
	sched     *resync.Scheduler
	store     store.Store
	api       *clients.AuthorityClient
	bus       *Bus

	// Fold results, written only by the run loop, read through State().
	mu    sync.RWMutex
	game  reconcile.GameState
	disp  reconcile.DisplayState
	flags project.Flags

	placed   project.PlacedBetIndex
	placedCh chan project.PlacedBetIndex

	drawTimer        clockwork.Timer
	justStartedUntil time.Time
	everConnected    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Open validates the token, restores the persisted overlay snapshot and
// starts the session. It fails fast with ErrNoToken before any connection
// attempt when the token is absent or malformed.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}
	if !ValidToken(cfg.Token) {
		return nil, ErrNoToken
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemoryStore(cfg.Clock)
	}

	tcfg := cfg.Transport
	tcfg.Token = cfg.Token
	tcfg.SocketURL = cfg.SocketURL
	transport, err := NewTransport(tcfg, cfg.Clock)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		cfg:       cfg,
		token:     cfg.Token,
		clock:     cfg.Clock,
		recon:     reconcile.New(cfg.Token),
		transport: transport,
		sched:     resync.NewScheduler(cfg.Clock, cfg.ResyncInterval, cfg.ResyncInitialDelay),
		store:     cfg.Store,
		bus:       NewBus(),
		game:      reconcile.NewGameState(),
		placed:    project.PlacedBetIndex{},
		placedCh:  make(chan project.PlacedBetIndex, 1),
		ctx:       sctx,
		cancel:    cancel,
	}
	if cfg.APIBaseURL != "" {
		s.api = clients.NewAuthorityClient(cfg.APIBaseURL)
	}

	s.restoreOverlay()

	s.transport.Start()
	s.wg.Add(1)
	go s.run()

	log.Info().Str("token", s.token).Msg("display session opened")
	return s, nil
}

// Close cancels every timer and the connection. Idempotent.
func (s *Session) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.transport.Stop()
		s.sched.Stop()
		s.wg.Wait()
		s.bus.Close()
		log.Info().Str("token", s.token).Msg("display session closed")
	})
	return nil
}

// Notices subscribes to the session's internal bus.
func (s *Session) Notices(buffer int) (<-chan Notice, func()) {
	return s.bus.Subscribe(buffer)
}

// State returns copies of the current fold result and derived flags.
func (s *Session) State() (reconcile.GameState, reconcile.DisplayState, project.Flags) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g := s.game
	g.CalledNumbers = append([]int(nil), g.CalledNumbers...)
	sel := make(map[int]bool, len(g.SelectedCartelas))
	for id := range g.SelectedCartelas {
		sel[id] = true
	}
	g.SelectedCartelas = sel
	return g, s.disp, s.flags
}

// restoreOverlay recovers the persisted overlay snapshot so a reloaded
// display does not blank its selection context, unless the previous round
// was mid-game (was_active guard) in which case the snapshot is stale.
func (s *Session) restoreOverlay() {
	ctx, cancel := context.WithTimeout(s.ctx, 3*time.Second)
	defer cancel()

	wasActive, err := s.store.Guard(ctx, s.token, store.GuardWasActive)
	if err != nil {
		log.Warn().Err(err).Msg("could not read was_active guard")
		return
	}
	if wasActive {
		return
	}

	// The just_started guard outlives a restart; re-arm the suppression
	// window so the overlay does not flash open right after a reload. The
	// store only reports the flag, so the full TTL is re-armed; the
	// persisted guard's own expiry bounds how long that can recur.
	justStarted, err := s.store.Guard(ctx, s.token, store.GuardJustStarted)
	if err != nil {
		log.Warn().Err(err).Msg("could not read just_started guard")
		justStarted = false
	}
	if justStarted {
		s.justStartedUntil = s.clock.Now().Add(s.cfg.JustStartedTTL)
	}

	snap, ok, err := s.store.LoadOverlay(ctx, s.token)
	if err != nil {
		log.Warn().Err(err).Msg("could not restore overlay snapshot")
		return
	}
	if !ok {
		return
	}

	s.flags.OverlayVisible = snap.Visible && !justStarted
	sel := make(map[int]bool, len(snap.Selections))
	for _, id := range snap.Selections {
		if id >= 1 && id <= reconcile.MaxCartelaID {
			sel[id] = true
		}
	}
	s.game.SelectedCartelas = sel
	log.Debug().Int("selections", len(sel)).Bool("visible", snap.Visible).Msg("restored overlay snapshot")
}

// run is the single fold loop: one inbound frame, timer or pull trigger
// is processed to completion before the next, so there is never parallel
// mutation of the reconciled state.
func (s *Session) run() {
	defer s.wg.Done()

	for {
		var drawCh <-chan time.Time
		if s.drawTimer != nil {
			drawCh = s.drawTimer.Chan()
		}

		select {
		case <-s.ctx.Done():
			return

		case st, ok := <-s.transport.Status():
			if !ok {
				return
			}
			s.handleStatus(st)

		case f, ok := <-s.transport.Frames():
			if !ok {
				return
			}
			s.handleFrame(f)

		case reason := <-s.sched.Pulls():
			s.issuePull(string(reason))

		case idx := <-s.placedCh:
			s.mu.Lock()
			s.placed = idx
			s.mu.Unlock()
			s.reproject()

		case <-drawCh:
			s.drawTimer = nil
			s.fold(event.DrawingCleared{})
		}
	}
}

func (s *Session) handleStatus(st Status) {
	switch st.Kind {
	case StatusConnected:
		s.fold(event.Connected{})
		if s.everConnected {
			s.sched.OnReconnected()
			// Issued inline so the pull is on the wire before any push
			// frame from the new connection can fold.
			s.issuePull(string(resync.ReasonReconnect))
		} else {
			s.everConnected = true
			s.sched.OnConnected()
		}
		s.bus.Publish(Notice{Kind: NoticeConnection, Connected: true})

	case StatusDisconnected:
		s.sched.OnDisconnected()
		s.fold(event.Disconnected{})
		s.bus.Publish(Notice{
			Kind:    NoticeConnection,
			Message: "connection lost, reconnecting",
		})

	case StatusRetriesExhausted:
		s.sched.OnDisconnected()
		s.fold(event.Disconnected{Reason: "could not reach game server"})
		s.bus.Publish(Notice{
			Kind:    NoticeConnection,
			Message: "could not reach game server",
			Err:     st.Err,
		})

	case StatusFatal:
		s.fold(event.Unauthorized{})
	}
}

func (s *Session) handleFrame(f Frame) {
	ev, err := event.Normalize(f.Event, f.Data)
	if err != nil {
		// Malformed or unknown frames are dropped, never fatal.
		log.Debug().Err(err).Str("event", f.Event).Msg("dropping frame")
		return
	}
	s.fold(ev)
	s.sched.OnEvent(ev.EventType())
}

// fold applies one event, runs its effects, persists what must survive a
// reload and recomputes the derived flags. Reading s.game/s.disp here is
// always the latest fold result because only this goroutine writes them.
func (s *Session) fold(ev event.Event) {
	s.mu.Lock()
	prevSel := s.game.SelectedCartelas
	prevStatus := s.game.Status
	g, d, effects := s.recon.Apply(s.game, s.disp, ev)
	s.game = g
	s.disp = d
	s.mu.Unlock()

	s.runEffects(effects)

	if g.Status != prevStatus {
		s.onStatusChange(prevStatus, g.Status)
	}
	if !sameSelections(prevSel, g.SelectedCartelas) {
		s.persistOverlay()
	}

	s.reproject()
}

func (s *Session) runEffects(effects []reconcile.Effect) {
	for _, ef := range effects {
		switch e := ef.(type) {
		case reconcile.RequestResync:
			s.issuePull(e.Reason)

		case reconcile.CloseOverlay:
			s.mu.Lock()
			s.flags.OverlayVisible = false
			s.mu.Unlock()
			s.storeCtx(func(ctx context.Context) error {
				return s.store.ClearOverlay(ctx, s.token)
			}, "clear overlay snapshot")

		case reconcile.ReloadView:
			s.bus.Publish(Notice{Kind: NoticeReload, Reason: e.Reason})

		case reconcile.PlaySound:
			s.bus.Publish(Notice{Kind: NoticeSound, Outcome: e.Outcome})

		case reconcile.ScheduleDrawingClear:
			if s.drawTimer == nil {
				s.drawTimer = s.clock.NewTimer(s.cfg.DrawingClearAfter)
			} else {
				s.drawTimer.Reset(s.cfg.DrawingClearAfter)
			}

		case reconcile.MarkJustStarted:
			s.justStartedUntil = s.clock.Now().Add(s.cfg.JustStartedTTL)
			s.storeCtx(func(ctx context.Context) error {
				return s.store.SetGuard(ctx, s.token, store.GuardJustStarted, s.cfg.JustStartedTTL)
			}, "set just_started guard")

		case reconcile.Shutdown:
			log.Error().Str("reason", e.Reason).Msg("session shutting down")
			s.bus.Publish(Notice{Kind: NoticeFatal, Reason: e.Reason, Err: ErrInvalidToken})
			// Close blocks on this goroutine; detach.
			go s.Close()
		}
	}
}

// onStatusChange maintains the guard flags that only exist to stop the
// overlay flashing back open around racing start/stop events.
func (s *Session) onStatusChange(prev, next reconcile.GameStatus) {
	switch {
	case next == reconcile.StatusActive:
		s.storeCtx(func(ctx context.Context) error {
			return s.store.SetGuard(ctx, s.token, store.GuardWasActive, s.cfg.WasActiveTTL)
		}, "set was_active guard")

	case next.IsTerminal():
		s.justStartedUntil = time.Time{}
		s.storeCtx(func(ctx context.Context) error {
			if err := s.store.ClearGuard(ctx, s.token, store.GuardWasActive); err != nil {
				return err
			}
			return s.store.ClearOverlay(ctx, s.token)
		}, "clear round guards")

	case prev.IsTerminal() && next == reconcile.StatusWaiting:
		// Fresh round; the stale-round guard no longer applies.
		s.storeCtx(func(ctx context.Context) error {
			return s.store.ClearGuard(ctx, s.token, store.GuardWasActive)
		}, "clear was_active guard")
	}
}

// issuePull marks the resync in flight inside the reconciled state, asks
// the transport for a snapshot and refreshes the placed-bet index.
func (s *Session) issuePull(reason string) {
	s.fold(event.ResyncRequested{Reason: reason})
	s.transport.RequestGameData()
	log.Debug().Str("reason", reason).Msg("requested game snapshot")

	if s.api == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
		defer cancel()

		bets, err := s.api.FetchPlacedBets(ctx, s.token)
		if err != nil {
			log.Warn().Err(err).Msg("placed bets refresh failed")
			return
		}
		idx := make(project.PlacedBetIndex, len(bets))
		for _, b := range bets {
			idx[b.CartelaID] = project.PlacedBet{ID: b.CartelaID, PlacedAt: b.PlacedAt, Status: b.Status}
		}
		select {
		case s.placedCh <- idx:
		case <-s.ctx.Done():
		}
	}()
}

// reproject recomputes derived flags and publishes overlay transitions.
func (s *Session) reproject() {
	s.mu.Lock()
	prev := s.flags
	guards := project.Guards{
		JustStarted: s.clock.Now().Before(s.justStartedUntil),
	}
	next := project.Project(prev, s.game, s.disp, s.placed, guards)
	s.flags = next
	s.mu.Unlock()

	if next.OverlayVisible != prev.OverlayVisible {
		s.bus.Publish(Notice{Kind: NoticeOverlay, Visible: next.OverlayVisible})
	}
}

// persistOverlay writes the recoverable overlay snapshot for this token.
func (s *Session) persistOverlay() {
	s.mu.RLock()
	snap := store.OverlaySnapshot{
		Visible:    s.flags.OverlayVisible,
		Selections: sortedSelections(s.game.SelectedCartelas),
	}
	s.mu.RUnlock()

	s.storeCtx(func(ctx context.Context) error {
		return s.store.SaveOverlay(ctx, s.token, snap)
	}, "persist overlay snapshot")
}

func (s *Session) storeCtx(fn func(context.Context) error, what string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn().Err(err).Msg(what + " failed")
	}
}

func sortedSelections(sel map[int]bool) []int {
	out := make([]int, 0, len(sel))
	for id := range sel {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func sameSelections(a, b map[int]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if !b[id] {
			return false
		}
	}
	return true
}
