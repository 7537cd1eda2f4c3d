// Package reconcile folds push events and snapshot pulls into the display's
// mirror of the authority's game state. Apply is a pure function: same
// previous state and event always produce the same next state and effects,
// which is what makes the merge rules unit-testable in isolation.
package reconcile

import (
	"github.com/mcdev12/bingoboard/go/internal/display/event"
)

// Reconciler folds the event stream for one display session.
type Reconciler struct {
	sessionID string
}

// New returns a reconciler bound to the active session token. Events that
// carry a session identifier are only applied when it matches; everything
// else from stale sessions is ignored without touching state.
func New(sessionID string) *Reconciler {
	return &Reconciler{sessionID: sessionID}
}

// Apply merges one event into the previous fold result. It never panics
// and is total over the event union: unknown variants are no-ops. Input
// states are not mutated; changed collections are copied first.
func (r *Reconciler) Apply(g GameState, d DisplayState, ev event.Event) (GameState, DisplayState, []Effect) {
	var effects []Effect

	switch e := ev.(type) {
	case event.Connected:
		d.Connected = true
		d.LastError = ""

	case event.Disconnected:
		// Transient loss keeps the reconciled state intact; only the
		// banner changes.
		d.Connected = false
		if e.Reason != "" {
			d.LastError = e.Reason
		} else {
			d.LastError = "connection lost, reconnecting"
		}

	case event.GameCreated:
		g.GameID = replaceGameID(g.GameID, e.GameID)
		if st, ok := ParseStatus(e.Status); ok {
			g.Status = st
		} else {
			g.Status = StatusActive
		}
		g.CalledNumbers = append([]int(nil), e.CalledNumbers...)
		g.CurrentNumber, g.CurrentColumn = currentFrom(g.CalledNumbers)
		if e.WinStack != nil {
			g.TotalWinStack = *e.WinStack
		}
		if e.Cartelas != nil {
			g.SelectedCartelas = selectionSet(e.Cartelas)
		}
		effects = append(effects, CloseOverlay{}, MarkJustStarted{})

	case event.NumberDrawn:
		g.Status = StatusActive
		if len(e.CalledNumbers) > 0 {
			g.CalledNumbers = append([]int(nil), e.CalledNumbers...)
		}
		if !containsNumber(g.CalledNumbers, e.Number) {
			g.CalledNumbers = append(append([]int(nil), g.CalledNumbers...), e.Number)
		}
		g.CurrentNumber = e.Number
		g.CurrentColumn = ColumnFor(e.Number)
		d.IsDrawing = true
		effects = append(effects, ScheduleDrawingClear{})

	case event.GamePaused:
		g.Status = StatusPaused

	case event.GameResumed:
		g.Status = StatusActive

	case event.GameReset:
		// Fresh-round semantics: the board empties but betting
		// aggregates stay until a later event overwrites them.
		g.GameID = replaceGameID(g.GameID, e.GameID)
		g.Status = StatusWaiting
		g.CalledNumbers = nil
		g.CurrentNumber = 0
		g.CurrentColumn = ""
		if e.Cartelas != nil {
			g.SelectedCartelas = selectionSet(*e.Cartelas)
		}
		if e.TotalStack != nil {
			g.TotalStack = *e.TotalStack
		}
		if e.TotalWinStack != nil {
			g.TotalWinStack = *e.TotalWinStack
		}
		d.IsDrawing = false

	case event.ComprehensiveReset:
		g.GameID = replaceGameID(g.GameID, e.NewGameID)
		g.Status = StatusWaiting
		g.CalledNumbers = nil
		g.CurrentNumber = 0
		g.CurrentColumn = ""
		g.SelectedCartelas = map[int]bool{}
		d.IsDrawing = false
		d.VerificationOpen = false
		d.VerificationPersistent = false
		d.Verification = nil
		effects = append(effects, ReloadView{Reason: "comprehensive_reset"})

	case event.GameEnded:
		g.GameID = replaceGameID(g.GameID, e.GameID)
		g.Status = StatusFinished
		d.IsDrawing = false
		effects = append(effects,
			CloseOverlay{},
			ReloadView{Reason: "game_ended"},
			RequestResync{Reason: "game_ended"},
		)

	case event.BetsPlaced:
		g.GameID = replaceGameID(g.GameID, e.GameID)
		applyFinancials(&g, e.Stack, e.TotalStack, e.TotalWinStack,
			e.TotalShopMargin, e.TotalSystemFee, e.NetPrizePool, e.NetShopProfit)
		if e.Cartelas != nil {
			g.SelectedCartelas = selectionSet(*e.Cartelas)
		}

	case event.GameSnapshot:
		if !r.sessionMatches(e.SessionID) {
			return g, d, nil
		}
		g.GameID = replaceGameID(g.GameID, e.GameID)
		st, ok := ParseStatus(e.Status)
		if ok {
			g.Status = st
		}
		if ok && st == StatusWaiting {
			// A waiting snapshot means no round is running; whatever
			// numbers it still carries are leftovers.
			g.CalledNumbers = nil
			g.CurrentNumber = 0
			g.CurrentColumn = ""
		} else {
			g.CalledNumbers = append([]int(nil), e.CalledNumbers...)
			if e.CurrentNumber != nil {
				g.CurrentNumber = *e.CurrentNumber
				g.CurrentColumn = ColumnFor(*e.CurrentNumber)
			} else {
				g.CurrentNumber, g.CurrentColumn = currentFrom(g.CalledNumbers)
			}
		}
		applyFinancials(&g, e.Stack, e.TotalStack, e.TotalWinStack,
			e.TotalShopMargin, e.TotalSystemFee, e.NetPrizePool, e.NetShopProfit)
		if e.Cartelas != nil {
			g.SelectedCartelas = selectionSet(*e.Cartelas)
		}
		g.IsLoadingGameData = false

	case event.CartelaSelected:
		if e.CartelaID >= 1 && e.CartelaID <= MaxCartelaID && !g.SelectedCartelas[e.CartelaID] {
			sel := cloneSelections(g.SelectedCartelas)
			sel[e.CartelaID] = true
			g.SelectedCartelas = sel
		}

	case event.CartelaDeselected:
		if g.SelectedCartelas[e.CartelaID] {
			sel := cloneSelections(g.SelectedCartelas)
			delete(sel, e.CartelaID)
			g.SelectedCartelas = sel
		}

	case event.CartelasCleared:
		if !r.sessionMatches(e.SessionID) {
			return g, d, nil
		}
		// Optimistic local clear; the confirming snapshot arrives later.
		g.SelectedCartelas = map[int]bool{}
		d.VerificationOpen = false
		d.VerificationPersistent = false
		d.Verification = nil
		effects = append(effects, CloseOverlay{}, ReloadView{Reason: "cartelas_cleared"})

	case event.CartelaVerified:
		d.VerificationOpen = true
		d.VerificationPersistent = true
		d.Verification = &VerificationResult{
			CartelaID:      e.CartelaID,
			Won:            e.Won,
			Pattern:        e.Pattern,
			MatchedNumbers: append([]int(nil), e.MatchedNumbers...),
		}
		outcome := "lost"
		if e.Won {
			outcome = "won"
		}
		effects = append(effects, PlaySound{Outcome: outcome})

	case event.VerificationClosed:
		if !r.sessionMatches(e.SessionID) {
			return g, d, nil
		}
		if d.VerificationOpen {
			d.VerificationOpen = false
			d.VerificationPersistent = false
			d.Verification = nil
			effects = append(effects, ReloadView{Reason: "verification_closed"})
		}

	case event.ShuffleAnimation:
		d.ShuffleVisible = e.Action == "start"

	case event.Unauthorized:
		d.Connected = false
		d.LastError = "display token rejected by authority"
		effects = append(effects, Shutdown{Reason: "unauthorized"})

	case event.ResyncRequested:
		g.IsLoadingGameData = true

	case event.DrawingCleared:
		d.IsDrawing = false
	}

	return g, d, effects
}

// sessionMatches applies the stale-session guard. Events without an
// embedded session identifier pass; a mismatched one never applies.
func (r *Reconciler) sessionMatches(sessionID string) bool {
	return sessionID == "" || sessionID == r.sessionID
}

// replaceGameID implements the id replacement rule: set when unset, swap
// when a different id arrives, never clear implicitly.
func replaceGameID(current, next string) string {
	if next == "" {
		return current
	}
	if current == "" || current != next {
		return next
	}
	return current
}

// currentFrom derives the current number and column from a called
// sequence's tail.
func currentFrom(called []int) (int, string) {
	if len(called) == 0 {
		return 0, ""
	}
	n := called[len(called)-1]
	return n, ColumnFor(n)
}

func applyFinancials(g *GameState, stack, totalStack, totalWinStack, shopMargin, systemFee, prizePool, shopProfit *float64) {
	if stack != nil {
		g.Stack = *stack
	}
	if totalStack != nil {
		g.TotalStack = *totalStack
	}
	if totalWinStack != nil {
		g.TotalWinStack = *totalWinStack
	}
	if shopMargin != nil {
		g.TotalShopMargin = *shopMargin
	}
	if systemFee != nil {
		g.TotalSystemFee = *systemFee
	}
	if prizePool != nil {
		g.NetPrizePool = *prizePool
	}
	if shopProfit != nil {
		g.NetShopProfit = *shopProfit
	}
}
