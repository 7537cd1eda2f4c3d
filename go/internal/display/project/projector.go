// Package project derives the UI-visibility flags the renderer consumes.
// Flags are always recomputed from reconciled state; they are never a
// source of truth on their own.
package project

import (
	"time"

	"github.com/mcdev12/bingoboard/go/internal/display/reconcile"
)

// PlacedBet is one cartela with a confirmed bet, sourced from the
// authority's HTTP endpoint and kept current by push events.
type PlacedBet struct {
	ID       int
	PlacedAt time.Time
	Status   string
}

// PlacedBetIndex maps cartela id to its placed bet. Its lifecycle is
// independent from the reconciled selection set.
type PlacedBetIndex map[int]PlacedBet

// Guards are the short-lived local flags that suppress overlay flicker
// around racing start events.
type Guards struct {
	JustStarted bool
}

// Flags is what the rendering layer actually reads.
type Flags struct {
	OverlayVisible      bool
	VerificationVisible bool
	ShuffleVisible      bool
	SelectionCount      int
}

// Project computes the next flag set.
//
// The selection overlay shows while the round is waiting and there is
// something to show, unless the just-started guard is up. Terminal
// statuses force it closed regardless of content. During an active round
// the previous visibility is kept as-is: closing it mid-round is a
// deliberate operator action, never implicit.
func Project(prev Flags, g reconcile.GameState, d reconcile.DisplayState, placed PlacedBetIndex, guards Guards) Flags {
	next := Flags{
		VerificationVisible: d.VerificationOpen,
		ShuffleVisible:      d.ShuffleVisible,
		SelectionCount:      len(g.SelectedCartelas),
	}

	switch {
	case g.Status.IsTerminal():
		next.OverlayVisible = false
	case g.Status == reconcile.StatusWaiting:
		hasContent := len(g.SelectedCartelas) > 0 || len(placed) > 0
		next.OverlayVisible = hasContent && !guards.JustStarted
	default:
		// active or paused: preserve whatever was showing.
		next.OverlayVisible = prev.OverlayVisible
	}

	return next
}
