package project

import (
	"testing"

	"github.com/mcdev12/bingoboard/go/internal/display/reconcile"
)

func game(status reconcile.GameStatus, selections ...int) reconcile.GameState {
	g := reconcile.NewGameState()
	g.Status = status
	for _, id := range selections {
		g.SelectedCartelas[id] = true
	}
	return g
}

func TestOverlayGating(t *testing.T) {
	placed := PlacedBetIndex{3: {ID: 3}}

	tests := []struct {
		name   string
		prev   Flags
		g      reconcile.GameState
		placed PlacedBetIndex
		guards Guards
		want   bool
	}{
		{
			name: "waiting with selections shows",
			g:    game(reconcile.StatusWaiting, 7),
			want: true,
		},
		{
			name:   "waiting with placed bets only shows",
			g:      game(reconcile.StatusWaiting),
			placed: placed,
			want:   true,
		},
		{
			name: "waiting empty hides",
			g:    game(reconcile.StatusWaiting),
			want: false,
		},
		{
			name:   "just-started guard suppresses",
			g:      game(reconcile.StatusWaiting, 7),
			guards: Guards{JustStarted: true},
			want:   false,
		},
		{
			name: "active preserves visible",
			prev: Flags{OverlayVisible: true},
			g:    game(reconcile.StatusActive, 7),
			want: true,
		},
		{
			name: "active preserves hidden",
			g:    game(reconcile.StatusActive, 7),
			want: false,
		},
		{
			name: "paused preserves visible",
			prev: Flags{OverlayVisible: true},
			g:    game(reconcile.StatusPaused, 7),
			want: true,
		},
		{
			name: "finished forces hidden",
			prev: Flags{OverlayVisible: true},
			g:    game(reconcile.StatusFinished, 7),
			want: false,
		},
		{
			name: "cancelled forces hidden",
			prev: Flags{OverlayVisible: true},
			g:    game(reconcile.StatusCancelled, 7),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Project(tt.prev, tt.g, reconcile.DisplayState{}, tt.placed, tt.guards)
			if got.OverlayVisible != tt.want {
				t.Fatalf("OverlayVisible = %v, want %v", got.OverlayVisible, tt.want)
			}
		})
	}
}

func TestPassthroughFlags(t *testing.T) {
	g := game(reconcile.StatusActive, 1, 2, 3)
	d := reconcile.DisplayState{VerificationOpen: true, ShuffleVisible: true}

	got := Project(Flags{}, g, d, nil, Guards{})

	if !got.VerificationVisible {
		t.Error("VerificationVisible should mirror the modal state")
	}
	if !got.ShuffleVisible {
		t.Error("ShuffleVisible should mirror the shuffle state")
	}
	if got.SelectionCount != 3 {
		t.Errorf("SelectionCount = %d, want 3", got.SelectionCount)
	}
}
