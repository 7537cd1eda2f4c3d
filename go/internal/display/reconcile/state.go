package reconcile

import "strings"

// GameStatus is the authority's lifecycle status for the current game.
type GameStatus string

const (
	StatusWaiting   GameStatus = "waiting"
	StatusActive    GameStatus = "active"
	StatusPaused    GameStatus = "paused"
	StatusFinished  GameStatus = "finished"
	StatusCompleted GameStatus = "completed"
	StatusCancelled GameStatus = "cancelled"
)

// ParseStatus coerces a wire status string into a known GameStatus.
// Unknown or empty strings return ok=false so callers can preserve the
// previous status instead of corrupting state.
func ParseStatus(s string) (GameStatus, bool) {
	switch GameStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusWaiting:
		return StatusWaiting, true
	case StatusActive:
		return StatusActive, true
	case StatusPaused:
		return StatusPaused, true
	case StatusFinished:
		return StatusFinished, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusCancelled:
		return StatusCancelled, true
	}
	return "", false
}

// IsTerminal reports whether the status ends the current round.
func (s GameStatus) IsTerminal() bool {
	return s == StatusFinished || s == StatusCompleted || s == StatusCancelled
}

// ColumnFor returns the board column letter for a drawn number, or ""
// when the number is outside the 1..75 board range.
func ColumnFor(n int) string {
	switch {
	case n < 1 || n > 75:
		return ""
	case n <= 15:
		return "B"
	case n <= 30:
		return "I"
	case n <= 45:
		return "N"
	case n <= 60:
		return "G"
	}
	return "O"
}

// MaxCartelaID is the highest selectable cartela number.
const MaxCartelaID = 210

// GameState mirrors the authority's view of the current game. It is owned
// by the Reconciler and only ever replaced through Apply; rendering code
// reads copies and never writes back.
type GameState struct {
	GameID        string
	Status        GameStatus
	CalledNumbers []int
	CurrentNumber int    // 0 = none drawn yet
	CurrentColumn string // "" when CurrentNumber is 0

	// Betting aggregates. These survive reset-class events and are only
	// overwritten when a later event explicitly carries a new value.
	Stack           float64
	TotalStack      float64
	TotalWinStack   float64
	TotalShopMargin float64
	TotalSystemFee  float64
	NetPrizePool    float64
	NetShopProfit   float64

	SelectedCartelas map[int]bool

	IsLoadingGameData bool
}

// VerificationResult is the cached payload behind the verification modal.
type VerificationResult struct {
	CartelaID      int
	Won            bool
	Pattern        string
	MatchedNumbers []int
}

// DisplayState is session-local UI state that is never mirrored from the
// authority.
type DisplayState struct {
	Connected bool
	LastError string

	IsDrawing bool

	VerificationOpen       bool
	VerificationPersistent bool
	Verification           *VerificationResult

	ShuffleVisible bool
}

// NewGameState returns the empty snapshot a fresh session starts from.
func NewGameState() GameState {
	return GameState{
		Status:           StatusWaiting,
		SelectedCartelas: map[int]bool{},
	}
}

// containsNumber reports whether n is already in the called sequence.
func containsNumber(nums []int, n int) bool {
	for _, v := range nums {
		if v == n {
			return true
		}
	}
	return false
}

// cloneSelections copies the selection set so Apply never mutates the
// previous fold result in place.
func cloneSelections(sel map[int]bool) map[int]bool {
	out := make(map[int]bool, len(sel))
	for id := range sel {
		out[id] = true
	}
	return out
}

// selectionSet builds a selection set from a wire slice, dropping ids
// outside the valid cartela range.
func selectionSet(ids []int) map[int]bool {
	out := make(map[int]bool, len(ids))
	for _, id := range ids {
		if id >= 1 && id <= MaxCartelaID {
			out[id] = true
		}
	}
	return out
}
