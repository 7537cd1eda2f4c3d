// Package event defines the closed set of semantic events the display
// reacts to, and the normalizer that maps raw wire frames onto it. Every
// legacy wire name is an alias of exactly one canonical variant; downstream
// code never sees wire names.
package event

// Type identifies a canonical event variant.
type Type string

const (
	TypeConnected          Type = "connected"
	TypeDisconnected       Type = "disconnected"
	TypeGameCreated        Type = "game_created"
	TypeNumberDrawn        Type = "number_drawn"
	TypeGamePaused         Type = "game_paused"
	TypeGameResumed        Type = "game_resumed"
	TypeGameReset          Type = "game_reset"
	TypeComprehensiveReset Type = "game_comprehensive_reset"
	TypeGameEnded          Type = "game_ended"
	TypeBetsPlaced         Type = "bets_placed"
	TypeGameSnapshot       Type = "game_snapshot"
	TypeCartelaSelected    Type = "cartela_selected"
	TypeCartelaDeselected  Type = "cartela_deselected"
	TypeCartelasCleared    Type = "cartelas_cleared"
	TypeCartelaVerified    Type = "cartela_verified"
	TypeVerificationClosed Type = "verification_closed"
	TypeShuffleAnimation   Type = "shuffle_animation"
	TypeUnauthorized       Type = "unauthorized"

	// Internal variants folded in by the session itself, never produced
	// by the normalizer.
	TypeResyncRequested Type = "resync_requested"
	TypeDrawingCleared  Type = "drawing_cleared"
)

// Event is the closed union of everything the reconciler can fold.
type Event interface {
	EventType() Type
}

// Connected marks the push channel as established.
type Connected struct{}

// Disconnected marks the push channel as lost. Reason is user-visible.
type Disconnected struct {
	Reason string
}

// GameCreated announces a new game. CalledNumbers is a snapshot, not a
// delta. WinStack is optional: nil means "preserve current value".
type GameCreated struct {
	GameID        string
	Status        string
	CalledNumbers []int
	WinStack      *float64
	Cartelas      []int
}

// NumberDrawn carries one freshly drawn number, optionally with the
// authority's full called-number sequence.
type NumberDrawn struct {
	Number        int
	CalledNumbers []int
}

// GamePaused pauses the drawing lifecycle.
type GamePaused struct{}

// GameResumed resumes the drawing lifecycle.
type GameResumed struct{}

// GameReset starts a fresh round. Optional fields are provide-or-preserve.
type GameReset struct {
	GameID        string
	CalledNumbers []int
	Cartelas      *[]int
	TotalStack    *float64
	TotalWinStack *float64
}

// ComprehensiveReset clears everything except betting aggregates and
// directs all consumers to reload.
type ComprehensiveReset struct {
	NewGameID string
}

// GameEnded terminates the current round.
type GameEnded struct {
	GameID string
}

// BetsPlaced updates betting aggregates. Every field is optional; nil
// preserves the current value.
type BetsPlaced struct {
	GameID          string
	Stack           *float64
	TotalStack      *float64
	TotalWinStack   *float64
	TotalShopMargin *float64
	TotalSystemFee  *float64
	NetPrizePool    *float64
	NetShopProfit   *float64
	Cartelas        *[]int
}

// GameSnapshot is an authoritative full-state pull response. It is taken
// verbatim, not merged incrementally.
type GameSnapshot struct {
	SessionID     string
	GameID        string
	Status        string
	CalledNumbers []int
	CurrentNumber *int
	Cartelas      *[]int

	Stack           *float64
	TotalStack      *float64
	TotalWinStack   *float64
	TotalShopMargin *float64
	TotalSystemFee  *float64
	NetPrizePool    *float64
	NetShopProfit   *float64
}

// CartelaSelected adds one cartela to the selection set.
type CartelaSelected struct {
	CartelaID int
}

// CartelaDeselected removes one cartela from the selection set.
type CartelaDeselected struct {
	CartelaID int
}

// CartelasCleared empties the selection set ahead of any confirming
// snapshot and directs consumers to refresh.
type CartelasCleared struct {
	SessionID string
}

// CartelaVerified opens the verification modal with a win/lose outcome.
type CartelaVerified struct {
	CartelaID      int
	Won            bool
	Pattern        string
	MatchedNumbers []int
}

// VerificationClosed dismisses the verification modal for one session.
type VerificationClosed struct {
	SessionID string
}

// ShuffleAnimation toggles the shuffle overlay.
type ShuffleAnimation struct {
	Action string // "start" or "complete"
}

// Unauthorized tears the session down; the token was rejected.
type Unauthorized struct{}

// ResyncRequested is folded in by the session when a snapshot pull goes
// out, so the in-flight marker lives inside the reconciled state.
type ResyncRequested struct {
	Reason string
}

// DrawingCleared is folded in when the drawing-flag timer fires.
type DrawingCleared struct{}

func (Connected) EventType() Type          { return TypeConnected }
func (Disconnected) EventType() Type       { return TypeDisconnected }
func (GameCreated) EventType() Type        { return TypeGameCreated }
func (NumberDrawn) EventType() Type        { return TypeNumberDrawn }
func (GamePaused) EventType() Type         { return TypeGamePaused }
func (GameResumed) EventType() Type        { return TypeGameResumed }
func (GameReset) EventType() Type          { return TypeGameReset }
func (ComprehensiveReset) EventType() Type { return TypeComprehensiveReset }
func (GameEnded) EventType() Type          { return TypeGameEnded }
func (BetsPlaced) EventType() Type         { return TypeBetsPlaced }
func (GameSnapshot) EventType() Type       { return TypeGameSnapshot }
func (CartelaSelected) EventType() Type    { return TypeCartelaSelected }
func (CartelaDeselected) EventType() Type  { return TypeCartelaDeselected }
func (CartelasCleared) EventType() Type    { return TypeCartelasCleared }
func (CartelaVerified) EventType() Type    { return TypeCartelaVerified }
func (VerificationClosed) EventType() Type { return TypeVerificationClosed }
func (ShuffleAnimation) EventType() Type   { return TypeShuffleAnimation }
func (Unauthorized) EventType() Type       { return TypeUnauthorized }
func (ResyncRequested) EventType() Type    { return TypeResyncRequested }
func (DrawingCleared) EventType() Type     { return TypeDrawingCleared }
