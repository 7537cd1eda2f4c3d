package reconcile

// Effect is work the session must perform after a merge step. Effects keep
// sound, reloads and resync requests out of the fold itself so Apply stays
// pure.
type Effect interface {
	isEffect()
}

// RequestResync asks the session to issue a full-snapshot pull.
type RequestResync struct {
	Reason string
}

// CloseOverlay force-closes the selection overlay and clears its cache.
type CloseOverlay struct{}

// ReloadView tells every consumer to reload. Only emitted for the two
// authority-driven refresh directives plus the cartelas-cleared broadcast.
type ReloadView struct {
	Reason string
}

// PlaySound requests outcome audio.
type PlaySound struct {
	Outcome string // "won" or "lost"
}

// ScheduleDrawingClear arms the short timer that drops the drawing flag.
type ScheduleDrawingClear struct{}

// MarkJustStarted arms the short-lived guard that keeps a stale selection
// push from reopening the overlay right after a game starts.
type MarkJustStarted struct{}

// Shutdown ends the session permanently.
type Shutdown struct {
	Reason string
}

func (RequestResync) isEffect()        {}
func (CloseOverlay) isEffect()         {}
func (ReloadView) isEffect()           {}
func (PlaySound) isEffect()            {}
func (ScheduleDrawingClear) isEffect() {}
func (MarkJustStarted) isEffect()      {}
func (Shutdown) isEffect()             {}
