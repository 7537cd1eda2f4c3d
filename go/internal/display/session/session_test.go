package session

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/bingoboard/go/internal/display/reconcile"
	"github.com/mcdev12/bingoboard/go/internal/display/store"
)

func sessionConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.Token = "testtoken123"
	cfg.SocketURL = url
	cfg.Store = store.NewMemoryStore(clockwork.NewRealClock())
	cfg.Transport.ReconnectWait = 10 * time.Millisecond
	cfg.Transport.IdleRetryWait = 10 * time.Millisecond
	cfg.ResyncInitialDelay = 10 * time.Millisecond
	cfg.JustStartedTTL = 50 * time.Millisecond
	cfg.DrawingClearAfter = 20 * time.Millisecond
	return cfg
}

func awaitState(t *testing.T, s *Session, ok func(reconcile.GameState, reconcile.DisplayState) bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		g, d, _ := s.State()
		if ok(g, d) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	g, d, _ := s.State()
	t.Fatalf("state never converged; game=%+v display=%+v", g, d)
}

func TestOpenRejectsMissingToken(t *testing.T) {
	if _, err := Open(context.Background(), Config{}); err != ErrNoToken {
		t.Fatalf("err = %v, want ErrNoToken", err)
	}
	cfg := DefaultConfig()
	cfg.Token = "bad token!"
	if _, err := Open(context.Background(), cfg); err != ErrNoToken {
		t.Fatalf("err = %v, want ErrNoToken", err)
	}
}

func TestSessionFoldsPushedEvents(t *testing.T) {
	send := make(chan Frame, 8)
	srv := pushServer(t, func(conn *websocket.Conn) {
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		for {
			select {
			case f := <-send:
				if err := conn.WriteJSON(f); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
	defer srv.Close()

	s, err := Open(context.Background(), sessionConfig(wsURL(srv)))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	awaitState(t, s, func(g reconcile.GameState, d reconcile.DisplayState) bool {
		return d.Connected
	})

	created, _ := json.Marshal(map[string]any{"gameId": "g1", "status": "active"})
	send <- Frame{Event: "game:created", Data: created}
	drawn, _ := json.Marshal(map[string]any{"number": 33})
	send <- Frame{Event: "number_drawn", Data: drawn}

	awaitState(t, s, func(g reconcile.GameState, d reconcile.DisplayState) bool {
		return g.GameID == "g1" && g.CurrentNumber == 33 && g.CurrentColumn == "N"
	})

	// The drawing flag clears on its own after the configured delay.
	awaitState(t, s, func(g reconcile.GameState, d reconcile.DisplayState) bool {
		return !d.IsDrawing
	})
}

func TestSessionOverlayNoticeAndPersistence(t *testing.T) {
	send := make(chan Frame, 8)
	srv := pushServer(t, func(conn *websocket.Conn) {
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		for {
			select {
			case f := <-send:
				if err := conn.WriteJSON(f); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
	defer srv.Close()

	cfg := sessionConfig(wsURL(srv))
	cfg.JustStartedTTL = time.Millisecond
	s, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	notices, cancel := s.Notices(16)
	defer cancel()

	awaitState(t, s, func(g reconcile.GameState, d reconcile.DisplayState) bool {
		return d.Connected
	})

	sel, _ := json.Marshal(map[string]int{"cartelaId": 9})
	send <- Frame{Event: "cartela_selected", Data: sel}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case n := <-notices:
			if n.Kind == NoticeOverlay && n.Visible {
				goto persisted
			}
		case <-deadline:
			t.Fatal("no overlay notice")
		}
	}

persisted:
	snap, ok, err := cfg.Store.LoadOverlay(context.Background(), cfg.Token)
	if err != nil || !ok {
		t.Fatalf("overlay snapshot missing: ok=%v err=%v", ok, err)
	}
	if len(snap.Selections) != 1 || snap.Selections[0] != 9 {
		t.Fatalf("persisted selections = %v, want [9]", snap.Selections)
	}
}

func TestSessionRestoresOverlayFromStore(t *testing.T) {
	srv := pushServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	cfg := sessionConfig(wsURL(srv))
	cfg.Store.SaveOverlay(context.Background(), cfg.Token, store.OverlaySnapshot{
		Visible:    true,
		Selections: []int{3, 14},
	})

	s, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	g, _, _ := s.State()
	if !g.SelectedCartelas[3] || !g.SelectedCartelas[14] {
		t.Fatalf("restored selections = %v, want 3 and 14", g.SelectedCartelas)
	}
}

func TestSessionSkipsRestoreWhenRoundWasActive(t *testing.T) {
	srv := pushServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	cfg := sessionConfig(wsURL(srv))
	cfg.Store.SaveOverlay(context.Background(), cfg.Token, store.OverlaySnapshot{
		Visible:    true,
		Selections: []int{3},
	})
	cfg.Store.SetGuard(context.Background(), cfg.Token, store.GuardWasActive, time.Hour)

	s, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	g, _, _ := s.State()
	if len(g.SelectedCartelas) != 0 {
		t.Fatalf("stale overlay restored: %v", g.SelectedCartelas)
	}
}

func TestSessionPullsSnapshotAfterReconnect(t *testing.T) {
	var conns int32
	pulls := make(chan Frame, 4)
	srv := pushServer(t, func(conn *websocket.Conn) {
		if atomic.AddInt32(&conns, 1) == 1 {
			// Drop the first connection right after the handshake.
			conn.Close()
			return
		}
		for {
			var f Frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			if f.Event == "get_game_data" {
				pulls <- f
			}
		}
	})
	defer srv.Close()

	cfg := sessionConfig(wsURL(srv))
	// Push the scheduled pulls far out so any pull seen on the second
	// connection can only be the reconnect one.
	cfg.ResyncInitialDelay = time.Hour
	cfg.ResyncInterval = time.Hour

	s, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	select {
	case f := <-pulls:
		var payload struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(f.Data, &payload); err != nil || payload.SessionID != cfg.Token {
			t.Fatalf("pull payload = %s, err = %v", f.Data, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot pull after reconnect")
	}
}

func TestSessionReArmsJustStartedGuardFromStore(t *testing.T) {
	srv := pushServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	cfg := sessionConfig(wsURL(srv))
	cfg.JustStartedTTL = time.Hour
	cfg.Store.SaveOverlay(context.Background(), cfg.Token, store.OverlaySnapshot{
		Visible:    true,
		Selections: []int{3},
	})
	cfg.Store.SetGuard(context.Background(), cfg.Token, store.GuardJustStarted, time.Hour)

	s, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	g, _, flags := s.State()
	if !g.SelectedCartelas[3] {
		t.Fatalf("selections = %v, want 3 restored", g.SelectedCartelas)
	}
	if flags.OverlayVisible {
		t.Fatal("overlay must stay suppressed while the persisted guard is up")
	}
}

func TestSessionFatalOnUnauthorizedPush(t *testing.T) {
	srv := pushServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(Frame{Event: "display:unauthorized"})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	s, err := Open(context.Background(), sessionConfig(wsURL(srv)))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	notices, cancel := s.Notices(16)
	defer cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case n, ok := <-notices:
			if !ok {
				t.Fatal("bus closed before the fatal notice")
			}
			if n.Kind == NoticeFatal {
				if n.Reason != "unauthorized" {
					t.Fatalf("reason = %q", n.Reason)
				}
				return
			}
		case <-deadline:
			t.Fatal("no fatal notice")
		}
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	srv := pushServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	s, err := Open(context.Background(), sessionConfig(wsURL(srv)))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}
