package store

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestMemoryStoreOverlayRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(clockwork.NewFakeClock())

	if _, ok, err := m.LoadOverlay(ctx, "tok"); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	snap := OverlaySnapshot{Visible: true, Selections: []int{3, 7}}
	if err := m.SaveOverlay(ctx, "tok", snap); err != nil {
		t.Fatal(err)
	}

	got, ok, err := m.LoadOverlay(ctx, "tok")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, snap) {
		t.Fatalf("got %+v, want %+v", got, snap)
	}

	// Mutating the loaded slice must not leak back into the store.
	got.Selections[0] = 99
	again, _, _ := m.LoadOverlay(ctx, "tok")
	if again.Selections[0] != 3 {
		t.Fatal("store shares slice memory with callers")
	}

	if err := m.ClearOverlay(ctx, "tok"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := m.LoadOverlay(ctx, "tok"); ok {
		t.Fatal("overlay survived clear")
	}
}

func TestMemoryStoreOverlayIsolatedPerToken(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(clockwork.NewFakeClock())

	m.SaveOverlay(ctx, "a", OverlaySnapshot{Visible: true})
	if _, ok, _ := m.LoadOverlay(ctx, "b"); ok {
		t.Fatal("token b sees token a's overlay")
	}
}

func TestMemoryStoreGuardTTL(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	m := NewMemoryStore(fc)

	if err := m.SetGuard(ctx, "tok", GuardJustStarted, 5*time.Second); err != nil {
		t.Fatal(err)
	}

	if up, _ := m.Guard(ctx, "tok", GuardJustStarted); !up {
		t.Fatal("guard should be up immediately after set")
	}

	fc.Advance(4 * time.Second)
	if up, _ := m.Guard(ctx, "tok", GuardJustStarted); !up {
		t.Fatal("guard should still be up before the ttl")
	}

	fc.Advance(2 * time.Second)
	if up, _ := m.Guard(ctx, "tok", GuardJustStarted); up {
		t.Fatal("guard should have expired")
	}
}

func TestMemoryStoreGuardClear(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(clockwork.NewFakeClock())

	m.SetGuard(ctx, "tok", GuardWasActive, time.Hour)
	if err := m.ClearGuard(ctx, "tok", GuardWasActive); err != nil {
		t.Fatal(err)
	}
	if up, _ := m.Guard(ctx, "tok", GuardWasActive); up {
		t.Fatal("guard survived clear")
	}

	// Clearing a guard that was never set is fine.
	if err := m.ClearGuard(ctx, "tok", GuardJustStarted); err != nil {
		t.Fatal(err)
	}
}
