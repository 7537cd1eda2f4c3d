package reconcile

import "testing"

func TestColumnFor(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "B"}, {15, "B"},
		{16, "I"}, {30, "I"},
		{31, "N"}, {45, "N"},
		{46, "G"}, {60, "G"},
		{61, "O"}, {75, "O"},
		{0, ""}, {76, ""}, {-3, ""},
	}
	for _, tt := range tests {
		if got := ColumnFor(tt.n); got != tt.want {
			t.Errorf("ColumnFor(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want GameStatus
		ok   bool
	}{
		{"active", StatusActive, true},
		{"ACTIVE", StatusActive, true},
		{" waiting ", StatusWaiting, true},
		{"paused", StatusPaused, true},
		{"finished", StatusFinished, true},
		{"completed", StatusCompleted, true},
		{"cancelled", StatusCancelled, true},
		{"", "", false},
		{"running", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseStatus(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseStatus(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []GameStatus{StatusFinished, StatusCompleted, StatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	live := []GameStatus{StatusWaiting, StatusActive, StatusPaused}
	for _, s := range live {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestSelectionSetDropsOutOfRange(t *testing.T) {
	got := selectionSet([]int{0, 1, 210, 211, -5})
	if len(got) != 2 || !got[1] || !got[210] {
		t.Fatalf("selectionSet = %v, want only 1 and 210", got)
	}
}
