package cmd

import (
	"testing"
	"time"

	"github.com/fatih/color"

	"vigia/core"
)

func TestParseDateFlag(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
		wantNil bool
	}{
		{"", false, true},
		{"2024-03-01", false, false},
		{"2024-03-01T12:00:00Z", false, false},
		{"yesterday", true, false},
		{"01/03/2024", true, false},
	}

	for _, tc := range tests {
		got, err := parseDateFlag(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseDateFlag(%q) should fail", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseDateFlag(%q) failed: %v", tc.raw, err)
			continue
		}
		if tc.wantNil != (got == nil) {
			t.Errorf("parseDateFlag(%q) nil mismatch: got %v", tc.raw, got)
		}
	}
}

func TestFormatTimeSince(t *testing.T) {
	tests := []struct {
		ts   time.Time
		want string
	}{
		{time.Time{}, "never"},
		{time.Now().Add(-10 * time.Second), "just now"},
		{time.Now().Add(-5 * time.Minute), "5m ago"},
		{time.Now().Add(-3 * time.Hour), "3h ago"},
		{time.Now().Add(-49 * time.Hour), "2d ago"},
	}

	for _, tc := range tests {
		if got := formatTimeSince(tc.ts); got != tc.want {
			t.Errorf("formatTimeSince(%v) = %q, want %q", tc.ts, got, tc.want)
		}
	}
}

func TestStatusLabel(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	if got := statusLabel(core.StatusNew); got != "novo" {
		t.Errorf("empty status should render as novo, got %q", got)
	}
	if got := statusLabel(core.StatusClosed); got != core.StatusClosed {
		t.Errorf("closed status should render as-is, got %q", got)
	}
	if got := statusLabel(core.StatusInProgress); got != core.StatusInProgress {
		t.Errorf("in-progress status should render as-is, got %q", got)
	}
}

func TestLevelLabel(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	for _, tc := range []struct {
		level int
		want  string
	}{{3, "3"}, {5, "5"}, {7, "7"}, {12, "12"}} {
		if got := levelLabel(tc.level); got != tc.want {
			t.Errorf("levelLabel(%d) = %q, want %q", tc.level, got, tc.want)
		}
	}
}

func TestQueryCmdStructure(t *testing.T) {
	cmd := NewQueryCmd()

	want := map[string]bool{"alerts": false, "stats": false, "sync": false, "last-sync": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}

	if cmd.PersistentFlags().Lookup("json") == nil || cmd.PersistentFlags().Lookup("no-color") == nil {
		t.Error("missing persistent output flags")
	}
}
