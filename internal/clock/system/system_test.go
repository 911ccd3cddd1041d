package system

import (
	"testing"
	"time"
)

func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC().Add(-time.Second)
	got := New().Now()
	after := time.Now().UTC().Add(time.Second)

	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Location())
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

func TestPinned(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	clk := Pinned(at)
	if got := clk.Now(); !got.Equal(at) || got.Location() != time.UTC {
		t.Fatalf("Pinned().Now() = %v, want %v in UTC", got, at)
	}
	if !clk.Now().Equal(clk.Now()) {
		t.Fatal("pinned clock moved")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(SourceDateEpochEnv, "1700000000")
	clk, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if got := clk.Now().Unix(); got != 1700000000 {
		t.Fatalf("expected pinned epoch, got %d", got)
	}

	t.Setenv(SourceDateEpochEnv, "yesterday")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected parse error")
	}

	t.Setenv(SourceDateEpochEnv, "")
	clk, err = FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if clk.pinned != nil {
		t.Fatal("empty variable must yield a wall clock")
	}
}
