package domain

import (
	"strings"
	"testing"
	"time"
)

func TestScanLineAnchored(t *testing.T) {
	participants := map[string]Participant{"Alice": {Name: "Alice", Active: true}}
	section := "Support. [[User:Alice|Alice]] 14:05, 3 June 2024 (UTC)"

	got := Scan(section, participants)
	if len(got) != 1 {
		t.Fatalf("expected one entry, got %d: %+v", len(got), got)
	}
	st := got["Alice"]
	want := time.Date(2024, time.June, 3, 14, 5, 0, 0, time.UTC)
	if !st.First.Equal(want) || !st.Last.Equal(want) || st.Count != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestScanCountsEveryTimestampedLine(t *testing.T) {
	participants := map[string]Participant{
		"Alice": {Name: "Alice", Active: true},
		"Bob":   {Name: "Bob", Active: true},
	}
	section := strings.Join([]string{
		"Comment. [[User:Alice|Alice]] 10:00, 5 June 2024 (UTC)",
		":Reply. [[User:Alice|Alice]] ([[User talk:Alice|talk]]) 09:00, 1 June 2024 (UTC)",
		strings.Repeat("-", 130),
		"::Untracked [[User:Carol|Carol]] 11:00, 6 June 2024 (UTC)",
		"Mention of [[User:Bob|Bob]] without a stamp",
	}, "\n")

	got := Scan(section, participants)
	alice, ok := got["Alice"]
	if !ok {
		t.Fatal("expected stats for Alice")
	}
	// The second line links Alice twice, both credited.
	if alice.Count != 3 {
		t.Fatalf("Alice count = %d, want 3", alice.Count)
	}
	if want := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC); !alice.First.Equal(want) {
		t.Fatalf("Alice first = %v, want %v", alice.First, want)
	}
	if want := time.Date(2024, time.June, 5, 10, 0, 0, 0, time.UTC); !alice.Last.Equal(want) {
		t.Fatalf("Alice last = %v, want %v", alice.Last, want)
	}
	if _, ok := got["Carol"]; ok {
		t.Fatal("untracked user must not appear")
	}
	// Bob's mention is within the proximity window of the Carol line.
	bob, ok := got["Bob"]
	if !ok || bob.Count != 1 {
		t.Fatalf("expected one proximity observation for Bob, got %+v (present=%v)", bob, ok)
	}
	if want := time.Date(2024, time.June, 6, 11, 0, 0, 0, time.UTC); !bob.Last.Equal(want) {
		t.Fatalf("Bob last = %v, want %v", bob.Last, want)
	}
}

func TestScanProximityWindow(t *testing.T) {
	participants := map[string]Participant{"Dave": {Name: "Dave", Active: true}}

	near := "[[User:Dave|Dave]]\n" + strings.Repeat("x", 50) + "\n12:00, 1 July 2024 (UTC)"
	if got := Scan(near, participants); got["Dave"].Count != 1 {
		t.Fatalf("expected a wrapped signature to be found, got %+v", got)
	}

	far := "[[User:Dave|Dave]]\n" + strings.Repeat("x", ProximityWindow+10) + "\n12:00, 1 July 2024 (UTC)"
	if got := Scan(far, participants); len(got) != 0 {
		t.Fatalf("expected nothing outside the window, got %+v", got)
	}

	before := "12:00, 1 July 2024 (UTC)\n" + strings.Repeat("é", ProximityWindow-30) + "\n[[User:Dave|Dave]]"
	if got := Scan(before, participants); got["Dave"].Count != 1 {
		t.Fatalf("expected a timestamp before the reference to be found, got %+v", got)
	}
}

func TestScanSecondPassSkipsSatisfiedParticipants(t *testing.T) {
	participants := map[string]Participant{"Alice": {Name: "Alice", Active: true}}
	section := strings.Join([]string{
		"Support. [[User:Alice|Alice]] 14:05, 3 June 2024 (UTC)",
		"As [[User:Alice|Alice]] said",
		"Another 15:00, 4 June 2024 (UTC) nearby",
	}, "\n")

	got := Scan(section, participants)
	if got["Alice"].Count != 1 {
		t.Fatalf("Alice count = %d, want 1", got["Alice"].Count)
	}
}

func TestScanSkipsMalformedTimestamps(t *testing.T) {
	participants := map[string]Participant{"Alice": {Name: "Alice", Active: true}}
	section := "Support. [[User:Alice|Alice]] 14:05, 3 Smarch 2024 (UTC)"
	if got := Scan(section, participants); len(got) != 0 {
		t.Fatalf("expected no observations, got %+v", got)
	}
}

func TestScanEmptySection(t *testing.T) {
	participants := map[string]Participant{"Alice": {Name: "Alice", Active: true}}
	if got := Scan("", participants); len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}

func TestCommentStatsObserveKeepsOrder(t *testing.T) {
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	offsets := []int{5, -3, 12, 0, -7, 2}

	var st CommentStats
	for i, off := range offsets {
		st.Observe(base.Add(time.Duration(off) * time.Hour))
		if st.First.After(st.Last) {
			t.Fatalf("after %d observations first %v > last %v", i+1, st.First, st.Last)
		}
		if st.Count != i+1 {
			t.Fatalf("count = %d, want %d", st.Count, i+1)
		}
	}
	if want := base.Add(-7 * time.Hour); !st.First.Equal(want) {
		t.Fatalf("first = %v, want %v", st.First, want)
	}
	if want := base.Add(12 * time.Hour); !st.Last.Equal(want) {
		t.Fatalf("last = %v, want %v", st.Last, want)
	}
}
