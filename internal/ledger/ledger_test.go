package ledger

import (
	"sort"
	"testing"
)

func TestRecordAndLookup(t *testing.T) {
	l := New()
	if l.IsNotified("A", "R1") {
		t.Fatal("empty ledger should report not notified")
	}
	l.RecordNotified("A", "R1")
	l.RecordNotified("A", "R1") // duplicate is a no-op
	l.RecordNotified("B", "R1")
	l.RecordNotified("A", "R2")

	if !l.IsNotified("A", "R1") || !l.IsNotified("B", "R1") {
		t.Fatal("expected A and B notified of R1")
	}
	if l.IsNotified("B", "R2") {
		t.Fatal("B was never told about R2")
	}

	open := l.OffersFor("A")
	sort.Strings(open)
	if len(open) != 2 || open[0] != "R1" || open[1] != "R2" {
		t.Fatalf("unexpected open offers for A: %v", open)
	}
}

func TestNotifiedOf(t *testing.T) {
	l := New()
	l.RecordNotified("A", "R1")
	l.RecordNotified("B", "R1")
	l.RecordNotified("C", "R2")

	got := l.NotifiedOf("R1")
	sort.Strings(got)
	if len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("unexpected audience for R1: %v", got)
	}
}

func TestClearOffer(t *testing.T) {
	l := New()
	l.RecordNotified("A", "R1")
	l.RecordNotified("B", "R1")
	l.RecordNotified("B", "R2")

	l.ClearOffer("R1")
	if l.IsNotified("A", "R1") || l.IsNotified("B", "R1") {
		t.Fatal("R1 should be cleared for everyone")
	}
	if !l.IsNotified("B", "R2") {
		t.Fatal("clearing R1 must not touch R2")
	}
	// idempotent
	l.ClearOffer("R1")
	if got := l.NotifiedOf("R1"); len(got) != 0 {
		t.Fatalf("expected empty audience after clear, got %v", got)
	}
}
