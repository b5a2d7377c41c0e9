package testutil

import "testing"

func TestIDSequence(t *testing.T) {
	seq := NewIDSequence("id")
	if got := seq.Next(); got != "id-0001" {
		t.Errorf("first id = %q, want id-0001", got)
	}
	if got := seq.Next(); got != "id-0002" {
		t.Errorf("second id = %q, want id-0002", got)
	}

	other := NewIDSequence("sch")
	if got := other.Next(); got != "sch-0001" {
		t.Errorf("independent sequence = %q, want sch-0001", got)
	}
}

func TestFixedClock(t *testing.T) {
	clock := FixedClock()
	if !clock().Equal(FixedTime) {
		t.Errorf("clock = %v, want %v", clock(), FixedTime)
	}
	if !clock().Equal(clock()) {
		t.Error("clock must not advance")
	}
}
