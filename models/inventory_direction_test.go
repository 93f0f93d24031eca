package models

import "testing"

func deltasByCounter(t *testing.T, direction InventoryDirection, qty int) map[string]int {
	t.Helper()
	deltas, err := directionDeltas(direction, qty)
	if err != nil {
		t.Fatalf("directionDeltas(%s, %d): %v", direction, qty, err)
	}
	out := make(map[string]int, len(deltas))
	for _, d := range deltas {
		out[d.Counter] = d.Delta
	}
	return out
}

func TestDirectionDeltas_Reserve(t *testing.T) {
	got := deltasByCounter(t, InventoryDirectionReserve, 5)
	if got["available"] != -5 || got["committed"] != 5 {
		t.Fatalf("reserve deltas wrong: %v", got)
	}
	if len(got) != 2 {
		t.Fatalf("reserve must touch exactly available and committed: %v", got)
	}
}

func TestDirectionDeltas_ReleaseMirrorsReserve(t *testing.T) {
	reserve := deltasByCounter(t, InventoryDirectionReserve, 7)
	release := deltasByCounter(t, InventoryDirectionRelease, 7)
	for counter, delta := range reserve {
		if release[counter] != -delta {
			t.Fatalf("release is not the inverse of reserve for %s: reserve=%d release=%d",
				counter, delta, release[counter])
		}
	}
}

func TestDirectionDeltas_FulfillLeavesAvailableUntouched(t *testing.T) {
	got := deltasByCounter(t, InventoryDirectionFulfill, 4)
	if got["committed"] != -4 || got["on_hand"] != -4 || got["shipped"] != 4 {
		t.Fatalf("fulfill deltas wrong: %v", got)
	}
	if _, touched := got["available"]; touched {
		t.Fatalf("fulfill must not touch available: %v", got)
	}
}

func TestDirectionDeltas_UnknownDirection(t *testing.T) {
	if _, err := directionDeltas(InventoryDirection("teleport"), 1); err == nil {
		t.Fatal("expected error for unknown direction")
	}
}
