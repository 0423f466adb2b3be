package parallel

import (
	"sync"
	"testing"
)

// =============================================================================
// Barrier Tests
// =============================================================================

func TestBarrier_Phases(t *testing.T) {
	const parties, phases = 6, 50

	b := NewBarrier(parties)
	if b.Parties() != parties {
		t.Fatalf("Parties() = %d", b.Parties())
	}

	// Each party writes its slot in phase p and reads all slots after the
	// barrier; every read must observe phase p.
	slots := make([]int, parties)
	errs := make(chan string, parties*phases)
	var wg sync.WaitGroup
	for id := range parties {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := 1; p <= phases; p++ {
				slots[id] = p
				b.Wait()
				for other, v := range slots {
					if v != p {
						errs <- "party " + string(rune('0'+id)) + " saw stale slot " + string(rune('0'+other))
					}
				}
				b.Wait()
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}

func TestBarrier_SingleParty(t *testing.T) {
	b := NewBarrier(1)
	for range 3 {
		b.Wait()
	}
}

func TestNewBarrier_PanicsOnZero(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewBarrier(0) did not panic")
		}
	}()
	NewBarrier(0)
}
