package dedup

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestShouldProcessOncePerGroup(t *testing.T) {
	t.Parallel()

	g := New(0, 0)
	if !g.ShouldProcess("album-1") {
		t.Fatal("first sighting must be processed")
	}
	for i := 0; i < 5; i++ {
		if g.ShouldProcess("album-1") {
			t.Fatalf("repeat %d must be suppressed", i)
		}
	}
	if !g.ShouldProcess("album-2") {
		t.Fatal("a different group id must not be suppressed")
	}
}

func TestEmptyGroupIDAlwaysProcessed(t *testing.T) {
	t.Parallel()

	g := New(0, 0)
	for i := 0; i < 3; i++ {
		if !g.ShouldProcess("") {
			t.Fatal("posts without a group id are independent and never suppressed")
		}
	}
	if g.Len() != 0 {
		t.Fatalf("empty ids must not be tracked, have %d entries", g.Len())
	}
}

func TestWindowExpiry(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	g := New(time.Minute, 0)
	g.now = func() time.Time { return now }

	if !g.ShouldProcess("a") {
		t.Fatal("first sighting must be processed")
	}
	now = now.Add(30 * time.Second)
	if g.ShouldProcess("a") {
		t.Fatal("repeat inside the window must be suppressed")
	}
	now = now.Add(31 * time.Second)
	if !g.ShouldProcess("a") {
		t.Fatal("after the window the id is forgotten")
	}
}

func TestCapEviction(t *testing.T) {
	t.Parallel()

	g := New(time.Hour, 4)
	for i := 0; i < 10; i++ {
		g.ShouldProcess(fmt.Sprintf("g%d", i))
	}
	if g.Len() > 4 {
		t.Fatalf("guard exceeded its cap: %d entries", g.Len())
	}
	// The newest entry always survives eviction.
	if g.ShouldProcess("g9") {
		t.Fatal("most recent id must still be suppressed")
	}
}

func TestConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	g := New(0, 0)
	const workers = 32

	var wg sync.WaitGroup
	results := make(chan bool, workers)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results <- g.ShouldProcess("racy-album")
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	winners := 0
	for ok := range results {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("want exactly one winner, got %d", winners)
	}
}
