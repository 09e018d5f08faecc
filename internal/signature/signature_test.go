package signature

import (
	"sync"
	"testing"
	"time"
)

func TestSignature_StableWithoutRenew(t *testing.T) {
	g := New(3)

	first := g.Signature(false)
	if len(first) != Length {
		t.Fatalf("expected %d characters, got %d (%q)", Length, len(first), first)
	}
	for i := 0; i < 10; i++ {
		if got := g.Signature(false); got != first {
			t.Fatalf("expected cached token %q, got %q", first, got)
		}
	}
}

func TestSignature_RenewIsUniqueBackToBack(t *testing.T) {
	g := New(1)
	// A frozen clock forces every call onto the same timestamp.
	frozen := time.Unix(1700000000, 0)
	g.now = func() time.Time { return frozen }

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		tok := g.Signature(true)
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token after %d renewals: %s", i, tok)
		}
		seen[tok] = struct{}{}
	}
	if got := g.Signature(false); got == "" {
		t.Fatal("expected cached token after renewals")
	}
}

func TestSignature_UniqueAcrossGenerators(t *testing.T) {
	const workers = 8
	const perWorker = 200

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g := New(0)
			for i := 0; i < perWorker; i++ {
				tok := g.Signature(true)
				mu.Lock()
				seen[tok] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d distinct tokens, got %d", workers*perWorker, len(seen))
	}
}

func TestNextStamp_Monotonic(t *testing.T) {
	a := nextStamp(10)
	b := nextStamp(10)
	c := nextStamp(5)
	if !(a < b && b < c) {
		t.Fatalf("expected strictly increasing stamps, got %d %d %d", a, b, c)
	}
}
