package domain

import (
	"strings"
	"sync"
	"testing"
)

func TestNewReferenceUnique(t *testing.T) {
	const workers = 20
	const perWorker = 500

	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for j := 0; j < perWorker; j++ {
				local = append(local, NewReference())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, ref := range local {
				if _, dup := seen[ref]; dup {
					t.Errorf("duplicate reference generated: %s", ref)
				}
				seen[ref] = struct{}{}
			}
		}()
	}
	wg.Wait()
}

func TestNewReferenceFormat(t *testing.T) {
	ref := NewReference()
	if !strings.HasPrefix(ref, "TXN-") {
		t.Fatalf("unexpected prefix: %s", ref)
	}
	if len(strings.Split(ref, "-")) != 4 {
		t.Fatalf("unexpected shape: %s", ref)
	}
}

func TestDerivedReferences(t *testing.T) {
	if got := OutboundReference("T1"); got != "T1-OUT" {
		t.Fatalf("got %s", got)
	}
	if got := InboundReference("T1"); got != "T1-IN" {
		t.Fatalf("got %s", got)
	}
}
