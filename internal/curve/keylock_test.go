package curve

import (
	"sync"
	"testing"
)

func TestKeyLock_SerializesPerKey(t *testing.T) {
	kl := newKeyLock()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := kl.lock("curve-1")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}

func TestKeyLock_IndependentKeys(t *testing.T) {
	kl := newKeyLock()

	releaseA := kl.lock("a")
	// A different key must not block.
	done := make(chan struct{})
	go func() {
		release := kl.lock("b")
		release()
		close(done)
	}()
	<-done
	releaseA()
}

func TestKeyLock_EntriesReclaimed(t *testing.T) {
	kl := newKeyLock()

	for i := 0; i < 10; i++ {
		release := kl.lock("curve-1")
		release()
	}

	kl.mu.Lock()
	n := len(kl.locks)
	kl.mu.Unlock()
	if n != 0 {
		t.Errorf("%d lock entries left after release, want 0", n)
	}
}
