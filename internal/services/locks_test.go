package services

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestKeyedMutex_SerializesPerKey(t *testing.T) {
	var km keyedMutex
	var active, maxActive atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("chat-1")
			n := active.Add(1)
			if n > maxActive.Load() {
				maxActive.Store(n)
			}
			active.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	if maxActive.Load() != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", maxActive.Load())
	}
	if km.size() != 0 {
		t.Fatalf("idle locks not released: %d", km.size())
	}
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	var km keyedMutex
	unlockA := km.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("b")
		unlockB()
		close(done)
	}()
	<-done
	if km.size() != 1 {
		t.Fatalf("size = %d, want 1", km.size())
	}
	unlockA()
	if km.size() != 0 {
		t.Fatalf("size = %d, want 0", km.size())
	}
}
