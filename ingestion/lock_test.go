package ingestion

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	counter := 0
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.lock("HR\x00Leave Policy")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestKeyedMutexIndependentKeysDoNotBlock(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.lock("a")
	unlockB := km.lock("b")
	unlockB()
	unlockA()

	// All entries are released, so the map must be empty again.
	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.locks)
}
