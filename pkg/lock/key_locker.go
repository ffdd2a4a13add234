package lock

import (
	"sync"

	"github.com/apex/log"
)

// KeyLocker tracks which keys are held. It never blocks, a caller that
// can't get a key is expected to fail the request.
type KeyLocker[K comparable] struct {
	mapMutex sync.Mutex
	keyMap   map[K]struct{}
}

func NewKeyLocker[K comparable]() *KeyLocker[K] {
	return &KeyLocker[K]{
		keyMap: make(map[K]struct{}),
	}
}

// TryAcquireLock takes key and returns true, or returns false if someone
// already holds it.
func (l *KeyLocker[K]) TryAcquireLock(key K) bool {
	l.mapMutex.Lock()
	defer l.mapMutex.Unlock()

	if _, held := l.keyMap[key]; held {
		return false
	}

	l.keyMap[key] = struct{}{}
	return true
}

func (l *KeyLocker[K]) ReleaseLock(key K) {
	l.mapMutex.Lock()
	defer l.mapMutex.Unlock()

	if _, held := l.keyMap[key]; !held {
		log.Errorf("ReleaseLock called on key (%v) that isn't held", key)
		return
	}

	delete(l.keyMap, key)
}

// Len returns the number of keys currently held.
func (l *KeyLocker[K]) Len() int {
	l.mapMutex.Lock()
	defer l.mapMutex.Unlock()
	return len(l.keyMap)
}
