package sqlite

import (
	"sync"

	"github.com/ppiankov/kbsync/internal/model"
)

// keyedMutex serializes commits per (feature, kind) key
type keyedMutex struct {
	mu    sync.Mutex
	locks map[model.ArticleKey]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[model.ArticleKey]*sync.Mutex)}
}

// Lock acquires the lock for key and returns its unlock function
func (k *keyedMutex) Lock(key model.ArticleKey) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
