package service

import (
	"sync"
	"time"
)

// DispatchLimiter limita la frecuencia de envíos de código por identificador.
// Es una defensa adicional al límite de un código vigente por propósito.
type DispatchLimiter interface {
	Allow(key string) bool
}

type memoryDispatchLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
}

// NewDispatchLimiter crea un limiter en memoria.
func NewDispatchLimiter(window time.Duration, max int) DispatchLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &memoryDispatchLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
	}
}

func (l *memoryDispatchLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	cutoff := now.Add(-l.window)
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	kept = append(kept, now)
	l.hits[key] = kept
	return true
}
