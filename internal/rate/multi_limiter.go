package rate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MultiLimiter permite usar diferentes límites dinámicamente (p.ej. reads vs
// mutaciones) manteniendo el algoritmo fixed-window.
type MultiLimiter interface {
	AllowWithLimits(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// Factory construye un Limiter para una configuración limit+window.
type Factory func(limit int, window time.Duration) Limiter

// Multi cachea un limiter por configuración.
type Multi struct {
	factory  Factory
	mu       sync.RWMutex
	limiters map[string]Limiter
}

func NewMulti(f Factory) *Multi {
	return &Multi{factory: f, limiters: make(map[string]Limiter)}
}

// AllowWithLimits implementa MultiLimiter.
func (m *Multi) AllowWithLimits(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	configKey := fmt.Sprintf("%d:%s", limit, window.String())

	m.mu.RLock()
	limiter, exists := m.limiters[configKey]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		// double-check
		if limiter, exists = m.limiters[configKey]; !exists {
			limiter = m.factory(limit, window)
			m.limiters[configKey] = limiter
		}
		m.mu.Unlock()
	}
	return limiter.Allow(ctx, key)
}
