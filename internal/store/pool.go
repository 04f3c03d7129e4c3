package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ConnectionPool mantiene una conexión por (adapter, DSN).
// Thread-safe, usa singleflight para evitar aperturas duplicadas cuando el
// servidor y los comandos de mantenimiento piden la misma conexión en paralelo.
type ConnectionPool struct {
	connections sync.Map // key → *poolEntry
	sf          singleflight.Group
	open        func(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error)
}

type poolEntry struct {
	conn      AdapterConnection
	createdAt time.Time
}

// NewConnectionPool crea un pool que abre conexiones con OpenAdapter.
func NewConnectionPool() *ConnectionPool {
	return &ConnectionPool{open: OpenAdapter}
}

// Get obtiene la conexión existente o abre una nueva.
func (p *ConnectionPool) Get(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error) {
	cfg.Name = normalizeName(cfg.Name)
	key := cfg.key()
	if val, ok := p.connections.Load(key); ok {
		return val.(*poolEntry).conn, nil
	}

	result, err, _ := p.sf.Do(key, func() (interface{}, error) {
		// Double-check dentro del singleflight
		if val, ok := p.connections.Load(key); ok {
			return val.(*poolEntry).conn, nil
		}
		conn, err := p.open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		p.connections.Store(key, &poolEntry{conn: conn, createdAt: time.Now()})
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(AdapterConnection), nil
}

// CloseAll cierra todas las conexiones.
func (p *ConnectionPool) CloseAll() error {
	var errs []error
	p.connections.Range(func(key, value interface{}) bool {
		if err := value.(*poolEntry).conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		p.connections.Delete(key)
		return true
	})
	if len(errs) > 0 {
		return fmt.Errorf("errors closing connections: %v", errs)
	}
	return nil
}

// Len retorna la cantidad de conexiones abiertas.
func (p *ConnectionPool) Len() int {
	n := 0
	p.connections.Range(func(_, _ interface{}) bool { n++; return true })
	return n
}
