// Package memory implementa el adapter in-process: registros y audit log en
// memoria, con transacciones que confirman ambos juntos. Pensado para
// desarrollo, tests y despliegues de un solo nodo sin DB.
package memory

import (
	"context"

	"github.com/dropDatabas3/adminkit/internal/domain/repository"
	store "github.com/dropDatabas3/adminkit/internal/store"
)

func init() {
	store.RegisterAdapter(&memoryAdapter{})
}

type memoryAdapter struct{}

func (a *memoryAdapter) Name() string { return "memory" }

func (a *memoryAdapter) Connect(_ context.Context, _ store.AdapterConfig) (store.AdapterConnection, error) {
	return &memoryConnection{s: New()}, nil
}

type memoryConnection struct{ s *Store }

func (c *memoryConnection) Name() string                      { return "memory" }
func (c *memoryConnection) Ping(context.Context) error        { return nil }
func (c *memoryConnection) Close() error                      { return nil }
func (c *memoryConnection) Records() repository.RecordStore   { return c.s }
func (c *memoryConnection) Audit() repository.AuditRepository { return c.s.AuditLog() }
