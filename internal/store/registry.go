// Package store provee el registry de adaptadores de almacenamiento para
// registros administrados y el audit log.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dropDatabas3/adminkit/internal/domain/repository"
)

// Adapter representa un adaptador de almacenamiento.
type Adapter interface {
	// Name retorna el nombre del adapter (ej: "memory", "postgres").
	Name() string

	// Connect establece conexión con el almacenamiento.
	Connect(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error)
}

// AdapterConnection representa una conexión activa.
type AdapterConnection interface {
	// Name retorna el nombre del adapter.
	Name() string

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error

	// Records es el store abstracto de registros.
	Records() repository.RecordStore

	// Audit es el repositorio append-only de auditoría. Las escrituras que
	// deben confirmarse con una mutación van por RecordTx.Audit().
	Audit() repository.AuditRepository
}

// AdapterConfig configuración para conectar a un almacenamiento.
type AdapterConfig struct {
	// Name del adapter: "memory", "postgres"
	Name string

	// DSN connection string (para DBs)
	DSN string

	// Pool settings (para DBs)
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string

	// AutoMigrate crea las tablas si no existen.
	AutoMigrate bool
}

// key identifica una conexión en el pool.
func (c AdapterConfig) key() string {
	return c.Name + "|" + c.DSN
}

// ─── Registry Global ───

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// RegisterAdapter registra un adapter en el registry global.
// Llamar en init() de cada adapter.
func RegisterAdapter(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := a.Name()
	if _, exists := adapters[name]; exists {
		panic(fmt.Sprintf("adapter: %q already registered", name))
	}
	adapters[name] = a
}

// GetAdapter obtiene un adapter por nombre.
func GetAdapter(name string) (Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[name]
	return a, ok
}

// ListAdapters retorna los nombres de todos los adapters registrados, ordenados.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenAdapter abre una conexión usando el adapter especificado en la config.
func OpenAdapter(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error) {
	a, ok := GetAdapter(normalizeName(cfg.Name))
	if !ok {
		return nil, fmt.Errorf("adapter: %q not registered (available: %s)", cfg.Name, strings.Join(ListAdapters(), ", "))
	}
	return a.Connect(ctx, cfg)
}

func normalizeName(n string) string {
	switch n {
	case "pg", "postgresql":
		return "postgres"
	case "", "mem":
		return "memory"
	}
	return n
}
