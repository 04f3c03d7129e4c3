package repository

import (
	"context"
	"iter"
	"time"
)

// Actor identifica a quien ejecutó la mutación.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FieldChange es el diff de un campo.
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// AuditEntry es un registro de auditoría append-only.
//
// El set de campos y su orden son contrato externo (tooling de compliance y
// export): no reordenar ni renombrar.
type AuditEntry struct {
	ID        string        `json:"id"`
	Entity    string        `json:"entity"`
	RecordID  string        `json:"record_id"`
	Action    string        `json:"action"`
	Actor     Actor         `json:"actor"`
	Timestamp time.Time     `json:"timestamp"`
	Changes   []FieldChange `json:"changes"`
}

// AuditFilter filtra consultas de auditoría. Campos vacíos no filtran.
// Since es inclusivo, Until exclusivo.
type AuditFilter struct {
	Entity   string
	RecordID string
	ActorID  string
	Action   string
	Since    time.Time
	Until    time.Time
	Limit    int
}

// Match reporta si e cumple el filtro (sin considerar Limit).
func (f AuditFilter) Match(e AuditEntry) bool {
	if f.Entity != "" && e.Entity != f.Entity {
		return false
	}
	if f.RecordID != "" && e.RecordID != f.RecordID {
		return false
	}
	if f.ActorID != "" && e.Actor.ID != f.ActorID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.Timestamp.Before(f.Until) {
		return false
	}
	return true
}

// AuditWriter agrega entradas. Nunca actualiza ni borra.
type AuditWriter interface {
	Append(ctx context.Context, e AuditEntry) error
}

// AuditRepository es el almacenamiento de auditoría.
type AuditRepository interface {
	AuditWriter

	// Query retorna las entradas que cumplen el filtro, de la más nueva a la
	// más vieja, de forma lazy.
	Query(ctx context.Context, f AuditFilter) iter.Seq2[AuditEntry, error]
}
