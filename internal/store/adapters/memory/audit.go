package memory

import (
	"context"
	"iter"
	"sort"

	"github.com/dropDatabas3/adminkit/internal/domain/repository"
)

type auditRow struct {
	seq int64
	e   repository.AuditEntry
}

// auditLog expone el audit log del Store como repository.AuditRepository.
type auditLog struct{ s *Store }

// AuditLog retorna la vista de auditoría del store.
func (s *Store) AuditLog() repository.AuditRepository { return auditLog{s} }

// Append fuera de transacción: se confirma de inmediato.
func (a auditLog) Append(ctx context.Context, e repository.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return repository.WrapStore("audit append", err, true)
	}
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	e.Changes = append([]repository.FieldChange(nil), e.Changes...)
	a.s.seq++
	a.s.audit = append(a.s.audit, auditRow{seq: a.s.seq, e: e})
	return nil
}

// Query toma un snapshot de las entradas que cumplen el filtro y las entrega
// de la más nueva a la más vieja.
func (a auditLog) Query(ctx context.Context, f repository.AuditFilter) iter.Seq2[repository.AuditEntry, error] {
	return func(yield func(repository.AuditEntry, error) bool) {
		a.s.mu.RLock()
		rows := make([]auditRow, 0)
		for _, r := range a.s.audit {
			if f.Match(r.e) {
				rows = append(rows, r)
			}
		}
		a.s.mu.RUnlock()

		sort.Slice(rows, func(i, j int) bool {
			ti, tj := rows[i].e.Timestamp, rows[j].e.Timestamp
			if !ti.Equal(tj) {
				return ti.After(tj)
			}
			return rows[i].seq > rows[j].seq
		})
		for i, r := range rows {
			if f.Limit > 0 && i >= f.Limit {
				return
			}
			if err := ctx.Err(); err != nil {
				yield(repository.AuditEntry{}, repository.WrapStore("audit query", err, true))
				return
			}
			if !yield(r.e, nil) {
				return
			}
		}
	}
}
