package memory

import (
	"context"

	"github.com/dropDatabas3/adminkit/internal/domain/repository"
)

// memTx acumula escrituras y entradas de auditoría hasta el commit.
// Un *Record nil en writes marca un borrado.
type memTx struct {
	s      *Store
	writes map[string]map[string]*repository.Record
	order  []txKey
	audit  []repository.AuditEntry
}

type txKey struct{ entity, id string }

func (tx *memTx) lookup(entity, id string) (repository.Record, bool) {
	if w, ok := tx.writes[entity][id]; ok {
		if w == nil {
			return nil, false
		}
		return *w, true
	}
	r, ok := tx.s.records[entity][id]
	return r.rec, ok
}

func (tx *memTx) stage(entity, id string, rec *repository.Record) {
	m, ok := tx.writes[entity]
	if !ok {
		m = make(map[string]*repository.Record)
		tx.writes[entity] = m
	}
	if _, seen := m[id]; !seen {
		tx.order = append(tx.order, txKey{entity, id})
	}
	m[id] = rec
}

func (tx *memTx) Get(ctx context.Context, entity, id string) (repository.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.WrapStore("get", err, true)
	}
	rec, ok := tx.lookup(entity, id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec.Clone(), nil
}

func (tx *memTx) Create(ctx context.Context, entity, id string, rec repository.Record) error {
	if err := ctx.Err(); err != nil {
		return repository.WrapStore("create", err, true)
	}
	if _, ok := tx.lookup(entity, id); ok {
		return repository.ErrConflict
	}
	c := rec.Clone()
	tx.stage(entity, id, &c)
	return nil
}

func (tx *memTx) Update(ctx context.Context, entity, id string, rec repository.Record) error {
	if err := ctx.Err(); err != nil {
		return repository.WrapStore("update", err, true)
	}
	if _, ok := tx.lookup(entity, id); !ok {
		return repository.ErrNotFound
	}
	c := rec.Clone()
	tx.stage(entity, id, &c)
	return nil
}

func (tx *memTx) Delete(ctx context.Context, entity, id string) error {
	if err := ctx.Err(); err != nil {
		return repository.WrapStore("delete", err, true)
	}
	if _, ok := tx.lookup(entity, id); !ok {
		return repository.ErrNotFound
	}
	tx.stage(entity, id, nil)
	return nil
}

func (tx *memTx) Audit() repository.AuditWriter { return txAudit{tx} }

type txAudit struct{ tx *memTx }

func (a txAudit) Append(ctx context.Context, e repository.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return repository.WrapStore("audit append", err, true)
	}
	e.Changes = append([]repository.FieldChange(nil), e.Changes...)
	a.tx.audit = append(a.tx.audit, e)
	return nil
}

// commit aplica todo bajo el lock ya tomado por WithTx.
func (tx *memTx) commit() {
	s := tx.s
	for _, k := range tx.order {
		w := tx.writes[k.entity][k.id]
		if w == nil {
			delete(s.records[k.entity], k.id)
			continue
		}
		s.put(k.entity, k.id, *w)
	}
	for _, e := range tx.audit {
		s.seq++
		s.audit = append(s.audit, auditRow{seq: s.seq, e: e})
	}
}
