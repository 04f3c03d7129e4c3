package dispatch

import (
	"context"

	"github.com/dropDatabas3/adminkit/internal/audit"
	"github.com/dropDatabas3/adminkit/internal/domain/repository"
	"github.com/dropDatabas3/adminkit/internal/schema"
	"github.com/dropDatabas3/adminkit/internal/validation"
)

// mutate valida y aplica la mutación dentro de una transacción del store.
//
// Política de auditoría: si la entrada de auditoría no se puede escribir, la
// mutación entera falla y se revierte. No se completa ninguna mutación sin
// rastro de auditoría, aunque eso sacrifique disponibilidad ante fallas del log.
func (d *Dispatcher) mutate(ctx context.Context, desc *schema.Descriptor, req Request) (Result, error) {
	if req.Action == schema.ActionCreate {
		// La validación no depende del registro actual: se hace antes de abrir la tx.
		rec, id, err := d.prepareCreate(desc, req.Payload)
		if err != nil {
			return Result{}, err
		}
		var res Result
		err = d.store.WithTx(ctx, func(tx repository.RecordTx) error {
			if err := tx.Create(ctx, desc.Name, id, rec); err != nil {
				return err
			}
			entry, err := d.audit.LogChange(ctx, tx.Audit(), audit.Change{
				Entity: desc.Name, RecordID: id, Action: req.Action, Actor: actorOf(req), After: rec,
			})
			if err != nil {
				return err
			}
			res = Result{Record: rec, Audit: &entry}
			return nil
		})
		return res, err
	}

	if req.RecordID == "" {
		return Result{}, &ValidationError{Field: desc.PrimaryKey, Problem: "record id is required"}
	}

	var res Result
	err := d.store.WithTx(ctx, func(tx repository.RecordTx) error {
		before, err := tx.Get(ctx, desc.Name, req.RecordID)
		if err != nil {
			return err
		}

		var after repository.Record
		switch req.Action {
		case schema.ActionUpdate:
			after, err = d.prepareUpdate(desc, req.RecordID, before, req.Payload)
			if err != nil {
				return err
			}
			if err := tx.Update(ctx, desc.Name, req.RecordID, after); err != nil {
				return err
			}
		case schema.ActionDelete:
			if err := tx.Delete(ctx, desc.Name, req.RecordID); err != nil {
				return err
			}
		default:
			after, err = d.runCustom(ctx, desc, req, before)
			if err != nil {
				return err
			}
			if err := tx.Update(ctx, desc.Name, req.RecordID, after); err != nil {
				return err
			}
		}

		entry, err := d.audit.LogChange(ctx, tx.Audit(), audit.Change{
			Entity: desc.Name, RecordID: req.RecordID, Action: req.Action, Actor: actorOf(req),
			Before: before, After: after,
		})
		if err != nil {
			return err
		}
		res = Result{Record: after, Audit: &entry}
		if req.Action == schema.ActionDelete {
			res.Record = before
		}
		return nil
	})
	return res, err
}

func (d *Dispatcher) prepareCreate(desc *schema.Descriptor, payload repository.Record) (repository.Record, string, error) {
	rec, err := validation.Payload(desc, payload, nil, validation.Create)
	if err != nil {
		return nil, "", err
	}
	raw, ok := rec[desc.PrimaryKey]
	if !ok {
		id := d.newID()
		rec[desc.PrimaryKey] = id
		return rec, id, nil
	}
	id, ok := validation.ID(raw)
	if !ok {
		return nil, "", &ValidationError{Field: desc.PrimaryKey, Problem: "invalid identifier"}
	}
	return rec, id, nil
}

// prepareUpdate aplica un cambio parcial sobre before. La PK no se puede cambiar.
func (d *Dispatcher) prepareUpdate(desc *schema.Descriptor, id string, before, payload repository.Record) (repository.Record, error) {
	patch, err := validation.Payload(desc, payload, before, validation.Patch)
	if err != nil {
		return nil, err
	}
	if raw, ok := patch[desc.PrimaryKey]; ok {
		if got, _ := validation.ID(raw); got != id {
			return nil, &ValidationError{Field: desc.PrimaryKey, Problem: "primary key is immutable"}
		}
	}
	after := before.Clone()
	for k, v := range patch {
		after[k] = v
	}
	if !variantChanged(desc, before, patch) {
		return after, nil
	}
	return switchVariant(desc, before, patch, after)
}

func variantChanged(desc *schema.Descriptor, before, patch repository.Record) bool {
	if desc.Polymorphic == nil {
		return false
	}
	next, ok := patch[desc.Polymorphic.Discriminator]
	if !ok {
		return false
	}
	return next != before[desc.Polymorphic.Discriminator]
}

// switchVariant descarta los campos del subtipo anterior y valida el registro
// resultante como un alta completa del nuevo subtipo.
func switchVariant(desc *schema.Descriptor, before, patch, after repository.Record) (repository.Record, error) {
	fields, err := validation.Fields(desc, patch, before)
	if err != nil {
		return nil, err
	}
	current := make(map[string]bool, len(fields))
	for _, f := range fields {
		current[f.Name] = true
	}
	if prev, ok := before[desc.Polymorphic.Discriminator].(string); ok {
		old, _ := desc.Variant(prev)
		for _, f := range old {
			if !current[f.Name] {
				delete(after, f.Name)
			}
		}
	}

	candidate := make(repository.Record, len(fields))
	for _, f := range fields {
		if v, ok := after[f.Name]; ok {
			candidate[f.Name] = v
		}
	}
	normalized, err := validation.Payload(desc, candidate, nil, validation.Create)
	if err != nil {
		return nil, err
	}
	for k, v := range normalized {
		after[k] = v
	}
	return after, nil
}

func (d *Dispatcher) runCustom(ctx context.Context, desc *schema.Descriptor, req Request, before repository.Record) (repository.Record, error) {
	fn, ok := d.handler(desc.Name, req.Action)
	if !ok {
		return nil, ErrUnsupportedAction
	}
	patch, err := validation.Payload(desc, req.Payload, before, validation.Patch)
	if err != nil {
		return nil, err
	}
	after, err := fn(ctx, before.Clone(), patch)
	if err != nil {
		return nil, err
	}
	if after == nil {
		after = before.Clone()
	}
	return after, nil
}

func actorOf(req Request) repository.Actor {
	return repository.Actor{ID: req.Identity.UserID, Name: req.Identity.DisplayName}
}
