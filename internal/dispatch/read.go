package dispatch

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/adminkit/internal/domain/repository"
	"github.com/dropDatabas3/adminkit/internal/schema"
	"github.com/dropDatabas3/adminkit/internal/security/actiontoken"
)

func (d *Dispatcher) read(ctx context.Context, desc *schema.Descriptor, req Request) (Result, error) {
	switch req.Action {
	case schema.ActionView:
		rec, err := d.store.Get(ctx, desc.Name, req.RecordID)
		if err != nil {
			return Result{}, err
		}
		return Result{Record: rec}, nil

	case schema.ActionList, schema.ActionExport:
		q, err := d.listQuery(desc, req)
		if err != nil {
			return Result{}, err
		}
		page, err := d.store.List(ctx, desc.Name, q)
		if err != nil {
			return Result{}, err
		}
		if page.Items == nil {
			page.Items = []repository.Record{}
		}
		return Result{Page: &page}, nil

	case schema.ActionFragment:
		target := actiontoken.Target{Entity: desc.Name, RecordID: req.RecordID, Action: schema.ActionFragment}
		if err := d.tokens.VerifyFragment(ctx, req.Token, target); err != nil {
			return Result{}, err
		}
		if desc.Polymorphic == nil {
			return Result{}, &ValidationError{Field: "variant", Problem: "entity is not polymorphic"}
		}
		fields, ok := desc.Variant(req.Variant)
		if !ok {
			return Result{}, &ValidationError{Field: desc.Polymorphic.Discriminator, Problem: fmt.Sprintf("unknown variant %q", req.Variant)}
		}
		return Result{Fields: fields}, nil
	}
	return Result{}, ErrUnsupportedAction
}

// listQuery arma la consulta: búsqueda sobre los campos searchable, orden
// explícito o el default del descriptor, paginación acotada. Export no pagina.
func (d *Dispatcher) listQuery(desc *schema.Descriptor, req Request) (repository.ListQuery, error) {
	q := repository.ListQuery{
		Search:       req.Search,
		SearchFields: desc.Searchable,
		SortField:    desc.Ordering.Field,
		SortDesc:     desc.Ordering.Direction == schema.Desc,
	}
	if req.SortField != "" {
		if _, ok := desc.Field(req.SortField); !ok {
			return q, &ValidationError{Field: req.SortField, Problem: "unknown sort field"}
		}
		q.SortField = req.SortField
		q.SortDesc = false
	}
	if req.SortDesc != nil {
		q.SortDesc = *req.SortDesc
	}
	if req.Action == schema.ActionExport {
		return q, nil
	}

	size := req.PageSize
	if size <= 0 {
		size = d.cfg.DefaultPageSize
	}
	if size > d.cfg.MaxPageSize {
		size = d.cfg.MaxPageSize
	}
	page := max(req.Page, 1)
	q.Limit = size
	q.Offset = (page - 1) * size
	return q, nil
}
