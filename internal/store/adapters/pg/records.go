package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/adminkit/internal/domain/repository"
)

type recordStore struct {
	pool *pgxpool.Pool
}

func getRecord(ctx context.Context, q querier, entity, id string, forUpdate bool) (repository.Record, error) {
	sql := `SELECT data FROM admin_records WHERE entity = $1 AND id = $2`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var raw []byte
	if err := q.QueryRow(ctx, sql, entity, id).Scan(&raw); err != nil {
		return nil, wrap("get", err)
	}
	return decode(raw)
}

func decode(raw []byte) (repository.Record, error) {
	var rec repository.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, repository.WrapStore("decode", err, false)
	}
	return rec, nil
}

func (s *recordStore) Get(ctx context.Context, entity, id string) (repository.Record, error) {
	return getRecord(ctx, s.pool, entity, id, false)
}

func (s *recordStore) Count(ctx context.Context, entity string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admin_records WHERE entity = $1`, entity).Scan(&n)
	if err != nil {
		return 0, wrap("count", err)
	}
	return n, nil
}

// escapeLike escapa los comodines de LIKE para buscar el texto literal.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// listWhere arma el WHERE de List. Los nombres de campo van como parámetros
// (data ->> $n), nunca interpolados.
func listWhere(entity string, q repository.ListQuery) (string, []any) {
	args := []any{entity}
	where := `entity = $1`
	if q.Search != "" && len(q.SearchFields) > 0 {
		args = append(args, "%"+escapeLike(q.Search)+"%")
		pat := len(args)
		ors := make([]string, 0, len(q.SearchFields))
		for _, f := range q.SearchFields {
			args = append(args, f)
			ors = append(ors, fmt.Sprintf(`data ->> $%d::text ILIKE $%d`, len(args), pat))
		}
		where += ` AND (` + strings.Join(ors, " OR ") + `)`
	}
	return where, args
}

func (s *recordStore) List(ctx context.Context, entity string, q repository.ListQuery) (repository.Page, error) {
	where, args := listWhere(entity, q)
	if q.Search != "" && len(q.SearchFields) == 0 {
		return repository.Page{Items: []repository.Record{}, Offset: q.Offset, Limit: q.Limit}, nil
	}

	page := repository.Page{Offset: q.Offset, Limit: q.Limit}
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admin_records WHERE `+where, args...).Scan(&page.Total); err != nil {
		return repository.Page{}, wrap("list count", err)
	}

	order := `seq`
	if q.SortField != "" {
		args = append(args, q.SortField)
		dir := `ASC NULLS FIRST`
		if q.SortDesc {
			dir = `DESC NULLS LAST`
		}
		order = fmt.Sprintf(`data -> $%d::text %s, seq`, len(args), dir)
	}
	sql := `SELECT data FROM admin_records WHERE ` + where + ` ORDER BY ` + order
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		sql += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return repository.Page{}, wrap("list", err)
	}
	raws, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return repository.Page{}, wrap("list", err)
	}
	page.Items = make([]repository.Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := decode(raw)
		if err != nil {
			return repository.Page{}, err
		}
		page.Items = append(page.Items, rec)
	}
	return page, nil
}

// WithTx corre fn en una transacción de pgx. Registros y auditoría se
// confirman con el mismo COMMIT.
func (s *recordStore) WithTx(ctx context.Context, fn func(tx repository.RecordTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrap("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&recordTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrap("commit", err)
	}
	return nil
}

type recordTx struct {
	tx pgx.Tx
}

// Get dentro de la transacción toma el lock de fila, así las mutaciones
// concurrentes sobre un mismo registro se serializan.
func (t *recordTx) Get(ctx context.Context, entity, id string) (repository.Record, error) {
	return getRecord(ctx, t.tx, entity, id, true)
}

func (t *recordTx) Create(ctx context.Context, entity, id string, rec repository.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return repository.WrapStore("create", err, false)
	}
	tag, err := t.tx.Exec(ctx,
		`INSERT INTO admin_records (entity, id, data) VALUES ($1, $2, $3) ON CONFLICT (entity, id) DO NOTHING`,
		entity, id, raw)
	if err != nil {
		return wrap("create", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (t *recordTx) Update(ctx context.Context, entity, id string, rec repository.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return repository.WrapStore("update", err, false)
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE admin_records SET data = $3, updated_at = NOW() WHERE entity = $1 AND id = $2`,
		entity, id, raw)
	if err != nil {
		return wrap("update", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *recordTx) Delete(ctx context.Context, entity, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM admin_records WHERE entity = $1 AND id = $2`, entity, id)
	if err != nil {
		return wrap("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *recordTx) Audit() repository.AuditWriter { return &auditRepo{db: t.tx} }
