package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/dropDatabas3/adminkit/internal/domain/repository"
)

// auditRepo escribe y consulta admin_audit_log. db es el pool o la
// transacción en curso.
type auditRepo struct {
	db querier
}

func (r *auditRepo) Append(ctx context.Context, e repository.AuditEntry) error {
	changes := e.Changes
	if changes == nil {
		changes = []repository.FieldChange{}
	}
	raw, err := json.Marshal(changes)
	if err != nil {
		return repository.WrapStore("audit append", err, false)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO admin_audit_log (id, entity, record_id, action, actor_id, actor_name, ts, changes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.Entity, e.RecordID, e.Action, e.Actor.ID, e.Actor.Name, e.Timestamp, raw)
	return wrap("audit append", err)
}

// auditQuery arma el SELECT para el filtro.
func auditQuery(f repository.AuditFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Entity != "" {
		add("entity = $%d", f.Entity)
	}
	if f.RecordID != "" {
		add("record_id = $%d", f.RecordID)
	}
	if f.ActorID != "" {
		add("actor_id = $%d", f.ActorID)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if !f.Since.IsZero() {
		add("ts >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		add("ts < $%d", f.Until)
	}

	sql := `SELECT id, entity, record_id, action, actor_id, actor_name, ts, changes FROM admin_audit_log`
	if len(conds) > 0 {
		sql += ` WHERE ` + strings.Join(conds, " AND ")
	}
	sql += ` ORDER BY ts DESC, seq DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return sql, args
}

// Query lee las filas a medida que el consumidor avanza; cortar la
// iteración cierra el cursor.
func (r *auditRepo) Query(ctx context.Context, f repository.AuditFilter) iter.Seq2[repository.AuditEntry, error] {
	return func(yield func(repository.AuditEntry, error) bool) {
		sql, args := auditQuery(f)
		rows, err := r.db.Query(ctx, sql, args...)
		if err != nil {
			yield(repository.AuditEntry{}, wrap("audit query", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var e repository.AuditEntry
			var ts time.Time
			var raw []byte
			if err := rows.Scan(&e.ID, &e.Entity, &e.RecordID, &e.Action, &e.Actor.ID, &e.Actor.Name, &ts, &raw); err != nil {
				yield(repository.AuditEntry{}, wrap("audit scan", err))
				return
			}
			e.Timestamp = ts.UTC()
			if err := json.Unmarshal(raw, &e.Changes); err != nil {
				yield(repository.AuditEntry{}, repository.WrapStore("audit decode", err, false))
				return
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(repository.AuditEntry{}, wrap("audit query", err))
		}
	}
}
