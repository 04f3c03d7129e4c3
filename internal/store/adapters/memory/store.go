package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dropDatabas3/adminkit/internal/domain/repository"
)

type row struct {
	seq int64
	rec repository.Record
}

// Store guarda registros por entidad y el audit log bajo un único RWMutex.
// Una transacción toma el lock de escritura durante todo el callback, así
// que las transacciones se serializan y el orden de commit coincide con el
// orden de los timestamps de auditoría.
type Store struct {
	mu      sync.RWMutex
	seq     int64
	records map[string]map[string]row
	audit   []auditRow
}

// New crea un store vacío.
func New() *Store {
	return &Store{records: make(map[string]map[string]row)}
}

// Seed inserta registros sin pasar por transacción ni auditoría (fixtures).
func (s *Store) Seed(entity, idField string, recs ...repository.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		id := idString(r[idField])
		s.put(entity, id, r.Clone())
	}
}

func (s *Store) put(entity, id string, rec repository.Record) {
	rows, ok := s.records[entity]
	if !ok {
		rows = make(map[string]row)
		s.records[entity] = rows
	}
	if existing, ok := rows[id]; ok {
		rows[id] = row{seq: existing.seq, rec: rec}
		return
	}
	s.seq++
	rows[id] = row{seq: s.seq, rec: rec}
}

func (s *Store) Get(ctx context.Context, entity, id string) (repository.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.WrapStore("get", err, true)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[entity][id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.rec.Clone(), nil
}

func (s *Store) Count(ctx context.Context, entity string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, repository.WrapStore("count", err, true)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[entity]), nil
}

func (s *Store) List(ctx context.Context, entity string, q repository.ListQuery) (repository.Page, error) {
	if err := ctx.Err(); err != nil {
		return repository.Page{}, repository.WrapStore("list", err, true)
	}
	s.mu.RLock()
	rows := make([]row, 0, len(s.records[entity]))
	for _, r := range s.records[entity] {
		if matches(r.rec, q.Search, q.SearchFields) {
			rows = append(rows, r)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	if q.SortField != "" {
		sort.SliceStable(rows, func(i, j int) bool {
			c := Compare(rows[i].rec[q.SortField], rows[j].rec[q.SortField])
			if q.SortDesc {
				return c > 0
			}
			return c < 0
		})
	}

	page := repository.Page{Total: len(rows), Offset: q.Offset, Limit: q.Limit}
	start := min(max(q.Offset, 0), len(rows))
	end := len(rows)
	if q.Limit > 0 {
		end = min(start+q.Limit, len(rows))
	}
	page.Items = make([]repository.Record, 0, end-start)
	for _, r := range rows[start:end] {
		page.Items = append(page.Items, r.rec.Clone())
	}
	return page, nil
}

// matches aplica la búsqueda case-insensitive por substring (OR entre campos).
func matches(rec repository.Record, search string, fields []string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	for _, f := range fields {
		if v, ok := rec[f].(string); ok && strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

// WithTx serializa la transacción con el lock de escritura. Si fn falla o el
// contexto se cancela antes del commit no se aplica nada.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.RecordTx) error) error {
	if err := ctx.Err(); err != nil {
		return repository.WrapStore("begin", err, true)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s, writes: make(map[string]map[string]*repository.Record)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return repository.WrapStore("commit", err, true)
	}
	tx.commit()
	return nil
}
