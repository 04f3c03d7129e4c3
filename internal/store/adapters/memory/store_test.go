package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/adminkit/internal/domain/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(p repository.Page) []string {
	out := make([]string, 0, len(p.Items))
	for _, r := range p.Items {
		out = append(out, r["id"].(string))
	}
	return out
}

func seeded() *Store {
	s := New()
	s.Seed("Article", "id",
		repository.Record{"id": "1", "title": "Cats and dogs", "published_at": "2024-01-01T00:00:00Z"},
		repository.Record{"id": "2", "title": "Birds", "published_at": "2024-03-01T00:00:00Z"},
		repository.Record{"id": "3", "title": "The CAT returns", "published_at": "2024-02-01T00:00:00Z"},
		repository.Record{"id": "4", "title": "Bobcat", "published_at": "2023-12-01T00:00:00Z"},
	)
	return s
}

func TestList_SearchAndSort(t *testing.T) {
	s := seeded()
	page, err := s.List(context.Background(), "Article", repository.ListQuery{
		Search:       "cat",
		SearchFields: []string{"title"},
		SortField:    "published_at",
		SortDesc:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "1", "4"}, ids(page))
	assert.Equal(t, 3, page.Total)
}

func TestList_Pagination(t *testing.T) {
	s := seeded()
	page, err := s.List(context.Background(), "Article", repository.ListQuery{SortField: "id", Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, ids(page))
	assert.Equal(t, 4, page.Total)

	page, err = s.List(context.Background(), "Article", repository.ListQuery{Offset: 10, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestList_DefaultOrderIsInsertion(t *testing.T) {
	s := seeded()
	page, err := s.List(context.Background(), "Article", repository.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(page))
}

func TestWithTx_CommitsRecordsAndAuditTogether(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx repository.RecordTx) error {
		rec, err := tx.Get(ctx, "Article", "2")
		if err != nil {
			return err
		}
		rec["title"] = "Owls"
		if err := tx.Update(ctx, "Article", "2", rec); err != nil {
			return err
		}
		return tx.Audit().Append(ctx, repository.AuditEntry{ID: "a1", Entity: "Article", RecordID: "2", Timestamp: time.Now()})
	})
	require.NoError(t, err)

	rec, err := s.Get(ctx, "Article", "2")
	require.NoError(t, err)
	assert.Equal(t, "Owls", rec["title"])
	assert.Len(t, collect(t, s.AuditLog().Query(ctx, repository.AuditFilter{})), 1)
}

func TestWithTx_RollbackOnError(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx repository.RecordTx) error {
		require.NoError(t, tx.Delete(ctx, "Article", "1"))
		require.NoError(t, tx.Audit().Append(ctx, repository.AuditEntry{ID: "a1"}))
		_, err := tx.Get(ctx, "Article", "1")
		assert.True(t, repository.IsNotFound(err), "tx sees its own delete")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Get(ctx, "Article", "1")
	require.NoError(t, err)
	assert.Empty(t, collect(t, s.AuditLog().Query(ctx, repository.AuditFilter{})))
}

func TestWithTx_CancelledBeforeCommit(t *testing.T) {
	s := seeded()
	ctx, cancel := context.WithCancel(context.Background())

	err := s.WithTx(ctx, func(tx repository.RecordTx) error {
		require.NoError(t, tx.Create(ctx, "Article", "9", repository.Record{"id": "9"}))
		cancel()
		return nil
	})
	require.Error(t, err)
	assert.True(t, repository.IsRetryable(err))

	_, err = s.Get(context.Background(), "Article", "9")
	assert.True(t, repository.IsNotFound(err))
}

func TestTx_CreateConflictAndMissing(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	err := s.WithTx(ctx, func(tx repository.RecordTx) error {
		assert.True(t, repository.IsConflict(tx.Create(ctx, "Article", "1", repository.Record{})))
		assert.True(t, repository.IsNotFound(tx.Update(ctx, "Article", "99", repository.Record{})))
		assert.True(t, repository.IsNotFound(tx.Delete(ctx, "Article", "99")))
		return nil
	})
	require.NoError(t, err)
}

func TestAuditQuery_NewestFirstWithFilters(t *testing.T) {
	s := New()
	ctx := context.Background()
	log := s.AuditLog()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []repository.AuditEntry{
		{ID: "1", Entity: "Article", RecordID: "7", Action: "update", Actor: repository.Actor{ID: "u1"}, Timestamp: base},
		{ID: "2", Entity: "Article", RecordID: "7", Action: "delete", Actor: repository.Actor{ID: "u2"}, Timestamp: base.Add(time.Hour)},
		{ID: "3", Entity: "Comment", RecordID: "1", Action: "update", Actor: repository.Actor{ID: "u1"}, Timestamp: base.Add(2 * time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, log.Append(ctx, e))
	}

	got := collect(t, log.Query(ctx, repository.AuditFilter{}))
	assert.Equal(t, []string{"3", "2", "1"}, entryIDs(got))

	got = collect(t, log.Query(ctx, repository.AuditFilter{ActorID: "u1"}))
	assert.Equal(t, []string{"3", "1"}, entryIDs(got))

	got = collect(t, log.Query(ctx, repository.AuditFilter{Entity: "Article", Since: base.Add(time.Minute)}))
	assert.Equal(t, []string{"2"}, entryIDs(got))

	got = collect(t, log.Query(ctx, repository.AuditFilter{Until: base.Add(time.Hour)}))
	assert.Equal(t, []string{"1"}, entryIDs(got))

	got = collect(t, log.Query(ctx, repository.AuditFilter{Limit: 1}))
	assert.Equal(t, []string{"3"}, entryIDs(got))
}

func TestAuditQuery_StopsEarly(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.AuditLog().Append(ctx, repository.AuditEntry{ID: id}))
	}
	n := 0
	for range s.AuditLog().Query(ctx, repository.AuditFilter{}) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func collect(t *testing.T, seq func(func(repository.AuditEntry, error) bool)) []repository.AuditEntry {
	t.Helper()
	var out []repository.AuditEntry
	for e, err := range seq {
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func entryIDs(es []repository.AuditEntry) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.ID)
	}
	return out
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(nil, "a"))
	assert.Equal(t, 1, Compare(10, 9.5))
	assert.Equal(t, 0, Compare(int64(3), 3.0))
	assert.Equal(t, -1, Compare("apple", "Banana"))
	assert.Equal(t, -1, Compare(false, true))
}
