package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/adminkit/internal/domain/repository"
	"github.com/dropDatabas3/adminkit/internal/schema"
	"github.com/dropDatabas3/adminkit/internal/store/adapters/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = repository.Actor{ID: "u1", Name: "alice"}

func TestDiff_UpdateOnlyChangedFields(t *testing.T) {
	before := repository.Record{"id": "7", "title": "Old", "views": 3}
	after := repository.Record{"id": "7", "title": "New", "views": 3.0}

	assert.Equal(t, []repository.FieldChange{{Field: "title", Old: "Old", New: "New"}}, Diff(before, after))
}

func TestDiff_CreateAndDelete(t *testing.T) {
	rec := repository.Record{"id": "1", "title": "Hi"}

	created := Diff(nil, rec)
	assert.Equal(t, []repository.FieldChange{
		{Field: "id", Old: nil, New: "1"},
		{Field: "title", Old: nil, New: "Hi"},
	}, created)

	deleted := Diff(rec, nil)
	assert.Equal(t, []repository.FieldChange{
		{Field: "id", Old: "1", New: nil},
		{Field: "title", Old: "Hi", New: nil},
	}, deleted)
}

func TestDiff_FieldRemovedAndAdded(t *testing.T) {
	got := Diff(repository.Record{"a": 1}, repository.Record{"b": 2})
	assert.Equal(t, []repository.FieldChange{{Field: "a", Old: 1}, {Field: "b", New: 2}}, got)
}

func TestDiff_NoChanges(t *testing.T) {
	rec := repository.Record{"tags": []any{"x", "y"}}
	got := Diff(rec, repository.Record{"tags": []any{"x", "y"}})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLogChange_WritesEntry(t *testing.T) {
	s := memory.New()
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	l := New(s.AuditLog(), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	entry, err := l.LogChange(ctx, nil, Change{
		Entity:   "Article",
		RecordID: "7",
		Action:   schema.ActionUpdate,
		Actor:    alice,
		Before:   repository.Record{"id": "7", "title": "Old"},
		After:    repository.Record{"id": "7", "title": "New"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, now, entry.Timestamp)

	var got []repository.AuditEntry
	for e, err := range l.Query(ctx, repository.AuditFilter{Entity: "Article", RecordID: "7"}) {
		require.NoError(t, err)
		got = append(got, e)
	}
	require.Len(t, got, 1)
	assert.Equal(t, entry, got[0])
}

func TestLogChange_TimestampHasMicrosecondPrecision(t *testing.T) {
	local := time.FixedZone("ART", -3*3600)
	now := time.Date(2025, 5, 1, 7, 0, 0, 123456789, local)
	l := New(memory.New().AuditLog(), WithClock(func() time.Time { return now }))

	entry, err := l.LogChange(context.Background(), nil, Change{Entity: "Article", RecordID: "7", Action: schema.ActionDelete, Actor: alice})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 5, 1, 10, 0, 0, 123456000, time.UTC), entry.Timestamp)
	assert.Equal(t, time.UTC, entry.Timestamp.Location())
}

type failingWriter struct{ err error }

func (f failingWriter) Append(context.Context, repository.AuditEntry) error { return f.err }

func TestLogChange_FailureIsTyped(t *testing.T) {
	l := New(memory.New().AuditLog())
	boom := errors.New("disk full")

	_, err := l.LogChange(context.Background(), failingWriter{err: boom}, Change{Entity: "Article", RecordID: "7", Action: schema.ActionDelete, Actor: alice})
	require.Error(t, err)
	assert.True(t, IsWriteError(err))
	assert.ErrorIs(t, err, boom)
}

func TestLogChange_InsideTransactionCommitsWithRecord(t *testing.T) {
	s := memory.New()
	l := New(s.AuditLog())
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx repository.RecordTx) error {
		if err := tx.Create(ctx, "Article", "1", repository.Record{"id": "1"}); err != nil {
			return err
		}
		_, err := l.LogChange(ctx, tx.Audit(), Change{Entity: "Article", RecordID: "1", Action: schema.ActionCreate, Actor: alice, After: repository.Record{"id": "1"}})
		if err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	n := 0
	for range l.Query(ctx, repository.AuditFilter{}) {
		n++
	}
	assert.Zero(t, n, "rolled back transaction leaves no audit trail")
}
