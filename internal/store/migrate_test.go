package store

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	applied map[int]bool
	stmts   []string
}

func (f *fakeExec) Exec(_ context.Context, sql string, args ...any) error {
	f.stmts = append(f.stmts, sql)
	if len(args) == 2 {
		f.applied[args[0].(int)] = true
	}
	return nil
}

func (f *fakeExec) AppliedVersions(context.Context) (map[int]bool, error) {
	out := make(map[int]bool, len(f.applied))
	for k, v := range f.applied {
		out[k] = v
	}
	return out, nil
}

func TestMigrator_AppliesPendingInOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"schema/0002_audit.sql":   {Data: []byte("CREATE TABLE b();")},
		"schema/0001_records.sql": {Data: []byte("CREATE TABLE a();")},
		"schema/README.md":        {Data: []byte("ignored")},
	}
	m := NewMigrator(fsys, "schema")
	exec := &fakeExec{applied: map[int]bool{}}

	res, err := m.Run(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, res.Applied)
	assert.Contains(t, exec.stmts, "CREATE TABLE a();")

	res, err = m.Run(context.Background(), exec)
	require.NoError(t, err)
	assert.Empty(t, res.Applied)
	assert.Equal(t, []int{1, 2}, res.Skipped)
}
