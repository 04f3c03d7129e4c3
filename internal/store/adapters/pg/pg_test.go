package pg

import (
	"testing"
	"time"

	"github.com/dropDatabas3/adminkit/internal/domain/repository"
	"github.com/stretchr/testify/assert"
)

func TestListWhere_ParameterizesFieldNames(t *testing.T) {
	where, args := listWhere("Article", repository.ListQuery{Search: "50%_off", SearchFields: []string{"title", "body"}})
	assert.Equal(t, `entity = $1 AND (data ->> $3::text ILIKE $2 OR data ->> $4::text ILIKE $2)`, where)
	assert.Equal(t, []any{"Article", `%50\%\_off%`, "title", "body"}, args)
}

func TestListWhere_NoSearch(t *testing.T) {
	where, args := listWhere("Article", repository.ListQuery{})
	assert.Equal(t, `entity = $1`, where)
	assert.Equal(t, []any{"Article"}, args)
}

func TestAuditQuery_Filters(t *testing.T) {
	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sql, args := auditQuery(repository.AuditFilter{Entity: "Article", ActorID: "u1", Since: since, Limit: 10})
	assert.Contains(t, sql, `WHERE entity = $1 AND actor_id = $2 AND ts >= $3`)
	assert.Contains(t, sql, `ORDER BY ts DESC, seq DESC LIMIT $4`)
	assert.Equal(t, []any{"Article", "u1", since, 10}, args)
}

func TestAuditQuery_NoFilter(t *testing.T) {
	sql, args := auditQuery(repository.AuditFilter{})
	assert.NotContains(t, sql, "WHERE")
	assert.Empty(t, args)
}
