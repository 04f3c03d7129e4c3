package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_IsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))

	TokensIssued.WithLabelValues("update").Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(TokensIssued.WithLabelValues("update")), 1.0)
}
