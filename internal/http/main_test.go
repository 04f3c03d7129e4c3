package http

import (
	"os"
	"testing"

	"github.com/dropDatabas3/adminkit/internal/observability/logger"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Replace(zap.NewNop())
	os.Exit(m.Run())
}
