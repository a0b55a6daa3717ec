// File: internal/sim/orchestrator/main_test.go
package orchestrator

import (
	"os"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/config"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/observability"
)

// TestMain instantiates the global logger before running the package tests.
func TestMain(m *testing.M) {
	logConfig := config.NewDefaultConfig().Logger
	logConfig.Level = "debug"
	logConfig.ServiceName = "test-suite"
	logConfig.Format = "console"

	observability.Initialize(logConfig, zapcore.Lock(os.Stdout))

	exitCode := m.Run()

	observability.Sync()
	observability.ResetForTest()
	os.Exit(exitCode)
}
