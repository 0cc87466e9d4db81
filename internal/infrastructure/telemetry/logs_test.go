package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// recordingExporter keeps every exported log record
type recordingExporter struct {
	records []sdklog.Record
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func newTestLoggerProvider(t *testing.T) (*LoggerProvider, *recordingExporter) {
	t.Helper()
	original := global.GetLoggerProvider()
	t.Cleanup(func() { global.SetLoggerProvider(original) })

	exporter := &recordingExporter{}
	lp, err := newLoggerProvider(LogsConfig{ServiceName: "canteen-test"}, zap.NewNop(),
		sdklog.NewSimpleProcessor(exporter))
	require.NoError(t, err)
	return lp, exporter
}

func TestNewLoggerProvider_Disabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, lp.IsEnabled())
	assert.False(t, lp.Core(zapcore.DebugLevel).Enabled(zapcore.ErrorLevel))
	assert.NoError(t, lp.Shutdown(context.Background()))
}

func TestLoggerProvider_CoreExportsAboveLevel(t *testing.T) {
	lp, exporter := newTestLoggerProvider(t)
	assert.True(t, lp.IsEnabled())

	zl := zap.New(lp.Core(zapcore.InfoLevel)).With(zap.String("request_id", "req-1"))
	zl.Debug("dropped")
	zl.Info("Order placed", zap.String("order_id", "o-1"))
	zl.Warn("Stock low")

	require.NoError(t, lp.Shutdown(context.Background()))
	require.Len(t, exporter.records, 2)
	assert.Equal(t, "Order placed", exporter.records[0].Body().AsString())
	assert.Equal(t, "Stock low", exporter.records[1].Body().AsString())

	attrs := map[string]string{}
	exporter.records[0].WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	assert.Equal(t, "req-1", attrs["request_id"])
	assert.Equal(t, "o-1", attrs["order_id"])
}

func TestLevelFilterCore(t *testing.T) {
	lp, _ := newTestLoggerProvider(t)
	core := lp.Core(zapcore.WarnLevel)

	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))
	assert.False(t, core.With([]zapcore.Field{zap.String("k", "v")}).Enabled(zapcore.InfoLevel))
}
