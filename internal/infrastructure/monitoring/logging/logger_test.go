package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func newBufferLogger(level zapcore.Level) (Logger, *zaptest.Buffer) {
	buf := &zaptest.Buffer{}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), buf, level)
	return NewLoggerFromCore(core), buf
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := NewLogger(LogConfig{Level: LevelDebug, Format: format, OutputPaths: []string{"stderr"}})
		require.NoError(t, err, format)
		assert.NotNil(t, l)
	}
}

func TestNewLogger_BadOutputPath(t *testing.T) {
	l, err := NewLogger(LogConfig{OutputPaths: []string{"/nonexistent-dir/sub/x.log"}})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestZapLogger_WritesTypedFields(t *testing.T) {
	l, buf := newBufferLogger(zapcore.DebugLevel)

	l.Info("scenario solved",
		ScenarioID("s-2"),
		UnitID(7),
		Float64("objective", 1.5),
		Duration("elapsed", 2*time.Second),
		Err(errors.New("boom")),
		Any("digits", []int{1, 2}),
	)

	lines := buf.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"msg":"scenario solved"`)
	assert.Contains(t, lines[0], `"scenario_id":"s-2"`)
	assert.Contains(t, lines[0], `"unit_id":7`)
	assert.Contains(t, lines[0], `"objective":1.5`)
	assert.Contains(t, lines[0], `"error":"boom"`)
}

func TestZapLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(zapcore.WarnLevel)
	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("shown")
	assert.Len(t, buf.Lines(), 2)
}

func TestZapLogger_WithAndNamed(t *testing.T) {
	l, buf := newBufferLogger(zapcore.DebugLevel)
	child := l.Named("compiler").With(RunID("r-1"))
	child.Info("compiled")

	line := buf.Lines()[0]
	assert.Contains(t, line, `"logger":"compiler"`)
	assert.Contains(t, line, `"run_id":"r-1"`)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
	assert.NotNil(t, l.With(String("k", "v")))
	assert.NotNil(t, l.Named("n"))
	assert.NotNil(t, OrNop(nil))
	assert.Equal(t, l, OrNop(l))
}

func TestDefaultLogger(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	l, _ := newBufferLogger(zapcore.InfoLevel)
	SetDefault(l)
	assert.Equal(t, l, Default())

	SetDefault(nil)
	assert.Equal(t, l, Default())
}
