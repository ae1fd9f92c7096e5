package logging

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quercus/ast"
	"quercus/errors"
)

func bufferLogger(level LogLevel, f Formatter) (*DefaultLogger, *BufferWriter) {
	buf := NewBufferWriter()
	return NewDefaultLoggerWithConfig(LoggerConfig{Level: level, Formatter: f, Writers: []Writer{buf}}), buf
}

func TestLoggerLevels(t *testing.T) {
	logger, buf := bufferLogger(LevelWarning, NewSimpleFormatter())

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("shown")
	logger.Error("also shown")

	assert.Equal(t, []string{"WARNING: shown", "ERROR: also shown"}, buf.Lines())

	t.Run("derived loggers share the level", func(t *testing.T) {
		buf.Reset()
		child := logger.WithComponent("engine")
		logger.SetLevel(LevelDebug)
		child.Debug("now visible")
		assert.Equal(t, []string{"DEBUG: now visible"}, buf.Lines())
	})
}

func TestTextFormatter(t *testing.T) {
	logger, buf := bufferLogger(LevelDebug, NewTextFormatterWithOptions(false, false, true, false))

	logger.WithComponent("engine").
		WithFeature("A && !B").
		WithRequest("req-1").
		Info("branch split", IntField("branches", 2), StringField("file", "index php"))

	lines := buf.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, `[INFO] engine: branch split {A && !B} request_id=req-1 branches=2 file="index php"`, lines[0])
}

func TestJSONFormatter(t *testing.T) {
	logger, buf := bufferLogger(LevelDebug, NewJSONFormatter())

	ctx := context.WithValue(context.Background(), errors.RequestIDKey, "r7")
	logger.WithContext(ctx).WithFields(BoolField("cached", true)).Warn("slow include")

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(buf.Lines()[0]), &got))
	assert.Equal(t, "WARNING", got["level"])
	assert.Equal(t, "r7", got["request_id"])
	assert.Equal(t, map[string]interface{}{"cached": true}, got["fields"])
	assert.Contains(t, got["caller"], "logging_test.go", "caller points at the call site")
}

func TestErrorExecution(t *testing.T) {
	logger, buf := bufferLogger(LevelDebug, NewTextFormatterWithOptions(false, false, true, false))

	err := errors.NewWarning(errors.CodeUndefinedVar, "Undefined variable: x")
	err.Location = ast.Position{File: "a.php", Line: 3, Column: 5}
	err.Feature = "A"
	logger.ErrorExecution(err)

	line := buf.Lines()[0]
	assert.Contains(t, line, "[WARNING] Undefined variable: x {A}")
	assert.Contains(t, line, "error_code="+errors.CodeUndefinedVar)
	assert.Contains(t, line, "location=a.php:3:5")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarning, ParseLevel("warn"))
	assert.Equal(t, LevelInfo, ParseLevel("whatever"))
	assert.Equal(t, LevelWarning, LevelForSeverity(errors.SeverityWarning))
}

func TestRotatingFileWriter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quercus.log")

	w, err := NewRotatingFileWriter(path, 10, 0, 2, false)
	require.NoError(t, err)
	defer w.Close()

	for _, line := range []string{"first line\n", "second line\n", "third line\n", "fourth line\n"} {
		require.NoError(t, w.Write([]byte(line)))
	}

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fourth line\n", string(current))

	newest, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "third line\n", string(newest))

	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err), "only two backups are kept")

	t.Run("compressed backups", func(t *testing.T) {
		gzPath := filepath.Join(dir, "gz.log")
		w, err := NewRotatingFileWriter(gzPath, 0, 0, 1, true)
		require.NoError(t, err)
		defer w.Close()

		require.NoError(t, w.Write([]byte("payload\n")))
		require.NoError(t, w.ForceRotate())
		_, err = os.Stat(gzPath + ".1.gz")
		assert.NoError(t, err)
		_, err = os.Stat(gzPath + ".1")
		assert.True(t, os.IsNotExist(err))
	})
}

func TestFileWriters_CreateParentDirectories(t *testing.T) {
	dir := t.TempDir()

	plainPath := filepath.Join(dir, "plain", "nested", "quercus.log")
	fw, err := NewFileWriter(plainPath)
	require.NoError(t, err)
	require.NoError(t, fw.Write([]byte("hello\n")))
	require.NoError(t, fw.Close())
	data, err := os.ReadFile(plainPath)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	rotPath := filepath.Join(dir, "rotating", "quercus.log")
	rw, err := NewRotatingFileWriter(rotPath, 1<<20, 0, 1, false)
	require.NoError(t, err)
	defer rw.Close()
	_, err = os.Stat(rotPath)
	assert.NoError(t, err)
}
