package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quercus/logging"
	"quercus/serialization"
)

const programYAML = `file: /app/index.php
statements:
  - type: echo
    values:
      - {type: literal, value: "x"}
  - type: conditional
    condition: A
    then:
      type: echo
      values:
        - {type: literal, value: "a"}
`

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Equal(t, 4, cfg.Jobs.Concurrency)

	cfg, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Engine.MaxExecutionTime)
}

func TestConfig_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"config.yaml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Features.Declared = []string{"A", "B"}
			cfg.Features.Model = "A => B"
			cfg.Lua.Scripts = []string{"~/hosts.lua"}

			path := filepath.Join(dir, name)
			require.NoError(t, SaveConfig(cfg, path))
			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, cfg.Features, loaded.Features)
			assert.Equal(t, cfg.Engine.MaxLoopIterations, loaded.Engine.MaxLoopIterations)
			assert.Equal(t, cfg.REPL, loaded.REPL)

			ec := loaded.EngineConfig()
			assert.Equal(t, []string{"A", "B"}, ec.Features)
			assert.Equal(t, 30*time.Second, ec.MaxExecutionTime)
			assert.NotContains(t, ec.LuaScripts[0], "~")
		})
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: ["), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfig_NewLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.File = filepath.Join(t.TempDir(), "logs", "quercus.log")
	cfg.Logging.MaxSizeMB = 1
	cfg.Engine.Verbose = true

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	defer logger.Close()
	assert.Equal(t, logging.LevelDebug, logger.GetLevel())

	_, err = os.Stat(cfg.Logging.File)
	assert.NoError(t, err, "the log directory is created")

	plain := DefaultConfig()
	plain.Logging.File = filepath.Join(t.TempDir(), "a", "b", "plain.log")
	plainLogger, err := plain.NewLogger()
	require.NoError(t, err)
	defer plainLogger.Close()
	_, err = os.Stat(plain.Logging.File)
	assert.NoError(t, err)

	cfg.Logging.Format = "xml"
	_, err = cfg.NewLogger()
	assert.Error(t, err)
}

func writeProgram(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(programYAML), 0644))
	return path
}

func TestRunFileAndWriteResult(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Features.Declared = []string{"A"}
	eng, err := newEngine(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	defer eng.Close()

	path := writeProgram(t, t.TempDir(), "index.yaml")
	res, err := runFile(context.Background(), eng, path, "")
	require.NoError(t, err)

	var b bytes.Buffer
	require.NoError(t, writeResult(&b, res, path, OutputConfig{Format: "text"}))
	assert.Equal(t, "x#if A\na\n#endif\n", b.String())

	b.Reset()
	require.NoError(t, writeResult(&b, res, path, OutputConfig{PerConfiguration: true}))
	assert.Equal(t, "== !A ==\nx\n== A ==\nxa\n", b.String())

	b.Reset()
	require.NoError(t, writeResult(&b, res, path, OutputConfig{Format: "json", PerConfiguration: true}))
	report, err := serialization.Deserialize(b.Bytes(), "json")
	require.NoError(t, err)
	assert.Len(t, report.Configurations, 2)

	restricted, err := runFile(context.Background(), eng, path, "A")
	require.NoError(t, err)
	restrictedCfgs, err := restricted.Configurations()
	require.NoError(t, err)
	assert.Len(t, restrictedCfgs, 1)

	_, err = runFile(context.Background(), eng, path, "A &&")
	assert.Error(t, err)
}

func TestBatchMode_WritesReports(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Features.Declared = []string{"A"}
	cfg.Output.Format = "yaml"
	cfg.Output.File = filepath.Join(t.TempDir(), "reports")
	logger := logging.NewNopLogger()
	eng, err := newEngine(cfg, logger)
	require.NoError(t, err)
	defer eng.Close()

	dir := t.TempDir()
	files := []string{writeProgram(t, dir, "one.yaml"), writeProgram(t, dir, "two.yaml")}
	require.NoError(t, BatchMode(context.Background(), eng, files, "", cfg, logger))

	for _, name := range []string{"one.yaml", "two.yaml"} {
		data, err := os.ReadFile(filepath.Join(cfg.Output.File, name))
		require.NoError(t, err)
		report, err := serialization.Deserialize(data, "yaml")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, name), report.File)
	}

	err = BatchMode(context.Background(), eng, []string{filepath.Join(dir, "missing.yaml")}, "", cfg, logger)
	assert.Error(t, err)
}

func TestReportPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "index.txt"), reportPath(OutputConfig{File: "out"}, "/app/index.yaml"))
	assert.Equal(t, filepath.Join("out", "index.msgpack"), reportPath(OutputConfig{File: "out", Format: "msgpack"}, "index.json"))
}
