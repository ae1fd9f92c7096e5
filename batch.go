package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"quercus/engine"
	"quercus/jobmanager"
	"quercus/logging"
)

// BatchMode evaluates files concurrently with one shared engine. Results are
// printed in the order of files, or written into the output directory as
// one file per program.
func BatchMode(ctx context.Context, eng *engine.ExecutionEngine, files []string, under string, cfg *Config, logger logging.Logger) error {
	jm := jobmanager.NewJobManager(cfg.Jobs.Concurrency, logger)
	defer jm.Shutdown()

	jobs, err := jm.RunBatch(ctx, files, func(file string) jobmanager.Task {
		return func(ctx context.Context) (*engine.Result, error) {
			return runFile(ctx, eng, file, under)
		}
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, job := range jobs {
		res := job.GetResult()
		if job.GetError() != nil {
			failed++
		}
		if res == nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", job.File, job.GetError())
			continue
		}

		if cfg.Output.File != "" {
			if err := emit(res, job.File, cfg.Output, reportPath(cfg.Output, job.File)); err != nil {
				return err
			}
			continue
		}
		fmt.Printf("==> %s <==\n", job.File)
		if err := writeResult(os.Stdout, res, job.File, cfg.Output); err != nil {
			return err
		}
	}

	logger.Info("batch finished", logging.IntField("files", len(files)), logging.IntField("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d programs failed", failed, len(files))
	}
	return nil
}

// reportPath names the report of file inside the output directory
func reportPath(out OutputConfig, file string) string {
	ext := out.Format
	if ext == "" {
		ext = "text"
	}
	if ext == "text" {
		ext = "txt"
	}
	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return filepath.Join(expandHome(out.File), base+"."+ext)
}
