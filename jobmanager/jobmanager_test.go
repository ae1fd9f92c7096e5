package jobmanager

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quercus/ast"
	"quercus/engine"
	qerrors "quercus/errors"
)

func echoProgram(file, text string) *ast.Program {
	return &ast.Program{File: file, Statements: []ast.Statement{
		&ast.Echo{Values: []ast.Expression{&ast.Literal{Value: text}}},
	}}
}

func newEngine(t *testing.T, cfg engine.ExecutionEngineConfig) *engine.ExecutionEngine {
	t.Helper()
	cfg.Features = []string{"A"}
	e, err := engine.NewExecutionEngineWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestJobManager_RunBatch(t *testing.T) {
	e := newEngine(t, engine.ExecutionEngineConfig{})
	jm := NewJobManager(2, nil)
	defer jm.Shutdown()

	files := []string{"/a.php", "/b.php", "/c.php"}
	jobs, err := jm.RunBatch(context.Background(), files, func(file string) Task {
		return func(ctx context.Context) (*engine.Result, error) {
			return e.Run(ctx, echoProgram(file, file))
		}
	})
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	for i, job := range jobs {
		assert.Equal(t, files[i], job.File)
		assert.Equal(t, StatusCompleted, job.GetStatus())
		require.NotNil(t, job.GetResult())
		projections, err := job.GetResult().Projections()
		require.NoError(t, err)
		require.Len(t, projections, 2)
		for _, p := range projections {
			assert.Equal(t, files[i], p.Output)
		}
		assert.Equal(t, 2, job.ToMap()["configurations"])
	}
	assert.Equal(t, 0, jm.GetRunningJobsCount())
}

func TestJobManager_ConcurrencyLimit(t *testing.T) {
	jm := NewJobManager(2, nil)
	defer jm.Shutdown()

	var running, peak int32
	task := func(ctx context.Context) (*engine.Result, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil, nil
	}
	for i := 0; i < 6; i++ {
		_, err := jm.Submit("/job.php", task)
		require.NoError(t, err)
	}
	require.NoError(t, jm.Wait(context.Background()))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Equal(t, 2, jm.GetConcurrencyLimit())
}

func TestJobManager_FailedJob(t *testing.T) {
	jm := NewJobManager(1, nil)
	defer jm.Shutdown()

	boom := errors.New("boom")
	id, err := jm.Submit("/bad.php", func(ctx context.Context) (*engine.Result, error) {
		return nil, boom
	})
	require.NoError(t, err)
	require.NoError(t, jm.Wait(context.Background()))

	status, err := jm.GetJobStatus(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status)
	job, _ := jm.GetJob(id)
	assert.ErrorIs(t, job.GetError(), boom)
	assert.Equal(t, "boom", job.ToMap()["error"])

	_, err = jm.GetJob(99)
	assert.Error(t, err)
}

func TestJobManager_RequestID(t *testing.T) {
	jm := NewJobManager(1, nil)
	defer jm.Shutdown()

	var got interface{}
	_, err := jm.Submit("/a.php", func(ctx context.Context) (*engine.Result, error) {
		got = ctx.Value(qerrors.RequestIDKey)
		return nil, nil
	})
	require.NoError(t, err)
	require.NoError(t, jm.Wait(context.Background()))
	assert.Equal(t, "job-1", got)
}

func TestJobManager_CancelRunningJob(t *testing.T) {
	jm := NewJobManager(1, nil)
	defer jm.Shutdown()

	started := make(chan struct{})
	id, err := jm.Submit("/slow.php", func(ctx context.Context) (*engine.Result, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)

	// the slow job holds the only slot before the second job is queued
	<-started
	ran := make(chan struct{}, 1)
	queued, err := jm.Submit("/queued.php", func(ctx context.Context) (*engine.Result, error) {
		ran <- struct{}{}
		return nil, nil
	})
	require.NoError(t, err)
	status, err := jm.GetJobStatus(queued)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, status)

	require.NoError(t, jm.CancelJob(queued))
	require.NoError(t, jm.CancelJob(id))
	require.NoError(t, jm.Wait(context.Background()))

	for _, j := range []JobID{id, queued} {
		status, _ := jm.GetJobStatus(j)
		assert.Equal(t, StatusCancelled, status)
	}
	assert.Error(t, jm.CancelJob(id))
	assert.Empty(t, ran, "a cancelled job never runs")
}

func TestJobManager_CancelStopsEvaluation(t *testing.T) {
	e := newEngine(t, engine.ExecutionEngineConfig{MaxLoopIterations: math.MaxInt32, MaxExecutionTime: time.Minute})
	jm := NewJobManager(1, nil)
	defer jm.Shutdown()

	loop := &ast.Program{File: "/loop.php", Statements: []ast.Statement{
		&ast.While{Condition: &ast.Literal{Value: true}, Body: &ast.Block{}},
	}}
	started := make(chan struct{})
	returned := make(chan error, 1)
	id, err := jm.Submit(loop.File, func(ctx context.Context) (*engine.Result, error) {
		close(started)
		res, err := e.Run(ctx, loop)
		returned <- err
		return res, err
	})
	require.NoError(t, err)

	<-started
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, jm.CancelJob(id))
	select {
	case err := <-returned:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("evaluation did not stop")
	}
	job, _ := jm.GetJob(id)
	assert.Equal(t, StatusCancelled, job.GetStatus())
}

func TestJobManager_Shutdown(t *testing.T) {
	jm := NewJobManager(1, nil)
	jm.Shutdown()
	jm.Shutdown()

	_, err := jm.Submit("/late.php", func(ctx context.Context) (*engine.Result, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestJobManager_CleanCompletedJobs(t *testing.T) {
	jm := NewJobManager(1, nil)
	defer jm.Shutdown()

	id, err := jm.Submit("/old.php", func(ctx context.Context) (*engine.Result, error) { return nil, nil })
	require.NoError(t, err)
	require.NoError(t, jm.Wait(context.Background()))

	job, _ := jm.GetJob(id)
	job.SetEndTime(time.Now().Add(-time.Hour))
	assert.Equal(t, 1, jm.CleanCompletedJobs(time.Minute))
	assert.Empty(t, jm.ListJobs())
}
