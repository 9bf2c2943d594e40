package workers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type countingWorker struct {
	runs atomic.Int32
	do   func(runs int32) error
}

func (w *countingWorker) Run(context.Context) error {
	return w.do(w.runs.Add(1))
}

func TestSupervisor_RestartsCrashedWorker(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given a worker that crashes twice then finishes
	worker := &countingWorker{}
	worker.do = func(runs int32) error {
		if runs < 3 {
			return errors.New("boom")
		}
		return nil
	}

	sup := NewSupervisor(log, time.Millisecond)
	sup.Add(worker)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sup.Run(ctx)

	req.Equal(int32(3), worker.runs.Load())
}

func TestSupervisor_RecoversPanics(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	worker := &countingWorker{}
	worker.do = func(runs int32) error {
		if runs == 1 {
			panic("unexpected")
		}
		return nil
	}

	sup := NewSupervisor(log, time.Millisecond)
	sup.Add(worker)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sup.Run(ctx)

	// The panic was recovered and the worker ran again to completion
	req.Equal(int32(2), worker.runs.Load())
}

func TestSupervisor_StopCancelsWorkers(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	started := make(chan struct{})
	blocking := &blockingWorker{started: started}

	sup := NewSupervisor(log, time.Millisecond)
	sup.Add(blocking)

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	<-started
	sup.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("supervisor did not stop")
	}
}

type blockingWorker struct {
	started chan struct{}
}

func (w *blockingWorker) Run(ctx context.Context) error {
	close(w.started)
	<-ctx.Done()
	return nil
}
