package tracker_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tripwise/tripwise/internal/tracker"
)

func TestSupervisor_SpawnReplaces(t *testing.T) {
	var running atomic.Int32
	s := tracker.NewSupervisor(func(n int) { running.Store(int32(n)) })
	defer s.Shutdown()

	first := make(chan struct{})
	s.Spawn("jny_1", func(ctx context.Context) {
		<-ctx.Done()
		close(first)
	})
	s.Spawn("jny_1", func(ctx context.Context) { <-ctx.Done() })

	select {
	case <-first:
	default:
		t.Fatal("first task should have been cancelled and awaited")
	}
	assert.Equal(t, 1, s.Count())
	assert.Equal(t, int32(1), running.Load())
}

func TestSupervisor_Cancel(t *testing.T) {
	s := tracker.NewSupervisor(nil)
	defer s.Shutdown()

	assert.False(t, s.Cancel("jny_none"))

	s.Spawn("jny_1", func(ctx context.Context) { <-ctx.Done() })
	assert.True(t, s.Running("jny_1"))
	assert.True(t, s.Cancel("jny_1"))
	assert.False(t, s.Running("jny_1"))
}

func TestSupervisor_TaskExitRemovesItself(t *testing.T) {
	s := tracker.NewSupervisor(nil)
	defer s.Shutdown()

	s.Spawn("jny_1", func(context.Context) {})

	assert.Eventually(t, func() bool { return !s.Running("jny_1") }, time.Second, time.Millisecond)
}

func TestSupervisor_Shutdown(t *testing.T) {
	s := tracker.NewSupervisor(nil)

	var exited atomic.Int32
	for _, id := range []string{"a", "b", "c"} {
		s.Spawn(id, func(ctx context.Context) {
			<-ctx.Done()
			exited.Add(1)
		})
	}
	var jobCancelled atomic.Bool
	s.Go(func(ctx context.Context) {
		<-ctx.Done()
		jobCancelled.Store(true)
	})

	s.Shutdown()

	assert.Equal(t, int32(3), exited.Load())
	assert.True(t, jobCancelled.Load())
	assert.Equal(t, 0, s.Count())
}
