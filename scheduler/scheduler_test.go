package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	sch, err := New(WithSlack(2 * time.Millisecond))
	require.NoError(t, err)
	sch.Start()
	t.Cleanup(sch.Shutdown)
	return sch
}

func TestSpawnCompletes(t *testing.T) {
	sch := newTestScheduler(t)
	c := sch.Spawn(func(c *Coroutine) (any, error) {
		return 42, nil
	})
	v, err := c.Value(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, Done, c.State())
}

func TestSuspendResume(t *testing.T) {
	sch := newTestScheduler(t)
	started := make(chan struct{})
	c := sch.Spawn(func(c *Coroutine) (any, error) {
		close(started)
		v, err := c.Suspend(0)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	<-started
	time.Sleep(10 * time.Millisecond) // give the coroutine time to park
	require.NoError(t, c.Resume("hello"))
	v, err := c.Value(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestSleepTimeoutMonotonicity(t *testing.T) {
	sch := newTestScheduler(t)
	start := time.Now()
	c := sch.Spawn(func(c *Coroutine) (any, error) {
		return c.Sleep(50 * time.Millisecond)
	})
	_, err := c.Value(context.Background())
	require.NoError(t, err)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
}

func TestResumeCancelsPendingTimeout(t *testing.T) {
	sch := newTestScheduler(t)
	started := make(chan struct{})
	c := sch.Spawn(func(c *Coroutine) (any, error) {
		close(started)
		return c.Suspend(5 * time.Second)
	})
	<-started
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, c.Resume("won"))
	v, err := c.Value(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "won", v)
}

func TestTerminateCancelsCoroutine(t *testing.T) {
	sch := newTestScheduler(t)
	started := make(chan struct{})
	c := sch.Spawn(func(c *Coroutine) (any, error) {
		close(started)
		_, err := c.Suspend(0)
		return nil, err
	})
	<-started
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, c.Terminate())
	_, err := c.Value(context.Background())
	assert.ErrorIs(t, err, Exit)
}

func TestTerminateWhileRunningSurvivesSubsequentSleep(t *testing.T) {
	sch := newTestScheduler(t)
	ready := make(chan struct{})
	proceed := make(chan struct{})
	c := sch.Spawn(func(c *Coroutine) (any, error) {
		close(ready)
		<-proceed // stay Running while Terminate lands from outside
		_, err := c.Sleep(5 * time.Second)
		return nil, err
	})
	<-ready
	require.NoError(t, c.Terminate())
	close(proceed)
	_, err := c.Value(context.Background())
	assert.ErrorIs(t, err, Exit)
}

func TestThrowRejectsRunningCoroutine(t *testing.T) {
	sch := newTestScheduler(t)
	ready := make(chan struct{})
	proceed := make(chan struct{})
	done := make(chan struct{})
	c := sch.Spawn(func(c *Coroutine) (any, error) {
		close(ready)
		<-proceed
		close(done)
		return "finished", nil
	})
	<-ready
	assert.ErrorIs(t, c.Throw(assert.AnError), ErrInvalidUse)
	close(proceed)
	<-done
	v, err := c.Value(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "finished", v)
}

func TestFairnessEveryReadyCoroutineRunsOnce(t *testing.T) {
	sch := newTestScheduler(t)
	const n = 50
	var ran atomic.Int64
	dones := make([]*Coroutine, n)
	for i := 0; i < n; i++ {
		dones[i] = sch.Spawn(func(c *Coroutine) (any, error) {
			ran.Add(1)
			return nil, nil
		})
	}
	for _, c := range dones {
		_, err := c.Value(context.Background())
		require.NoError(t, err)
	}
	assert.EqualValues(t, n, ran.Load())
}

func TestExactlyOneCompletionSignal(t *testing.T) {
	sch := newTestScheduler(t)
	c := sch.Spawn(func(c *Coroutine) (any, error) {
		return nil, nil
	})
	<-c.Done()
	select {
	case <-c.Done():
	default:
		t.Fatal("Done channel should remain readable (closed) after first observation")
	}
	v, err := c.Value(context.Background())
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestSingleRunnerNoInterleaving(t *testing.T) {
	sch := newTestScheduler(t)
	const n = 20
	var concurrent atomic.Int32
	var maxConcurrent atomic.Int32
	cs := make([]*Coroutine, n)
	for i := 0; i < n; i++ {
		cs[i] = sch.Spawn(func(c *Coroutine) (any, error) {
			cur := concurrent.Add(1)
			for {
				prev := maxConcurrent.Load()
				if cur <= prev || maxConcurrent.CompareAndSwap(prev, cur) {
					break
				}
			}
			concurrent.Add(-1)
			return nil, nil
		})
	}
	for _, c := range cs {
		_, err := c.Value(context.Background())
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, maxConcurrent.Load())
}
