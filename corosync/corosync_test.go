package corosync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-corosock/scheduler"
)

func TestLockMutualExclusion(t *testing.T) {
	sch, err := scheduler.New()
	require.NoError(t, err)
	sch.Start()
	defer sch.Shutdown()

	l := NewLock()
	var order []int

	done := make([]*scheduler.Coroutine, 0, 2)
	done = append(done, sch.Spawn(func(c *scheduler.Coroutine) (any, error) {
		if err := l.Acquire(c); err != nil {
			return nil, err
		}
		order = append(order, 1)
		time.Sleep(10 * time.Millisecond)
		return nil, l.Release(c)
	}))
	done = append(done, sch.Spawn(func(c *scheduler.Coroutine) (any, error) {
		if err := l.Acquire(c); err != nil {
			return nil, err
		}
		order = append(order, 2)
		return nil, l.Release(c)
	}))

	for _, c := range done {
		_, err := c.Value(context.Background())
		require.NoError(t, err)
	}
	assert.Len(t, order, 2)
}

func TestConditionNotify(t *testing.T) {
	sch, err := scheduler.New()
	require.NoError(t, err)
	sch.Start()
	defer sch.Shutdown()

	cond := NewCondition()
	woke := make(chan struct{})

	waiter := sch.Spawn(func(c *scheduler.Coroutine) (any, error) {
		if err := cond.Acquire(c); err != nil {
			return nil, err
		}
		if _, err := cond.Wait(c); err != nil {
			return nil, err
		}
		close(woke)
		return nil, cond.Release(c)
	})

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, cond.Notify())

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("waiter never woke")
	}
	_, err = waiter.Value(context.Background())
	require.NoError(t, err)
}
