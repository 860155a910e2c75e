package asyncsocket

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-corosock/scheduler"
)

func newTestScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	sch, err := scheduler.New()
	require.NoError(t, err)
	sch.Start()
	t.Cleanup(sch.Shutdown)
	return sch
}

func TestEchoScenario(t *testing.T) {
	sch := newTestScheduler(t)
	notif := sch.Notifier()

	ln, err := Listen(notif, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.LocalAddr().String()

	serverDone := sch.Spawn(func(c *scheduler.Coroutine) (any, error) {
		conn, err := ln.Accept()
		if err != nil {
			return nil, err
		}
		defer conn.Close()
		data, err := conn.RecvAll(11)
		if err != nil {
			return nil, err
		}
		if err := conn.SendAll(data); err != nil {
			return nil, err
		}
		return nil, nil
	})

	clientDone := sch.Spawn(func(c *scheduler.Coroutine) (any, error) {
		conn, err := Connect(notif, "tcp", addr)
		if err != nil {
			return nil, err
		}
		defer conn.Close()
		if err := conn.SendAll([]byte("hello world")); err != nil {
			return nil, err
		}
		resp, err := conn.RecvAll(11)
		if err != nil {
			return nil, err
		}
		return string(resp), nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = serverDone.Value(ctx)
	require.NoError(t, err)
	v, err := clientDone.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello world", v)

	require.NoError(t, ln.Close())
}

func TestFramingRoundTrip(t *testing.T) {
	sch := newTestScheduler(t)
	notif := sch.Notifier()

	ln, err := Listen(notif, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.LocalAddr().String()

	payload := []byte("a length-prefixed message, round tripped")

	serverDone := sch.Spawn(func(c *scheduler.Coroutine) (any, error) {
		conn, err := ln.Accept()
		if err != nil {
			return nil, err
		}
		defer conn.Close()
		msg, err := conn.RecvMessage()
		if err != nil {
			return nil, err
		}
		return string(msg), nil
	})

	clientDone := sch.Spawn(func(c *scheduler.Coroutine) (any, error) {
		conn, err := Connect(notif, "tcp", addr)
		if err != nil {
			return nil, err
		}
		defer conn.Close()
		return nil, conn.SendMessage(payload)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := serverDone.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, string(payload), v)
	_, err = clientDone.Value(ctx)
	require.NoError(t, err)
	require.NoError(t, ln.Close())
}

func TestRecvAllTimeout(t *testing.T) {
	sch := newTestScheduler(t)
	notif := sch.Notifier()

	ln, err := Listen(notif, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.LocalAddr().String()

	start := time.Now()

	serverDone := sch.Spawn(func(c *scheduler.Coroutine) (any, error) {
		conn, err := ln.Accept()
		if err != nil {
			return nil, err
		}
		defer conn.Close()
		conn.SetTimeout(50 * time.Millisecond)
		_, err = conn.RecvAll(11)
		return nil, err
	})

	clientDone := sch.Spawn(func(c *scheduler.Coroutine) (any, error) {
		conn, err := Connect(notif, "tcp", addr)
		if err != nil {
			return nil, err
		}
		// Deliberately never send: the server side must observe a timeout.
		<-time.After(300 * time.Millisecond)
		return nil, conn.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = serverDone.Value(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimedOut), fmt.Sprintf("got %v", err))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, time.Second)

	_, _ = clientDone.Value(ctx)
	require.NoError(t, ln.Close())
}
