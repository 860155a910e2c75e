package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-corosock/corolog"
)

// testPipe returns a non-blocking pipe's two raw fds, cleaned up via t.Cleanup.
func testPipe(t *testing.T) (r, w int) {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestRegisterAndPollDeliversReadable(t *testing.T) {
	n, err := New(corolog.NoOp())
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })

	r, w := testPipe(t)

	fired := make(chan Events, 1)
	require.NoError(t, n.Register(r, Readable, func(ev Events) { fired <- ev }))

	_, err = unix.Write(w, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, n.Poll(time.Second))
	select {
	case ev := <-fired:
		assert.NotZero(t, ev&Readable)
	default:
		t.Fatal("expected callback to have fired")
	}
}

func TestModifyChangesInterest(t *testing.T) {
	n, err := New(corolog.NoOp())
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })

	r, w := testPipe(t)
	_, err = unix.Write(w, []byte("x"))
	require.NoError(t, err)

	fired := make(chan Events, 1)
	require.NoError(t, n.Register(r, 0, func(ev Events) { fired <- ev }))
	require.NoError(t, n.Poll(10*time.Millisecond))
	select {
	case <-fired:
		t.Fatal("did not expect a callback with zero armed interest")
	default:
	}

	require.NoError(t, n.Modify(r, Readable))
	require.NoError(t, n.Poll(time.Second))
	select {
	case ev := <-fired:
		assert.NotZero(t, ev&Readable)
	default:
		t.Fatal("expected callback to have fired after Modify")
	}
}

func TestWakeUnblocksPoll(t *testing.T) {
	n, err := New(corolog.NoOp())
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })

	done := make(chan error, 1)
	go func() { done <- n.Poll(5 * time.Second) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, n.Wake())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Poll did not return after Wake")
	}
}

type fakeOwner struct{ deadline time.Time }

func (f *fakeOwner) Deadline() time.Time { return f.deadline }

func TestArmTimeoutFires(t *testing.T) {
	n, err := New(corolog.NoOp())
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })

	owner := &fakeOwner{deadline: time.Now().Add(20 * time.Millisecond)}
	fired := make(chan struct{}, 1)
	n.ArmTimeout(owner, owner.deadline, func() { fired <- struct{}{} })

	require.NoError(t, n.Poll(200*time.Millisecond))
	select {
	case <-fired:
	default:
		t.Fatal("expected timeout callback to have fired")
	}
}

func TestDisarmedTimeoutDoesNotFire(t *testing.T) {
	n, err := New(corolog.NoOp())
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })

	owner := &fakeOwner{deadline: time.Now().Add(10 * time.Millisecond)}
	deadline := owner.deadline
	fired := make(chan struct{}, 1)
	n.ArmTimeout(owner, deadline, func() { fired <- struct{}{} })

	// Disarm by changing what Deadline() reports, per the documented contract.
	owner.deadline = time.Time{}
	n.DisarmTimeout(owner)

	require.NoError(t, n.Poll(100*time.Millisecond))
	select {
	case <-fired:
		t.Fatal("disarmed timeout must not fire")
	default:
	}
}
