package amqp

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmTrackerAssignsSequentialTagsOnlyWhenEnabled(t *testing.T) {
	tr := newConfirmTracker()
	assert.Equal(t, uint64(0), tr.track()) // disabled: no tag reserved

	tr.enable()
	assert.Equal(t, uint64(1), tr.track())
	assert.Equal(t, uint64(2), tr.track())
	assert.Equal(t, uint64(3), tr.nextPublishSeqNo())
}

func TestConfirmTrackerSingleAck(t *testing.T) {
	tr := newConfirmTracker()
	tr.enable()
	tag := tr.track()

	ch := tr.notifyPublish(make(chan Confirmation, 1))
	tr.confirm(tag, false, true)

	select {
	case c := <-ch:
		assert.Equal(t, tag, c.DeliveryTag)
		assert.True(t, c.Ack)
	case <-time.After(time.Second):
		t.Fatal("confirmation not delivered")
	}
}

func TestConfirmTrackerMultipleFlagResolvesCumulative(t *testing.T) {
	tr := newConfirmTracker()
	tr.enable()
	t1 := tr.track()
	t2 := tr.track()
	t3 := tr.track()

	ch := tr.notifyPublish(make(chan Confirmation, 3))
	tr.confirm(t2, true, true) // acks t1 and t2, leaves t3 outstanding

	seen := map[uint64]bool{}
	for i := 0; i < 2; i++ {
		select {
		case c := <-ch:
			seen[c.DeliveryTag] = true
		case <-time.After(time.Second):
			t.Fatal("expected two confirmations")
		}
	}
	assert.True(t, seen[t1])
	assert.True(t, seen[t2])
	assert.False(t, seen[t3])
}

func TestWaitForConfirmsBlocksUntilDrained(t *testing.T) {
	tr := newConfirmTracker()
	tr.enable()
	tag := tr.track()

	var wg sync.WaitGroup
	wg.Add(1)
	ok := false
	done := make(chan struct{})
	go func() {
		defer wg.Done()
		ok, _ = tr.waitForConfirms()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("waitForConfirms returned before the outstanding tag was resolved")
	case <-time.After(50 * time.Millisecond):
	}

	tr.confirm(tag, false, true)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waitForConfirms did not return after confirm")
	}
	wg.Wait()
	assert.True(t, ok)
}

func TestWaitForConfirmsReturnsFalseOnNack(t *testing.T) {
	tr := newConfirmTracker()
	tr.enable()
	t1 := tr.track()
	t2 := tr.track()

	done := make(chan bool, 1)
	go func() {
		ok, _ := tr.waitForConfirms()
		done <- ok
	}()

	tr.confirm(t1, false, false) // nack
	tr.confirm(t2, false, true)  // ack

	select {
	case ok := <-done:
		assert.False(t, ok, "WaitForConfirms should report false after any nack in the drain window")
	case <-time.After(time.Second):
		t.Fatal("waitForConfirms did not return")
	}

	// A later, clean drain window is unaffected by the earlier nack.
	t3 := tr.track()
	tr.confirm(t3, false, true)
	ok, err := tr.waitForConfirms()
	assert.True(t, ok)
	assert.Nil(t, err)
}

func TestConfirmTrackerShutdownWakesWaitersAndClosesListeners(t *testing.T) {
	tr := newConfirmTracker()
	tr.enable()
	tr.track()

	ch := tr.notifyPublish(make(chan Confirmation, 1))
	errCh := make(chan *ChannelError, 1)
	done := make(chan struct{})
	go func() {
		_, err := tr.waitForConfirms()
		errCh <- err
		close(done)
	}()

	want := newChannelError(3, ChannelErrorCode, "connection lost", 0, 0)
	tr.shutdown(want)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown did not wake waitForConfirms")
	}
	assert.Same(t, want, <-errCh)
	_, ok := <-ch
	require.False(t, ok)
}

func TestConfirmTrackerShutdownWithNoErrorDefaultsToClosed(t *testing.T) {
	tr := newConfirmTracker()
	tr.enable()
	tr.track()

	done := make(chan *ChannelError, 1)
	go func() {
		_, err := tr.waitForConfirms()
		done <- err
	}()

	tr.shutdown(nil)

	select {
	case err := <-done:
		require.NotNil(t, err)
		assert.Equal(t, errClosed, err)
	case <-time.After(time.Second):
		t.Fatal("shutdown did not wake waitForConfirms")
	}
}
