package ack

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCancelBeforeDelaySuppressesSend(t *testing.T) {
	c := New(true, 50*time.Millisecond, 0)
	var sent atomic.Int32

	p := c.Schedule(func() error {
		sent.Add(1)
		return nil
	})
	p.Cancel()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), sent.Load())
}

func TestFiresAfterDelay(t *testing.T) {
	c := New(true, 10*time.Millisecond, 0)
	fired := make(chan struct{})

	c.Schedule(func() error {
		close(fired)
		return nil
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("acknowledgement never fired")
	}
}

func TestWaitAppliesLeadTimeOnlyWhenFired(t *testing.T) {
	c := New(true, 5*time.Millisecond, 40*time.Millisecond)

	p := c.Schedule(func() error { return nil })
	time.Sleep(20 * time.Millisecond) // let it fire

	start := time.Now()
	p.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	// Not fired: Wait returns immediately.
	p2 := c.Schedule(func() error { return nil })
	start = time.Now()
	p2.Wait()
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestDisabledControllerNeverSends(t *testing.T) {
	c := New(false, time.Millisecond, 0)
	var sent atomic.Int32

	p := c.Schedule(func() error {
		sent.Add(1)
		return nil
	})
	time.Sleep(20 * time.Millisecond)
	p.Wait()
	assert.Equal(t, int32(0), sent.Load())
}

func TestSendFailureIsSwallowed(t *testing.T) {
	c := New(true, time.Millisecond, 0)
	p := c.Schedule(func() error { return assert.AnError })
	time.Sleep(20 * time.Millisecond)
	p.Wait() // no panic, no error surfaced
}
