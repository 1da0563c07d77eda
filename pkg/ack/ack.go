// Package ack sends an optional early acknowledgement while the slow (LLM)
// path is still working. It smooths the wait, nothing more: a failed send is
// logged and swallowed, and the real reply always wins a race.
package ack

import (
	"sync"
	"time"

	"inspection/pkg/logx"
)

// Controller arms delayed acknowledgement sends.
type Controller struct {
	delay    time.Duration
	leadTime time.Duration
	enabled  bool
	logger   *logx.Logger
}

// New builds a controller. A disabled controller still hands out Pending
// values; they just never fire.
func New(enabled bool, delay, leadTime time.Duration) *Controller {
	return &Controller{
		delay:    delay,
		leadTime: leadTime,
		enabled:  enabled,
		logger:   logx.NewLogger("ack"),
	}
}

// Pending is one armed acknowledgement.
type Pending struct {
	timer    *time.Timer
	leadTime time.Duration
	mu       sync.Mutex
	fired    bool
	done     bool
}

// Schedule arms send to run after the configured delay. Cancel it as soon
// as the real reply is ready.
func (c *Controller) Schedule(send func() error) *Pending {
	p := &Pending{leadTime: c.leadTime}
	if !c.enabled {
		p.done = true
		return p
	}

	p.timer = time.AfterFunc(c.delay, func() {
		p.mu.Lock()
		if p.done {
			p.mu.Unlock()
			return
		}
		p.fired = true
		p.mu.Unlock()

		if err := send(); err != nil {
			c.logger.Warn("acknowledgement send failed: %v", err)
		}
	})
	return p
}

// Cancel stops the acknowledgement if it has not fired yet.
func (p *Pending) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
	if p.timer != nil {
		p.timer.Stop()
	}
}

// Wait holds the real reply back for the lead time when the
// acknowledgement already went out, so the two messages cannot arrive out
// of order. It cancels any not-yet-fired send first.
func (p *Pending) Wait() {
	p.mu.Lock()
	fired := p.fired
	p.done = true
	if p.timer != nil {
		p.timer.Stop()
	}
	p.mu.Unlock()

	if fired && p.leadTime > 0 {
		time.Sleep(p.leadTime)
	}
}
