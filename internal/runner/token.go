package runner

import (
	"context"
	"errors"
	"sync/atomic"
)

// Trigger records why a run stopped.
type Trigger string

const (
	TriggerNone     Trigger = ""
	TriggerDuration Trigger = "duration"
	TriggerQuota    Trigger = "quota"
	TriggerSignal   Trigger = "signal"
)

// Token is a write-once stop flag shared by every connection of a run. The
// first Set wins and its trigger is kept.
type Token struct {
	trigger atomic.Pointer[Trigger]
	ctx     context.Context
	cancel  context.CancelCauseFunc
}

func NewToken() *Token {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &Token{ctx: ctx, cancel: cancel}
}

// Set stops the run with trigger t. It reports whether this call set the
// token.
func (t *Token) Set(trigger Trigger) bool {
	if !t.trigger.CompareAndSwap(nil, &trigger) {
		return false
	}
	t.cancel(errors.New("run stopped: " + string(trigger)))
	return true
}

// IsSet reports whether the run has been stopped.
func (t *Token) IsSet() bool {
	return t.trigger.Load() != nil
}

// Trigger returns the recorded trigger, or TriggerNone.
func (t *Token) Trigger() Trigger {
	if p := t.trigger.Load(); p != nil {
		return *p
	}
	return TriggerNone
}

// Context is cancelled once the token is set. Waits between requests use it;
// requests themselves do not.
func (t *Token) Context() context.Context {
	return t.ctx
}

// Done is closed once the token is set.
func (t *Token) Done() <-chan struct{} {
	return t.ctx.Done()
}
