package tracing

import (
	"context"
)

// Slot holds the trace state currently installed on a worker goroutine.
// Each worker owns exactly one Slot; it is written only by that worker
// and is not safe for concurrent use.
type Slot struct {
	cur *State
}

// NewSlot returns an empty slot.
func NewSlot() *Slot { return &Slot{} }

// Current returns the installed state, or nil when the worker is idle or
// running an untraced task.
func (sl *Slot) Current() *State { return sl.cur }

// Set installs st, replacing whatever was installed before.
func (sl *Slot) Set(st *State) { sl.cur = st }

// Swap installs st and returns the previously installed state.
func (sl *Slot) Swap(st *State) *State {
	prev := sl.cur
	sl.cur = st
	return prev
}

type stateKey struct{}

type slotKey struct{}

// NewContext attaches a session state to ctx. Submitters use this to mark
// the work they are about to hand off.
func NewContext(ctx context.Context, st *State) context.Context {
	return context.WithValue(ctx, stateKey{}, st)
}

// FromContext returns the state attached directly to ctx, or nil.
func FromContext(ctx context.Context) *State {
	st, _ := ctx.Value(stateKey{}).(*State)
	return st
}

// WithSlot attaches a worker's slot to ctx. Stage workers do this once
// when they start.
func WithSlot(ctx context.Context, sl *Slot) context.Context {
	return context.WithValue(ctx, slotKey{}, sl)
}

// SlotFromContext returns the worker slot carried by ctx, or nil when ctx
// does not belong to a stage worker.
func SlotFromContext(ctx context.Context) *Slot {
	sl, _ := ctx.Value(slotKey{}).(*Slot)
	return sl
}

// Ambient resolves the trace state in effect for the calling goroutine:
// the state installed in the worker slot when there is one, otherwise the
// state attached directly to ctx, otherwise nil.
func Ambient(ctx context.Context) *State {
	if sl := SlotFromContext(ctx); sl != nil {
		if st := sl.Current(); st != nil {
			return st
		}
	}
	return FromContext(ctx)
}
