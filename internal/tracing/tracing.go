// Package tracing carries per-session trace identity across task
// submission boundaries.
//
// A State identifies one traced session (one client operation fanned out
// across execution stages). Submitters attach a State to their context;
// the executor captures it at submission time and installs it on the
// worker for the duration of the task, so that everything the task logs
// or spawns is attributable to the originating session.
//
// There is no process-global ambient state. Submitter-side identity
// travels as a context value; worker-side identity lives in an explicit
// per-worker Slot, also reachable through the worker's context.
package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tarndb/tarn/internal/ctxlog"
)

// State is the immutable identity of one traced session.
type State struct {
	session uuid.UUID
	op      string
	started time.Time
}

// NewState creates a fresh session state for the named operation.
func NewState(op string) *State {
	return &State{
		session: uuid.New(),
		op:      op,
		started: time.Now(),
	}
}

// Session returns the session identifier.
func (s *State) Session() uuid.UUID { return s.session }

// Operation returns the name of the operation that opened the session.
func (s *State) Operation() string { return s.op }

// Started returns the session start time.
func (s *State) Started() time.Time { return s.started }

func (s *State) String() string {
	return fmt.Sprintf("%s [%s]", s.op, s.session)
}

// LogValue renders the state as a structured group so that a State can be
// passed directly as a slog attribute value.
func (s *State) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("session", s.session.String()),
		slog.String("op", s.op),
	)
}

var _ slog.LogValuer = (*State)(nil)

// Trace emits a session-tagged debug event on the logger carried by ctx.
func (s *State) Trace(ctx context.Context, msg string, args ...any) {
	args = append(args, "trace", s)
	ctxlog.From(ctx).Debug(msg, args...)
}
