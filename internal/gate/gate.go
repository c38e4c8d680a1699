// Package gate provides the snapshot-access confirmation gate: a
// suspend/resume primitive that blocks a generation run until the user
// grants or denies repository snapshot access.
package gate

import (
	"context"
	"errors"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/lareview/lareview/internal/event"
)

// ErrRequestPending is returned when a request is issued while another is
// still unresolved. Only one generation can be in flight, so this is a
// programming error rather than a runtime race.
var ErrRequestPending = errors.New("gate: a confirmation request is already pending")

// RequestContext is what the UI renders while a request is pending.
type RequestContext struct {
	RequestID string `json:"requestID"`
	RepoName  string `json:"repoName"`
	Commit    string `json:"commit"`
}

// Decision is the user's answer to a snapshot-access request.
type Decision struct {
	Granted  bool `json:"granted"`
	Remember bool `json:"remember"`
}

// Gate holds at most one pending confirmation request. Request blocks the
// caller until Confirm or Deny resolves it.
type Gate struct {
	mu      sync.Mutex
	pending *RequestContext
	resolve chan Decision

	bus *event.Bus
}

// New creates a gate publishing open/resolve events to bus.
// A nil bus disables event publication.
func New(bus *event.Bus) *Gate {
	return &Gate{bus: bus}
}

// Pending returns the context of the open request, or nil when the gate is
// idle.
func (g *Gate) Pending() *RequestContext {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil {
		return nil
	}
	cp := *g.pending
	return &cp
}

// Request opens a confirmation request and blocks until it is resolved or
// ctx is cancelled. Cancellation counts as a denial without remembering.
func (g *Gate) Request(ctx context.Context, repoName, commit string) (Decision, error) {
	g.mu.Lock()
	if g.pending != nil {
		g.mu.Unlock()
		return Decision{}, ErrRequestPending
	}

	rc := &RequestContext{
		RequestID: ulid.Make().String(),
		RepoName:  repoName,
		Commit:    commit,
	}
	resolve := make(chan Decision, 1)
	g.pending = rc
	g.resolve = resolve
	g.mu.Unlock()

	g.publish(event.Event{
		Type: event.SnapshotRequested,
		Data: event.SnapshotRequestedData{
			RequestID: rc.RequestID,
			RepoName:  rc.RepoName,
			Commit:    rc.Commit,
		},
	})

	select {
	case <-ctx.Done():
		g.clear(rc.RequestID)
		return Decision{}, ctx.Err()
	case d := <-resolve:
		return d, nil
	}
}

// Confirm resolves the pending request with granted access.
// Resolving an idle gate is a no-op.
func (g *Gate) Confirm(remember bool) {
	g.respond(Decision{Granted: true, Remember: remember})
}

// Deny resolves the pending request with denied access.
func (g *Gate) Deny() {
	g.respond(Decision{Granted: false})
}

func (g *Gate) respond(d Decision) {
	g.mu.Lock()
	if g.pending == nil {
		g.mu.Unlock()
		return
	}
	id := g.pending.RequestID
	resolve := g.resolve
	g.pending = nil
	g.resolve = nil
	g.mu.Unlock()

	resolve <- d

	g.publish(event.Event{
		Type: event.SnapshotResolved,
		Data: event.SnapshotResolvedData{
			RequestID: id,
			Granted:   d.Granted,
			Remember:  d.Remember,
		},
	})
}

// clear drops the pending slot if it still belongs to the given request.
func (g *Gate) clear(requestID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending != nil && g.pending.RequestID == requestID {
		g.pending = nil
		g.resolve = nil
	}
}

func (g *Gate) publish(ev event.Event) {
	if g.bus != nil {
		g.bus.Publish(ev)
	}
}
