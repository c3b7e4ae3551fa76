// Package recommend tracks recommendation fetches for the selected
// cluster. Each fetch belongs to a (cluster, generation) key; results for
// a key that is no longer active are dropped.
package recommend

import (
	"github.com/google/uuid"

	"github.com/abelbrown/tracklens/internal/dataset"
	"github.com/abelbrown/tracklens/internal/service"
)

// DefaultSeedSize is how many cluster members seed a fetch.
const DefaultSeedSize = 5

// Seeds returns the ids of the first min(n, size) members of cluster in
// snapshot order. n <= 0 means DefaultSeedSize.
func Seeds(snap *dataset.Snapshot, cluster, n int) []string {
	if snap == nil {
		return nil
	}
	if n <= 0 {
		n = DefaultSeedSize
	}
	members := snap.Members(cluster)
	if len(members) < n {
		n = len(members)
	}
	out := make([]string, n)
	for i := range out {
		out[i] = members[i].ID
	}
	return out
}

// Key identifies the selection a fetch was issued for.
type Key struct {
	Cluster    int
	Generation uint64
}

// Phase is the lifecycle of one key's fetch.
type Phase int

const (
	Idle Phase = iota
	Pending
	Fulfilled
	Failed
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Failed:
		return "failed"
	}
	return "idle"
}

// State is the request record for one key.
type State struct {
	Key       Key
	Phase     Phase
	RequestID string
	Seeds     []string
	Items     []service.Recommendation // set when Fulfilled, possibly empty
	Err       error                    // set when Failed
}

// Request is an issued fetch. The caller runs it and hands the result
// back through Resolve.
type Request struct {
	ID    string
	Key   Key
	Seeds []string
}

// Orchestrator owns recommendation state. Not safe for concurrent use.
type Orchestrator struct {
	seedSize  int
	states    map[Key]*State
	active    Key
	hasActive bool
	torn      bool
}

// New returns an orchestrator seeding fetches with seedSize members.
func New(seedSize int) *Orchestrator {
	if seedSize <= 0 {
		seedSize = DefaultSeedSize
	}
	return &Orchestrator{seedSize: seedSize, states: make(map[Key]*State)}
}

// Trigger makes (cluster, snap generation) the active key and returns a
// request to run, if one is needed. Nothing is issued while a fetch for the
// key is pending or after it was fulfilled in this generation.
func (o *Orchestrator) Trigger(snap *dataset.Snapshot, cluster int) (Request, bool) {
	if o.torn || snap == nil || !snap.HasCluster(cluster) {
		return Request{}, false
	}
	key := Key{Cluster: cluster, Generation: snap.Generation()}
	o.activate(key)

	if st, ok := o.states[key]; ok && (st.Phase == Pending || st.Phase == Fulfilled) {
		return Request{}, false
	}
	return o.issue(key, Seeds(snap, cluster, o.seedSize)), true
}

// Retry re-issues the active key's fetch when it failed.
func (o *Orchestrator) Retry() (Request, bool) {
	if o.torn || !o.hasActive {
		return Request{}, false
	}
	st, ok := o.states[o.active]
	if !ok || st.Phase != Failed {
		return Request{}, false
	}
	return o.issue(o.active, st.Seeds), true
}

func (o *Orchestrator) activate(key Key) {
	if o.hasActive && o.active != key {
		// A superseded fetch is forgotten so reselecting its cluster
		// issues a fresh one instead of waiting on a dropped result.
		if st, ok := o.states[o.active]; ok && st.Phase == Pending {
			delete(o.states, o.active)
		}
	}
	for k := range o.states {
		if k.Generation != key.Generation {
			delete(o.states, k)
		}
	}
	o.active, o.hasActive = key, true
}

func (o *Orchestrator) issue(key Key, seeds []string) Request {
	req := Request{ID: uuid.NewString(), Key: key, Seeds: seeds}
	o.states[key] = &State{Key: key, Phase: Pending, RequestID: req.ID, Seeds: seeds}
	return req
}

// Resolve applies the result of req. It reports false, changing nothing,
// after Teardown, when req's key is no longer active, or when req is not
// the fetch pending for its key. A nil error with no items is a fulfilled
// empty result. An error clears any items held for the key.
func (o *Orchestrator) Resolve(req Request, items []service.Recommendation, err error) bool {
	if o.torn || !o.hasActive || req.Key != o.active {
		return false
	}
	st, ok := o.states[req.Key]
	if !ok || st.Phase != Pending || st.RequestID != req.ID {
		return false
	}
	if err != nil {
		st.Phase, st.Items, st.Err = Failed, nil, err
		return true
	}
	if items == nil {
		items = []service.Recommendation{}
	}
	st.Phase, st.Items, st.Err = Fulfilled, items, nil
	return true
}

// Teardown discards every later result.
func (o *Orchestrator) Teardown() { o.torn = true }

// TornDown reports whether Teardown was called.
func (o *Orchestrator) TornDown() bool { return o.torn }

// Active returns the state of the active key. Before any trigger it is Idle.
func (o *Orchestrator) Active() State {
	if !o.hasActive {
		return State{}
	}
	if st, ok := o.states[o.active]; ok {
		return *st
	}
	return State{Key: o.active}
}

// Pending returns how many fetches are waiting for a result.
func (o *Orchestrator) Pending() int {
	n := 0
	for _, st := range o.states {
		if st.Phase == Pending {
			n++
		}
	}
	return n
}
