// Package reconfig batches parameter edits into recompute requests and
// decides which response, if any, replaces the displayed snapshot.
//
// Requests are numbered in issue order. Only the response to the most
// recently issued request may be applied; anything older is stale no
// matter when it arrives.
package reconfig

import (
	"errors"
	"fmt"

	"github.com/abelbrown/tracklens/internal/dataset"
	"github.com/abelbrown/tracklens/internal/service"
	"github.com/abelbrown/tracklens/internal/validation"
)

// Cluster count bounds for a recompute.
const (
	MinClusters = 2
	MaxClusters = 10
)

var (
	// ErrEmptyTracks is returned by Begin when there is nothing to cluster.
	ErrEmptyTracks = errors.New("no tracks to cluster")

	// ErrInvalidParams is returned by Begin when Params fail validation.
	ErrInvalidParams = errors.New("invalid recompute parameters")
)

// Params is one batched set of edits.
type Params struct {
	ClusterCount int      `validate:"min=2,max=10"`
	Features     []string `validate:"min=1,unique,dive,required"`
}

// Validate checks the bounds of p.
func (p Params) Validate() error {
	return validation.ValidateStruct(&p)
}

// Ticket identifies one issued recompute.
type Ticket struct {
	Seq     uint64
	Params  Params
	Request service.ClusterRequest
}

// Outcome is what Resolve did with a response.
type Outcome int

const (
	Applied Outcome = iota
	Stale
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Stale:
		return "stale"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Protocol owns the published snapshot. It is not safe for concurrent
// use; the UI loop is its only caller.
type Protocol struct {
	current  *dataset.Snapshot
	issued   uint64
	inflight map[uint64]struct{}
	lastErr  error
}

// New returns a protocol publishing initial, which may be nil.
func New(initial *dataset.Snapshot) *Protocol {
	return &Protocol{current: initial, inflight: make(map[uint64]struct{})}
}

// Begin validates a recompute and issues it a sequence number. Failures
// are returned as *service.FetchError and issue nothing.
func (p *Protocol) Begin(tracks []service.Track, params Params) (Ticket, error) {
	if len(tracks) == 0 {
		p.lastErr = &service.FetchError{Op: "cluster", Err: ErrEmptyTracks}
		return Ticket{}, p.lastErr
	}
	if err := params.Validate(); err != nil {
		p.lastErr = &service.FetchError{Op: "cluster", Err: fmt.Errorf("%w: %v", ErrInvalidParams, err)}
		return Ticket{}, p.lastErr
	}

	p.issued++
	p.inflight[p.issued] = struct{}{}
	features := make([]string, len(params.Features))
	copy(features, params.Features)
	return Ticket{
		Seq:    p.issued,
		Params: Params{ClusterCount: params.ClusterCount, Features: features},
		Request: service.ClusterRequest{
			Tracks:    tracks,
			NClusters: params.ClusterCount,
			Features:  features,
		},
	}, nil
}

// Resolve handles the response to t. A stale response changes nothing.
// A failed one records LastError and leaves Current untouched. An applied
// one replaces Current with a snapshot one generation newer.
func (p *Protocol) Resolve(t Ticket, resp *service.ClusterResponse, err error) Outcome {
	if _, ok := p.inflight[t.Seq]; !ok {
		return Stale
	}
	delete(p.inflight, t.Seq)
	if t.Seq != p.issued {
		return Stale
	}

	snap, err := p.build(t, resp, err)
	if err != nil {
		p.lastErr = err
		return Failed
	}
	p.current = snap
	p.lastErr = nil
	return Applied
}

func (p *Protocol) build(t Ticket, resp *service.ClusterResponse, err error) (*dataset.Snapshot, error) {
	if err != nil {
		if service.IsFetchError(err) {
			return nil, err
		}
		return nil, &service.FetchError{Op: "cluster", Err: err}
	}
	if resp == nil {
		return nil, &service.FetchError{Op: "cluster", Err: service.ErrMalformed}
	}
	in, err := resp.Input(t.Params.ClusterCount)
	if err != nil {
		return nil, &service.FetchError{Op: "cluster", Err: err}
	}
	snap, err := dataset.New(in, p.nextGeneration())
	if err != nil {
		return nil, &service.FetchError{Op: "cluster", Err: fmt.Errorf("%w: %w", service.ErrMalformed, err)}
	}
	return snap, nil
}

func (p *Protocol) nextGeneration() uint64 {
	if p.current == nil {
		return 1
	}
	return p.current.Generation() + 1
}

// Current returns the published snapshot, or nil before the first apply.
func (p *Protocol) Current() *dataset.Snapshot { return p.current }

// InFlight returns how many issued requests have not been resolved.
func (p *Protocol) InFlight() int { return len(p.inflight) }

// Latest returns the sequence number of the most recently issued request.
func (p *Protocol) Latest() uint64 { return p.issued }

// LastError returns the error of the most recent failed Begin or Resolve,
// cleared by the next apply.
func (p *Protocol) LastError() error { return p.lastErr }
