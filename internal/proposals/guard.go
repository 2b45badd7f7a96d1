// Package proposals admits anonymous resource submissions. A Guard caps the
// number of pending submissions per caller address; Service validates and
// stores new proposals behind that guard.
package proposals

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// DefaultMaxPending is the pending-submission ceiling per address.
const DefaultMaxPending = 5

var (
	// ErrQuotaExceeded is returned when the caller already has the maximum
	// number of pending submissions.
	ErrQuotaExceeded = errors.New("pending proposal limit reached")

	// ErrMissingAddress is returned when the caller address could not be
	// determined.
	ErrMissingAddress = errors.New("client address could not be determined")
)

// PendingCounter counts pending submissions made from an address.
type PendingCounter interface {
	CountPendingFrom(ctx context.Context, address string) (int, error)
}

// Limit is the quota state of one caller address.
type Limit struct {
	CanPropose         bool `json:"canPropose"`
	ProposalCount      int  `json:"proposalCount"`
	RemainingProposals int  `json:"remainingProposals"`
	MaxProposals       int  `json:"maxProposals"`
}

// Guard enforces the pending-submission ceiling.
type Guard struct {
	counter    PendingCounter
	maxPending atomic.Int64
}

// NewGuard creates a guard with the given ceiling; a non-positive max falls
// back to DefaultMaxPending.
func NewGuard(counter PendingCounter, maxPending int) *Guard {
	g := &Guard{counter: counter}
	g.SetMaxPending(maxPending)
	return g
}

// MaxPending returns the current ceiling.
func (g *Guard) MaxPending() int {
	return int(g.maxPending.Load())
}

// SetMaxPending replaces the ceiling for subsequent checks. A non-positive
// max falls back to DefaultMaxPending.
func (g *Guard) SetMaxPending(maxPending int) {
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	g.maxPending.Store(int64(maxPending))
}

// Check counts the pending submissions from address. A count failure is
// returned as an error and never reported as either quota state.
func (g *Guard) Check(ctx context.Context, address string) (Limit, error) {
	count, err := g.counter.CountPendingFrom(ctx, address)
	if err != nil {
		return Limit{}, fmt.Errorf("failed to count pending proposals: %w", err)
	}
	ceiling := g.MaxPending()
	return Limit{
		CanPropose:         count < ceiling,
		ProposalCount:      count,
		RemainingProposals: max(0, ceiling-count),
		MaxProposals:       ceiling,
	}, nil
}
