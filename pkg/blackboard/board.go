package blackboard

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrBoardLeased is returned when the specification is requested while an agent
// still holds the lease.
var ErrBoardLeased = errors.New("project specification is leased to another agent")

// Board owns the Project Specification for one run and hands exclusive mutable
// access to exactly one holder at a time.
type Board struct {
	spec  *ProjectSpec
	owner atomic.Pointer[string]
}

// Lease is an exclusive handle on the specification for one agent turn.
type Lease struct {
	board    *Board
	owner    string
	released atomic.Bool
}

// NewBoard creates a board holding an empty specification.
func NewBoard() *Board {
	return &Board{spec: &ProjectSpec{}}
}

// Acquire hands the specification to owner. It fails if another lease is live.
func (b *Board) Acquire(owner string) (*Lease, error) {
	if owner == "" {
		return nil, fmt.Errorf("lease owner cannot be empty")
	}
	if !b.owner.CompareAndSwap(nil, &owner) {
		return nil, fmt.Errorf("%w: held by %q", ErrBoardLeased, b.Holder())
	}
	return &Lease{board: b, owner: owner}, nil
}

// Holder returns the current lease owner, or "" if the board is free.
func (b *Board) Holder() string {
	if p := b.owner.Load(); p != nil {
		return *p
	}
	return ""
}

// Snapshot returns a deep copy of the specification. Only valid between turns.
func (b *Board) Snapshot() (*ProjectSpec, error) {
	if holder := b.Holder(); holder != "" {
		return nil, fmt.Errorf("%w: held by %q", ErrBoardLeased, holder)
	}
	return b.spec.Clone(), nil
}

// Spec returns the leased specification, or nil once the lease is released.
func (l *Lease) Spec() *ProjectSpec {
	if l.released.Load() {
		return nil
	}
	return l.board.spec
}

// Owner returns the name the lease was acquired under.
func (l *Lease) Owner() string {
	return l.owner
}

// Release returns the specification to the board. Safe to call more than once.
func (l *Lease) Release() {
	if l.released.CompareAndSwap(false, true) {
		l.board.owner.Store(nil)
	}
}
