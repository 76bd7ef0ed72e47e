package auth

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrUnauthorized is returned when a caller lacks the privileged role.
var ErrUnauthorized = fmt.Errorf("caller is not the privileged role holder")

// Authorizer answers whether a caller holds the privileged role. The mint
// state machine takes this as an injected capability check rather than
// owning role bookkeeping itself.
type Authorizer interface {
	IsPrivileged(caller common.Address) bool

	// Owner returns the current role holder, used as the payout destination.
	Owner() common.Address
}

// SingleOwner is an Authorizer with exactly one role holder at a time.
// Ownership transfers only through TransferOwnership, guarded by the same
// privilege check as every other restricted operation.
type SingleOwner struct {
	mu    sync.RWMutex
	owner common.Address
}

// Ensure SingleOwner implements Authorizer
var _ Authorizer = (*SingleOwner)(nil)

// NewSingleOwner creates an authorizer with the given initial owner.
func NewSingleOwner(owner common.Address) (*SingleOwner, error) {
	if owner == (common.Address{}) {
		return nil, fmt.Errorf("owner cannot be the zero address")
	}
	return &SingleOwner{owner: owner}, nil
}

func (s *SingleOwner) IsPrivileged(caller common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return caller == s.owner
}

func (s *SingleOwner) Owner() common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

// TransferOwnership hands the role to newOwner. Only the current owner may
// transfer, and never to the zero address.
func (s *SingleOwner) TransferOwnership(caller, newOwner common.Address) error {
	if newOwner == (common.Address{}) {
		return fmt.Errorf("new owner cannot be the zero address")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.owner {
		return ErrUnauthorized
	}
	s.owner = newOwner
	return nil
}
