package ledger

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrUnknownToken is returned for token ids that were never issued.
var ErrUnknownToken = fmt.Errorf("unknown token id")

// Ledger is the token ownership bookkeeping consumed by the mint state
// machine. Token ids are globally unique and assigned monotonically
// starting at 0.
type Ledger interface {
	// Issue mints quantity new tokens to owner and returns the first id of
	// the contiguous range [firstID, firstID+quantity).
	Issue(owner common.Address, quantity uint64) (firstID uint64, err error)

	// OwnerOf returns the current owner of a token id, or ErrUnknownToken.
	OwnerOf(tokenID uint64) (common.Address, error)

	// BalanceOf returns the number of tokens held by owner.
	BalanceOf(owner common.Address) uint64

	// TotalMinted returns the number of tokens issued so far.
	TotalMinted() uint64
}

// Snapshotter is implemented by ledgers whose ownership records live only
// in process memory and must ride along with sale-state snapshots to
// survive a restart. Ledgers with durable storage of their own do not
// implement it.
type Snapshotter interface {
	// Owners returns a copy of the full token id to owner mapping.
	Owners() map[uint64]common.Address
}

// MemoryLedger is an in-memory Ledger implementation.
// Thread-safe; the next id is the source of monotonic assignment.
type MemoryLedger struct {
	mu       sync.RWMutex
	owners   map[uint64]common.Address
	balances map[common.Address]uint64
	nextID   uint64
}

// Ensure MemoryLedger implements Ledger and Snapshotter
var _ Ledger = (*MemoryLedger)(nil)
var _ Snapshotter = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		owners:   make(map[uint64]common.Address),
		balances: make(map[common.Address]uint64),
	}
}

// NewMemoryLedgerFromOwners rebuilds a ledger from a snapshot of its
// ownership records, resuming id assignment after the highest restored id.
func NewMemoryLedgerFromOwners(owners map[uint64]common.Address) *MemoryLedger {
	l := NewMemoryLedger()
	for tokenID, owner := range owners {
		l.owners[tokenID] = owner
		l.balances[owner]++
		if tokenID >= l.nextID {
			l.nextID = tokenID + 1
		}
	}
	return l
}

func (l *MemoryLedger) Issue(owner common.Address, quantity uint64) (uint64, error) {
	if quantity == 0 {
		return 0, fmt.Errorf("cannot issue zero tokens")
	}
	if owner == (common.Address{}) {
		return 0, fmt.Errorf("cannot issue to the zero address")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	firstID := l.nextID
	for i := uint64(0); i < quantity; i++ {
		l.owners[firstID+i] = owner
	}
	l.nextID += quantity
	l.balances[owner] += quantity

	return firstID, nil
}

func (l *MemoryLedger) OwnerOf(tokenID uint64) (common.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	owner, ok := l.owners[tokenID]
	if !ok {
		return common.Address{}, ErrUnknownToken
	}
	return owner, nil
}

func (l *MemoryLedger) BalanceOf(owner common.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[owner]
}

func (l *MemoryLedger) TotalMinted() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextID
}

func (l *MemoryLedger) Owners() map[uint64]common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[uint64]common.Address, len(l.owners))
	for tokenID, owner := range l.owners {
		out[tokenID] = owner
	}
	return out
}
