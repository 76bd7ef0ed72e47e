package memory

import (
	"fmt"
	"sync"

	"github.com/Forge-Labs/mintgate-go/pkg/persistence"
)

// MemoryStore is an in-memory implementation of SaleStateStore.
// Intended for testing only; all data is lost when the process exits.
// Thread-safe; snapshots are deep-copied to prevent external mutation.
type MemoryStore struct {
	mu     sync.RWMutex
	state  *persistence.SaleState
	closed bool
}

// Ensure MemoryStore implements SaleStateStore
var _ persistence.SaleStateStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory sale state store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) SaveSaleState(state *persistence.SaleState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil SaleState")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("sale state store is closed")
	}

	m.state = deepCopySaleState(state)
	return nil
}

func (m *MemoryStore) LoadSaleState() (*persistence.SaleState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("sale state store is closed")
	}

	if m.state == nil {
		return nil, nil
	}
	return deepCopySaleState(m.state), nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func deepCopySaleState(state *persistence.SaleState) *persistence.SaleState {
	out := *state
	out.PublicMinted = make(map[string]uint64, len(state.PublicMinted))
	for k, v := range state.PublicMinted {
		out.PublicMinted[k] = v
	}
	out.WhitelistMinted = make(map[string]uint64, len(state.WhitelistMinted))
	for k, v := range state.WhitelistMinted {
		out.WhitelistMinted[k] = v
	}
	if state.TokenOwners != nil {
		out.TokenOwners = make(map[uint64]string, len(state.TokenOwners))
		for k, v := range state.TokenOwners {
			out.TokenOwners[k] = v
		}
	}
	return &out
}
