package persistence

// SaleStateStore defines the interface for persisting the mint state
// machine's committed state across restarts. All implementations must be
// thread-safe; the machine snapshots after every committed transition.
//
// Implementations: memory (testing), badger (single-node durable disk),
// redis (cloud-native deployments).
type SaleStateStore interface {
	// SaveSaleState persists the snapshot, overwriting any previous one.
	// Returns error only on storage failure.
	SaveSaleState(state *SaleState) error

	// LoadSaleState retrieves the last snapshot.
	// Returns nil state if none exists (first run), error only on storage failure.
	LoadSaleState() (*SaleState, error)

	// Close releases the backing resources. Operations after Close fail.
	Close() error
}
